// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"matching-workers/internal/common/aws"
	"matching-workers/internal/common/camunda"
	"matching-workers/internal/common/config"
	"matching-workers/internal/common/database"
	"matching-workers/internal/common/logger"
	"matching-workers/internal/common/observability"
	"matching-workers/internal/matching"
	"matching-workers/internal/matching/location"
	"matching-workers/internal/matching/orchestrator"
	"matching-workers/internal/matching/scoring"
	"matching-workers/internal/store/postgres"
	"matching-workers/internal/store/search"

	bpm "matching-workers/internal/workers/matching/batch-person-matching"
	rpm "matching-workers/internal/workers/matching/run-person-matching"
	sci "matching-workers/internal/workers/matching/sync-candidate-index"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...", zap.String("environment", cfg.App.Environment))

	ctx := context.Background()

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	tracing, err := observability.NewTracing(observability.TracingConfig{
		ServiceName:    cfg.App.Name,
		JaegerEndpoint: cfg.Tracing.JaegerEndpoint,
		SampleRatio:    cfg.Tracing.SampleRatio,
	})
	if err != nil {
		zapLog.Fatal("tracing init failed", zap.Error(err))
	}
	if tracing != nil {
		obs.EnableTracing(tracing, cfg.App.Name)
		defer tracing.Shutdown(context.Background())
		zapLog.Info("Tracing enabled", zap.String("endpoint", cfg.Tracing.JaegerEndpoint))
	}

	// --- Zeebe ---
	var zeebe *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebe, err = camunda.NewClientWithConfig(camunda.ConfigFrom(cfg.Camunda))
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- PostgreSQL ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Redis (run lock) ---
	var locker *database.RunLocker
	if cfg.Lock.Enabled {
		var rdb *database.RedisClient
		err = retryWithBackoff(func() error {
			var err error
			rdb, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return rdb.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer rdb.Close()
		locker = database.NewRunLocker(rdb.GetClient(), cfg.Lock.KeyPrefix, cfg.Lock.TTL)
		zapLog.Info("Redis connected successfully")
	}

	// --- Elasticsearch (optional) ---
	var index *search.Index
	if cfg.Database.Elasticsearch.Configured() {
		var es *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			es, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return es.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		index = search.NewIndex(es.Client, cfg.Search.CandidateIndex, log)
		zapLog.Info("Elasticsearch connected successfully")
	}

	// --- Matching core ---
	pgStore := postgres.NewStore(pg.GetDB(), log)

	var store matching.Store = pgStore
	switch cfg.Matching.FuzzyBackend {
	case config.FuzzyBackendElasticsearch:
		store = search.NewHybrid(pgStore, index)
	case config.FuzzyBackendNone:
		store = search.NewHybrid(pgStore, search.Disabled{})
	}

	reporters := orchestrator.MultiReporter{postgres.NewStatusReporter(pg.GetDB())}
	if cfg.Notifications.SNS.Enabled {
		snsClient, err := aws.NewSNSClient(ctx, cfg.Notifications.SNS)
		if err != nil {
			zapLog.Fatal("sns client init failed", zap.Error(err))
		}
		reporters = append(reporters, orchestrator.NewNotifier(snsClient, snsClient.TopicARN()))
		zapLog.Info("SNS notifications enabled", zap.String("topicArn", snsClient.TopicARN()))
	}

	settings := cfg.Matching.Settings
	geo := location.NewGeoScorer(settings, location.NewNormalizer(cfg.Matching.LocationAliases))
	orch := orchestrator.New(store, settings, log,
		orchestrator.WithEngine(scoring.NewEngine(settings, scoring.WithGeoScorer(geo))),
		orchestrator.WithReporter(reporters),
		orchestrator.WithTracer(obs.Tracer()),
	)

	// --- Workers ---
	var workers []*camunda.Worker

	runHandler, err := rpm.NewHandler(rpm.HandlerOptions{
		AppConfig:     cfg,
		Runner:        orch,
		Locker:        lockerOrNil(locker),
		Observability: obs,
		Logger:        log,
	})
	if err != nil {
		zapLog.Fatal("failed to create run-person-matching handler", zap.Error(err))
	}
	workers = appendWorker(workers, camunda.StartWorker(zeebe.GetClient(), rpm.TaskType, cfg.Workers[rpm.TaskType], runHandler.Handle, log))

	batchHandler, err := bpm.NewHandler(bpm.HandlerOptions{
		AppConfig:     cfg,
		Selector:      pgStore,
		Starter:       zeebe,
		Observability: obs,
		Logger:        log,
	})
	if err != nil {
		zapLog.Fatal("failed to create batch-person-matching handler", zap.Error(err))
	}
	workers = appendWorker(workers, camunda.StartWorker(zeebe.GetClient(), bpm.TaskType, cfg.Workers[bpm.TaskType], batchHandler.Handle, log))

	if index != nil {
		syncHandler, err := sci.NewHandler(sci.HandlerOptions{
			AppConfig:     cfg,
			Loader:        pgStore,
			Indexer:       index,
			Observability: obs,
			Logger:        log,
		})
		if err != nil {
			zapLog.Fatal("failed to create sync-candidate-index handler", zap.Error(err))
		}
		workers = appendWorker(workers, camunda.StartWorker(zeebe.GetClient(), sci.TaskType, cfg.Workers[sci.TaskType], syncHandler.Handle, log))
	} else {
		zapLog.Info("Elasticsearch not configured, sync-candidate-index not registered")
	}

	zapLog.Info("Workers registered", zap.Int("count", len(workers)))

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "healthy", nil)
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		checkCtx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		problems := map[string]string{}
		if err := pg.Ping(checkCtx); err != nil {
			problems["postgres"] = err.Error()
		}
		if err := zeebe.HealthCheck(checkCtx); err != nil {
			problems["zeebe"] = err.Error()
		}
		if len(problems) > 0 {
			writeStatus(w, http.StatusServiceUnavailable, "not ready", problems)
			return
		}
		writeStatus(w, http.StatusOK, "ready", nil)
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: cfg.Server.Address, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Stop()
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}
	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

// lockerOrNil keeps a nil *RunLocker from becoming a non-nil interface.
func lockerOrNil(l *database.RunLocker) rpm.Locker {
	if l == nil {
		return nil
	}
	return l
}

func appendWorker(workers []*camunda.Worker, w *camunda.Worker) []*camunda.Worker {
	if w == nil {
		return workers
	}
	return append(workers, w)
}

func writeStatus(w http.ResponseWriter, code int, status string, problems map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	body := map[string]interface{}{
		"status": status,
		"time":   time.Now().Format(time.RFC3339),
	}
	if len(problems) > 0 {
		body["problems"] = problems
	}
	_ = json.NewEncoder(w).Encode(body)
}
