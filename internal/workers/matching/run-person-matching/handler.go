package runpersonmatching

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"matching-workers/internal/common/config"
	"matching-workers/internal/common/database"
	"matching-workers/internal/common/errors"
	"matching-workers/internal/common/logger"
	"matching-workers/internal/common/metrics"
	"matching-workers/internal/common/observability"
	"matching-workers/internal/common/validation"
	"matching-workers/internal/matching/orchestrator"
	"matching-workers/internal/models"
	"matching-workers/pkg/registry"
)

const TaskType = "run-person-matching"

// Runner runs one matching pass for a query profile.
type Runner interface {
	Run(ctx context.Context, queryProfileID int64) (*orchestrator.Outcome, error)
}

// Locker serializes runs per query profile.
type Locker interface {
	Acquire(ctx context.Context, queryProfileID int64) (*database.RunLock, error)
}

type Handler struct {
	config       *Config
	runner       Runner
	locker       Locker
	schema       *validation.Schema
	obs          *observability.Observability
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

type HandlerOptions struct {
	AppConfig    *config.Config
	CustomConfig *Config
	Runner       Runner
	// Locker is optional; without it concurrent runs are not prevented.
	Locker        Locker
	Observability *observability.Observability
	Logger        logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	cfg := opts.CustomConfig
	if cfg == nil {
		cfg = ConfigFromApp(opts.AppConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	if opts.Runner == nil {
		return nil, fmt.Errorf("%s: runner is required", TaskType)
	}

	schemaDef, err := registry.InputSchema(TaskType)
	if err != nil {
		return nil, err
	}
	schema, err := validation.Compile(schemaDef)
	if err != nil {
		return nil, fmt.Errorf("%s input schema: %w", TaskType, err)
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewStructured("info", "json")
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})

	return &Handler{
		config:       cfg,
		runner:       opts.Runner,
		locker:       opts.Locker,
		schema:       schema,
		obs:          opts.Observability,
		errorHandler: errors.NewErrorHandler(log),
		logger:       log,
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	input, err := h.parseInput(job)
	if err == nil {
		var output *Output
		output, err = h.Execute(ctx, input)
		if err == nil {
			h.completeJob(ctx, client, job, output)
			h.record(ctx, startTime, "completed")
			metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
			metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
			return
		}
	}

	stdErr := h.errorHandler.HandleJobError(ctx, client, job, err)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
	h.record(ctx, startTime, "failed")
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	result, err := h.schema.Validate([]byte(job.GetVariables()))
	if err != nil {
		return nil, errors.NewInvalidJobInputError(err.Error())
	}
	if !result.Valid {
		return nil, errors.NewInvalidJobInputError(result.Summary())
	}

	var input Input
	if err := json.Unmarshal([]byte(job.GetVariables()), &input); err != nil {
		return nil, errors.NewInvalidJobInputError(err.Error())
	}
	return &input, nil
}

// Execute takes the profile's run lock, then clears and recomputes its matches.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil || input.QueryProfileID <= 0 {
		return nil, errors.NewInvalidJobInputError("queryProfileId must be a positive integer")
	}

	if h.locker != nil {
		lock, err := h.locker.Acquire(ctx, input.QueryProfileID)
		if stderrors.Is(err, database.ErrLockNotAcquired) {
			return nil, errors.NewMatchingRunInProgressError(input.QueryProfileID)
		}
		if err != nil {
			return nil, errors.NewRunLockFailedError(err)
		}
		defer func() {
			// ctx may already be past the job deadline.
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := lock.Release(releaseCtx); err != nil {
				h.logger.Warn("failed to release run lock", map[string]interface{}{
					"queryProfileId": input.QueryProfileID,
					"error":          err.Error(),
				})
			}
		}()
	}

	outcome, err := h.runner.Run(ctx, input.QueryProfileID)
	if err != nil {
		return nil, err
	}

	if h.obs != nil {
		h.obs.RecordMatchesCreated(ctx, outcome.MatchesCreated)
	}

	return &Output{
		MatchesCreated:      outcome.MatchesCreated,
		CandidatesEvaluated: outcome.CandidatesEvaluated,
		RunID:               outcome.RunID,
		MatchStatus:         models.MatchStatusCompleted.String(),
	}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.GetKey()).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}

	h.logger.Info("job completed", map[string]interface{}{
		"jobKey":              job.GetKey(),
		"runId":               output.RunID,
		"matchesCreated":      output.MatchesCreated,
		"candidatesEvaluated": output.CandidatesEvaluated,
	})
}

func (h *Handler) record(ctx context.Context, start time.Time, status string) {
	if h.obs == nil {
		return
	}
	h.obs.RecordJobProcessed(ctx, TaskType, status)
	h.obs.RecordJobDuration(ctx, TaskType, time.Since(start), status)
}
