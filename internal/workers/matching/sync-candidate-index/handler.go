package synccandidateindex

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"matching-workers/internal/common/config"
	"matching-workers/internal/common/errors"
	"matching-workers/internal/common/logger"
	"matching-workers/internal/common/metrics"
	"matching-workers/internal/common/observability"
	"matching-workers/internal/common/validation"
	"matching-workers/internal/models"
	"matching-workers/pkg/registry"
)

const TaskType = "sync-candidate-index"

type CandidateLoader interface {
	GetCandidate(ctx context.Context, accountID int64) (*models.CandidateRecord, error)
}

type CandidateIndexer interface {
	IndexCandidate(ctx context.Context, rec models.CandidateRecord) error
	DeleteCandidate(ctx context.Context, accountID int64) error
}

type Handler struct {
	config       *Config
	loader       CandidateLoader
	indexer      CandidateIndexer
	schema       *validation.Schema
	obs          *observability.Observability
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

type HandlerOptions struct {
	AppConfig     *config.Config
	CustomConfig  *Config
	Loader        CandidateLoader
	Indexer       CandidateIndexer
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
	if opts.Loader == nil || opts.Indexer == nil {
		return nil, fmt.Errorf("%s: loader and indexer are required", TaskType)
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
		loader:       opts.Loader,
		indexer:      opts.Indexer,
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

// Execute upserts the account's current person record into the index, or
// removes the document when the account no longer has one.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil || input.AccountID <= 0 {
		return nil, errors.NewInvalidJobInputError("accountId must be a positive integer")
	}

	rec, err := h.loader.GetCandidate(ctx, input.AccountID)
	if err != nil {
		return nil, fmt.Errorf("load candidate %d: %w", input.AccountID, err)
	}

	if rec == nil {
		if err := h.indexer.DeleteCandidate(ctx, input.AccountID); err != nil {
			return nil, errors.NewSearchIndexFailedError("delete", err)
		}
		h.logger.Info("candidate removed from index", map[string]interface{}{"accountId": input.AccountID})
		return &Output{AccountID: input.AccountID, Action: ActionDeleted}, nil
	}

	if err := h.indexer.IndexCandidate(ctx, *rec); err != nil {
		return nil, errors.NewSearchIndexFailedError("index", err)
	}
	h.logger.Debug("candidate indexed", map[string]interface{}{"accountId": input.AccountID})
	return &Output{AccountID: input.AccountID, Action: ActionIndexed}, nil
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
	}
}

func (h *Handler) record(ctx context.Context, start time.Time, status string) {
	if h.obs == nil {
		return
	}
	h.obs.RecordJobProcessed(ctx, TaskType, status)
	h.obs.RecordJobDuration(ctx, TaskType, time.Since(start), status)
}
