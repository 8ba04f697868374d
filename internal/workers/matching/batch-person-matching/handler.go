package batchpersonmatching

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
	"matching-workers/pkg/registry"
)

const TaskType = "batch-person-matching"

// ProfileSelector picks query profiles that have no matches or stale ones.
type ProfileSelector interface {
	ProfilesNeedingMatching(ctx context.Context, staleBefore time.Time, limit int) ([]int64, error)
}

// ProcessStarter starts one process instance and returns its key.
type ProcessStarter interface {
	StartProcess(ctx context.Context, processID string, variables map[string]interface{}) (int64, error)
}

type Handler struct {
	config       *Config
	selector     ProfileSelector
	starter      ProcessStarter
	schema       *validation.Schema
	obs          *observability.Observability
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
	now          func() time.Time
}

type HandlerOptions struct {
	AppConfig     *config.Config
	CustomConfig  *Config
	Selector      ProfileSelector
	Starter       ProcessStarter
	Observability *observability.Observability
	Logger        logger.Logger
	Clock         func() time.Time
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	cfg := opts.CustomConfig
	if cfg == nil {
		cfg = ConfigFromApp(opts.AppConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	if opts.Selector == nil || opts.Starter == nil {
		return nil, fmt.Errorf("%s: selector and starter are required", TaskType)
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

	now := opts.Clock
	if now == nil {
		now = time.Now
	}

	return &Handler{
		config:       cfg,
		selector:     opts.Selector,
		starter:      opts.Starter,
		schema:       schema,
		obs:          opts.Observability,
		errorHandler: errors.NewErrorHandler(log),
		logger:       log,
		now:          now,
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

// Execute selects due profiles and starts one matching process per profile.
// Individual start failures are logged and reported in the output; the job
// fails only when profiles were found and none could be started.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	limit := h.config.BatchSize
	if input != nil && input.BatchSize > 0 {
		limit = input.BatchSize
	}
	staleBefore := h.now().UTC().Add(-h.config.StaleAfter)

	ids, err := h.selector.ProfilesNeedingMatching(ctx, staleBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("select profiles needing matching: %w", err)
	}

	out := &Output{ProfilesFound: len(ids)}
	var lastErr error
	for _, id := range ids {
		key, err := h.starter.StartProcess(ctx, h.config.ProcessID, map[string]interface{}{
			"queryProfileId": id,
		})
		if err != nil {
			lastErr = err
			out.FailedProfileIDs = append(out.FailedProfileIDs, id)
			metrics.BatchProfilesDispatched.WithLabelValues("failed").Inc()
			h.logger.Warn("failed to start matching process", map[string]interface{}{
				"queryProfileId": id,
				"processId":      h.config.ProcessID,
				"error":          err.Error(),
			})
			continue
		}
		out.ProfilesDispatched++
		metrics.BatchProfilesDispatched.WithLabelValues("dispatched").Inc()
		h.logger.Debug("matching process started", map[string]interface{}{
			"queryProfileId":     id,
			"processInstanceKey": key,
		})
	}

	h.logger.Info("batch dispatched", map[string]interface{}{
		"profilesFound":      out.ProfilesFound,
		"profilesDispatched": out.ProfilesDispatched,
		"staleBefore":        staleBefore.Format(time.RFC3339),
	})

	if out.ProfilesFound > 0 && out.ProfilesDispatched == 0 {
		return nil, errors.NewBatchDispatchFailedError(
			fmt.Sprintf("none of %d profiles could be dispatched", out.ProfilesFound), lastErr)
	}
	return out, nil
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
