package orchestrator

import (
	"context"
	"errors"
	"time"

	"matching-workers/internal/matching"
)

// NopReporter discards every status update.
type NopReporter struct{}

func (NopReporter) MarkProcessing(context.Context, int64) error                { return nil }
func (NopReporter) MarkCompleted(context.Context, int64, int, time.Time) error { return nil }
func (NopReporter) MarkFailed(context.Context, int64, error) error             { return nil }

// MultiReporter fans each update out to every reporter and joins their errors.
type MultiReporter []matching.StatusReporter

func (m MultiReporter) MarkProcessing(ctx context.Context, id int64) error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.MarkProcessing(ctx, id))
	}
	return errors.Join(errs...)
}

func (m MultiReporter) MarkCompleted(ctx context.Context, id int64, count int, at time.Time) error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.MarkCompleted(ctx, id, count, at))
	}
	return errors.Join(errs...)
}

func (m MultiReporter) MarkFailed(ctx context.Context, id int64, cause error) error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.MarkFailed(ctx, id, cause))
	}
	return errors.Join(errs...)
}
