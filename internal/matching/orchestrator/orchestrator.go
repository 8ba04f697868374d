// Package orchestrator chains candidate retrieval, scoring, filtering and
// persistence into one matching run for a query profile.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"matching-workers/internal/common/logger"
	"matching-workers/internal/common/metrics"
	"matching-workers/internal/matching"
	"matching-workers/internal/matching/candidates"
	"matching-workers/internal/matching/persistence"
	"matching-workers/internal/matching/scoring"
	"matching-workers/internal/models"
)

// Outcome describes one finished run, successful or not.
type Outcome struct {
	RunID               string
	QueryProfileID      int64
	State               State
	FailedIn            State
	Cleared             int64
	CandidatesEvaluated int
	Qualified           int
	MatchesCreated      int
	FuzzySkipped        bool
	Matches             []scoring.ScoredCandidate
	StartedAt           time.Time
	Duration            time.Duration
}

type Orchestrator struct {
	store     matching.Store
	finder    *candidates.Finder
	engine    *scoring.Engine
	persistor *persistence.Persistor
	reporter  matching.StatusReporter
	settings  matching.Settings
	tracer    trace.Tracer
	now       func() time.Time
	logger    logger.Logger
}

type Option func(*Orchestrator)

func WithReporter(r matching.StatusReporter) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.reporter = r
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) {
		if t != nil {
			o.tracer = t
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func WithEngine(e *scoring.Engine) Option {
	return func(o *Orchestrator) { o.engine = e }
}

// New wires the default finder, engine and persistor over store.
func New(store matching.Store, settings matching.Settings, log logger.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:    store,
		settings: settings,
		reporter: NopReporter{},
		tracer:   noop.NewTracerProvider().Tracer("matching"),
		now:      time.Now,
		logger:   logger.ForComponent(log, "matching-orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.finder = candidates.NewFinder(store, settings, log)
	if o.engine == nil {
		o.engine = scoring.NewEngine(settings, scoring.WithClock(o.now))
	}
	o.persistor = persistence.NewPersistor(store, settings, log, persistence.WithClock(o.now))
	return o
}

// RunMatching is the inbound job entry point: it replaces every stored match
// of the profile and returns how many were created.
func (o *Orchestrator) RunMatching(ctx context.Context, queryProfileID int64) (int, error) {
	out, err := o.Run(ctx, queryProfileID)
	if err != nil {
		return 0, err
	}
	return out.MatchesCreated, nil
}

// Run loads the profile, clears its prior matches and runs the pipeline.
// A missing profile yields an error wrapping matching.ErrQueryProfileNotFound;
// a profile without both names fails with matching.ErrInvalidQueryProfile
// before anything is cleared.
// Reporter failures are logged and never change the result.
func (o *Orchestrator) Run(ctx context.Context, queryProfileID int64) (*Outcome, error) {
	out := o.newOutcome(queryProfileID)
	log := o.logger.WithFields(map[string]interface{}{
		"queryProfileId": queryProfileID,
		"runId":          out.RunID,
	})

	ctx, span := o.tracer.Start(ctx, "matching.run", trace.WithAttributes(
		attribute.Int64("matching.query_profile_id", queryProfileID),
		attribute.String("matching.run_id", out.RunID),
	))
	defer span.End()

	log.Info("matching run started", nil)
	o.report(ctx, log, "processing", func(ctx context.Context) error {
		return o.reporter.MarkProcessing(ctx, queryProfileID)
	})

	profile, err := o.store.GetQueryProfile(ctx, queryProfileID)
	if err != nil {
		return o.fail(ctx, span, log, out, fmt.Errorf("load query profile %d: %w", queryProfileID, err))
	}

	if !profile.HasName() {
		return o.fail(ctx, span, log, out, fmt.Errorf("query profile %d: %w", queryProfileID, matching.ErrInvalidQueryProfile))
	}

	cleared, err := o.store.ClearMatches(ctx, queryProfileID)
	if err != nil {
		return o.fail(ctx, span, log, out, fmt.Errorf("clear matches for query profile %d: %w", queryProfileID, err))
	}
	out.Cleared = cleared

	if err := o.pipeline(ctx, log, profile, out); err != nil {
		return o.fail(ctx, span, log, out, err)
	}

	o.finish(ctx, span, log, out)
	return out, nil
}

// FindMatches runs find, score, filter and persist for an already loaded
// profile without clearing earlier results.
func (o *Orchestrator) FindMatches(ctx context.Context, profile *models.QueryProfile) (*Outcome, error) {
	if profile == nil {
		return nil, matching.ErrInvalidQueryProfile
	}
	out := o.newOutcome(profile.ID)
	log := o.logger.WithFields(map[string]interface{}{
		"queryProfileId": profile.ID,
		"runId":          out.RunID,
	})

	ctx, span := o.tracer.Start(ctx, "matching.find_matches", trace.WithAttributes(
		attribute.Int64("matching.query_profile_id", profile.ID),
	))
	defer span.End()

	if err := o.pipeline(ctx, log, profile, out); err != nil {
		out.FailedIn = out.State
		out.State = StateFailed
		out.Duration = o.now().Sub(out.StartedAt)
		metrics.MatchingRuns.WithLabelValues(StateFailed.String()).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return out, err
	}

	out.Duration = o.now().Sub(out.StartedAt)
	metrics.MatchingRuns.WithLabelValues(StateDone.String()).Inc()
	return out, nil
}

func (o *Orchestrator) pipeline(ctx context.Context, log logger.Logger, profile *models.QueryProfile, out *Outcome) error {
	o.advance(log, out) // finding
	var found *candidates.Result
	err := o.stage(ctx, StateFinding, func(ctx context.Context) error {
		var err error
		found, err = o.finder.Find(ctx, profile)
		return err
	})
	if err != nil {
		return fmt.Errorf("find candidates: %w", err)
	}
	for tier, n := range found.TierCounts {
		metrics.MatchingCandidates.WithLabelValues(string(tier)).Add(float64(n))
	}
	if found.FuzzySkipped {
		out.FuzzySkipped = true
		metrics.MatchingFuzzyTierSkipped.Inc()
	}
	out.CandidatesEvaluated = len(found.Candidates)

	o.advance(log, out) // scoring
	var scored []scoring.ScoredCandidate
	o.timedStage(ctx, StateScoring, func() {
		scored = o.engine.Score(profile, found.Candidates)
	})

	o.advance(log, out) // filtering
	qualified := persistence.Qualified(scored, o.settings.MinimumMatchScore)
	out.Qualified = len(qualified)
	out.Matches = qualified

	o.advance(log, out) // persisting
	err = o.stage(ctx, StatePersisting, func(ctx context.Context) error {
		n, err := o.persistor.Persist(ctx, profile, qualified)
		out.MatchesCreated = n
		return err
	})
	if err != nil {
		return fmt.Errorf("persist matches: %w", err)
	}
	metrics.MatchingMatchesCreated.Add(float64(out.MatchesCreated))

	o.advance(log, out) // done
	return nil
}

func (o *Orchestrator) stage(ctx context.Context, s State, fn func(context.Context) error) error {
	ctx, span := o.tracer.Start(ctx, "matching."+s.String())
	defer span.End()

	start := o.now()
	err := fn(ctx)
	metrics.MatchingRunDuration.WithLabelValues(s.String()).Observe(o.now().Sub(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// timedStage is stage for steps that cannot fail.
func (o *Orchestrator) timedStage(ctx context.Context, s State, fn func()) {
	_, span := o.tracer.Start(ctx, "matching."+s.String())
	defer span.End()

	start := o.now()
	fn()
	metrics.MatchingRunDuration.WithLabelValues(s.String()).Observe(o.now().Sub(start).Seconds())
}

func (o *Orchestrator) advance(log logger.Logger, out *Outcome) {
	from := out.State
	out.State = from.next()
	log.Debug("matching state transition", map[string]interface{}{
		"from": from.String(),
		"to":   out.State.String(),
	})
}

func (o *Orchestrator) newOutcome(queryProfileID int64) *Outcome {
	return &Outcome{
		RunID:          uuid.NewString(),
		QueryProfileID: queryProfileID,
		State:          StateIdle,
		StartedAt:      o.now(),
	}
}

func (o *Orchestrator) finish(ctx context.Context, span trace.Span, log logger.Logger, out *Outcome) {
	out.Duration = o.now().Sub(out.StartedAt)
	span.SetAttributes(
		attribute.Int("matching.candidates", out.CandidatesEvaluated),
		attribute.Int("matching.created", out.MatchesCreated),
	)
	metrics.MatchingRuns.WithLabelValues(StateDone.String()).Inc()

	o.report(ctx, log, "completed", func(ctx context.Context) error {
		return o.reporter.MarkCompleted(ctx, out.QueryProfileID, out.MatchesCreated, o.now())
	})

	log.Info("matching run finished", map[string]interface{}{
		"state":      out.State.String(),
		"candidates": out.CandidatesEvaluated,
		"qualified":  out.Qualified,
		"created":    out.MatchesCreated,
		"cleared":    out.Cleared,
		"durationMs": out.Duration.Milliseconds(),
	})
}

func (o *Orchestrator) fail(ctx context.Context, span trace.Span, log logger.Logger, out *Outcome, err error) (*Outcome, error) {
	out.FailedIn = out.State
	out.State = StateFailed
	out.Duration = o.now().Sub(out.StartedAt)

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	metrics.MatchingRuns.WithLabelValues(StateFailed.String()).Inc()

	o.report(ctx, log, "failed", func(ctx context.Context) error {
		return o.reporter.MarkFailed(ctx, out.QueryProfileID, err)
	})

	fields := map[string]interface{}{
		"failedIn": out.FailedIn.String(),
		"error":    err,
	}
	if errors.Is(err, matching.ErrQueryProfileNotFound) {
		log.Warn("matching run failed: query profile not found", fields)
	} else {
		log.Error("matching run failed", fields)
	}
	return out, err
}

func (o *Orchestrator) report(ctx context.Context, log logger.Logger, what string, fn func(context.Context) error) {
	if err := fn(ctx); err != nil {
		log.Warn("status reporter failed", map[string]interface{}{
			"status": what,
			"error":  err,
		})
	}
}
