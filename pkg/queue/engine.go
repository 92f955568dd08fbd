package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/schedkit/pkg/logger"
	"github.com/dmitrymomot/schedkit/pkg/metrics"
	"github.com/dmitrymomot/schedkit/pkg/validator"
)

// Metric names published by the engine.
const (
	MetricBacklog   = "queue_backlog"
	MetricEnqueued  = "queue_jobs_enqueued_total"
	MetricCompleted = "queue_jobs_completed_total"
	MetricFailed    = "queue_jobs_failed_total"
	MetricCancelled = "queue_jobs_cancelled_total"
)

// Fail outcomes reported in the "outcome" label of MetricFailed.
const (
	OutcomeRequeued   = "requeued"
	OutcomeFailed     = "failed"
	OutcomeDeadLetter = "dead_letter"
)

// Engine implements the job lifecycle on top of a Storage.
type Engine struct {
	storage Storage
	cfg     Config
	logger  *slog.Logger
	metrics metrics.Sink
	now     func() time.Time

	// types published to the backlog gauge, so vanished types can be zeroed
	gaugeMu   sync.Mutex
	gaugeSeen map[string]struct{}
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics sets the metrics sink. The sink is wrapped with metrics.Safe.
func WithMetrics(sink metrics.Sink) EngineOption {
	return func(e *Engine) {
		e.metrics = sink
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithConfig replaces the default configuration. Non-positive values keep their defaults.
func WithConfig(cfg Config) EngineOption {
	return func(e *Engine) {
		if cfg.DefaultMaxAttempts > 0 {
			e.cfg.DefaultMaxAttempts = cfg.DefaultMaxAttempts
		}
		if cfg.DefaultListLimit > 0 {
			e.cfg.DefaultListLimit = cfg.DefaultListLimit
		}
		if cfg.MaxListLimit > 0 {
			e.cfg.MaxListLimit = cfg.MaxListLimit
		}
	}
}

// NewEngine creates a queue engine backed by storage.
func NewEngine(storage Storage, opts ...EngineOption) (*Engine, error) {
	if storage == nil {
		return nil, ErrRepositoryNil
	}

	e := &Engine{
		storage:   storage,
		cfg:       DefaultConfig(),
		logger:    slog.Default(),
		now:       time.Now,
		gaugeSeen: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(logger.Component("queue"))
	e.metrics = metrics.Safe(e.metrics, e.logger)

	return e, nil
}

// Enqueue stores a new QUEUED job. When params carry a dedupe key and a QUEUED
// job with that key exists, the existing job is returned unchanged.
func (e *Engine) Enqueue(ctx context.Context, params EnqueueParams) (*Job, error) {
	if err := validator.Apply(
		validator.RequiredString("organizationId", params.OrganizationID),
		validator.RequiredString("type", params.Type),
		validator.NonNegative("maxAttempts", params.MaxAttempts),
		validator.ValidJSON("payload", params.Payload),
	); err != nil {
		return nil, errors.Join(ErrInvalidArgument, err)
	}

	maxAttempts := params.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = e.cfg.DefaultMaxAttempts
	}

	now := e.now().UTC()
	job := &Job{
		ID:             uuid.NewString(),
		OrganizationID: params.OrganizationID,
		Type:           params.Type,
		Payload:        params.Payload,
		Priority:       params.Priority,
		Status:         StatusQueued,
		MaxAttempts:    maxAttempts,
		ErrorHistory:   []ErrorEntry{},
		CreatedBy:      params.CreatedBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if key := strings.TrimSpace(params.DedupeKey); key != "" {
		job.DedupeKey = &key
	}

	stored, created, err := e.storage.CreateJob(ctx, job)
	if err != nil {
		return nil, errors.Join(ErrFailedToCreateJob, err)
	}

	if !created {
		e.logger.LogAttrs(ctx, slog.LevelDebug, "job deduplicated",
			logger.JobID(stored.ID),
			logger.JobType(stored.Type),
			logger.OrganizationID(stored.OrganizationID),
		)
		return stored, nil
	}

	e.metrics.IncCounter(MetricEnqueued, 1, metrics.Labels{"type": stored.Type})
	e.logger.LogAttrs(ctx, slog.LevelDebug, "job enqueued",
		logger.JobID(stored.ID),
		logger.JobType(stored.Type),
		logger.OrganizationID(stored.OrganizationID),
	)
	e.publishBacklog(ctx)

	return stored, nil
}

// Start moves a QUEUED job to RUNNING and counts the attempt.
func (e *Engine) Start(ctx context.Context, jobID, workerID string) (*Job, error) {
	job, err := e.update(ctx, jobID, func(job *Job, now time.Time) error {
		if err := advance(job, eventStart); err != nil {
			return err
		}
		job.Attempts++
		job.WorkerID = workerID
		job.StartedAt = &now
		job.CompletedAt = nil
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.publishBacklog(ctx)
	return job, nil
}

// Complete marks a RUNNING job COMPLETED and stores its result.
func (e *Engine) Complete(ctx context.Context, jobID, workerID string, result json.RawMessage) (*Job, error) {
	if err := validator.Apply(validator.ValidJSON("result", result)); err != nil {
		return nil, errors.Join(ErrInvalidArgument, err)
	}

	job, err := e.update(ctx, jobID, func(job *Job, now time.Time) error {
		if err := advance(job, eventComplete); err != nil {
			return err
		}
		if workerID != "" {
			job.WorkerID = workerID
		}
		job.Result = result
		job.CompletedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.metrics.IncCounter(MetricCompleted, 1, metrics.Labels{"type": job.Type})
	e.publishBacklog(ctx)
	return job, nil
}

// Fail records a failed attempt of a RUNNING job. A retryable failure with
// attempts left requeues the job; a retryable failure on the last attempt
// dead-letters it; a non-retryable failure marks it FAILED. When the requeue
// would collide with another QUEUED job holding the same dedupe key, the job is
// dead-lettered instead.
func (e *Engine) Fail(ctx context.Context, jobID, workerID, message string, retryable bool) (*Job, error) {
	var outcome string

	fail := func(requeue bool) func(*Job, time.Time) error {
		return func(job *Job, now time.Time) error {
			ev := eventFail
			outcome = OutcomeFailed
			if retryable {
				if requeue && job.Attempts < job.MaxAttempts {
					ev, outcome = eventRequeue, OutcomeRequeued
				} else {
					ev, outcome = eventExhaust, OutcomeDeadLetter
				}
			}
			if err := advance(job, ev); err != nil {
				return err
			}

			if workerID != "" {
				job.WorkerID = workerID
			}
			job.LastError = message
			job.ErrorHistory = append(job.ErrorHistory, ErrorEntry{
				Attempt:   job.Attempts,
				Message:   message,
				Timestamp: now,
			})

			if job.Status == StatusQueued {
				job.StartedAt = nil
				job.CompletedAt = nil
			} else {
				job.CompletedAt = &now
			}
			return nil
		}
	}

	job, err := e.update(ctx, jobID, fail(true))
	if errors.Is(err, ErrDuplicateJob) {
		e.logger.LogAttrs(ctx, slog.LevelWarn, "requeue blocked by dedupe key, dead-lettering job",
			logger.JobID(jobID),
		)
		job, err = e.update(ctx, jobID, fail(false))
	}
	if err != nil {
		return nil, err
	}

	e.metrics.IncCounter(MetricFailed, 1, metrics.Labels{"type": job.Type, "outcome": outcome})
	e.logger.LogAttrs(ctx, slog.LevelWarn, "job attempt failed",
		logger.JobID(job.ID),
		logger.JobType(job.Type),
		logger.Attempt(job.Attempts),
		logger.Status(string(job.Status)),
		slog.String("reason", message),
	)
	e.publishBacklog(ctx)
	return job, nil
}

// Retry puts a FAILED, DEAD_LETTER or CANCELLED job back in the queue with a
// fresh attempt budget. Error history is kept.
func (e *Engine) Retry(ctx context.Context, jobID string) (*Job, error) {
	job, err := e.update(ctx, jobID, func(job *Job, _ time.Time) error {
		if err := advance(job, eventRetry); err != nil {
			return err
		}
		job.Attempts = 0
		job.WorkerID = ""
		job.Result = nil
		job.StartedAt = nil
		job.CompletedAt = nil
		job.CancelledAt = nil
		job.CancelReason = ""
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.publishBacklog(ctx)
	return job, nil
}

// Cancel moves a job to CANCELLED. COMPLETED and CANCELLED jobs cannot be cancelled.
func (e *Engine) Cancel(ctx context.Context, jobID, reason string) (*Job, error) {
	job, err := e.update(ctx, jobID, func(job *Job, now time.Time) error {
		if err := advance(job, eventCancel); err != nil {
			return err
		}
		job.CancelledAt = &now
		job.CancelReason = reason
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.metrics.IncCounter(MetricCancelled, 1, metrics.Labels{"type": job.Type})
	e.logger.LogAttrs(ctx, slog.LevelInfo, "job cancelled",
		logger.JobID(job.ID),
		logger.JobType(job.Type),
		slog.String("reason", reason),
	)
	e.publishBacklog(ctx)
	return job, nil
}

// Get returns the job with the given id.
func (e *Engine) Get(ctx context.Context, jobID string) (*Job, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, ErrJobNotFound
	}
	return e.storage.GetJob(ctx, jobID)
}

// List returns jobs newest first. A zero limit means the configured default.
func (e *Engine) List(ctx context.Context, opts ListOptions) ([]*Job, error) {
	for _, s := range opts.Statuses {
		if !s.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidArgument, s)
		}
	}
	if opts.Limit < 0 {
		return nil, fmt.Errorf("%w: negative limit", ErrInvalidArgument)
	}
	if opts.Limit == 0 {
		opts.Limit = e.cfg.DefaultListLimit
	}
	opts.Limit = min(opts.Limit, e.cfg.MaxListLimit)

	return e.storage.ListJobs(ctx, opts)
}

// update runs fn inside the storage read-modify-write and stamps UpdatedAt.
func (e *Engine) update(ctx context.Context, jobID string, fn func(*Job, time.Time) error) (*Job, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, ErrJobNotFound
	}

	job, err := e.storage.UpdateJob(ctx, jobID, func(job *Job) error {
		now := e.now().UTC()
		if err := fn(job, now); err != nil {
			return err
		}
		job.UpdatedAt = now
		return nil
	})
	switch {
	case err == nil:
		return job, nil
	case errors.Is(err, ErrJobNotFound), errors.Is(err, ErrInvalidState):
		return nil, err
	case errors.Is(err, ErrDuplicateJob):
		return nil, errors.Join(ErrInvalidState, err)
	default:
		return nil, errors.Join(ErrFailedToUpdateJob, err)
	}
}

// publishBacklog refreshes the per-type backlog gauge. Failures are logged only.
func (e *Engine) publishBacklog(ctx context.Context) {
	counts, err := e.storage.CountQueuedByType(ctx)
	if err != nil {
		e.logger.LogAttrs(ctx, slog.LevelWarn, "failed to refresh queue backlog", logger.Error(err))
		return
	}

	e.gaugeMu.Lock()
	defer e.gaugeMu.Unlock()

	for typ, n := range counts {
		e.metrics.SetGauge(MetricBacklog, float64(n), metrics.Labels{"type": typ})
		e.gaugeSeen[typ] = struct{}{}
	}
	for typ := range e.gaugeSeen {
		if _, ok := counts[typ]; !ok {
			e.metrics.SetGauge(MetricBacklog, 0, metrics.Labels{"type": typ})
		}
	}
}
