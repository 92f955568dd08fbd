package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/schedkit/pkg/async"
	"github.com/dmitrymomot/schedkit/pkg/availability"
	"github.com/dmitrymomot/schedkit/pkg/calendar"
	"github.com/dmitrymomot/schedkit/pkg/logger"
	"github.com/dmitrymomot/schedkit/pkg/metrics"
	"github.com/dmitrymomot/schedkit/pkg/queue"
	"github.com/dmitrymomot/schedkit/pkg/validator"
)

// Metric names published by the engine.
const (
	MetricSuggestions    = "scheduling_suggestions_total"
	MetricProcessSeconds = "scheduling_process_seconds"
	MetricCommits        = "scheduling_commits_total"
)

// WorkerID is recorded on correlated queue jobs started by the engine.
const WorkerID = "scheduling-engine"

// Engine turns scheduling requests into suggestions and commits them as
// calendar events.
type Engine struct {
	storage Storage
	windows WindowFinder
	events  calendar.Creator
	queue   JobQueue

	dispatcher    *async.Dispatcher
	ownDispatcher bool
	processing    *async.KeyedGuard
	committing    *async.KeyedGuard

	cfg     Config
	logger  *slog.Logger
	metrics metrics.Sink
	now     func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithQueue attaches a job queue. Every suggestion then gets a correlated job
// of type JobType.
func WithQueue(q JobQueue) Option {
	return func(e *Engine) { e.queue = q }
}

// WithDispatcher runs processing on d instead of an engine-owned dispatcher.
// The caller stays responsible for shutting d down.
func WithDispatcher(d *async.Dispatcher) Option {
	return func(e *Engine) { e.dispatcher = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func WithMetrics(sink metrics.Sink) Option {
	return func(e *Engine) { e.metrics = sink }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithConfig replaces the default configuration. Zero values keep their defaults.
func WithConfig(cfg Config) Option {
	return func(e *Engine) {
		if cfg.MaxSlotMinutes > 0 {
			e.cfg.MaxSlotMinutes = cfg.MaxSlotMinutes
		}
		if cfg.Workers > 0 {
			e.cfg.Workers = cfg.Workers
		}
		if cfg.QueueSize > 0 {
			e.cfg.QueueSize = cfg.QueueSize
		}
		if cfg.DefaultListLimit > 0 {
			e.cfg.DefaultListLimit = cfg.DefaultListLimit
		}
		if cfg.MaxListLimit > 0 {
			e.cfg.MaxListLimit = cfg.MaxListLimit
		}
		if cfg.DefaultSolver != "" {
			e.cfg.DefaultSolver = cfg.DefaultSolver
		}
	}
}

// NewEngine creates a suggestion engine.
func NewEngine(storage Storage, windows WindowFinder, events calendar.Creator, opts ...Option) (*Engine, error) {
	if storage == nil || windows == nil || events == nil {
		return nil, ErrNilDependency
	}

	e := &Engine{
		storage:    storage,
		windows:    windows,
		events:     events,
		processing: async.NewKeyedGuard(),
		committing: async.NewKeyedGuard(),
		cfg:        DefaultConfig(),
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(logger.Component("scheduling"))
	e.metrics = metrics.Safe(e.metrics, e.logger)

	if e.dispatcher == nil {
		e.dispatcher = async.NewDispatcher(
			async.WithWorkers(e.cfg.Workers),
			async.WithQueueSize(e.cfg.QueueSize),
			async.WithLogger(e.logger),
		)
		e.ownDispatcher = true
	}

	return e, nil
}

// RunJob validates req, stores a PENDING suggestion and schedules its
// processing. It returns without waiting for processing.
func (e *Engine) RunJob(ctx context.Context, req Request, createdBy string) (*Suggestion, error) {
	if err := e.validateRequest(req); err != nil {
		return nil, err
	}
	if req.RequireQueue && e.queue == nil {
		return nil, ErrQueueUnavailable
	}

	input := req.Clone()
	input.UserIDs = availability.UniqueIDs(req.UserIDs)
	input.RangeStart, input.RangeEnd = req.RangeStart.UTC(), req.RangeEnd.UTC()
	if input.Solver == "" {
		input.Solver = e.cfg.DefaultSolver
	}

	now := e.timestamp()
	s := &Suggestion{
		ID:                uuid.NewString(),
		OrganizationID:    input.OrganizationID,
		Solver:            input.Solver,
		Status:            StatusPending,
		CreatedBy:         createdBy,
		CreatedAt:         now,
		UpdatedAt:         now,
		Input:             input,
		Errors:            []SuggestionError{},
		ResultingEventIDs: []string{},
	}
	if err := e.storage.CreateSuggestion(ctx, s); err != nil {
		return nil, errors.Join(ErrFailedToPersist, err)
	}

	if e.queue != nil {
		job, err := e.enqueue(ctx, s, createdBy)
		if err != nil {
			e.markFailed(ctx, s.ID, CodeEnqueueFailed, err.Error())
			return nil, errors.Join(ErrFailedToEnqueue, err)
		}
		updated, err := e.storage.UpdateSuggestion(ctx, s.ID, func(cur *Suggestion) error {
			cur.QueueJobID = job.ID
			return nil
		})
		if err != nil {
			e.markFailed(ctx, s.ID, CodeInternalError, "failed to record queue job: "+err.Error())
			e.cancelJob(ctx, job.ID, "suggestion not persisted")
			return nil, errors.Join(ErrFailedToPersist, err)
		}
		s = updated
	}

	if err := e.dispatch(s.ID); err != nil {
		e.markFailed(ctx, s.ID, CodeDispatchRejected, err.Error())
		e.cancelJob(ctx, s.QueueJobID, "processing rejected")
		return nil, fmt.Errorf("%w: %w", ErrDispatchRejected, err)
	}

	e.metrics.IncCounter(MetricSuggestions, 1, metrics.Labels{"status": string(StatusPending)})
	e.logger.LogAttrs(ctx, slog.LevelInfo, "suggestion requested",
		logger.SuggestionID(s.ID),
		logger.OrganizationID(s.OrganizationID),
		logger.JobID(s.QueueJobID),
		slog.Int("users", len(s.Input.UserIDs)),
		slog.Int("duration_minutes", s.Input.DurationMinutes),
	)

	return s, nil
}

func (e *Engine) validateRequest(req Request) error {
	if err := validator.Apply(
		validator.RequiredString("organizationId", req.OrganizationID),
		validator.RequiredSlice("userIds", req.UserIDs),
		validator.NoBlankStrings("userIds", req.UserIDs),
		validator.Positive("durationMinutes", req.DurationMinutes),
		validator.RequiredTime("rangeStart", req.RangeStart),
		validator.RequiredTime("rangeEnd", req.RangeEnd),
	); err != nil {
		return errors.Join(ErrInvalidArgument, err)
	}
	if err := validator.Apply(
		validator.TimeAfter("rangeEnd", req.RangeEnd, req.RangeStart, "rangeStart"),
	); err != nil {
		return errors.Join(ErrInvalidRange, err)
	}
	return nil
}

func (e *Engine) enqueue(ctx context.Context, s *Suggestion, createdBy string) (*queue.Job, error) {
	payload, err := json.Marshal(map[string]string{"suggestionId": s.ID})
	if err != nil {
		return nil, err
	}
	return e.queue.Enqueue(ctx, queue.EnqueueParams{
		OrganizationID: s.OrganizationID,
		Type:           JobType,
		Payload:        payload,
		DedupeKey:      s.ID,
		CreatedBy:      createdBy,
	})
}

// dispatch submits processing for id once. A second submission while the
// first is pending is a no-op.
func (e *Engine) dispatch(id string) error {
	_, _, err := e.dispatcher.Submit(id, func(ctx context.Context) error {
		return e.Process(ctx, id)
	})
	return err
}

// Process runs the solver for a PENDING suggestion. Concurrent calls for one id
// run it once; the others return immediately. Suggestions that are no longer
// PENDING are left untouched.
func (e *Engine) Process(ctx context.Context, id string) error {
	release, ok := e.processing.TryAcquire(id)
	if !ok {
		return nil
	}
	defer release()

	s, err := e.storage.GetSuggestion(ctx, id)
	if err != nil {
		return err
	}
	if s.Status != StatusPending {
		return nil
	}

	started := time.Now()
	log := e.logger.With(logger.SuggestionID(s.ID), logger.OrganizationID(s.OrganizationID))

	if s.QueueJobID != "" && e.queue != nil {
		job, err := e.queue.Get(ctx, s.QueueJobID)
		if err != nil {
			log.LogAttrs(ctx, slog.LevelWarn, "failed to load correlated job", logger.JobID(s.QueueJobID), logger.Error(err))
		} else if job.Status == queue.StatusCancelled {
			return e.finish(ctx, s, nil, ScoreBreakdown{}, &SuggestionError{
				Code:    CodeQueueJobCancelled,
				Message: "correlated queue job was cancelled",
			}, false, started)
		}
	}

	jobStarted := false
	if s.QueueJobID != "" && e.queue != nil {
		if _, err := e.queue.Start(ctx, s.QueueJobID, WorkerID); err != nil {
			log.LogAttrs(ctx, slog.LevelWarn, "failed to start correlated job", logger.JobID(s.QueueJobID), logger.Error(err))
		} else {
			jobStarted = true
		}
	}

	var (
		plan    *Plan
		score   ScoreBreakdown
		failure *SuggestionError
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				failure = &SuggestionError{Code: CodeInternalError, Message: fmt.Sprintf("solver panicked: %v", r)}
			}
		}()
		plan, score, failure = e.solve(ctx, s)
	}()

	return e.finish(ctx, s, plan, score, failure, jobStarted, started)
}

// solve picks the earliest window that fits the requested duration.
func (e *Engine) solve(ctx context.Context, s *Suggestion) (*Plan, ScoreBreakdown, *SuggestionError) {
	in := s.Input
	slot := min(e.cfg.MaxSlotMinutes, in.DurationMinutes)
	score := ScoreBreakdown{SelectedIndex: -1, SlotMinutes: slot, Solver: s.Solver}

	noWindow := &SuggestionError{
		Code:    CodeNoFeasibleWindow,
		Message: fmt.Sprintf("no window of %d minutes is free for every user", in.DurationMinutes),
	}
	if int64(in.DurationMinutes) > in.rangeMinutes() {
		return nil, score, noWindow
	}

	res, err := e.windows.GetWindows(ctx, availability.Query{
		OrganizationID: in.OrganizationID,
		UserIDs:        in.UserIDs,
		RangeStart:     in.RangeStart,
		RangeEnd:       in.RangeEnd,
		SlotMinutes:    slot,
	})
	if err != nil {
		return nil, score, &SuggestionError{Code: CodeAvailabilityError, Message: err.Error()}
	}

	var feasible []availability.Window
	for _, w := range res.Windows {
		// whole minutes, so huge durations never overflow time.Duration
		if int64(w.End.Sub(w.Start)/time.Minute) >= int64(in.DurationMinutes) {
			feasible = append(feasible, w)
		}
	}
	score.FeasibleWindowCount = len(feasible)
	if len(feasible) == 0 {
		return nil, score, noWindow
	}

	selected := feasible[0]
	score.SelectedIndex = 0
	score.CoverageMinutes = in.DurationMinutes

	return &Plan{
		Window: selected,
		Events: []DraftEvent{{
			Title:       in.Title,
			Description: in.Description,
			Color:       in.Color,
			Start:       selected.Start,
			End:         selected.Start.Add(in.duration()),
			AssigneeIDs: append([]string(nil), in.UserIDs...),
			Metadata:    in.Metadata,
		}},
	}, score, nil
}

// finish persists the processing outcome and mirrors it to the queue job.
func (e *Engine) finish(ctx context.Context, s *Suggestion, plan *Plan, score ScoreBreakdown, failure *SuggestionError, jobStarted bool, started time.Time) error {
	updated, err := e.storage.UpdateSuggestion(ctx, s.ID, func(cur *Suggestion) error {
		now := e.timestamp()
		if failure != nil {
			if err := advance(cur, eventFail); err != nil {
				return err
			}
			failure.At = now
			cur.Errors = append(cur.Errors, *failure)
		} else {
			if err := advance(cur, eventReady); err != nil {
				return err
			}
			cur.Plan = plan.Clone()
		}
		cur.Score = score
		cur.UpdatedAt = now
		return nil
	})
	if err != nil {
		if jobStarted {
			// the job would otherwise stay RUNNING
			e.mirror(ctx, s, &SuggestionError{Code: CodeInternalError, Message: "failed to persist outcome: " + err.Error()})
		}
		return errors.Join(ErrFailedToPersist, err)
	}

	e.metrics.IncCounter(MetricSuggestions, 1, metrics.Labels{"status": string(updated.Status)})
	e.metrics.Observe(MetricProcessSeconds, time.Since(started).Seconds(), nil)

	attrs := []slog.Attr{
		logger.SuggestionID(updated.ID),
		logger.OrganizationID(updated.OrganizationID),
		logger.Status(string(updated.Status)),
		logger.Duration(time.Since(started)),
	}
	if failure != nil {
		attrs = append(attrs, slog.String("code", failure.Code), slog.String("reason", failure.Message))
	}
	e.logger.LogAttrs(ctx, slog.LevelInfo, "suggestion processed", attrs...)

	if jobStarted {
		e.mirror(ctx, updated, failure)
	}
	return nil
}

// mirror reports the outcome to the correlated job. Errors are logged only:
// the suggestion record is authoritative.
func (e *Engine) mirror(ctx context.Context, s *Suggestion, failure *SuggestionError) {
	var err error
	if failure != nil {
		_, err = e.queue.Fail(ctx, s.QueueJobID, WorkerID, failure.Code+": "+failure.Message, false)
	} else {
		result, _ := json.Marshal(map[string]string{"suggestionId": s.ID, "status": string(s.Status)})
		_, err = e.queue.Complete(ctx, s.QueueJobID, WorkerID, result)
	}
	if err != nil {
		e.logger.LogAttrs(ctx, slog.LevelWarn, "failed to mirror suggestion to queue job",
			logger.SuggestionID(s.ID),
			logger.JobID(s.QueueJobID),
			logger.Error(err),
		)
	}
}

func (e *Engine) markFailed(ctx context.Context, id, code, message string) {
	_, err := e.storage.UpdateSuggestion(ctx, id, func(cur *Suggestion) error {
		if err := advance(cur, eventFail); err != nil {
			return err
		}
		now := e.timestamp()
		cur.Errors = append(cur.Errors, SuggestionError{Code: code, Message: message, At: now})
		cur.UpdatedAt = now
		return nil
	})
	if err != nil {
		e.logger.LogAttrs(ctx, slog.LevelError, "failed to mark suggestion failed",
			logger.SuggestionID(id),
			slog.String("code", code),
			logger.Error(err),
		)
		return
	}
	e.metrics.IncCounter(MetricSuggestions, 1, metrics.Labels{"status": string(StatusFailed)})
}

func (e *Engine) cancelJob(ctx context.Context, jobID, reason string) {
	if jobID == "" || e.queue == nil {
		return
	}
	if _, err := e.queue.Cancel(ctx, jobID, reason); err != nil {
		e.logger.LogAttrs(ctx, slog.LevelWarn, "failed to cancel correlated job", logger.JobID(jobID), logger.Error(err))
	}
}

// GetSuggestion returns a suggestion of the organization.
func (e *Engine) GetSuggestion(ctx context.Context, organizationID, id string) (*Suggestion, error) {
	if strings.TrimSpace(organizationID) == "" || strings.TrimSpace(id) == "" {
		return nil, ErrNotFound
	}
	s, err := e.storage.GetSuggestion(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.OrganizationID != organizationID {
		return nil, ErrNotFound
	}
	return s, nil
}

// ListSuggestionsForOrg returns the organization's suggestions newest first.
func (e *Engine) ListSuggestionsForOrg(ctx context.Context, organizationID string, opts ListOptions) ([]*Suggestion, error) {
	if strings.TrimSpace(organizationID) == "" {
		return nil, fmt.Errorf("%w: organization id is required", ErrInvalidArgument)
	}
	for _, st := range opts.Statuses {
		if !st.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidArgument, st)
		}
	}
	if opts.Limit < 0 {
		return nil, fmt.Errorf("%w: negative limit", ErrInvalidArgument)
	}
	if opts.Limit == 0 {
		opts.Limit = e.cfg.DefaultListLimit
	}
	opts.Limit = min(opts.Limit, e.cfg.MaxListLimit)

	return e.storage.ListSuggestions(ctx, organizationID, opts)
}

// Commit creates the plan's events in order and marks the suggestion
// COMMITTED. When an event cannot be created the suggestion stays READY and
// the events created so far are left in place.
func (e *Engine) Commit(ctx context.Context, p CommitParams) (*Suggestion, error) {
	if err := validator.Apply(
		validator.RequiredString("organizationId", p.OrganizationID),
		validator.RequiredString("suggestionId", p.SuggestionID),
		validator.RequiredString("actorId", p.ActorID),
	); err != nil {
		return nil, errors.Join(ErrInvalidArgument, err)
	}

	release, ok := e.committing.TryAcquire(p.SuggestionID)
	if !ok {
		return nil, fmt.Errorf("%w: commit already in progress", ErrNotReady)
	}
	defer release()

	s, err := e.GetSuggestion(ctx, p.OrganizationID, p.SuggestionID)
	if err != nil {
		return nil, err
	}
	if s.Status != StatusReady {
		return nil, fmt.Errorf("%w: status is %s", ErrNotReady, s.Status)
	}
	if s.Plan == nil || len(s.Plan.Events) == 0 {
		return nil, ErrEmptyPlan
	}

	drafts, err := applyOverrides(s.Plan.Events, p.Overrides)
	if err != nil {
		return nil, err
	}

	eventIDs := make([]string, 0, len(drafts))
	for i, d := range drafts {
		created, err := e.events.CreateEvent(ctx, calendar.Event{
			OrganizationID: s.OrganizationID,
			Title:          d.Title,
			Description:    d.Description,
			Color:          d.Color,
			Start:          d.Start,
			End:            d.End,
			AssigneeIDs:    d.AssigneeIDs,
			Metadata:       eventMetadata(d.Metadata, s.ID),
			CreatedBy:      p.ActorID,
		})
		if err != nil {
			e.logger.LogAttrs(ctx, slog.LevelError, "suggestion commit interrupted",
				logger.SuggestionID(s.ID),
				logger.OrganizationID(s.OrganizationID),
				slog.Int("draft", i),
				slog.Any("created_event_ids", eventIDs),
				logger.Error(err),
			)
			return nil, fmt.Errorf("%w: draft %d: %w", ErrFailedToCommit, i, err)
		}
		eventIDs = append(eventIDs, created.ID)
	}

	committed, err := e.storage.UpdateSuggestion(ctx, s.ID, func(cur *Suggestion) error {
		if err := advance(cur, eventCommit); err != nil {
			return err
		}
		now := e.timestamp()
		cur.Plan.Events = drafts
		cur.CommittedAt = &now
		cur.CommittedBy = p.ActorID
		cur.ResultingEventIDs = eventIDs
		cur.UpdatedAt = now
		return nil
	})
	if err != nil {
		e.logger.LogAttrs(ctx, slog.LevelError, "failed to record suggestion commit",
			logger.SuggestionID(s.ID),
			slog.Any("created_event_ids", eventIDs),
			logger.Error(err),
		)
		return nil, errors.Join(ErrFailedToCommit, err)
	}

	e.metrics.IncCounter(MetricCommits, 1, nil)
	e.logger.LogAttrs(ctx, slog.LevelInfo, "suggestion committed",
		logger.SuggestionID(committed.ID),
		logger.OrganizationID(committed.OrganizationID),
		logger.UserID(p.ActorID),
		slog.Int("events", len(eventIDs)),
	)

	return committed, nil
}

func applyOverrides(events []DraftEvent, overrides []EventOverride) ([]DraftEvent, error) {
	drafts := make([]DraftEvent, len(events))
	for i, ev := range events {
		drafts[i] = ev.Clone()
	}

	for _, o := range overrides {
		if o.Index < 0 || o.Index >= len(drafts) {
			return nil, fmt.Errorf("%w: override index %d out of range", ErrInvalidArgument, o.Index)
		}
		d := &drafts[o.Index]
		if o.Title != nil {
			d.Title = *o.Title
		}
		if o.Description != nil {
			d.Description = *o.Description
		}
		if o.Color != nil {
			d.Color = *o.Color
		}
		if o.Start != nil {
			d.Start = o.Start.UTC()
		}
		if o.End != nil {
			d.End = o.End.UTC()
		}
		if o.AssigneeIDs != nil {
			d.AssigneeIDs = availability.UniqueIDs(o.AssigneeIDs)
		}

		field := fmt.Sprintf("overrides[%d]", o.Index)
		if err := validator.Apply(
			validator.RequiredTime(field+".start", d.Start),
			validator.TimeAfter(field+".end", d.End, d.Start, field+".start"),
			validator.NoBlankStrings(field+".assigneeIds", d.AssigneeIDs),
		); err != nil {
			return nil, errors.Join(ErrInvalidArgument, err)
		}
	}
	return drafts, nil
}

func eventMetadata(meta map[string]any, suggestionID string) map[string]any {
	out := make(map[string]any, len(meta)+1)
	maps.Copy(out, meta)
	out["suggestionId"] = suggestionID
	return out
}

// Shutdown stops accepting work and waits for queued processing to finish.
// A dispatcher passed with WithDispatcher is left running.
func (e *Engine) Shutdown(ctx context.Context) error {
	if !e.ownDispatcher {
		return nil
	}
	return e.dispatcher.Shutdown(ctx)
}

// timestamp is millisecond precision so records survive a BSON round trip unchanged.
func (e *Engine) timestamp() time.Time {
	return e.now().UTC().Truncate(time.Millisecond)
}
