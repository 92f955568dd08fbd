package availability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/schedkit/pkg/calendar"
	"github.com/dmitrymomot/schedkit/pkg/logger"
	"github.com/dmitrymomot/schedkit/pkg/metrics"
	"github.com/dmitrymomot/schedkit/pkg/validator"
)

// Metric names published by the engine.
const (
	MetricComputeSeconds = "availability_compute_seconds"
	MetricCacheWrites    = "availability_cache_writes_total"
)

// Engine computes free windows from calendar events and the busy cache.
type Engine struct {
	events  calendar.Source
	cache   CacheStore
	cfg     Config
	logger  *slog.Logger
	metrics metrics.Sink
	now     func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

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

func WithConfig(cfg Config) Option {
	return func(e *Engine) {
		if cfg.MaxSlots > 0 {
			e.cfg.MaxSlots = cfg.MaxSlots
		}
	}
}

// NewEngine creates an availability engine.
func NewEngine(events calendar.Source, cache CacheStore, opts ...Option) (*Engine, error) {
	if events == nil || cache == nil {
		return nil, ErrNilDependency
	}

	e := &Engine{
		events: events,
		cache:  cache,
		cfg:    DefaultConfig(),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(logger.Component("availability"))
	e.metrics = metrics.Safe(e.metrics, e.logger)

	return e, nil
}

// GetWindows returns the windows free for every user in q and the busy
// intervals that blocked each user.
func (e *Engine) GetWindows(ctx context.Context, q Query) (*Result, error) {
	started := time.Now()

	userIDs, err := e.validateQuery(q)
	if err != nil {
		return nil, err
	}
	start, end := q.RangeStart.UTC(), q.RangeEnd.UTC()

	busy, err := e.gather(ctx, q.OrganizationID, userIDs, start, end)
	if err != nil {
		return nil, err
	}

	g := newGrid(start, end, time.Duration(q.SlotMinutes)*time.Minute, len(userIDs))
	for u, userID := range userIDs {
		for i := range busy[userID] {
			g.mark(u, &busy[userID][i])
		}
	}

	result := &Result{
		Windows:     g.windows(),
		Conflicts:   g.conflicts(userIDs),
		GeneratedAt: e.now().UTC(),
	}

	elapsed := time.Since(started)
	e.metrics.Observe(MetricComputeSeconds, elapsed.Seconds(), nil)
	e.logger.LogAttrs(ctx, slog.LevelDebug, "availability computed",
		logger.OrganizationID(q.OrganizationID),
		slog.Int("users", len(userIDs)),
		slog.Int("slots", g.size),
		slog.Int("windows", len(result.Windows)),
		logger.Duration(elapsed),
	)

	return result, nil
}

func (e *Engine) validateQuery(q Query) ([]string, error) {
	if err := validator.Apply(
		validator.RequiredString("organizationId", q.OrganizationID),
		validator.RequiredSlice("userIds", q.UserIDs),
		validator.NoBlankStrings("userIds", q.UserIDs),
		validator.Positive("slotMinutes", q.SlotMinutes),
	); err != nil {
		return nil, errors.Join(ErrInvalidArgument, err)
	}
	if err := validator.Apply(
		validator.RequiredTime("rangeStart", q.RangeStart),
		validator.RequiredTime("rangeEnd", q.RangeEnd),
	); err != nil {
		return nil, errors.Join(ErrInvalidDate, err)
	}
	if err := validator.Apply(
		validator.TimeAfter("rangeEnd", q.RangeEnd, q.RangeStart, "rangeStart"),
	); err != nil {
		return nil, errors.Join(ErrInvalidRange, err)
	}

	// a slot longer than the range would overflow time.Duration for huge values
	if err := validator.Apply(
		validator.MaxNum("slotMinutes", int64(q.SlotMinutes), rangeMinutes(q.RangeStart, q.RangeEnd)),
	); err != nil {
		return nil, errors.Join(ErrInvalidArgument, err)
	}

	slot := time.Duration(q.SlotMinutes) * time.Minute
	if n := slotCount(q.RangeStart, q.RangeEnd, slot); n <= 0 || n > e.cfg.MaxSlots {
		return nil, fmt.Errorf("%w: range needs %d slots, limit is %d", ErrInvalidArgument, n, e.cfg.MaxSlots)
	}

	return UniqueIDs(q.UserIDs), nil
}

// gather loads event and cache busy time concurrently and returns it per user,
// clipped to [start, end) and ordered by start. Events precede cache entries
// that start at the same instant.
func (e *Engine) gather(ctx context.Context, orgID string, userIDs []string, start, end time.Time) (map[string][]BusyInterval, error) {
	var (
		events  []calendar.Event
		records []*CacheRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		events, err = e.events.ListEvents(gctx, orgID, &start, &end)
		if err != nil {
			return fmt.Errorf("%w: list events: %w", ErrFailedToLoadBusyTime, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		records, err = e.cache.ListCacheRecords(gctx, orgID, userIDs)
		if err != nil {
			if errors.Is(err, ErrInvalidDate) {
				return err
			}
			return fmt.Errorf("%w: list cache records: %w", ErrFailedToLoadBusyTime, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	busy := make(map[string][]BusyInterval, len(userIDs))
	requested := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		requested[id] = true
	}

	for _, ev := range events {
		if ev.Cancelled || ev.Start.IsZero() || ev.End.IsZero() {
			continue
		}
		iv, ok := clip(BusyInterval{
			Start:       ev.Start.UTC(),
			End:         ev.End.UTC(),
			Source:      SourceEvent,
			ReferenceID: ev.ID,
			Label:       ev.Title,
		}, start, end)
		if !ok {
			continue
		}
		for _, userID := range UniqueIDs(ev.AssigneeIDs) {
			if requested[userID] {
				busy[userID] = append(busy[userID], iv)
			}
		}
	}

	for _, rec := range records {
		if rec == nil || !requested[rec.UserID] {
			continue
		}
		for _, span := range rec.Busy {
			iv, ok := clip(BusyInterval{
				Start:       span.Start.UTC(),
				End:         span.End.UTC(),
				Source:      SourceCache,
				ReferenceID: span.ReferenceID,
				Label:       span.Label,
			}, start, end)
			if ok {
				busy[rec.UserID] = append(busy[rec.UserID], iv)
			}
		}
	}

	for userID := range busy {
		slices.SortStableFunc(busy[userID], func(a, b BusyInterval) int {
			return a.Start.Compare(b.Start)
		})
	}
	return busy, nil
}

// UpdateCache replaces the busy list of one user. There is no merge with the
// previous record.
func (e *Engine) UpdateCache(ctx context.Context, u CacheUpdate) (*CacheRecord, error) {
	if err := validator.Apply(
		validator.RequiredString("organizationId", u.OrganizationID),
		validator.RequiredString("userId", u.UserID),
	); err != nil {
		return nil, errors.Join(ErrInvalidArgument, err)
	}
	if err := validator.Apply(
		validator.RequiredTime("rangeStart", u.RangeStart),
		validator.RequiredTime("rangeEnd", u.RangeEnd),
	); err != nil {
		return nil, errors.Join(ErrInvalidDate, err)
	}
	if err := validator.Apply(
		validator.TimeAfter("rangeEnd", u.RangeEnd, u.RangeStart, "rangeStart"),
	); err != nil {
		return nil, errors.Join(ErrInvalidRange, err)
	}

	busy := make([]BusySpan, 0, len(u.Busy))
	for i, span := range u.Busy {
		field := fmt.Sprintf("busy[%d]", i)
		if err := validator.Apply(
			validator.RequiredTime(field+".start", span.Start),
			validator.RequiredTime(field+".end", span.End),
		); err != nil {
			return nil, errors.Join(ErrInvalidDate, err)
		}
		if err := validator.Apply(
			validator.TimeAfter(field+".end", span.End, span.Start, field+".start"),
		); err != nil {
			return nil, errors.Join(ErrInvalidRange, err)
		}
		span.Start, span.End = span.Start.UTC(), span.End.UTC()
		busy = append(busy, span)
	}

	record := &CacheRecord{
		OrganizationID: u.OrganizationID,
		UserID:         u.UserID,
		RangeStart:     u.RangeStart.UTC(),
		RangeEnd:       u.RangeEnd.UTC(),
		Busy:           busy,
		Source:         u.Source,
		UpdatedAt:      e.now().UTC(),
	}
	if err := e.cache.UpsertCacheRecord(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to store busy cache for user %s: %w", u.UserID, err)
	}

	e.metrics.IncCounter(MetricCacheWrites, 1, metrics.Labels{"source": u.Source})
	e.logger.LogAttrs(ctx, slog.LevelDebug, "busy cache updated",
		logger.OrganizationID(u.OrganizationID),
		logger.UserID(u.UserID),
		slog.Int("busy", len(busy)),
	)

	return record.Clone(), nil
}

// ListCacheRecords returns the cache records of the given users, or of the
// whole organization when no user ids are passed.
func (e *Engine) ListCacheRecords(ctx context.Context, organizationID string, userIDs ...string) ([]*CacheRecord, error) {
	if strings.TrimSpace(organizationID) == "" {
		return nil, fmt.Errorf("%w: organization id is required", ErrInvalidArgument)
	}
	return e.cache.ListCacheRecords(ctx, organizationID, UniqueIDs(userIDs))
}

// ClearCache deletes the cache records of the given users, or of the whole
// organization when no user ids are passed. It returns the number removed.
func (e *Engine) ClearCache(ctx context.Context, organizationID string, userIDs ...string) (int, error) {
	if strings.TrimSpace(organizationID) == "" {
		return 0, fmt.Errorf("%w: organization id is required", ErrInvalidArgument)
	}

	n, err := e.cache.DeleteCacheRecords(ctx, organizationID, UniqueIDs(userIDs))
	if err != nil {
		return 0, fmt.Errorf("failed to clear busy cache: %w", err)
	}

	e.logger.LogAttrs(ctx, slog.LevelInfo, "busy cache cleared",
		logger.OrganizationID(organizationID),
		slog.Int("removed", n),
	)
	return n, nil
}

// UniqueIDs drops repeated ids, keeping first-seen order.
func UniqueIDs(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
