package schedkit

import (
	"log/slog"

	"github.com/dmitrymomot/schedkit/pkg/calendar"
	"github.com/dmitrymomot/schedkit/pkg/metrics"
)

// EventStore is the external calendar event store.
type EventStore interface {
	calendar.Source
	calendar.Creator
}

// Option configures Open and NewInMemory.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	metrics  metrics.Sink
	calendar EventStore
}

// WithLogger overrides the logger built from Config.Logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics sends engine metrics to sink. Without it metrics are dropped.
func WithMetrics(sink metrics.Sink) Option {
	return func(o *options) { o.metrics = sink }
}

// WithCalendar sets the event store read by availability and written by commit.
func WithCalendar(store EventStore) Option {
	return func(o *options) { o.calendar = store }
}
