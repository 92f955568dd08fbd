package metrics

import (
	"context"
	"log/slog"
)

// LogSink writes every update as a debug record. Handy when no metrics backend
// is wired yet.
type LogSink struct {
	log *slog.Logger
}

func NewLogSink(log *slog.Logger) *LogSink {
	if log == nil {
		log = slog.Default()
	}
	return &LogSink{log: log}
}

func (s *LogSink) IncCounter(name string, delta float64, labels Labels) {
	s.write("counter", name, delta, labels)
}

func (s *LogSink) SetGauge(name string, value float64, labels Labels) {
	s.write("gauge", name, value, labels)
}

func (s *LogSink) Observe(name string, value float64, labels Labels) {
	s.write("summary", name, value, labels)
}

func (s *LogSink) write(kind, name string, value float64, labels Labels) {
	s.log.LogAttrs(context.Background(), slog.LevelDebug, "metric",
		slog.String("kind", kind),
		slog.String("metric", key(name, labels)),
		slog.Float64("value", value),
	)
}
