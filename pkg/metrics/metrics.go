package metrics

import (
	"log/slog"
	"maps"
	"slices"
	"strings"
)

// Labels are metric dimensions such as the job type.
type Labels map[string]string

// Sink receives metric updates. Implementations must be safe for concurrent use.
type Sink interface {
	IncCounter(name string, delta float64, labels Labels)
	SetGauge(name string, value float64, labels Labels)
	Observe(name string, value float64, labels Labels)
}

// NoopSink drops every update.
type NoopSink struct{}

func (NoopSink) IncCounter(string, float64, Labels) {}
func (NoopSink) SetGauge(string, float64, Labels)   {}
func (NoopSink) Observe(string, float64, Labels)    {}

// Safe wraps a sink so that a panicking implementation never reaches the caller.
// A nil sink becomes NoopSink.
func Safe(sink Sink, log *slog.Logger) Sink {
	if sink == nil {
		return NoopSink{}
	}
	if s, ok := sink.(*safeSink); ok {
		return s
	}
	if log == nil {
		log = slog.Default()
	}
	return &safeSink{next: sink, log: log}
}

type safeSink struct {
	next Sink
	log  *slog.Logger
}

func (s *safeSink) IncCounter(name string, delta float64, labels Labels) {
	defer s.recover(name)
	s.next.IncCounter(name, delta, labels)
}

func (s *safeSink) SetGauge(name string, value float64, labels Labels) {
	defer s.recover(name)
	s.next.SetGauge(name, value, labels)
}

func (s *safeSink) Observe(name string, value float64, labels Labels) {
	defer s.recover(name)
	s.next.Observe(name, value, labels)
}

func (s *safeSink) recover(name string) {
	if r := recover(); r != nil {
		s.log.Warn("metrics sink failed", slog.String("metric", name), slog.Any("panic", r))
	}
}

// key renders name and labels in a stable order: name{a=1,b=2}.
func key(name string, labels Labels) string {
	if len(labels) == 0 {
		return name
	}
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i, k := range slices.Sorted(maps.Keys(labels)) {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
	}
	b.WriteByte('}')
	return b.String()
}
