package metrics_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/schedkit/pkg/logger"
	"github.com/dmitrymomot/schedkit/pkg/metrics"
)

type panickingSink struct{}

func (panickingSink) IncCounter(string, float64, metrics.Labels) { panic("counter down") }
func (panickingSink) SetGauge(string, float64, metrics.Labels)   { panic("gauge down") }
func (panickingSink) Observe(string, float64, metrics.Labels)    { panic("summary down") }

func TestMemorySink(t *testing.T) {
	t.Parallel()
	sink := metrics.NewMemorySink()

	sink.IncCounter("jobs_total", 1, metrics.Labels{"type": "parse"})
	sink.IncCounter("jobs_total", 2, metrics.Labels{"type": "parse"})
	sink.SetGauge("backlog", 3, metrics.Labels{"type": "parse", "org": "o"})
	sink.SetGauge("backlog", 0, metrics.Labels{"org": "o", "type": "parse"})
	sink.Observe("latency", 0.5, nil)
	sink.Observe("latency", 1.5, nil)

	assert.Equal(t, float64(3), sink.Counter("jobs_total", metrics.Labels{"type": "parse"}))
	v, ok := sink.Gauge("backlog", metrics.Labels{"type": "parse", "org": "o"})
	require.True(t, ok)
	assert.Equal(t, float64(0), v)
	_, ok = sink.Gauge("backlog", metrics.Labels{"type": "other"})
	assert.False(t, ok)
	assert.Equal(t, []float64{0.5, 1.5}, sink.Observations("latency", nil))
}

func TestSafe(t *testing.T) {
	t.Parallel()

	t.Run("swallows panics", func(t *testing.T) {
		buf := &bytes.Buffer{}
		sink := metrics.Safe(panickingSink{}, logger.New(logger.WithOutput(buf)))
		assert.NotPanics(t, func() {
			sink.IncCounter("a", 1, nil)
			sink.SetGauge("b", 1, nil)
			sink.Observe("c", 1, nil)
		})
		assert.Contains(t, buf.String(), "metrics sink failed")
	})

	t.Run("nil becomes noop", func(t *testing.T) {
		sink := metrics.Safe(nil, nil)
		assert.IsType(t, metrics.NoopSink{}, sink)
	})

	t.Run("does not double wrap", func(t *testing.T) {
		once := metrics.Safe(metrics.NewMemorySink(), nil)
		assert.Same(t, once, metrics.Safe(once, nil))
	})
}

func TestLogSink(t *testing.T) {
	t.Parallel()
	buf := &bytes.Buffer{}
	sink := metrics.NewLogSink(logger.New(logger.WithOutput(buf), logger.WithLevelName("debug")))
	sink.SetGauge("queue_backlog", 2, metrics.Labels{"type": "parse"})
	assert.Contains(t, buf.String(), `queue_backlog{type=parse}`)
}
