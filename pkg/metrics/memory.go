package metrics

import "sync"

// MemorySink keeps the latest metric values in memory. Used in tests and for
// in-process diagnostics.
type MemorySink struct {
	mu           sync.RWMutex
	counters     map[string]float64
	gauges       map[string]float64
	observations map[string][]float64
}

func NewMemorySink() *MemorySink {
	return &MemorySink{
		counters:     make(map[string]float64),
		gauges:       make(map[string]float64),
		observations: make(map[string][]float64),
	}
}

func (m *MemorySink) IncCounter(name string, delta float64, labels Labels) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[key(name, labels)] += delta
}

func (m *MemorySink) SetGauge(name string, value float64, labels Labels) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges[key(name, labels)] = value
}

func (m *MemorySink) Observe(name string, value float64, labels Labels) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(name, labels)
	m.observations[k] = append(m.observations[k], value)
}

// Counter returns the accumulated counter value.
func (m *MemorySink) Counter(name string, labels Labels) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counters[key(name, labels)]
}

// Gauge returns the last gauge value and whether the gauge was ever set.
func (m *MemorySink) Gauge(name string, labels Labels) (float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.gauges[key(name, labels)]
	return v, ok
}

// Observations returns a copy of the recorded summary values.
func (m *MemorySink) Observations(name string, labels Labels) []float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]float64(nil), m.observations[key(name, labels)]...)
}
