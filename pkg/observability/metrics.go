package observability

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Metrics receives the counters, gauges and timings of the sync pipeline.
type Metrics interface {
	Counter(name string, value int64, tags ...Tag)
	Gauge(name string, value float64, tags ...Tag)
	Timing(name string, duration time.Duration, tags ...Tag)
}

// Tag labels a metric sample.
type Tag struct {
	Key   string
	Value string
}

// T creates a Tag.
func T(key, value string) Tag {
	return Tag{Key: key, Value: value}
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (NoopMetrics) Counter(string, int64, ...Tag)        {}
func (NoopMetrics) Gauge(string, float64, ...Tag)        {}
func (NoopMetrics) Timing(string, time.Duration, ...Tag) {}

// TimingSummary aggregates the samples of one timing series.
type TimingSummary struct {
	Count int64         `json:"count"`
	Total time.Duration `json:"total_ns"`
	Max   time.Duration `json:"max_ns"`
}

// Mean returns the average sample, or zero without samples.
func (s TimingSummary) Mean() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

// InMemoryMetrics keeps per-series aggregates in memory. The worker serves
// them on /stats; tests read them directly. Timings are summarised rather
// than stored so a long-running worker stays bounded.
type InMemoryMetrics struct {
	mu       sync.Mutex
	counters map[string]int64
	gauges   map[string]float64
	timings  map[string]TimingSummary
}

// NewInMemoryMetrics returns an empty collector.
func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{
		counters: make(map[string]int64),
		gauges:   make(map[string]float64),
		timings:  make(map[string]TimingSummary),
	}
}

func (m *InMemoryMetrics) Counter(name string, value int64, tags ...Tag) {
	m.mu.Lock()
	m.counters[formatKey(name, tags)] += value
	m.mu.Unlock()
}

func (m *InMemoryMetrics) Gauge(name string, value float64, tags ...Tag) {
	m.mu.Lock()
	m.gauges[formatKey(name, tags)] = value
	m.mu.Unlock()
}

func (m *InMemoryMetrics) Timing(name string, duration time.Duration, tags ...Tag) {
	key := formatKey(name, tags)
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.timings[key]
	s.Count++
	s.Total += duration
	if duration > s.Max {
		s.Max = duration
	}
	m.timings[key] = s
}

// GetCounter returns the counter for name and tags.
func (m *InMemoryMetrics) GetCounter(name string, tags ...Tag) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[formatKey(name, tags)]
}

// GetGauge returns the last value set for name and tags.
func (m *InMemoryMetrics) GetGauge(name string, tags ...Tag) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gauges[formatKey(name, tags)]
}

// GetTiming returns the summary for name and tags.
func (m *InMemoryMetrics) GetTiming(name string, tags ...Tag) TimingSummary {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timings[formatKey(name, tags)]
}

// MetricsSnapshot is a point-in-time copy of every series.
type MetricsSnapshot struct {
	Counters map[string]int64         `json:"counters"`
	Gauges   map[string]float64       `json:"gauges"`
	Timings  map[string]TimingSummary `json:"timings"`
}

// Snapshot copies the current series.
func (m *InMemoryMetrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := MetricsSnapshot{
		Counters: make(map[string]int64, len(m.counters)),
		Gauges:   make(map[string]float64, len(m.gauges)),
		Timings:  make(map[string]TimingSummary, len(m.timings)),
	}
	for k, v := range m.counters {
		snap.Counters[k] = v
	}
	for k, v := range m.gauges {
		snap.Gauges[k] = v
	}
	for k, v := range m.timings {
		snap.Timings[k] = v
	}
	return snap
}

// formatKey renders name{k=v,...} with tags sorted by key, so the same
// labels in a different order hit the same series.
func formatKey(name string, tags []Tag) string {
	if len(tags) == 0 {
		return name
	}
	sorted := append([]Tag(nil), tags...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })

	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i, t := range sorted {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(t.Key)
		b.WriteByte('=')
		b.WriteString(t.Value)
	}
	b.WriteByte('}')
	return b.String()
}

// Metric names recorded by the sync pipeline.
const (
	MetricOperationTotal    = "rendezvous.operation.total"
	MetricOperationDuration = "rendezvous.operation.duration"
	MetricOperationErrors   = "rendezvous.operation.errors"

	MetricFetchDuration = "calendar.fetch.duration"
	MetricFetchFailed   = "calendar.fetch.failed"
	MetricFetchEvents   = "calendar.fetch.events"
	MetricFetchSkipped  = "calendar.fetch.skipped"

	MetricReconcileCreated = "calendar.reconcile.created"
	MetricReconcileUpdated = "calendar.reconcile.updated"
	MetricReconcileDeleted = "calendar.reconcile.deleted"

	MetricConflictsDetected = "calendar.conflicts.detected"
)
