package observability

import "time"

// Timer records how long an operation took into MetricOperationDuration and
// counts it in MetricOperationTotal, tagged with the operation name.
type Timer struct {
	operation string
	start     time.Time
	metrics   Metrics
	tags      []Tag
}

// StartTimer starts timing operation.
func StartTimer(operation string) *Timer {
	return &Timer{operation: operation, start: time.Now(), metrics: NoopMetrics{}}
}

// WithMetrics sets the collector. nil keeps the no-op collector.
func (t *Timer) WithMetrics(metrics Metrics) *Timer {
	if metrics != nil {
		t.metrics = metrics
	}
	return t
}

// WithTags adds metric tags.
func (t *Timer) WithTags(tags ...Tag) *Timer {
	t.tags = append(t.tags, tags...)
	return t
}

// Stop records a successful run.
func (t *Timer) Stop() time.Duration {
	return t.StopWithError(nil)
}

// StopWithError records the run and, when err is set, MetricOperationErrors.
func (t *Timer) StopWithError(err error) time.Duration {
	d := time.Since(t.start)
	tags := append(append([]Tag(nil), t.tags...), T("operation", t.operation))
	t.metrics.Timing(MetricOperationDuration, d, tags...)
	t.metrics.Counter(MetricOperationTotal, 1, tags...)
	if err != nil {
		t.metrics.Counter(MetricOperationErrors, 1, tags...)
	}
	return d
}
