package cache

// NoopMetrics discards every signal. It is what the cache falls back to
// when Options.Metrics is nil, so the instrumentation call sites cost
// nothing unless a real backend is plugged in.
type NoopMetrics struct{}

func (NoopMetrics) Hit()              {}
func (NoopMetrics) Miss()             {}
func (NoopMetrics) Evict(EvictReason) {}
func (NoopMetrics) Size(int)          {}

var _ Metrics = NoopMetrics{}
