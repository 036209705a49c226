package monitor

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// ExecutionMetrics tracks counters and latency for the execution core.
type ExecutionMetrics struct {
	OrderLatency *LatencyHistogram

	submitted  uint64
	filled     uint64
	failed     uint64
	cancelled  uint64
	expired    uint64
	duplicates uint64

	apiRequests uint64
	apiErrors   uint64

	startedAt time.Time
}

// NewExecutionMetrics creates a metrics instance.
func NewExecutionMetrics() *ExecutionMetrics {
	return &ExecutionMetrics{
		OrderLatency: NewLatencyHistogram(1000),
		startedAt:    time.Now(),
	}
}

func (m *ExecutionMetrics) IncrSubmitted()  { atomic.AddUint64(&m.submitted, 1) }
func (m *ExecutionMetrics) IncrFilled()     { atomic.AddUint64(&m.filled, 1) }
func (m *ExecutionMetrics) IncrFailed()     { atomic.AddUint64(&m.failed, 1) }
func (m *ExecutionMetrics) IncrCancelled()  { atomic.AddUint64(&m.cancelled, 1) }
func (m *ExecutionMetrics) IncrExpired()    { atomic.AddUint64(&m.expired, 1) }
func (m *ExecutionMetrics) IncrDuplicates() { atomic.AddUint64(&m.duplicates, 1) }

func (m *ExecutionMetrics) IncrementAPI()       { atomic.AddUint64(&m.apiRequests, 1) }
func (m *ExecutionMetrics) IncrementAPIErrors() { atomic.AddUint64(&m.apiErrors, 1) }

// Snapshot is the externally visible metrics view.
type Snapshot struct {
	UptimeSeconds float64      `json:"uptime_seconds"`
	Submitted     uint64       `json:"orders_submitted"`
	Filled        uint64       `json:"orders_filled"`
	Failed        uint64       `json:"orders_failed"`
	Cancelled     uint64       `json:"orders_cancelled"`
	Expired       uint64       `json:"orders_expired"`
	Duplicates    uint64       `json:"duplicate_submissions"`
	APIRequests   uint64       `json:"api_requests"`
	APIErrors     uint64       `json:"api_errors"`
	OrderLatency  LatencyStats `json:"order_latency_ms"`
}

// Stats returns a consistent-enough snapshot of all counters.
func (m *ExecutionMetrics) Stats() Snapshot {
	return Snapshot{
		UptimeSeconds: time.Since(m.startedAt).Seconds(),
		Submitted:     atomic.LoadUint64(&m.submitted),
		Filled:        atomic.LoadUint64(&m.filled),
		Failed:        atomic.LoadUint64(&m.failed),
		Cancelled:     atomic.LoadUint64(&m.cancelled),
		Expired:       atomic.LoadUint64(&m.expired),
		Duplicates:    atomic.LoadUint64(&m.duplicates),
		APIRequests:   atomic.LoadUint64(&m.apiRequests),
		APIErrors:     atomic.LoadUint64(&m.apiErrors),
		OrderLatency:  m.OrderLatency.Stats(),
	}
}

// LatencyHistogram keeps a sliding window of samples in milliseconds.
type LatencyHistogram struct {
	mu      sync.Mutex
	samples []float64
	maxSize int
}

// NewLatencyHistogram creates a sliding-window histogram.
func NewLatencyHistogram(size int) *LatencyHistogram {
	if size <= 0 {
		size = 1000
	}
	return &LatencyHistogram{samples: make([]float64, 0, size), maxSize: size}
}

// Record adds a latency sample in milliseconds, evicting the oldest once
// the window is full.
func (h *LatencyHistogram) Record(latencyMs float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.samples) >= h.maxSize {
		h.samples = h.samples[1:]
	}
	h.samples = append(h.samples, latencyMs)
}

// RecordDuration converts a duration to milliseconds and records it.
func (h *LatencyHistogram) RecordDuration(d time.Duration) {
	h.Record(float64(d.Nanoseconds()) / 1e6)
}

// LatencyStats holds computed latency statistics.
type LatencyStats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
	Count int     `json:"count"`
}

// Stats computes min/max/avg and the usual percentiles over the window.
func (h *LatencyHistogram) Stats() LatencyStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := len(h.samples)
	if n == 0 {
		return LatencyStats{}
	}

	sorted := make([]float64, n)
	copy(sorted, h.samples)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}

	return LatencyStats{
		Min:   sorted[0],
		Max:   sorted[n-1],
		Avg:   sum / float64(n),
		P50:   sorted[n/2],
		P95:   sorted[min(n-1, int(float64(n)*0.95))],
		P99:   sorted[min(n-1, int(float64(n)*0.99))],
		Count: n,
	}
}
