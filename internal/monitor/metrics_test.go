package monitor

import (
	"sync"
	"testing"
	"time"
)

func TestCountersSnapshot(t *testing.T) {
	m := NewExecutionMetrics()
	m.IncrSubmitted()
	m.IncrSubmitted()
	m.IncrFilled()
	m.IncrFailed()
	m.IncrCancelled()
	m.IncrExpired()
	m.IncrDuplicates()
	m.IncrementAPI()
	m.IncrementAPIErrors()

	s := m.Stats()
	if s.Submitted != 2 || s.Filled != 1 || s.Failed != 1 || s.Cancelled != 1 ||
		s.Expired != 1 || s.Duplicates != 1 || s.APIRequests != 1 || s.APIErrors != 1 {
		t.Fatalf("snapshot=%+v", s)
	}
	if s.UptimeSeconds < 0 {
		t.Fatalf("uptime=%v", s.UptimeSeconds)
	}
}

func TestCountersConcurrent(t *testing.T) {
	m := NewExecutionMetrics()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.IncrSubmitted()
			}
		}()
	}
	wg.Wait()
	if got := m.Stats().Submitted; got != 5000 {
		t.Fatalf("submitted=%d, want 5000", got)
	}
}

func TestLatencyHistogramStats(t *testing.T) {
	h := NewLatencyHistogram(100)
	if s := h.Stats(); s.Count != 0 {
		t.Fatalf("empty histogram count=%d", s.Count)
	}

	for i := 1; i <= 10; i++ {
		h.Record(float64(i * 10)) // 10..100
	}
	s := h.Stats()
	if s.Count != 10 || s.Min != 10 || s.Max != 100 {
		t.Fatalf("stats=%+v", s)
	}
	if s.Avg != 55 {
		t.Fatalf("avg=%v, want 55", s.Avg)
	}
	if s.P50 != 60 {
		t.Fatalf("p50=%v, want 60", s.P50)
	}
}

func TestLatencyWindowEvictsOldest(t *testing.T) {
	h := NewLatencyHistogram(3)
	for i := 1; i <= 5; i++ {
		h.Record(float64(i))
	}
	s := h.Stats()
	if s.Count != 3 || s.Min != 3 || s.Max != 5 {
		t.Fatalf("stats=%+v, want only samples 3..5 retained", s)
	}
}

func TestRecordDuration(t *testing.T) {
	h := NewLatencyHistogram(10)
	h.RecordDuration(250 * time.Millisecond)
	if s := h.Stats(); s.Min != 250 {
		t.Fatalf("min=%v, want 250ms recorded as 250", s.Min)
	}
}
