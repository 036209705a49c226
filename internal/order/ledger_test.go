package order

import (
	"sync"
	"testing"
	"time"
)

func testRequest(id string) Request {
	return Request{
		ID:        id,
		AssetID:   "TOKEN_A",
		Side:      SideBuy,
		Amount:    100,
		CreatedAt: time.Now(),
	}
}

func TestSubmitIdempotent(t *testing.T) {
	l := NewLedger()

	res, accepted := l.Submit(testRequest("X"))
	if !accepted {
		t.Fatalf("first submit not accepted")
	}
	if res.Status != StatusPending {
		t.Fatalf("first submit status=%s, expected PENDING", res.Status)
	}

	res2, accepted2 := l.Submit(testRequest("X"))
	if accepted2 {
		t.Fatalf("duplicate submit was accepted")
	}
	if res2.OrderID != "X" || res2.Status != StatusPending {
		t.Fatalf("duplicate got %+v, expected the original PENDING result", res2)
	}
}

func TestSubmitConcurrentSingleWinner(t *testing.T) {
	l := NewLedger()

	const callers = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	acceptedCount := 0

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, accepted := l.Submit(testRequest("X")); accepted {
				mu.Lock()
				acceptedCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if acceptedCount != 1 {
		t.Fatalf("accepted=%d, expected exactly 1", acceptedCount)
	}
	if l.Len() != 1 {
		t.Fatalf("ledger tracks %d orders, expected 1", l.Len())
	}
}

func TestUpdateResultTerminalGuard(t *testing.T) {
	l := NewLedger()
	l.Submit(testRequest("X"))

	if !l.UpdateResult("X", Result{Status: StatusSubmitted}) {
		t.Fatalf("PENDING -> SUBMITTED rejected")
	}
	if !l.UpdateResult("X", Result{Status: StatusFilled, ExecutedAmount: 100}) {
		t.Fatalf("SUBMITTED -> FILLED rejected")
	}

	// FILLED is terminal; nothing may follow
	if l.UpdateResult("X", Result{Status: StatusSubmitted}) {
		t.Fatalf("FILLED -> SUBMITTED accepted, state machine violated")
	}

	res, ok := l.Get("X")
	if !ok || res.Status != StatusFilled || res.ExecutedAmount != 100 {
		t.Fatalf("terminal result mutated: %+v", res)
	}
	if l.ActiveCount() != 0 {
		t.Fatalf("terminal order still active")
	}
}

func TestCancel(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(l *Ledger)
		id        string
		wantOK    bool
		wantFinal Status
	}{
		{
			name:      "pending order",
			setup:     func(l *Ledger) { l.Submit(testRequest("X")) },
			id:        "X",
			wantOK:    true,
			wantFinal: StatusCancelled,
		},
		{
			name: "submitted order",
			setup: func(l *Ledger) {
				l.Submit(testRequest("X"))
				l.UpdateResult("X", Result{Status: StatusSubmitted})
			},
			id:        "X",
			wantOK:    true,
			wantFinal: StatusCancelled,
		},
		{
			name: "filled order",
			setup: func(l *Ledger) {
				l.Submit(testRequest("X"))
				l.UpdateResult("X", Result{Status: StatusFilled})
			},
			id:        "X",
			wantOK:    false,
			wantFinal: StatusFilled,
		},
		{
			name:   "unknown order",
			setup:  func(l *Ledger) {},
			id:     "missing",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLedger()
			tt.setup(l)

			if got := l.Cancel(tt.id); got != tt.wantOK {
				t.Fatalf("Cancel=%v, expected %v", got, tt.wantOK)
			}
			if tt.wantFinal != "" {
				res, _ := l.Get(tt.id)
				if res.Status != tt.wantFinal {
					t.Fatalf("status=%s, expected %s", res.Status, tt.wantFinal)
				}
			}

			// cancelling again is a no-op returning false
			if l.Cancel(tt.id) {
				t.Fatalf("second Cancel returned true")
			}
		})
	}
}

func TestCleanupRetention(t *testing.T) {
	l := NewLedger()

	l.Submit(testRequest("old"))
	l.UpdateResult("old", Result{Status: StatusFilled, Timestamp: time.Now().Add(-2 * time.Hour)})

	l.Submit(testRequest("fresh"))
	l.UpdateResult("fresh", Result{Status: StatusFilled})

	l.Submit(testRequest("active"))

	removed := l.Cleanup(time.Hour)
	if removed != 1 {
		t.Fatalf("removed=%d, expected 1", removed)
	}
	if _, ok := l.Get("old"); ok {
		t.Fatalf("old terminal order survived cleanup")
	}
	if _, ok := l.Get("fresh"); !ok {
		t.Fatalf("fresh terminal order removed inside retention window")
	}
	if _, ok := l.Get("active"); !ok {
		t.Fatalf("active order removed by cleanup")
	}
}

func TestRequestID(t *testing.T) {
	ts := time.UnixMilli(1700000000000)
	if got := RequestID(SideBuy, "0xABCDEF1234567890", ts); got != "BUY_34567890_1700000000000" {
		t.Fatalf("RequestID=%q", got)
	}
	if got := RequestID(SideSell, "SOL", ts); got != "SELL_SOL_1700000000000" {
		t.Fatalf("RequestID short asset=%q", got)
	}
}
