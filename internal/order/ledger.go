package order

import (
	"log"
	"sync"
	"time"
)

// Ledger is the idempotent order book-keeper. Every order id owns a lazily
// created mutex; all transitions for one id serialize through it while
// unrelated ids proceed in parallel.
type Ledger struct {
	mu      sync.RWMutex
	locks   map[string]*sync.Mutex
	entries map[string]*entry
	active  map[string]struct{}
}

type entry struct {
	req       Request
	res       Result
	updatedAt time.Time
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		locks:   make(map[string]*sync.Mutex),
		entries: make(map[string]*entry),
		active:  make(map[string]struct{}),
	}
}

// lockFor returns the per-id mutex, creating it on first use.
func (l *Ledger) lockFor(id string) *sync.Mutex {
	l.mu.RLock()
	m, ok := l.locks[id]
	l.mu.RUnlock()
	if ok {
		return m
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if m, ok := l.locks[id]; ok {
		return m
	}
	m = &sync.Mutex{}
	l.locks[id] = m
	return m
}

// Submit registers the request if its id has never been seen and returns a
// PENDING result with accepted=true. If a result (in-flight or terminal)
// already exists it is returned unchanged with accepted=false; exactly one
// concurrent submitter for a given id ever gets accepted=true.
func (l *Ledger) Submit(req Request) (Result, bool) {
	m := l.lockFor(req.ID)
	m.Lock()
	defer m.Unlock()

	l.mu.RLock()
	e, exists := l.entries[req.ID]
	l.mu.RUnlock()
	if exists {
		return e.res, false
	}

	res := Result{
		OrderID:   req.ID,
		Status:    StatusPending,
		Timestamp: time.Now(),
	}

	l.mu.Lock()
	l.entries[req.ID] = &entry{req: req, res: res, updatedAt: res.Timestamp}
	l.active[req.ID] = struct{}{}
	l.mu.Unlock()

	return res, true
}

// UpdateResult replaces the stored result under the per-id lock. Called only
// by the executor. Transitions out of a terminal state are rejected so a
// slow task can never resurrect a finished order.
func (l *Ledger) UpdateResult(id string, res Result) bool {
	m := l.lockFor(id)
	m.Lock()
	defer m.Unlock()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[id]
	if !ok {
		return false
	}
	if e.res.Status.Terminal() {
		log.Printf("ledger: dropped %s update for terminal order %s (%s)", res.Status, id, e.res.Status)
		return false
	}

	res.OrderID = id
	if res.Timestamp.IsZero() {
		res.Timestamp = time.Now()
	}
	e.res = res
	e.updatedAt = res.Timestamp
	if res.Status.Terminal() {
		delete(l.active, id)
	}
	return true
}

// Get returns the current result for an order id.
func (l *Ledger) Get(id string) (Result, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.entries[id]
	if !ok {
		return Result{}, false
	}
	return e.res, true
}

// Request returns the original request for an order id.
func (l *Ledger) Request(id string) (Request, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.entries[id]
	if !ok {
		return Request{}, false
	}
	return e.req, true
}

// Cancel transitions an order to CANCELLED if it is still PENDING or
// SUBMITTED. Returns false for terminal or unknown ids; cancelling twice is
// a no-op.
func (l *Ledger) Cancel(id string) bool {
	m := l.lockFor(id)
	m.Lock()
	defer m.Unlock()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[id]
	if !ok || !e.res.Status.Active() {
		return false
	}

	e.res.Status = StatusCancelled
	e.res.Timestamp = time.Now()
	e.updatedAt = e.res.Timestamp
	delete(l.active, id)
	return true
}

// ActiveCount returns the number of orders not yet terminal.
func (l *Ledger) ActiveCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.active)
}

// Len returns the number of tracked results, terminal included.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// ActiveOrders returns a snapshot of all non-terminal results.
func (l *Ledger) ActiveOrders() []Result {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Result, 0, len(l.active))
	for id := range l.active {
		out = append(out, l.entries[id].res)
	}
	return out
}

// Cleanup removes terminal results older than the retention window together
// with their lock objects, returning the number removed.
func (l *Ledger) Cleanup(retention time.Duration) int {
	cutoff := time.Now().Add(-retention)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for id, e := range l.entries {
		if e.res.Status.Terminal() && e.updatedAt.Before(cutoff) {
			delete(l.entries, id)
			delete(l.locks, id)
			removed++
		}
	}
	if removed > 0 {
		log.Printf("ledger: cleanup removed %d terminal orders (retention %v)", removed, retention)
	}
	return removed
}
