package journal

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"execution-core/internal/order"
)

// Writer batches journal appends so bursty execution never stalls on disk.
// Appends buffer in memory and flush on size or a timer, inside one
// transaction per batch.
type Writer struct {
	store       *Store
	mu          sync.Mutex
	buffer      []Row
	maxSize     int
	flushIntval time.Duration
	done        chan struct{}
	wg          sync.WaitGroup

	totalRows    uint64
	totalBatches uint64
	totalErrors  uint64
}

// NewWriter creates a batch writer and starts its background flusher.
func NewWriter(store *Store, maxSize int, interval time.Duration) *Writer {
	if maxSize <= 0 {
		maxSize = 50
	}
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	w := &Writer{
		store:       store,
		buffer:      make([]Row, 0, maxSize),
		maxSize:     maxSize,
		flushIntval: interval,
		done:        make(chan struct{}),
	}
	w.wg.Add(1)
	go w.loop()
	return w
}

// Record queues a terminal order result for journaling. It satisfies the
// orchestrator's Recorder interface.
func (w *Writer) Record(req order.Request, res order.Result) {
	row := Row{
		ID:             uuid.NewString(),
		OrderID:        res.OrderID,
		AssetID:        req.AssetID,
		Side:           string(req.Side),
		Status:         string(res.Status),
		Requested:      req.Amount,
		ExecutedAmount: res.ExecutedAmount,
		ExecutedPrice:  res.ExecutedPrice,
		Fees:           res.Fees,
		Slippage:       res.Slippage,
		LatencyMs:      res.LatencyMs,
		Error:          res.ErrorMessage,
		CreatedAt:      res.Timestamp,
	}

	w.mu.Lock()
	w.buffer = append(w.buffer, row)
	shouldFlush := len(w.buffer) >= w.maxSize
	w.mu.Unlock()

	if shouldFlush {
		w.Flush()
	}
}

// Flush writes all buffered rows in one transaction.
func (w *Writer) Flush() error {
	w.mu.Lock()
	if len(w.buffer) == 0 {
		w.mu.Unlock()
		return nil
	}
	rows := w.buffer
	w.buffer = make([]Row, 0, w.maxSize)
	w.mu.Unlock()

	atomic.AddUint64(&w.totalRows, uint64(len(rows)))
	atomic.AddUint64(&w.totalBatches, 1)

	tx, err := w.store.db.Begin()
	if err != nil {
		atomic.AddUint64(&w.totalErrors, 1)
		log.Printf("journal: begin batch failed: %v", err)
		return err
	}
	for _, r := range rows {
		if _, err := tx.Exec(`
			INSERT INTO executions (id, order_id, asset_id, side, status, requested,
				executed_amount, executed_price, fees, slippage, latency_ms, error, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, r.ID, r.OrderID, r.AssetID, r.Side, r.Status, r.Requested,
			r.ExecutedAmount, r.ExecutedPrice, r.Fees, r.Slippage, r.LatencyMs, r.Error, r.CreatedAt,
		); err != nil {
			tx.Rollback()
			atomic.AddUint64(&w.totalErrors, 1)
			log.Printf("journal: insert failed, rolling back batch: %v", err)
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		atomic.AddUint64(&w.totalErrors, 1)
		log.Printf("journal: commit failed: %v", err)
		return err
	}
	return nil
}

// Pending returns the number of buffered rows.
func (w *Writer) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.buffer)
}

func (w *Writer) loop() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.flushIntval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := w.Flush(); err != nil {
				log.Printf("journal: background flush error: %v", err)
			}
		case <-w.done:
			if err := w.Flush(); err != nil {
				log.Printf("journal: final flush error: %v", err)
			}
			return
		}
	}
}

// Close flushes outstanding rows and stops the background flusher.
func (w *Writer) Close() error {
	close(w.done)
	w.wg.Wait()
	return nil
}
