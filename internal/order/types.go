package order

import (
	"fmt"
	"time"
)

// Side denotes order side.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Priority ranks how urgently an order should be treated.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityEmergency
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "LOW"
	case PriorityHigh:
		return "HIGH"
	case PriorityEmergency:
		return "EMERGENCY"
	default:
		return "NORMAL"
	}
}

// Status is the order lifecycle state.
// PENDING -> SUBMITTED -> {FILLED | PARTIAL | FAILED};
// PENDING | SUBMITTED -> CANCELLED; any active state -> EXPIRED on timeout.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusSubmitted Status = "SUBMITTED"
	StatusFilled    Status = "FILLED"
	StatusPartial   Status = "PARTIAL"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
	StatusExpired   Status = "EXPIRED"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusFilled, StatusFailed, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// Active reports whether the order may still be cancelled by a caller.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusSubmitted
}

// Request is an immutable trade intent. ID doubles as the idempotency key
// and must be unique per logical intent.
type Request struct {
	ID          string        `json:"id"`
	AssetID     string        `json:"asset_id"`
	Side        Side          `json:"side"`
	Amount      float64       `json:"amount"` // for SELL, 0 means sell the entire holding
	MaxSlippage float64       `json:"max_slippage"`
	Timeout     time.Duration `json:"timeout"`
	RetryCount  int           `json:"retry_count"`
	Priority    Priority      `json:"priority"`
	CreatedAt   time.Time     `json:"created_at"`
}

// Result is the single mutable record per order id, replaced atomically on
// each transition through the ledger.
type Result struct {
	OrderID        string    `json:"order_id"`
	Status         Status    `json:"status"`
	ExecutedAmount float64   `json:"executed_amount"`
	ExecutedPrice  float64   `json:"executed_price"`
	Fees           float64   `json:"fees"`
	Slippage       float64   `json:"slippage"`
	LatencyMs      int64     `json:"latency_ms"`
	ErrorMessage   string    `json:"error,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// RequestID builds the deterministic order id: {side}_{last8 of asset}_{unix ms}.
func RequestID(side Side, assetID string, now time.Time) string {
	tail := assetID
	if len(tail) > 8 {
		tail = tail[len(tail)-8:]
	}
	return fmt.Sprintf("%s_%s_%d", side, tail, now.UnixMilli())
}
