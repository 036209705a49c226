// Package venue defines the external collaborator surface of the execution
// core: the trade-submission venue, the pre-trade liquidity check and the
// backup price source. Implementations wrap real exchanges; the in-tree
// Paper venue simulates one for wiring and tests.
package venue

import "context"

// Side denotes the venue-facing order side.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Fill is the venue acknowledgement of an executed trade.
type Fill struct {
	ExecutedAmount float64 `json:"executed_amount"`
	ExecutedPrice  float64 `json:"executed_price"`
	Fees           float64 `json:"fees"`
	Slippage       float64 `json:"slippage"`
}

// TradeSubmitter abstracts the actual venue call.
type TradeSubmitter interface {
	Submit(ctx context.Context, assetID string, side Side, amount, maxSlippage float64) (Fill, error)
}

// LiquidityValidator runs the pre-trade risk check. ok=false means the
// trade was rejected; a non-nil error means the validator itself failed and
// callers treat that as a rejection too (fail closed).
type LiquidityValidator interface {
	Validate(ctx context.Context, assetID string, amount float64) (ok bool, err error)
}

// BackupPriceSource resolves a price when the primary feed has gone stale.
type BackupPriceSource interface {
	Lookup(ctx context.Context, assetID string) (float64, error)
}
