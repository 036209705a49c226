package venue

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// PaperConfig tunes the simulated venue.
type PaperConfig struct {
	FeeRate       float64 // decimal, e.g. 0.0004 = 4 bps
	SlippageBps   float64 // random slippage applied on fills, in basis points
	LatencyMinMs  int     // simulated venue latency lower bound
	LatencyMaxMs  int     // simulated venue latency upper bound
	FailRate      float64 // fraction of submissions that fail, 0..1
	MinLiquidity  float64 // Validate rejects amounts above this notional; 0 disables
	DefaultPrice  float64 // price used for assets never seeded
	SellAllAmount float64 // executed amount reported for sell-entire-holding (amount 0)
}

// Paper is an in-process venue simulation. It implements TradeSubmitter,
// LiquidityValidator and BackupPriceSource.
type Paper struct {
	cfg PaperConfig

	mu     sync.Mutex
	prices map[string]float64
	rng    *rand.Rand

	submits uint64
}

// NewPaper creates a paper venue. A zero DefaultPrice falls back to 1.0 so
// fills never report a zero price.
func NewPaper(cfg PaperConfig) *Paper {
	if cfg.DefaultPrice <= 0 {
		cfg.DefaultPrice = 1.0
	}
	if cfg.LatencyMaxMs > 0 && cfg.LatencyMinMs > cfg.LatencyMaxMs {
		cfg.LatencyMinMs, cfg.LatencyMaxMs = cfg.LatencyMaxMs, cfg.LatencyMinMs
	}
	return &Paper{
		cfg:    cfg,
		prices: make(map[string]float64),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetPrice seeds the simulated market price for an asset.
func (p *Paper) SetPrice(assetID string, price float64) {
	p.mu.Lock()
	p.prices[assetID] = price
	p.mu.Unlock()
}

// Submits returns how many submissions the venue has accepted or rejected.
func (p *Paper) Submits() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.submits
}

// Submit simulates a venue execution: optional latency, random failures,
// slippage against the seeded price and a proportional fee.
func (p *Paper) Submit(ctx context.Context, assetID string, side Side, amount, maxSlippage float64) (Fill, error) {
	if err := p.sleep(ctx); err != nil {
		return Fill{}, err
	}

	p.mu.Lock()
	p.submits++
	price, ok := p.prices[assetID]
	fail := p.cfg.FailRate > 0 && p.rng.Float64() < p.cfg.FailRate
	noise := p.rng.Float64()
	p.mu.Unlock()

	if fail {
		return Fill{}, fmt.Errorf("paper venue: simulated submission failure for %s", assetID)
	}
	if !ok {
		price = p.cfg.DefaultPrice
	}

	slip := noise * p.cfg.SlippageBps / 10000.0
	if maxSlippage > 0 && slip > maxSlippage {
		return Fill{}, fmt.Errorf("paper venue: slippage %.4f exceeds limit %.4f", slip, maxSlippage)
	}

	execPrice := price
	if side == SideBuy {
		execPrice = price * (1 + slip)
	} else {
		execPrice = price * (1 - slip)
	}

	executed := amount
	if executed <= 0 {
		// sell-entire-holding request
		executed = p.cfg.SellAllAmount
	}

	return Fill{
		ExecutedAmount: executed,
		ExecutedPrice:  execPrice,
		Fees:           executed * execPrice * p.cfg.FeeRate,
		Slippage:       slip,
	}, nil
}

// Validate approves any amount within the configured liquidity bound.
func (p *Paper) Validate(ctx context.Context, assetID string, amount float64) (bool, error) {
	if err := p.sleep(ctx); err != nil {
		return false, err
	}
	if p.cfg.MinLiquidity > 0 && amount > p.cfg.MinLiquidity {
		return false, nil
	}
	return true, nil
}

// Lookup serves the seeded price as a backup source.
func (p *Paper) Lookup(ctx context.Context, assetID string) (float64, error) {
	if err := p.sleep(ctx); err != nil {
		return 0, err
	}
	p.mu.Lock()
	price, ok := p.prices[assetID]
	p.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("paper venue: no price for %s", assetID)
	}
	return price, nil
}

func (p *Paper) sleep(ctx context.Context) error {
	if p.cfg.LatencyMaxMs <= 0 {
		return nil
	}
	p.mu.Lock()
	span := p.cfg.LatencyMaxMs - p.cfg.LatencyMinMs
	delay := p.cfg.LatencyMinMs
	if span > 0 {
		delay += p.rng.Intn(span + 1)
	}
	p.mu.Unlock()

	select {
	case <-time.After(time.Duration(delay) * time.Millisecond):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
