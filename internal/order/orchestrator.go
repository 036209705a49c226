package order

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"execution-core/internal/events"
	"execution-core/internal/monitor"
	"execution-core/internal/profile"
	"execution-core/internal/risk"
	"execution-core/pkg/cache"
	"execution-core/pkg/ratelimit"
	"execution-core/pkg/retry"
	"execution-core/pkg/venue"
)

// ErrClosed is returned by submissions after Shutdown.
var ErrClosed = errors.New("orchestrator: shut down")

// Recorder receives terminal order results for audit journaling.
type Recorder interface {
	Record(req Request, res Result)
}

// Config tunes the orchestrator defaults applied when a request or asset
// profile does not override them.
type Config struct {
	Workers            int
	DefaultMaxSlippage float64
	DefaultTimeout     time.Duration
	DefaultRetryCount  int
	RetryInitialDelay  time.Duration
	RetryMaxDelay      time.Duration
	Retention          time.Duration
	ValidateLiquidity  bool
}

// DefaultConfig returns the standard orchestrator tuning.
func DefaultConfig() Config {
	return Config{
		Workers:            8,
		DefaultMaxSlippage: 0.01,
		DefaultTimeout:     30 * time.Second,
		DefaultRetryCount:  3,
		RetryInitialDelay:  500 * time.Millisecond,
		RetryMaxDelay:      10 * time.Second,
		Retention:          time.Hour,
		ValidateLiquidity:  true,
	}
}

// Orchestrator is the public entry point of the execution core. Accepted
// orders run as tracked goroutines under one supervising context; callers
// get a PENDING result back immediately and poll for resolution.
type Orchestrator struct {
	cfg       Config
	ledger    *Ledger
	risk      *risk.Manager
	venue     venue.TradeSubmitter
	liquidity venue.LiquidityValidator // optional
	limiter   *ratelimit.Limiter       // optional
	prices    *cache.ShardedPriceCache // optional
	bus       *events.Bus              // optional
	metrics   *monitor.ExecutionMetrics
	journal   Recorder     // optional
	profiles  *profile.Set // optional

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	slots  chan struct{}

	mu     sync.Mutex
	tasks  map[string]context.CancelFunc
	closed bool
}

// NewOrchestrator wires the execution core. venue is required; the other
// collaborators may be nil and their step is skipped.
func NewOrchestrator(cfg Config, submitter venue.TradeSubmitter, opts ...Option) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	if cfg.DefaultRetryCount <= 0 {
		cfg.DefaultRetryCount = 3
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 30 * time.Second
	}
	if cfg.Retention <= 0 {
		cfg.Retention = time.Hour
	}

	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		cfg:     cfg,
		ledger:  NewLedger(),
		venue:   submitter,
		metrics: monitor.NewExecutionMetrics(),
		ctx:     ctx,
		cancel:  cancel,
		slots:   make(chan struct{}, cfg.Workers),
		tasks:   make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.risk == nil {
		o.risk = risk.NewManager(risk.DefaultThresholds(), o.prices, nil, o.bus)
	}
	return o
}

// Option configures optional orchestrator collaborators.
type Option func(*Orchestrator)

func WithRisk(m *risk.Manager) Option                  { return func(o *Orchestrator) { o.risk = m } }
func WithLiquidity(v venue.LiquidityValidator) Option  { return func(o *Orchestrator) { o.liquidity = v } }
func WithRateLimiter(l *ratelimit.Limiter) Option      { return func(o *Orchestrator) { o.limiter = l } }
func WithPriceCache(c *cache.ShardedPriceCache) Option { return func(o *Orchestrator) { o.prices = c } }
func WithBus(b *events.Bus) Option                     { return func(o *Orchestrator) { o.bus = b } }
func WithJournal(r Recorder) Option                    { return func(o *Orchestrator) { o.journal = r } }
func WithProfiles(s *profile.Set) Option               { return func(o *Orchestrator) { o.profiles = s } }
func WithMetrics(m *monitor.ExecutionMetrics) Option   { return func(o *Orchestrator) { o.metrics = m } }

// ExecuteBuy submits a buy for amountUSD of the asset. A non-positive
// maxSlippage falls back to the asset profile or the configured default.
func (o *Orchestrator) ExecuteBuy(ctx context.Context, assetID string, amountUSD, maxSlippage float64) (Result, error) {
	req := o.buildRequest(SideBuy, assetID, amountUSD, maxSlippage, PriorityNormal)
	return o.submit(req)
}

// ExecuteSell submits a sell of amountTokens; zero means sell the entire
// holding. reason is logged for auditing (stop loss, force sell, manual).
func (o *Orchestrator) ExecuteSell(ctx context.Context, assetID string, amountTokens, maxSlippage float64, reason string) (Result, error) {
	prio := PriorityNormal
	if reason != "" {
		prio = PriorityHigh
	}
	req := o.buildRequest(SideSell, assetID, amountTokens, maxSlippage, prio)
	if reason != "" {
		log.Printf("orchestrator: sell %s requested (%s)", req.ID, reason)
	}
	return o.submit(req)
}

// SubmitRequest accepts a fully caller-constructed request, keeping the
// caller's id as the idempotency key.
func (o *Orchestrator) SubmitRequest(req Request) (Result, error) {
	if req.ID == "" {
		return Result{}, errors.New("orchestrator: request id required")
	}
	o.applyDefaults(&req)
	return o.submit(req)
}

func (o *Orchestrator) buildRequest(side Side, assetID string, amount, maxSlippage float64, prio Priority) Request {
	now := time.Now()
	req := Request{
		ID:          RequestID(side, assetID, now),
		AssetID:     assetID,
		Side:        side,
		Amount:      amount,
		MaxSlippage: maxSlippage,
		Priority:    prio,
		CreatedAt:   now,
	}
	o.applyDefaults(&req)
	return req
}

func (o *Orchestrator) applyDefaults(req *Request) {
	var prof profile.AssetProfile
	var ok bool
	if o.profiles != nil {
		prof, ok = o.profiles.Get(req.AssetID)
	}
	if req.MaxSlippage <= 0 {
		req.MaxSlippage = o.cfg.DefaultMaxSlippage
		if ok && prof.MaxSlippage > 0 {
			req.MaxSlippage = prof.MaxSlippage
		}
	}
	if req.RetryCount <= 0 {
		req.RetryCount = o.cfg.DefaultRetryCount
		if ok && prof.RetryCount > 0 {
			req.RetryCount = prof.RetryCount
		}
	}
	if req.Timeout <= 0 {
		req.Timeout = o.cfg.DefaultTimeout
		if ok && prof.TimeoutMs > 0 {
			req.Timeout = time.Duration(prof.TimeoutMs) * time.Millisecond
		}
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}
}

// submit registers the request and, when it is new, launches its tracked
// execution task. Duplicate ids return the existing result untouched:
// fire-and-register, never a second venue submission.
func (o *Orchestrator) submit(req Request) (Result, error) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return Result{}, ErrClosed
	}
	o.mu.Unlock()

	res, accepted := o.ledger.Submit(req)
	if !accepted {
		o.metrics.IncrDuplicates()
		log.Printf("orchestrator: duplicate submission for %s (status %s)", req.ID, res.Status)
		return res, nil
	}

	taskCtx, taskCancel := context.WithTimeout(o.ctx, req.Timeout)

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		taskCancel()
		o.ledger.Cancel(req.ID)
		res, _ := o.ledger.Get(req.ID)
		return res, ErrClosed
	}
	o.tasks[req.ID] = taskCancel
	o.wg.Add(1)
	o.mu.Unlock()

	o.metrics.IncrSubmitted()
	go o.run(taskCtx, taskCancel, req)

	return res, nil
}

// run is the execution task body; it never lets a failure escape — every
// path ends in a ledger transition.
func (o *Orchestrator) run(taskCtx context.Context, taskCancel context.CancelFunc, req Request) {
	defer o.wg.Done()
	defer taskCancel()
	defer func() {
		o.mu.Lock()
		delete(o.tasks, req.ID)
		o.mu.Unlock()
	}()
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("execution panic: %v", r)
			log.Printf("orchestrator: order %s panicked: %v", req.ID, r)
			o.fail(req, err, time.Since(req.CreatedAt), true)
		}
	}()

	start := time.Now()

	// worker slot
	select {
	case o.slots <- struct{}{}:
		defer func() { <-o.slots }()
	case <-taskCtx.Done():
		o.bail(taskCtx, req, start)
		return
	}

	// policy gate
	rec := o.risk.Assess(req.AssetID)
	if !rec.AllowTrading && req.Side == SideBuy {
		o.terminate(req, Result{
			Status:       StatusCancelled,
			ErrorMessage: "policy denied: " + rec.Reason,
			LatencyMs:    time.Since(start).Milliseconds(),
		}, events.EventOrderCancelled)
		o.metrics.IncrCancelled()
		log.Printf("orchestrator: order %s cancelled by policy (%s)", req.ID, rec.Reason)
		return
	}

	// pre-trade liquidity validation: fail fast, never retried
	if o.cfg.ValidateLiquidity && o.liquidity != nil && !o.skipLiquidity(req.AssetID) {
		ok, err := o.liquidity.Validate(taskCtx, req.AssetID, req.Amount)
		if taskCtx.Err() != nil {
			o.bail(taskCtx, req, start)
			return
		}
		if err != nil || !ok {
			msg := "liquidity validation rejected"
			if err != nil {
				msg = fmt.Sprintf("liquidity validation failed: %v", err)
			}
			o.terminate(req, Result{
				Status:       StatusFailed,
				ErrorMessage: msg,
				LatencyMs:    time.Since(start).Milliseconds(),
			}, events.EventOrderFailed)
			o.metrics.IncrFailed()
			return
		}
	}

	if !o.ledger.UpdateResult(req.ID, Result{Status: StatusSubmitted}) {
		// cancelled while queued
		return
	}
	o.publish(events.EventOrderSubmitted, req.ID)

	// admission gate for the venue
	if o.limiter != nil && !o.limiter.Acquire(taskCtx, req.Timeout) {
		o.bail(taskCtx, req, start)
		return
	}

	// position sizing only shrinks entries; exits always go out full size
	amount := req.Amount
	if req.Side == SideBuy && amount > 0 {
		amount *= rec.PositionSizeMultiplier
	}

	fill, err := retry.Do(taskCtx, retry.Config{
		Attempts:     req.RetryCount,
		InitialDelay: o.cfg.RetryInitialDelay,
		MaxDelay:     o.cfg.RetryMaxDelay,
	}, func(ctx context.Context) (venue.Fill, error) {
		return o.venue.Submit(ctx, req.AssetID, venue.Side(req.Side), amount, req.MaxSlippage)
	})
	latency := time.Since(start)

	if err != nil {
		if taskCtx.Err() != nil {
			o.bail(taskCtx, req, start)
			return
		}
		o.fail(req, err, latency, true)
		return
	}

	// the venue answered, so the asset is healthy regardless of any
	// cancellation race on the ledger record
	o.risk.RecordSuccess(req.AssetID)
	if o.prices != nil && fill.ExecutedPrice > 0 {
		o.prices.Set(req.AssetID, fill.ExecutedPrice)
	}

	res := Result{
		Status:         StatusFilled,
		ExecutedAmount: fill.ExecutedAmount,
		ExecutedPrice:  fill.ExecutedPrice,
		Fees:           fill.Fees,
		Slippage:       fill.Slippage,
		LatencyMs:      latency.Milliseconds(),
	}
	if o.terminate(req, res, events.EventOrderFilled) {
		o.metrics.IncrFilled()
		o.metrics.OrderLatency.RecordDuration(latency)
		log.Printf("orchestrator: order %s filled: %.6f @ %.6f (latency %v)", req.ID, fill.ExecutedAmount, fill.ExecutedPrice, latency)
	}
}

// fail marks the order FAILED and optionally feeds the degradation tracker.
func (o *Orchestrator) fail(req Request, err error, latency time.Duration, degrade bool) {
	if o.terminate(req, Result{
		Status:       StatusFailed,
		ErrorMessage: err.Error(),
		LatencyMs:    latency.Milliseconds(),
	}, events.EventOrderFailed) {
		o.metrics.IncrFailed()
	}
	if degrade {
		o.risk.RecordError(req.AssetID, err)
	}
	log.Printf("orchestrator: order %s failed: %v", req.ID, err)
}

// bail resolves a task whose context ended: deadline -> EXPIRED,
// cancellation -> CANCELLED (usually already done by CancelOrder).
func (o *Orchestrator) bail(taskCtx context.Context, req Request, start time.Time) {
	if errors.Is(taskCtx.Err(), context.DeadlineExceeded) {
		if o.terminate(req, Result{
			Status:       StatusExpired,
			ErrorMessage: "execution timeout exceeded",
			LatencyMs:    time.Since(start).Milliseconds(),
		}, events.EventOrderExpired) {
			o.metrics.IncrExpired()
			log.Printf("orchestrator: order %s expired after %v", req.ID, req.Timeout)
		}
		return
	}
	if o.ledger.Cancel(req.ID) {
		o.metrics.IncrCancelled()
		o.publish(events.EventOrderCancelled, req.ID)
	}
}

// terminate pushes a terminal result through the ledger and fans it out to
// the bus and the journal. Returns false when the order already reached a
// terminal state (lost race).
func (o *Orchestrator) terminate(req Request, res Result, evt events.Event) bool {
	res.Timestamp = time.Now()
	if !o.ledger.UpdateResult(req.ID, res) {
		return false
	}
	stored, _ := o.ledger.Get(req.ID)
	o.publish(evt, stored)
	if o.journal != nil {
		o.journal.Record(req, stored)
	}
	return true
}

func (o *Orchestrator) publish(evt events.Event, payload any) {
	if o.bus != nil {
		o.bus.Publish(evt, payload)
		o.bus.Publish(events.EventOrderUpdate, payload)
	}
}

func (o *Orchestrator) skipLiquidity(assetID string) bool {
	if o.profiles == nil {
		return false
	}
	p, ok := o.profiles.Get(assetID)
	return ok && p.SkipLiquidityCheck
}

// CancelOrder signals the order's task and transitions the record to
// CANCELLED if it is still active. Cancelling a terminal or unknown order
// returns false and changes nothing.
func (o *Orchestrator) CancelOrder(orderID string) bool {
	o.mu.Lock()
	taskCancel, ok := o.tasks[orderID]
	o.mu.Unlock()
	if ok {
		taskCancel()
	}

	if !o.ledger.Cancel(orderID) {
		return false
	}
	o.metrics.IncrCancelled()
	o.publish(events.EventOrderCancelled, orderID)
	if o.journal != nil {
		if req, okReq := o.ledger.Request(orderID); okReq {
			if res, okRes := o.ledger.Get(orderID); okRes {
				o.journal.Record(req, res)
			}
		}
	}
	log.Printf("orchestrator: order %s cancelled", orderID)
	return true
}

// OrderStatus returns the current result for an order id.
func (o *Orchestrator) OrderStatus(orderID string) (Result, bool) {
	return o.ledger.Get(orderID)
}

// HandleMissingPrice delegates the stale-price decision to the degradation
// controller.
func (o *Orchestrator) HandleMissingPrice(ctx context.Context, assetID string) risk.PriceStrategy {
	return o.risk.HandleMissingPrice(ctx, assetID)
}

// Stats is the execution statistics snapshot.
type Stats struct {
	ActiveOrders  int               `json:"active_orders"`
	TrackedOrders int               `json:"tracked_orders"`
	Metrics       monitor.Snapshot  `json:"metrics"`
	Degradation   map[string]string `json:"degradation_levels"`
}

// ExecutionStats returns counters, latency and per-asset degradation levels.
func (o *Orchestrator) ExecutionStats() Stats {
	return Stats{
		ActiveOrders:  o.ledger.ActiveCount(),
		TrackedOrders: o.ledger.Len(),
		Metrics:       o.metrics.Stats(),
		Degradation:   o.risk.Levels(),
	}
}

// Metrics exposes the metrics instance for API middleware.
func (o *Orchestrator) Metrics() *monitor.ExecutionMetrics {
	return o.metrics
}

// ActiveOrders returns a snapshot of all non-terminal results.
func (o *Orchestrator) ActiveOrders() []Result {
	return o.ledger.ActiveOrders()
}

// Cleanup sweeps terminal results past the retention window.
func (o *Orchestrator) Cleanup() int {
	return o.ledger.Cleanup(o.cfg.Retention)
}

// Shutdown cancels every outstanding task and waits for them to drain.
// Partially submitted trades are not rolled back. Idempotent.
func (o *Orchestrator) Shutdown() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.mu.Unlock()

	o.cancel()
	o.wg.Wait()
	log.Printf("orchestrator: shut down, %d orders still tracked", o.ledger.Len())
}
