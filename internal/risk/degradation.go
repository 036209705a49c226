package risk

import (
	"context"
	"log"
	"sync"
	"time"

	"execution-core/internal/events"
	"execution-core/pkg/cache"
	"execution-core/pkg/venue"
)

// Manager tracks per-asset error/success history and derives the degradation
// level gating trade aggressiveness. State is keyed by asset id with one
// lock per asset, so unrelated assets never block each other.
type Manager struct {
	thresholds Thresholds
	prices     *cache.ShardedPriceCache
	backup     venue.BackupPriceSource // optional
	bus        *events.Bus             // optional

	mu     sync.RWMutex
	assets map[string]*assetState
}

type assetState struct {
	mu                sync.Mutex
	level             Level
	consecutiveErrors int
	lastSuccess       time.Time
	lastError         time.Time
}

// NewManager creates a degradation manager. prices may be nil when no price
// feed exists; backup and bus are optional collaborators.
func NewManager(thresholds Thresholds, prices *cache.ShardedPriceCache, backup venue.BackupPriceSource, bus *events.Bus) *Manager {
	return &Manager{
		thresholds: thresholds,
		prices:     prices,
		backup:     backup,
		bus:        bus,
		assets:     make(map[string]*assetState),
	}
}

// stateFor returns the tracked state for an asset, creating it on first use.
// A fresh asset starts NORMAL with last-success stamped now, so the time
// thresholds only bite after real staleness.
func (m *Manager) stateFor(assetID string) *assetState {
	m.mu.RLock()
	st, ok := m.assets[assetID]
	m.mu.RUnlock()
	if ok {
		return st
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.assets[assetID]; ok {
		return st
	}
	st = &assetState{level: LevelNormal, lastSuccess: time.Now()}
	m.assets[assetID] = st
	return st
}

// Assess returns the trading recommendation for the asset's current level.
func (m *Manager) Assess(assetID string) Recommendation {
	return RecommendationFor(m.Level(assetID))
}

// RecommendationFor is the fixed level -> posture lookup table.
func RecommendationFor(level Level) Recommendation {
	switch level {
	case LevelCautious:
		return Recommendation{AllowTrading: true, PositionSizeMultiplier: 0.7, StopLossMultiplier: 0.8, ConfidenceThreshold: 0.7,
			Reason: "elevated error rate, reduced position sizing"}
	case LevelConservative:
		return Recommendation{AllowTrading: true, PositionSizeMultiplier: 0.4, StopLossMultiplier: 0.6, ConfidenceThreshold: 0.8,
			Reason: "sustained errors, conservative sizing and tighter stops"}
	case LevelMinimal:
		return Recommendation{AllowTrading: false, PositionSizeMultiplier: 0, StopLossMultiplier: 0.5, ConfidenceThreshold: 0.9,
			Reason: "degraded asset, new entries suspended"}
	case LevelEmergency:
		return Recommendation{AllowTrading: false, PositionSizeMultiplier: 0, StopLossMultiplier: 0, ConfidenceThreshold: 1.0,
			Reason: "emergency degradation, trading halted"}
	default:
		return Recommendation{AllowTrading: true, PositionSizeMultiplier: 1.0, StopLossMultiplier: 1.0, ConfidenceThreshold: 0.6,
			Reason: "normal operation"}
	}
}

// Level returns the asset's current degradation level.
func (m *Manager) Level(assetID string) Level {
	st := m.stateFor(assetID)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.level
}

// RecordSuccess resets the error counter and de-escalates by exactly one
// step toward NORMAL.
func (m *Manager) RecordSuccess(assetID string) {
	st := m.stateFor(assetID)
	st.mu.Lock()
	st.consecutiveErrors = 0
	st.lastSuccess = time.Now()
	from := st.level
	if st.level > LevelNormal {
		st.level--
	}
	to := st.level
	errors := st.consecutiveErrors
	st.mu.Unlock()

	if from != to {
		m.announce(assetID, from, to, errors)
	}
}

// RecordError increments the error counter and recomputes the level from
// the threshold table. Level transitions are logged and published, never
// silent.
func (m *Manager) RecordError(assetID string, err error) {
	st := m.stateFor(assetID)
	st.mu.Lock()
	st.consecutiveErrors++
	st.lastError = time.Now()
	from := st.level
	st.level = m.escalate(st.consecutiveErrors, time.Since(st.lastSuccess), st.level)
	to := st.level
	errors := st.consecutiveErrors
	st.mu.Unlock()

	log.Printf("risk: error recorded for %s (count=%d): %v", assetID, errors, err)
	if from != to {
		m.announce(assetID, from, to, errors)
	}
}

// escalate maps (consecutive errors, time since last success) onto a level.
// The level never improves here; only RecordSuccess steps it down.
func (m *Manager) escalate(errors int, sinceSuccess time.Duration, current Level) Level {
	t := m.thresholds
	next := LevelNormal
	switch {
	case errors >= t.EmergencyErrors || sinceSuccess > t.EmergencyStale:
		next = LevelEmergency
	case errors >= t.MinimalErrors || sinceSuccess > t.MinimalStale:
		next = LevelMinimal
	case errors >= t.ConservativeErrors || sinceSuccess > t.ConservativeStale:
		next = LevelConservative
	case errors >= t.CautiousErrors || sinceSuccess > t.CautiousStale:
		next = LevelCautious
	}
	if next < current {
		return current
	}
	return next
}

func (m *Manager) announce(assetID string, from, to Level, errors int) {
	log.Printf("risk: degradation level for %s: %s -> %s (consecutive errors %d)", assetID, from, to, errors)
	if m.bus != nil {
		m.bus.Publish(events.EventDegradationChange, LevelChange{
			AssetID: assetID,
			From:    from,
			To:      to,
			FromStr: from.String(),
			ToStr:   to.String(),
			Errors:  errors,
			Time:    time.Now(),
		})
	}
}

// HandleMissingPrice decides how to proceed when an asset has no live price:
// a fresh cached price at NORMAL is good enough, badly degraded assets are
// force-sold, and otherwise a backup lookup is attempted.
func (m *Manager) HandleMissingPrice(ctx context.Context, assetID string) PriceStrategy {
	level := m.Level(assetID)

	if level == LevelNormal && m.prices != nil {
		if age, ok := m.prices.Age(assetID); ok && age <= m.thresholds.CachedPriceMaxAge {
			return PriceUseCached
		}
	}

	if level >= LevelMinimal {
		log.Printf("risk: missing price for %s at level %s, forcing sell", assetID, level)
		return PriceForceSell
	}

	if m.backup != nil {
		price, err := m.backup.Lookup(ctx, assetID)
		if err == nil {
			if m.prices != nil {
				m.prices.Set(assetID, price)
			}
			return PriceUseBackup
		}
		log.Printf("risk: backup price lookup for %s failed: %v", assetID, err)
	}
	return PricePauseTrading
}

// Levels returns a snapshot of every tracked asset's level.
func (m *Manager) Levels() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.assets))
	for id, st := range m.assets {
		st.mu.Lock()
		out[id] = st.level.String()
		st.mu.Unlock()
	}
	return out
}
