package risk

import "time"

// Level is the per-asset risk posture, ordered by severity.
type Level int

const (
	LevelNormal Level = iota
	LevelCautious
	LevelConservative
	LevelMinimal
	LevelEmergency
)

func (l Level) String() string {
	switch l {
	case LevelNormal:
		return "NORMAL"
	case LevelCautious:
		return "CAUTIOUS"
	case LevelConservative:
		return "CONSERVATIVE"
	case LevelMinimal:
		return "MINIMAL"
	case LevelEmergency:
		return "EMERGENCY"
	default:
		return "UNKNOWN"
	}
}

// Recommendation is the trading posture derived from a level. It is computed
// on demand and never stored.
type Recommendation struct {
	AllowTrading           bool    `json:"allow_trading"`
	PositionSizeMultiplier float64 `json:"position_size_multiplier"`
	StopLossMultiplier     float64 `json:"stop_loss_multiplier"`
	ConfidenceThreshold    float64 `json:"confidence_threshold"`
	Reason                 string  `json:"reason"`
}

// PriceStrategy tells callers how to proceed when the live price is missing.
type PriceStrategy string

const (
	PriceUseCached    PriceStrategy = "USE_CACHED"
	PriceUseBackup    PriceStrategy = "USE_BACKUP"
	PriceForceSell    PriceStrategy = "FORCE_SELL"
	PricePauseTrading PriceStrategy = "PAUSE_TRADING"
)

// Thresholds maps consecutive error counts and time since the last success
// onto escalation levels.
type Thresholds struct {
	CautiousErrors     int
	ConservativeErrors int
	MinimalErrors      int
	EmergencyErrors    int

	CautiousStale     time.Duration
	ConservativeStale time.Duration
	MinimalStale      time.Duration
	EmergencyStale    time.Duration

	// CachedPriceMaxAge bounds how old a cached price may be for USE_CACHED.
	CachedPriceMaxAge time.Duration
}

// DefaultThresholds returns the standard escalation table.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CautiousErrors:     3,
		ConservativeErrors: 5,
		MinimalErrors:      7,
		EmergencyErrors:    10,
		CautiousStale:      60 * time.Second,
		ConservativeStale:  120 * time.Second,
		MinimalStale:       180 * time.Second,
		EmergencyStale:     300 * time.Second,
		CachedPriceMaxAge:  30 * time.Second,
	}
}

// LevelChange is published on the event bus whenever an asset's level moves.
type LevelChange struct {
	AssetID string    `json:"asset_id"`
	From    Level     `json:"-"`
	To      Level     `json:"-"`
	FromStr string    `json:"from"`
	ToStr   string    `json:"to"`
	Errors  int       `json:"consecutive_errors"`
	Time    time.Time `json:"time"`
}
