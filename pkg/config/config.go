package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the execution core.
type Config struct {
	Port string

	// Auth
	JWTSecret string
	APIKey    string

	// Execution
	Workers             int
	DefaultMaxSlippage  float64
	DefaultTimeoutMs    int
	DefaultRetryCount   int
	RetryInitialDelayMs int
	RetryMaxDelayMs     int
	ValidateLiquidity   bool
	OrderRetentionMin   int
	CleanupIntervalMin  int

	// Venue admission
	SubmitRatePerMinute int
	SubmitBurst         int

	// Asset profiles
	ProfilesPath string

	// Journal
	EnableJournal bool
	JournalPath   string

	// Paper venue simulation
	PaperFeeRate       float64 // decimal (e.g. 0.0004 = 4 bps)
	PaperSlippageBps   float64
	PaperLatencyMinMs  int
	PaperLatencyMaxMs  int
	PaperFailRate      float64
	PaperMinLiquidity  float64
	PaperSellAllAmount float64
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	return &Config{
		Port:                getEnv("PORT", "8080"),
		JWTSecret:           getEnv("JWT_SECRET", "dev-secret"),
		APIKey:              getEnv("API_KEY", "dev-api-key"),
		Workers:             getEnvInt("EXECUTION_WORKERS", 8),
		DefaultMaxSlippage:  getEnvFloat("DEFAULT_MAX_SLIPPAGE", 0.01),
		DefaultTimeoutMs:    getEnvInt("DEFAULT_TIMEOUT_MS", 30000),
		DefaultRetryCount:   getEnvInt("DEFAULT_RETRY_COUNT", 3),
		RetryInitialDelayMs: getEnvInt("RETRY_INITIAL_DELAY_MS", 500),
		RetryMaxDelayMs:     getEnvInt("RETRY_MAX_DELAY_MS", 10000),
		ValidateLiquidity:   getEnv("VALIDATE_LIQUIDITY", "true") == "true",
		OrderRetentionMin:   getEnvInt("ORDER_RETENTION_MIN", 60),
		CleanupIntervalMin:  getEnvInt("CLEANUP_INTERVAL_MIN", 5),
		SubmitRatePerMinute: getEnvInt("SUBMIT_RATE_PER_MINUTE", 120),
		SubmitBurst:         getEnvInt("SUBMIT_BURST", 0), // 0 = same as rate
		ProfilesPath:        getEnv("ASSET_PROFILES_PATH", ""),
		EnableJournal:       getEnv("ENABLE_JOURNAL", "true") == "true",
		JournalPath:         getEnv("JOURNAL_PATH", "./data/executions.db"),
		PaperFeeRate:        getEnvFloat("PAPER_FEE_RATE", 0.0004),
		PaperSlippageBps:    getEnvFloat("PAPER_SLIPPAGE_BPS", 2),
		PaperLatencyMinMs:   getEnvInt("PAPER_LATENCY_MIN_MS", 0),
		PaperLatencyMaxMs:   getEnvInt("PAPER_LATENCY_MAX_MS", 0),
		PaperFailRate:       getEnvFloat("PAPER_FAIL_RATE", 0),
		PaperMinLiquidity:   getEnvFloat("PAPER_MIN_LIQUIDITY", 0),
		PaperSellAllAmount:  getEnvFloat("PAPER_SELL_ALL_AMOUNT", 100),
	}, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
