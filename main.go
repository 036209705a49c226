package main

import (
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"execution-core/internal/api"
	"execution-core/internal/events"
	"execution-core/internal/journal"
	"execution-core/internal/order"
	"execution-core/internal/profile"
	"execution-core/internal/risk"
	"execution-core/pkg/cache"
	"execution-core/pkg/config"
	"execution-core/pkg/ratelimit"
	"execution-core/pkg/venue"
)

const version = "1.0.0"

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	log.Printf("execution-core %s starting on port %s", version, cfg.Port)

	bus := events.NewBus()
	prices := cache.NewShardedPriceCache()

	// The paper venue stands in for a real exchange adapter.
	paper := venue.NewPaper(venue.PaperConfig{
		FeeRate:       cfg.PaperFeeRate,
		SlippageBps:   cfg.PaperSlippageBps,
		LatencyMinMs:  cfg.PaperLatencyMinMs,
		LatencyMaxMs:  cfg.PaperLatencyMaxMs,
		FailRate:      cfg.PaperFailRate,
		MinLiquidity:  cfg.PaperMinLiquidity,
		SellAllAmount: cfg.PaperSellAllAmount,
	})

	riskMgr := risk.NewManager(risk.DefaultThresholds(), prices, paper, bus)

	profiles := profile.Empty()
	if cfg.ProfilesPath != "" {
		profiles, err = profile.Load(cfg.ProfilesPath)
		if err != nil {
			log.Fatalf("asset profiles load failed: %v", err)
		}
		log.Printf("loaded %d asset profiles from %s", profiles.Len(), cfg.ProfilesPath)
	}

	var store *journal.Store
	var writer *journal.Writer
	if cfg.EnableJournal {
		if err := os.MkdirAll(filepath.Dir(cfg.JournalPath), 0o755); err != nil {
			log.Fatalf("journal dir create failed: %v", err)
		}
		store, err = journal.Open(cfg.JournalPath)
		if err != nil {
			log.Fatalf("journal open failed: %v", err)
		}
		defer store.Close()
		writer = journal.NewWriter(store, 50, 500*time.Millisecond)
		defer writer.Close()
		log.Printf("execution journal at %s", cfg.JournalPath)
	}

	opts := []order.Option{
		order.WithRisk(riskMgr),
		order.WithLiquidity(paper),
		order.WithRateLimiter(ratelimit.New(cfg.SubmitRatePerMinute, cfg.SubmitBurst)),
		order.WithPriceCache(prices),
		order.WithBus(bus),
		order.WithProfiles(profiles),
	}
	if writer != nil {
		opts = append(opts, order.WithJournal(writer))
	}

	orch := order.NewOrchestrator(order.Config{
		Workers:            cfg.Workers,
		DefaultMaxSlippage: cfg.DefaultMaxSlippage,
		DefaultTimeout:     time.Duration(cfg.DefaultTimeoutMs) * time.Millisecond,
		DefaultRetryCount:  cfg.DefaultRetryCount,
		RetryInitialDelay:  time.Duration(cfg.RetryInitialDelayMs) * time.Millisecond,
		RetryMaxDelay:      time.Duration(cfg.RetryMaxDelayMs) * time.Millisecond,
		Retention:          time.Duration(cfg.OrderRetentionMin) * time.Minute,
		ValidateLiquidity:  cfg.ValidateLiquidity,
	}, paper, opts...)

	// retention sweep for terminal orders
	stopCleanup := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Duration(cfg.CleanupIntervalMin) * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				orch.Cleanup()
			case <-stopCleanup:
				return
			}
		}
	}()

	server := api.NewServer(orch, bus, store, api.SystemMeta{
		Venue:   "paper",
		DryRun:  true,
		Version: version,
	}, cfg.JWTSecret, cfg.APIKey)

	go func() {
		if err := server.Start(":" + cfg.Port); err != nil {
			log.Fatalf("http server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")
	close(stopCleanup)
	orch.Shutdown()
	log.Println("execution core stopped")
}
