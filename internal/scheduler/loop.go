package scheduler

import (
	"context"
	"time"
)

// Config controls loop intervals. Zero duration disables a loop.
type Config struct {
	SyncInterval  time.Duration // Fetch + store + evaluate + alert
	SweepInterval time.Duration // Evaluate stored readings + alert
}

// DefaultConfig returns the production cadence.
func DefaultConfig() Config {
	return Config{
		SyncInterval:  5 * time.Minute,
		SweepInterval: 5 * time.Minute,
	}
}

// Start runs one sync pass immediately, then both loops on their own
// tickers. The loops are not phase-locked. Blocks until ctx is cancelled.
func (e *Engine) Start(ctx context.Context, cfg Config) {
	e.logger.Info("Scheduler started", "sync", cfg.SyncInterval, "sweep", cfg.SweepInterval)

	tickers := make([]*time.Ticker, 0, 2)
	defer func() {
		for _, t := range tickers {
			t.Stop()
		}
	}()

	done := make(chan struct{}, 2)
	loops := 0

	if cfg.SyncInterval > 0 {
		t := time.NewTicker(cfg.SyncInterval)
		tickers = append(tickers, t)
		loops++
		go func() {
			defer func() { done <- struct{}{} }()
			e.RunSyncPass(ctx)
			runLoop(ctx, t.C, func() { e.RunSyncPass(ctx) })
		}()
	}

	if cfg.SweepInterval > 0 {
		t := time.NewTicker(cfg.SweepInterval)
		tickers = append(tickers, t)
		loops++
		go func() {
			defer func() { done <- struct{}{} }()
			runLoop(ctx, t.C, func() { e.RunAlertSweep(ctx) })
		}()
	}

	<-ctx.Done()
	// A pass in flight finishes before the loops exit.
	for i := 0; i < loops; i++ {
		<-done
	}
	e.logger.Info("Scheduler stopped")
}

func runLoop(ctx context.Context, ch <-chan time.Time, fn func()) {
	for {
		select {
		case <-ch:
			fn()
		case <-ctx.Done():
			return
		}
	}
}
