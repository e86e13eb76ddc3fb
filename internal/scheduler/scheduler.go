// Package scheduler drives the sync engine: a sync pass that fetches, stores,
// evaluates and alerts for every member, and an alert sweep that re-evaluates
// stored readings on its own cadence.
//
// Members are processed one at a time within a pass, so a member's token and
// profile record are never mutated concurrently by the engine.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/albapepper/vitalsync/internal/alerts"
	"github.com/albapepper/vitalsync/internal/metrics"
	"github.com/albapepper/vitalsync/internal/notifications"
	"github.com/albapepper/vitalsync/internal/provider"
	"github.com/albapepper/vitalsync/internal/provider/googlefit"
	"github.com/albapepper/vitalsync/internal/store"
	"github.com/albapepper/vitalsync/internal/token"
)

// Fetcher produces the latest reading for a member.
type Fetcher interface {
	FetchLatest(ctx context.Context, memberID string) (provider.Reading, error)
}

// Dispatcher sends one violation.
type Dispatcher interface {
	Dispatch(ctx context.Context, member store.Member, v alerts.Violation) error
}

// Engine runs sync passes and alert sweeps.
type Engine struct {
	profiles   store.ProfileStore
	fetcher    Fetcher
	dispatcher Dispatcher
	now        func() time.Time
	logger     *slog.Logger

	// Readings captured longer ago than this are not alerted on. It matches
	// the alert ledger TTL so a claim never expires while the reading it
	// covers is still eligible.
	alertMaxAge time.Duration

	syncMu  sync.Mutex
	sweepMu sync.Mutex

	lastMu    sync.RWMutex
	lastSync  *PassResult
	lastSweep *SweepResult
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithAlertMaxAge sets how old a reading may be and still raise alerts.
// Non-positive values keep the default.
func WithAlertMaxAge(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.alertMaxAge = d
		}
	}
}

// DefaultAlertMaxAge is the alert eligibility window when none is configured.
const DefaultAlertMaxAge = 24 * time.Hour

// New creates an Engine.
func New(profiles store.ProfileStore, fetcher Fetcher, dispatcher Dispatcher, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		profiles:   profiles,
		fetcher:    fetcher,
		dispatcher: dispatcher,
		now:        time.Now,
		logger:     logger,

		alertMaxAge: DefaultAlertMaxAge,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// --------------------------------------------------------------------------
// Results
// --------------------------------------------------------------------------

// AlertCounts tallies dispatch outcomes.
type AlertCounts struct {
	Violations int `json:"violations"`
	Sent       int `json:"sent"`
	Duplicate  int `json:"duplicate"`
	Failed     int `json:"failed"`
	Stale      int `json:"stale"`
}

// PassResult summarizes one sync pass.
type PassResult struct {
	StartedAt   time.Time     `json:"started_at"`
	Members     int           `json:"members"`
	Updated     int           `json:"updated"`
	NoData      int           `json:"no_data"`
	NeedsReauth int           `json:"needs_reauth"`
	Failed      int           `json:"failed"`
	Alerts      AlertCounts   `json:"alerts"`
	Duration    time.Duration `json:"duration"`
	Errors      []string      `json:"errors,omitempty"`
}

// Summary returns a human-readable summary.
func (r *PassResult) Summary() string {
	return fmt.Sprintf(
		"members=%d updated=%d no_data=%d needs_reauth=%d failed=%d violations=%d sent=%d dup=%d send_failed=%d stale=%d dur=%s",
		r.Members, r.Updated, r.NoData, r.NeedsReauth, r.Failed,
		r.Alerts.Violations, r.Alerts.Sent, r.Alerts.Duplicate, r.Alerts.Failed, r.Alerts.Stale,
		r.Duration.Round(time.Millisecond))
}

// SweepResult summarizes one alert sweep.
type SweepResult struct {
	StartedAt time.Time     `json:"started_at"`
	Members   int           `json:"members"`
	Evaluated int           `json:"evaluated"`
	Alerts    AlertCounts   `json:"alerts"`
	Duration  time.Duration `json:"duration"`
	Errors    []string      `json:"errors,omitempty"`
}

// Summary returns a human-readable summary.
func (r *SweepResult) Summary() string {
	return fmt.Sprintf(
		"members=%d evaluated=%d violations=%d sent=%d dup=%d send_failed=%d stale=%d dur=%s",
		r.Members, r.Evaluated, r.Alerts.Violations, r.Alerts.Sent,
		r.Alerts.Duplicate, r.Alerts.Failed, r.Alerts.Stale, r.Duration.Round(time.Millisecond))
}

// Last returns the most recent sync pass and sweep results, nil if none ran.
func (e *Engine) Last() (*PassResult, *SweepResult) {
	e.lastMu.RLock()
	defer e.lastMu.RUnlock()
	return e.lastSync, e.lastSweep
}

// --------------------------------------------------------------------------
// Sync pass
// --------------------------------------------------------------------------

// RunSyncPass fetches, stores, evaluates and dispatches for every member.
// A member's failure never stops the pass. Concurrent calls are serialized.
// Cancelling ctx does not cut a pass short; values carried by ctx are kept.
func (e *Engine) RunSyncPass(ctx context.Context) PassResult {
	ctx = context.WithoutCancel(ctx)

	e.syncMu.Lock()
	defer e.syncMu.Unlock()

	start := e.now()
	result := PassResult{StartedAt: start}
	defer func() {
		result.Duration = e.now().Sub(start)
		metrics.SyncPassDuration.Observe(result.Duration.Seconds())
		e.lastMu.Lock()
		r := result
		e.lastSync = &r
		e.lastMu.Unlock()
	}()

	members, err := e.profiles.ReadAll(ctx)
	if err != nil {
		e.logger.Error("Sync pass: failed to read profiles", "error", err)
		result.Errors = append(result.Errors, fmt.Sprintf("read profiles: %v", err))
		return result
	}
	result.Members = len(members)

	for _, m := range members {
		e.syncMember(ctx, m, &result)
	}

	e.logger.Info("Sync pass complete", "summary", result.Summary())
	return result
}

func (e *Engine) syncMember(ctx context.Context, m store.Member, result *PassResult) {
	reading, err := e.fetcher.FetchLatest(ctx, m.ID)
	now := e.now()

	switch {
	case errors.Is(err, token.ErrNeedsReauth):
		result.NeedsReauth++
		metrics.SyncMembers.WithLabelValues("needs_reauth").Inc()
		e.logger.Info("Member needs re-authentication", "member_id", m.ID)
		e.update(ctx, m.ID, result, func(mem *store.Member) {
			mem.TokenStatus = store.TokenNeedsReauth
		})
		return

	case errors.Is(err, googlefit.ErrNoData):
		result.NoData++
		metrics.SyncMembers.WithLabelValues("no_data").Inc()
		e.logger.Info("No new data for member", "member_id", m.ID)
		e.update(ctx, m.ID, result, func(mem *store.Member) {
			mem.LastSync = &now
			mem.TokenStatus = store.TokenActive
		})
		return

	case err != nil:
		result.Failed++
		metrics.SyncMembers.WithLabelValues("fetch_failed").Inc()
		e.logger.Warn("Fetch failed", "member_id", m.ID, "error", err)
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", m.ID, err))
		return
	}

	stored := e.update(ctx, m.ID, result, func(mem *store.Member) {
		r := reading
		mem.Latest = &r
		mem.LastSync = &now
		mem.TokenStatus = store.TokenActive
	})
	if stored {
		result.Updated++
		metrics.SyncMembers.WithLabelValues("updated").Inc()
	} else {
		result.Failed++
		metrics.SyncMembers.WithLabelValues("store_failed").Inc()
	}

	// Alerts go out even when the store write failed.
	e.evaluate(ctx, m, reading, &result.Alerts)
}

// update applies fn to the member's stored profile and reports success.
func (e *Engine) update(ctx context.Context, memberID string, result *PassResult, fn func(*store.Member)) bool {
	if err := store.UpdateMember(ctx, e.profiles, memberID, fn); err != nil {
		e.logger.Error("Failed to update profile", "member_id", memberID, "error", err)
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", memberID, err))
		return false
	}
	return true
}

// --------------------------------------------------------------------------
// Alert sweep
// --------------------------------------------------------------------------

// RunAlertSweep evaluates every stored reading and dispatches violations,
// without contacting the provider. Like a sync pass it runs to completion
// regardless of ctx cancellation.
func (e *Engine) RunAlertSweep(ctx context.Context) SweepResult {
	ctx = context.WithoutCancel(ctx)

	e.sweepMu.Lock()
	defer e.sweepMu.Unlock()

	start := e.now()
	result := SweepResult{StartedAt: start}
	defer func() {
		result.Duration = e.now().Sub(start)
		e.lastMu.Lock()
		r := result
		e.lastSweep = &r
		e.lastMu.Unlock()
	}()

	members, err := e.profiles.ReadAll(ctx)
	if err != nil {
		e.logger.Error("Alert sweep: failed to read profiles", "error", err)
		result.Errors = append(result.Errors, fmt.Sprintf("read profiles: %v", err))
		return result
	}
	result.Members = len(members)

	for _, m := range members {
		if m.Latest == nil {
			continue
		}
		result.Evaluated++
		e.evaluate(ctx, m, *m.Latest, &result.Alerts)
	}

	if result.Alerts.Violations > 0 {
		e.logger.Info("Alert sweep complete", "summary", result.Summary())
	} else {
		e.logger.Debug("Alert sweep complete", "summary", result.Summary())
	}
	return result
}

// evaluate dispatches every violation in r. Violations whose capture time
// falls outside the alert window are counted as stale and never dispatched.
func (e *Engine) evaluate(ctx context.Context, m store.Member, r provider.Reading, counts *AlertCounts) {
	now := e.now()
	for _, v := range alerts.Evaluate(m.ID, r, now) {
		counts.Violations++
		metrics.Violations.WithLabelValues(v.Metric).Inc()

		if now.Sub(v.CapturedAt) >= e.alertMaxAge {
			counts.Stale++
			e.logger.Debug("Skipping stale violation", "member_id", m.ID, "metric", v.Metric,
				"captured_at", v.CapturedAt)
			continue
		}

		e.logger.Warn("Threshold violation", "member_id", m.ID, "metric", v.Metric,
			"value", v.Value, "threshold", v.Threshold, "kind", v.Kind)

		err := e.dispatcher.Dispatch(ctx, m, v)
		switch {
		case err == nil:
			counts.Sent++
		case errors.Is(err, notifications.ErrAlreadySent):
			counts.Duplicate++
		default:
			counts.Failed++
		}
	}
}
