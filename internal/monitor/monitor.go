// Package monitor implements the recurring portfolio drop check: per-user
// anchors, the 30-second tick fan-out, and alert dispatch with cooldown.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"portfolio-drop-alerts/internal/advisor"
	"portfolio-drop-alerts/internal/alerting"
	"portfolio-drop-alerts/internal/portfolio"
	"portfolio-drop-alerts/internal/scheduler"
	"portfolio-drop-alerts/internal/storage"
)

var dec100 = decimal.NewFromInt(100)

// Options tune the monitor loop.
type Options struct {
	TickInterval    time.Duration
	StartupDelay    time.Duration
	AnchorRefresh   time.Duration
	AlertCooldown   time.Duration
	UserTimeout     time.Duration
	MaxConcurrent   int
	AdvisoryLockKey int64
}

// Valuer is the slice of the portfolio package the monitor needs.
type Valuer interface {
	Snapshot(ctx context.Context, userID int64) (portfolio.Snapshot, error)
}

// Monitor owns the anchor table and drives the drop checks. The anchor
// refresh window and the alert cooldown are deliberately independent: the
// anchor must keep tracking a recent baseline while the cooldown only
// guards against notification flooding.
type Monitor struct {
	opts     Options
	configs  storage.AlertConfigStore
	valuer   Valuer
	notifier alerting.Notifier
	adviser  advisor.Advisor
	samples  storage.ValueSampleStore
	audit    storage.AlertAuditStore
	locker   storage.AdvisoryLocker
	logger   zerolog.Logger

	anchors *anchorTable
	now     func() time.Time
}

// New constructs the monitor. notifier, adviser, samples, audit and locker
// may be nil; the corresponding side effects are skipped.
func New(opts Options, configs storage.AlertConfigStore, valuer Valuer, notifier alerting.Notifier, adviser advisor.Advisor, samples storage.ValueSampleStore, audit storage.AlertAuditStore, locker storage.AdvisoryLocker, logger zerolog.Logger) *Monitor {
	if opts.TickInterval <= 0 {
		opts.TickInterval = 30 * time.Second
	}
	if opts.AnchorRefresh <= 0 {
		opts.AnchorRefresh = 5 * time.Minute
	}
	if opts.AlertCooldown <= 0 {
		opts.AlertCooldown = 5 * time.Minute
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 8
	}

	return &Monitor{
		opts:     opts,
		configs:  configs,
		valuer:   valuer,
		notifier: notifier,
		adviser:  adviser,
		samples:  samples,
		audit:    audit,
		locker:   locker,
		logger:   logger.With().Str("component", "monitor").Logger(),
		anchors:  newAnchorTable(),
		now:      time.Now,
	}
}

// Run blocks, checking all enabled users every tick until ctx is
// cancelled. When an advisory locker is wired, only one process instance
// runs the loop.
func (m *Monitor) Run(ctx context.Context) error {
	if m.locker != nil && m.opts.AdvisoryLockKey != 0 {
		unlock, acquired, err := m.locker.TryAdvisoryLock(ctx, m.opts.AdvisoryLockKey)
		if err != nil {
			return fmt.Errorf("acquire advisory lock: %w", err)
		}
		if !acquired {
			return fmt.Errorf("monitor already running elsewhere (advisory lock held)")
		}
		defer unlock()
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     m.opts.TickInterval,
		StartupDelay: m.opts.StartupDelay,
	}, m.logger)

	return sched.Run(ctx, m.Tick)
}

// Enable turns alerting on for a user and re-seeds the anchor from the
// current portfolio value. Re-enabling discards the previous anchor and
// alert cooldown.
func (m *Monitor) Enable(ctx context.Context, userID int64, thresholdPct decimal.Decimal) error {
	if thresholdPct.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("drop threshold must be greater than zero")
	}

	cfg := storage.AlertConfig{UserID: userID, Enabled: true, DropPct: thresholdPct}
	if err := m.configs.SetAlertConfig(ctx, cfg); err != nil {
		return err
	}

	snapshot, err := m.valuer.Snapshot(ctx, userID)
	if err != nil {
		// Enabled but unseeded; the next tick seeds the anchor.
		m.anchors.delete(userID)
		m.logger.Warn().Err(err).Int64("user_id", userID).Msg("anchor seeding deferred to next tick")
		return nil
	}

	a := m.anchors.getOrCreate(userID)
	a.mu.Lock()
	a.anchorUSD = snapshot.TotalUSD
	a.anchorSetAt = m.now()
	a.lastAlertAt = time.Time{}
	a.mu.Unlock()

	m.logger.Info().Int64("user_id", userID).
		Str("threshold_pct", thresholdPct.String()).
		Str("anchor_usd", snapshot.TotalUSD.StringFixed(2)).
		Msg("alerts enabled")
	return nil
}

// Disable turns alerting off for a user and deletes the anchor.
func (m *Monitor) Disable(ctx context.Context, userID int64) error {
	cfg, ok, err := m.configs.GetAlertConfig(ctx, userID)
	if err != nil {
		return err
	}
	if ok {
		cfg.Enabled = false
		if err := m.configs.SetAlertConfig(ctx, cfg); err != nil {
			return err
		}
	}

	m.anchors.delete(userID)
	m.logger.Info().Int64("user_id", userID).Msg("alerts disabled")
	return nil
}

// Tick runs one pass over all enabled users with bounded parallelism. One
// user's failure never affects another's processing.
func (m *Monitor) Tick(ctx context.Context, firedAt time.Time) error {
	configs, err := m.configs.ListEnabledConfigs(ctx)
	if err != nil {
		return fmt.Errorf("list enabled configs: %w", err)
	}

	enabled := make(map[int64]struct{}, len(configs))
	for _, cfg := range configs {
		enabled[cfg.UserID] = struct{}{}
	}
	m.anchors.retain(enabled, firedAt)

	if len(configs) == 0 {
		return nil
	}

	sem := make(chan struct{}, m.opts.MaxConcurrent)
	var wg sync.WaitGroup
	for _, cfg := range configs {
		wg.Add(1)
		sem <- struct{}{}
		go func(cfg storage.AlertConfig) {
			defer wg.Done()
			defer func() { <-sem }()
			m.checkUser(ctx, cfg, firedAt)
		}(cfg)
	}
	wg.Wait()
	return nil
}

// checkUser executes fetch → anchor refresh → threshold check → dispatch
// for one user.
func (m *Monitor) checkUser(ctx context.Context, cfg storage.AlertConfig, firedAt time.Time) {
	if m.opts.UserTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.opts.UserTimeout)
		defer cancel()
	}

	snapshot, err := m.valuer.Snapshot(ctx, cfg.UserID)
	if err != nil {
		// Skip this user for this tick: no anchor mutation, no alert.
		m.logger.Error().Err(err).Int64("user_id", cfg.UserID).Msg("portfolio fetch failed; skipping tick for user")
		return
	}
	current := snapshot.TotalUSD

	if m.samples != nil {
		sample := storage.ValueSample{UserID: cfg.UserID, TickTS: firedAt, TotalUSD: current}
		if err := m.samples.UpsertValueSample(ctx, sample); err != nil {
			m.logger.Error().Err(err).Int64("user_id", cfg.UserID).Msg("failed to persist value sample")
		}
	}

	a := m.anchors.getOrCreate(cfg.UserID)
	a.mu.Lock()
	defer a.mu.Unlock()

	now := m.now()
	if !a.seeded() {
		a.anchorUSD = current
		a.anchorSetAt = now
		m.logger.Debug().Int64("user_id", cfg.UserID).Str("anchor_usd", current.StringFixed(2)).Msg("anchor seeded")
		return
	}

	// The anchor tracks a recent baseline regardless of drop state.
	if now.Sub(a.anchorSetAt) >= m.opts.AnchorRefresh {
		a.anchorUSD = current
		a.anchorSetAt = now
	}

	dropPct := decimal.Zero
	if a.anchorUSD.IsPositive() {
		dropPct = a.anchorUSD.Sub(current).Div(a.anchorUSD).Mul(dec100)
	}

	if dropPct.LessThan(cfg.DropPct) {
		return
	}
	if !a.lastAlertAt.IsZero() && now.Sub(a.lastAlertAt) < m.opts.AlertCooldown {
		return
	}

	m.dispatch(ctx, cfg, a.anchorUSD, current, dropPct, now)
	a.lastAlertAt = now
}

// dispatch sends one alert. Delivery is best effort; the cooldown starts
// at the attempt so a flapping notifier cannot flood a user.
func (m *Monitor) dispatch(ctx context.Context, cfg storage.AlertConfig, anchorUSD, currentUSD, dropPct decimal.Decimal, now time.Time) {
	advice := ""
	if m.adviser != nil {
		advice = m.adviser.Advise(ctx, advisor.AlertPrompt(), advisor.DropContext(
			dropPct.InexactFloat64(),
			anchorUSD.InexactFloat64(),
			currentUSD.InexactFloat64(),
			cfg.DropPct.InexactFloat64(),
		))
	}

	if m.audit != nil {
		record := storage.AlertRecord{
			UserID:       cfg.UserID,
			AnchorUSD:    anchorUSD,
			CurrentUSD:   currentUSD,
			DropPct:      dropPct,
			ThresholdPct: cfg.DropPct,
		}
		if _, err := m.audit.InsertAlert(ctx, record); err != nil {
			m.logger.Error().Err(err).Int64("user_id", cfg.UserID).Msg("failed to persist alert record")
		}
	}

	if m.notifier == nil {
		m.logger.Warn().Int64("user_id", cfg.UserID).Msg("no notifier configured; alert not delivered")
		return
	}

	note := alerting.Notification{
		UserID:       cfg.UserID,
		CurrentUSD:   currentUSD,
		AnchorUSD:    anchorUSD,
		DropPct:      dropPct,
		ThresholdPct: cfg.DropPct,
		Advisory:     advice,
		ObservedAt:   now,
	}
	if err := m.notifier.Notify(ctx, note); err != nil {
		m.logger.Error().Err(err).Int64("user_id", cfg.UserID).Msg("failed to dispatch alert")
		return
	}

	m.logger.Info().Int64("user_id", cfg.UserID).
		Str("drop_pct", dropPct.StringFixed(1)).
		Str("anchor_usd", anchorUSD.StringFixed(2)).
		Str("current_usd", currentUSD.StringFixed(2)).
		Msg("drop alert dispatched")
}
