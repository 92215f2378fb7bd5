package watch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"portfolio-drop-alerts/internal/alerting"
	"portfolio-drop-alerts/internal/scheduler"
	"portfolio-drop-alerts/internal/storage"
)

// Options tune the watch polling loop.
type Options struct {
	Interval       time.Duration
	StartupDelay   time.Duration
	AddressTimeout time.Duration
	MaxConcurrent  int
	ExplorerBase   string
	ChainID        string
}

// Monitor polls every watched address and notifies owners of transactions
// newer than the stored cursor. The cursor lives in storage, so a restart
// never replays already-reported transactions.
type Monitor struct {
	opts     Options
	watches  storage.WatchStore
	source   Source
	notifier alerting.TxNotifier
	logger   zerolog.Logger
	now      func() time.Time
}

// New constructs the watch monitor. notifier may be nil; new transactions
// are then only logged and the cursor still advances.
func New(opts Options, watches storage.WatchStore, source Source, notifier alerting.TxNotifier, logger zerolog.Logger) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 4
	}

	return &Monitor{
		opts:     opts,
		watches:  watches,
		source:   source,
		notifier: notifier,
		logger:   logger.With().Str("component", "watch").Logger(),
		now:      time.Now,
	}
}

// Run blocks, scanning all watches every interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	sched := scheduler.New(scheduler.Options{
		Interval:     m.opts.Interval,
		StartupDelay: m.opts.StartupDelay,
	}, m.logger)

	return sched.Run(ctx, m.Tick)
}

// Tick scans every watched address once under bounded concurrency.
func (m *Monitor) Tick(ctx context.Context, _ time.Time) error {
	watches, err := m.watches.ListAllWatches(ctx)
	if err != nil {
		return fmt.Errorf("list watches: %w", err)
	}
	if len(watches) == 0 {
		return nil
	}

	sem := make(chan struct{}, m.opts.MaxConcurrent)
	var wg sync.WaitGroup
	for _, w := range watches {
		wg.Add(1)
		sem <- struct{}{}
		go func(w storage.Watch) {
			defer wg.Done()
			defer func() { <-sem }()
			m.checkWatch(ctx, w)
		}(w)
	}
	wg.Wait()
	return nil
}

func (m *Monitor) checkWatch(ctx context.Context, w storage.Watch) {
	if m.opts.AddressTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.opts.AddressTimeout)
		defer cancel()
	}

	txs, err := m.source.RecentTransactions(ctx, w.Address)
	if err != nil {
		m.logger.Warn().Err(err).
			Int64("user_id", w.UserID).
			Str("address", w.Address).
			Msg("transaction scan failed, watch skipped this round")
		return
	}
	if len(txs) == 0 {
		return
	}

	// A watch without a cursor has never been scanned: record the newest
	// hash without replaying history.
	if w.LastTxHash == "" {
		m.advanceCursor(ctx, w, txs[0].Hash)
		return
	}

	fresh := freshSince(txs, w.LastTxHash)
	if len(fresh) == 0 {
		return
	}

	// Deliver oldest first so the user reads them in order.
	for i := len(fresh) - 1; i >= 0; i-- {
		m.notify(ctx, w, fresh[i])
	}
	m.advanceCursor(ctx, w, fresh[0].Hash)
}

// freshSince returns the prefix of the newest-first list that precedes the
// cursor hash. A missing cursor hash means everything in range is fresh.
func freshSince(txs []Transaction, lastHash string) []Transaction {
	for i, tx := range txs {
		if tx.Hash == lastHash {
			return txs[:i]
		}
	}
	return txs
}

func (m *Monitor) notify(ctx context.Context, w storage.Watch, tx Transaction) {
	m.logger.Info().
		Int64("user_id", w.UserID).
		Str("address", w.Address).
		Str("tx_hash", tx.Hash).
		Str("direction", tx.Direction).
		Msg("new transaction on watched address")

	if m.notifier == nil {
		return
	}

	note := alerting.TxNotification{
		UserID:      w.UserID,
		Address:     w.Address,
		Hash:        tx.Hash,
		Kind:        tx.Kind,
		Direction:   tx.Direction,
		Block:       tx.Block,
		AmountSEI:   tx.AmountSEI,
		ExplorerURL: m.explorerURL(tx.Hash),
		ObservedAt:  m.now().UTC(),
	}
	if err := m.notifier.NotifyTransaction(ctx, note); err != nil {
		m.logger.Error().Err(err).
			Int64("user_id", w.UserID).
			Str("tx_hash", tx.Hash).
			Msg("transaction notice delivery failed")
	}
}

func (m *Monitor) advanceCursor(ctx context.Context, w storage.Watch, hash string) {
	if err := m.watches.SetLastTxHash(ctx, w.UserID, w.Address, hash); err != nil {
		m.logger.Error().Err(err).
			Int64("user_id", w.UserID).
			Str("address", w.Address).
			Msg("failed to persist watch cursor")
	}
}

func (m *Monitor) explorerURL(hash string) string {
	if m.opts.ExplorerBase == "" {
		return ""
	}
	u := fmt.Sprintf("%s/tx/%s", strings.TrimRight(m.opts.ExplorerBase, "/"), hash)
	if m.opts.ChainID != "" {
		u += "?chain=" + m.opts.ChainID
	}
	return u
}
