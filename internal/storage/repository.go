package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	listPortfolioSQL = `SELECT address, label, created_at
    FROM portfolio_addresses
    WHERE user_id = $1
    ORDER BY created_at;`

	addAddressSQL = `INSERT INTO portfolio_addresses (user_id, address, label)
    VALUES ($1, $2, $3)
    ON CONFLICT (user_id, address) DO UPDATE
    SET label = EXCLUDED.label;`

	removeAddressSQL = `DELETE FROM portfolio_addresses
    WHERE user_id = $1 AND address = $2;`

	getAlertConfigSQL = `SELECT user_id, enabled, drop_pct, updated_at
    FROM user_alert_configs
    WHERE user_id = $1;`

	setAlertConfigSQL = `INSERT INTO user_alert_configs (user_id, enabled, drop_pct, updated_at)
    VALUES ($1, $2, $3, now())
    ON CONFLICT (user_id) DO UPDATE
    SET enabled    = EXCLUDED.enabled,
        drop_pct   = EXCLUDED.drop_pct,
        updated_at = now();`

	listEnabledConfigsSQL = `SELECT user_id, enabled, drop_pct, updated_at
    FROM user_alert_configs
    WHERE enabled
    ORDER BY user_id;`

	upsertValueSampleSQL = `INSERT INTO value_samples (user_id, tick_ts, total_usd)
    VALUES ($1, $2, $3)
    ON CONFLICT (user_id, tick_ts) DO UPDATE
    SET total_usd = EXCLUDED.total_usd;`

	listRecentValuesSQL = `SELECT user_id, tick_ts, total_usd, created_at
    FROM value_samples
    WHERE user_id = $1
    ORDER BY tick_ts DESC
    LIMIT $2;`

	listValuesBetweenSQL = `SELECT user_id, tick_ts, total_usd, created_at
    FROM value_samples
    WHERE user_id = $1
      AND tick_ts >= $2
      AND tick_ts < $3
    ORDER BY tick_ts;`

	insertAlertSQL = `INSERT INTO alerts (user_id, anchor_usd, current_usd, drop_pct, threshold_pct)
    VALUES ($1, $2, $3, $4, $5)
    RETURNING id, user_id, anchor_usd, current_usd, drop_pct, threshold_pct, created_at;`

	listRecentAlertsSQL = `SELECT id, user_id, anchor_usd, current_usd, drop_pct, threshold_pct, created_at
    FROM alerts
    WHERE ($1 = 0 OR user_id = $1)
    ORDER BY created_at DESC
    LIMIT $2;`

	deleteAlertsBeforeSQL = `DELETE FROM alerts WHERE created_at < $1;`

	addWatchSQL = `INSERT INTO watched_addresses (user_id, address)
    VALUES ($1, $2)
    ON CONFLICT (user_id, address) DO NOTHING;`

	removeWatchSQL = `DELETE FROM watched_addresses
    WHERE user_id = $1 AND address = $2;`

	listWatchesSQL = `SELECT user_id, address, last_tx_hash, created_at
    FROM watched_addresses
    WHERE user_id = $1
    ORDER BY created_at;`

	listAllWatchesSQL = `SELECT user_id, address, last_tx_hash, created_at
    FROM watched_addresses
    ORDER BY user_id, created_at;`

	setLastTxHashSQL = `UPDATE watched_addresses
    SET last_tx_hash = $3
    WHERE user_id = $1 AND address = $2;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// PortfolioStore defines operations over tracked addresses.
type PortfolioStore interface {
	ListPortfolio(ctx context.Context, userID int64) ([]AddressEntry, error)
	AddAddress(ctx context.Context, userID int64, address, label string) error
	RemoveAddress(ctx context.Context, userID int64, address string) error
}

// AlertConfigStore defines operations over per-user alert preferences.
type AlertConfigStore interface {
	GetAlertConfig(ctx context.Context, userID int64) (AlertConfig, bool, error)
	SetAlertConfig(ctx context.Context, cfg AlertConfig) error
	ListEnabledConfigs(ctx context.Context) ([]AlertConfig, error)
}

// ValueSampleStore defines operations over per-tick value history.
type ValueSampleStore interface {
	UpsertValueSample(ctx context.Context, sample ValueSample) error
	ListRecentValues(ctx context.Context, userID int64, limit int) ([]ValueSample, error)
	ListValuesBetween(ctx context.Context, userID int64, from, to time.Time) ([]ValueSample, error)
}

// AlertAuditStore defines operations for alert auditing.
type AlertAuditStore interface {
	InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error)
	ListRecentAlerts(ctx context.Context, userID int64, limit int) ([]AlertRecord, error)
	DeleteAlertsBefore(ctx context.Context, olderThan time.Time) error
}

// WatchStore defines operations over watched addresses and their
// transaction cursors.
type WatchStore interface {
	AddWatch(ctx context.Context, userID int64, address string) error
	RemoveWatch(ctx context.Context, userID int64, address string) (bool, error)
	ListWatches(ctx context.Context, userID int64) ([]Watch, error)
	ListAllWatches(ctx context.Context) ([]Watch, error)
	SetLastTxHash(ctx context.Context, userID int64, address, hash string) error
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to portfolio, config, sample and alert tables.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// ListPortfolio returns a user's tracked addresses in insertion order.
func (s *Store) ListPortfolio(ctx context.Context, userID int64) ([]AddressEntry, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listPortfolioSQL, userID)
	if queryErr != nil {
		return nil, fmt.Errorf("list portfolio: %w", queryErr)
	}
	defer rows.Close()

	entries := make([]AddressEntry, 0)
	for rows.Next() {
		var entry AddressEntry
		if scanErr := rows.Scan(&entry.Address, &entry.Label, &entry.CreatedAt); scanErr != nil {
			return nil, fmt.Errorf("scan portfolio entry: %w", scanErr)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// AddAddress inserts or relabels a tracked address.
func (s *Store) AddAddress(ctx context.Context, userID int64, address, label string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	if _, execErr := pool.Exec(ctx, addAddressSQL, userID, address, label); execErr != nil {
		return fmt.Errorf("add address: %w", execErr)
	}
	return nil
}

// RemoveAddress drops a tracked address.
func (s *Store) RemoveAddress(ctx context.Context, userID int64, address string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	if _, execErr := pool.Exec(ctx, removeAddressSQL, userID, address); execErr != nil {
		return fmt.Errorf("remove address: %w", execErr)
	}
	return nil
}

// GetAlertConfig fetches one user's alert preference. The second return
// reports whether a row existed.
func (s *Store) GetAlertConfig(ctx context.Context, userID int64) (AlertConfig, bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return AlertConfig{}, false, err
	}

	cfg, scanErr := scanAlertConfig(pool.QueryRow(ctx, getAlertConfigSQL, userID))
	if scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return AlertConfig{}, false, nil
		}
		return AlertConfig{}, false, fmt.Errorf("get alert config: %w", scanErr)
	}
	return cfg, true, nil
}

// SetAlertConfig upserts one user's alert preference.
func (s *Store) SetAlertConfig(ctx context.Context, cfg AlertConfig) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	if _, execErr := pool.Exec(ctx, setAlertConfigSQL, cfg.UserID, cfg.Enabled, cfg.DropPct.String()); execErr != nil {
		return fmt.Errorf("set alert config: %w", execErr)
	}
	return nil
}

// ListEnabledConfigs returns every user with alerts enabled.
func (s *Store) ListEnabledConfigs(ctx context.Context) ([]AlertConfig, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listEnabledConfigsSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list enabled configs: %w", queryErr)
	}
	defer rows.Close()

	configs := make([]AlertConfig, 0)
	for rows.Next() {
		cfg, scanErr := scanAlertConfig(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan alert config: %w", scanErr)
		}
		configs = append(configs, cfg)
	}
	return configs, rows.Err()
}

// UpsertValueSample persists or updates one per-tick value observation.
func (s *Store) UpsertValueSample(ctx context.Context, sample ValueSample) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	if _, execErr := pool.Exec(ctx, upsertValueSampleSQL, sample.UserID, sample.TickTS, sample.TotalUSD.String()); execErr != nil {
		return fmt.Errorf("upsert value sample: %w", execErr)
	}
	return nil
}

// ListRecentValues lists a user's newest samples, newest first.
func (s *Store) ListRecentValues(ctx context.Context, userID int64, limit int) ([]ValueSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentValuesSQL, userID, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent values: %w", queryErr)
	}
	defer rows.Close()

	return collectValueSamples(rows)
}

// ListValuesBetween lists a user's samples within a window, oldest first.
func (s *Store) ListValuesBetween(ctx context.Context, userID int64, from, to time.Time) ([]ValueSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listValuesBetweenSQL, userID, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list values between: %w", queryErr)
	}
	defer rows.Close()

	return collectValueSamples(rows)
}

// InsertAlert records a dispatched alert.
func (s *Store) InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return AlertRecord{}, err
	}

	row := pool.QueryRow(ctx, insertAlertSQL,
		alert.UserID,
		alert.AnchorUSD.String(),
		alert.CurrentUSD.String(),
		alert.DropPct.String(),
		alert.ThresholdPct.String(),
	)

	inserted, scanErr := scanAlertRecord(row)
	if scanErr != nil {
		return AlertRecord{}, fmt.Errorf("insert alert: %w", scanErr)
	}
	return inserted, nil
}

// ListRecentAlerts lists recent alerts, newest first. userID 0 means all
// users.
func (s *Store) ListRecentAlerts(ctx context.Context, userID int64, limit int) ([]AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentAlertsSQL, userID, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent alerts: %w", queryErr)
	}
	defer rows.Close()

	alerts := make([]AlertRecord, 0)
	for rows.Next() {
		alert, scanErr := scanAlertRecord(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan alert: %w", scanErr)
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

// DeleteAlertsBefore prunes alert audit rows older than the cutoff.
func (s *Store) DeleteAlertsBefore(ctx context.Context, olderThan time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	if _, execErr := pool.Exec(ctx, deleteAlertsBeforeSQL, olderThan); execErr != nil {
		return fmt.Errorf("delete alerts: %w", execErr)
	}
	return nil
}

// AddWatch registers an address for transaction notifications. Re-adding an
// existing watch keeps its cursor.
func (s *Store) AddWatch(ctx context.Context, userID int64, address string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	if _, execErr := pool.Exec(ctx, addWatchSQL, userID, address); execErr != nil {
		return fmt.Errorf("add watch: %w", execErr)
	}
	return nil
}

// RemoveWatch drops a watched address. The boolean reports whether a row
// existed.
func (s *Store) RemoveWatch(ctx context.Context, userID int64, address string) (bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return false, err
	}

	tag, execErr := pool.Exec(ctx, removeWatchSQL, userID, address)
	if execErr != nil {
		return false, fmt.Errorf("remove watch: %w", execErr)
	}
	return tag.RowsAffected() > 0, nil
}

// ListWatches returns a user's watched addresses in insertion order.
func (s *Store) ListWatches(ctx context.Context, userID int64) ([]Watch, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listWatchesSQL, userID)
	if queryErr != nil {
		return nil, fmt.Errorf("list watches: %w", queryErr)
	}
	defer rows.Close()

	return collectWatches(rows)
}

// ListAllWatches returns every watched address across users.
func (s *Store) ListAllWatches(ctx context.Context) ([]Watch, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listAllWatchesSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list all watches: %w", queryErr)
	}
	defer rows.Close()

	return collectWatches(rows)
}

// SetLastTxHash advances a watch's transaction cursor.
func (s *Store) SetLastTxHash(ctx context.Context, userID int64, address, hash string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	if _, execErr := pool.Exec(ctx, setLastTxHashSQL, userID, address, hash); execErr != nil {
		return fmt.Errorf("set last tx hash: %w", execErr)
	}
	return nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// Unlock is best effort; the session release drops the lock anyway.
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlertConfig(row rowScanner) (AlertConfig, error) {
	var cfg AlertConfig
	var dropPct string
	if err := row.Scan(&cfg.UserID, &cfg.Enabled, &dropPct, &cfg.UpdatedAt); err != nil {
		return AlertConfig{}, err
	}

	parsed, err := decimal.NewFromString(dropPct)
	if err != nil {
		return AlertConfig{}, fmt.Errorf("parse drop_pct: %w", err)
	}
	cfg.DropPct = parsed
	return cfg, nil
}

func scanAlertRecord(row rowScanner) (AlertRecord, error) {
	var alert AlertRecord
	var anchor, current, drop, threshold string
	if err := row.Scan(&alert.ID, &alert.UserID, &anchor, &current, &drop, &threshold, &alert.CreatedAt); err != nil {
		return AlertRecord{}, err
	}

	var err error
	if alert.AnchorUSD, err = decimal.NewFromString(anchor); err != nil {
		return AlertRecord{}, fmt.Errorf("parse anchor_usd: %w", err)
	}
	if alert.CurrentUSD, err = decimal.NewFromString(current); err != nil {
		return AlertRecord{}, fmt.Errorf("parse current_usd: %w", err)
	}
	if alert.DropPct, err = decimal.NewFromString(drop); err != nil {
		return AlertRecord{}, fmt.Errorf("parse drop_pct: %w", err)
	}
	if alert.ThresholdPct, err = decimal.NewFromString(threshold); err != nil {
		return AlertRecord{}, fmt.Errorf("parse threshold_pct: %w", err)
	}
	return alert, nil
}

func collectWatches(rows pgx.Rows) ([]Watch, error) {
	watches := make([]Watch, 0)
	for rows.Next() {
		var watch Watch
		if err := rows.Scan(&watch.UserID, &watch.Address, &watch.LastTxHash, &watch.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan watch: %w", err)
		}
		watches = append(watches, watch)
	}
	return watches, rows.Err()
}

func collectValueSamples(rows pgx.Rows) ([]ValueSample, error) {
	samples := make([]ValueSample, 0)
	for rows.Next() {
		var sample ValueSample
		var total string
		if err := rows.Scan(&sample.UserID, &sample.TickTS, &total, &sample.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan value sample: %w", err)
		}
		parsed, err := decimal.NewFromString(total)
		if err != nil {
			return nil, fmt.Errorf("parse total_usd: %w", err)
		}
		sample.TotalUSD = parsed
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}
