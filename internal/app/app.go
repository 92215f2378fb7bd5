package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"portfolio-drop-alerts/internal/advisor"
	"portfolio-drop-alerts/internal/alerting"
	"portfolio-drop-alerts/internal/balance"
	"portfolio-drop-alerts/internal/config"
	"portfolio-drop-alerts/internal/monitor"
	"portfolio-drop-alerts/internal/portfolio"
	"portfolio-drop-alerts/internal/pricing"
	"portfolio-drop-alerts/internal/storage"
	"portfolio-drop-alerts/internal/watch"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

// newPriceCache assembles the cached price source chain. In test mode the
// live oracle is replaced by the simulated table; the static fallback
// always terminates the chain so pricing never depends on the network.
func (a *App) newPriceCache() *pricing.Cache {
	oracle := a.Config.Oracle
	static := pricing.NewStatic(oracle.FallbackPrices)

	var chain []pricing.Source
	if oracle.TestMode {
		chain = append(chain, pricing.NewSimulated())
	} else if oracle.BaseURL != "" {
		chain = append(chain, pricing.NewOracle(pricing.OracleOptions{
			BaseURL:   oracle.BaseURL,
			APIKey:    oracle.APIKey,
			Timeout:   oracle.RequestTimeout,
			UserAgent: oracle.UserAgent,
		}, a.Logger))
	}
	chain = append(chain, static)

	return pricing.NewCache(pricing.CacheOptions{
		TTL:            oracle.CacheTTL,
		MaxAttempts:    oracle.MaxAttempts,
		InitialBackoff: oracle.InitialBackoff,
		MaxBackoff:     oracle.MaxBackoff,
	}, chain, static.Symbols(), a.Logger)
}

func (a *App) newBalances() balance.Provider {
	return balance.NewSei(balance.SeiOptions{
		EVMRPCURL: a.Config.Sei.EVMRPCURL,
		LCDURL:    a.Config.Sei.LCDURL,
		Timeout:   a.Config.Sei.RequestTimeout,
	}, a.Logger)
}

func (a *App) newValuer(store *storage.Store) *portfolio.Valuer {
	return portfolio.NewValuer(store, a.newBalances(), a.newPriceCache(), a.Logger)
}

func (a *App) newTelegram() *alerting.TelegramNotifier {
	if !a.Config.Alerting.Telegram.Enabled {
		return nil
	}
	cfg := a.Config.Alerting.Telegram
	return alerting.NewTelegramNotifier(cfg.BotToken, cfg.APIBase, 10*time.Second, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if telegram := a.newTelegram(); telegram != nil {
		return telegram
	}
	return nil
}

func (a *App) newTxNotifier() alerting.TxNotifier {
	if telegram := a.newTelegram(); telegram != nil {
		return telegram
	}
	return nil
}

func (a *App) newAdvisor() advisor.Advisor {
	if !a.Config.Advisor.Enabled {
		return nil
	}
	return advisor.NewClient(advisor.Options{
		BaseURL: a.Config.Advisor.BaseURL,
		APIKey:  a.Config.Advisor.APIKey,
		Timeout: a.Config.Advisor.RequestTimeout,
	}, a.Logger)
}

func (a *App) newMonitor(store *storage.Store, withDelivery bool) *monitor.Monitor {
	var notifier alerting.Notifier
	var adviser advisor.Advisor
	if withDelivery {
		notifier = a.newNotifier()
		adviser = a.newAdvisor()
	}

	cfg := a.Config.Monitor
	return monitor.New(monitor.Options{
		TickInterval:    cfg.TickInterval,
		StartupDelay:    cfg.StartupDelay,
		AnchorRefresh:   cfg.AnchorRefresh,
		AlertCooldown:   cfg.AlertCooldown,
		UserTimeout:     cfg.UserTimeout,
		MaxConcurrent:   cfg.MaxConcurrent,
		AdvisoryLockKey: cfg.AdvisoryLockKey,
	}, store, a.newValuer(store), notifier, adviser, store, store, store, a.Logger)
}

func (a *App) newTxMonitor(store *storage.Store) *watch.Monitor {
	scanner := watch.NewScanner(watch.ScannerOptions{
		EVMRPCURL:  a.Config.Sei.EVMRPCURL,
		LCDURL:     a.Config.Sei.LCDURL,
		BlockRange: a.Config.Watch.BlockRange,
		PageLimit:  a.Config.Watch.PageLimit,
		Timeout:    a.Config.Sei.RequestTimeout,
	}, a.Logger)

	cfg := a.Config.Watch
	return watch.New(watch.Options{
		Interval:       cfg.Interval,
		StartupDelay:   cfg.StartupDelay,
		AddressTimeout: cfg.AddressTimeout,
		MaxConcurrent:  cfg.MaxConcurrent,
		ExplorerBase:   cfg.ExplorerBase,
		ChainID:        a.Config.Sei.ChainID,
	}, store, scanner, a.newTxNotifier(), a.Logger)
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) requireStore(ctx context.Context) (*storage.Store, func(), error) {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	if store == nil {
		return nil, nil, errors.New("database.dsn not configured")
	}
	return store, closeStore, nil
}

// Run executes the long-running monitoring service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	mon := a.newMonitor(store, true)

	a.Logger.Info().
		Bool("test_mode", a.Config.Oracle.TestMode).
		Bool("watch_enabled", a.Config.Watch.Enabled).
		Dur("tick_interval", a.Config.Monitor.TickInterval).
		Msg("starting portfolio monitor")

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return mon.Run(groupCtx)
	})
	if a.Config.Watch.Enabled {
		txMon := a.newTxMonitor(store)
		group.Go(func() error {
			return txMon.Run(groupCtx)
		})
	}

	err = group.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("monitor terminated with error")
		return err
	}

	a.Logger.Info().Msg("portfolio monitor stopped")
	return nil
}

// ReportOptions configure the on-demand analytics report.
type ReportOptions struct {
	UserID   int64
	Lookback int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	UserID int64
	Limit  int
	Alerts bool
}

// ExportOptions hold parameters for exporting value history.
type ExportOptions struct {
	UserID    int64
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// SimulateOptions drive a synthetic alert through the delivery pipeline.
type SimulateOptions struct {
	UserID       int64
	AnchorUSD    float64
	CurrentUSD   float64
	ThresholdPct float64
}
