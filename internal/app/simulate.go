package app

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"portfolio-drop-alerts/internal/advisor"
	"portfolio-drop-alerts/internal/alerting"
)

// SimulateAlert drives a synthetic drop through the advisory and delivery
// pipeline without touching chain, oracle, or database.
func (a *App) SimulateAlert(ctx context.Context, opts SimulateOptions) error {
	if opts.AnchorUSD <= 0 || opts.CurrentUSD <= 0 {
		return errors.New("--anchor and --current must be greater than 0")
	}
	if opts.ThresholdPct <= 0 {
		return errors.New("--threshold must be greater than 0")
	}

	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("no alert channel configured")
	}

	anchor := decimal.NewFromFloat(opts.AnchorUSD)
	current := decimal.NewFromFloat(opts.CurrentUSD)
	dropPct := anchor.Sub(current).Div(anchor).Mul(decimal.NewFromInt(100))

	advice := ""
	if adviser := a.newAdvisor(); adviser != nil {
		advice = adviser.Advise(ctx, advisor.AlertPrompt(), advisor.DropContext(
			dropPct.InexactFloat64(), opts.AnchorUSD, opts.CurrentUSD, opts.ThresholdPct))
	}

	note := alerting.Notification{
		UserID:       opts.UserID,
		CurrentUSD:   current,
		AnchorUSD:    anchor,
		DropPct:      dropPct,
		ThresholdPct: decimal.NewFromFloat(opts.ThresholdPct),
		Advisory:     advice,
		ObservedAt:   time.Now().UTC(),
	}

	a.Logger.Info().Int64("user_id", opts.UserID).
		Str("drop_pct", dropPct.StringFixed(1)).
		Msg("sending simulated alert")
	return notifier.Notify(ctx, note)
}
