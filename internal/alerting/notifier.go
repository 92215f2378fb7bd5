package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Notification carries the context of one portfolio drop alert.
type Notification struct {
	UserID       int64
	CurrentUSD   decimal.Decimal
	AnchorUSD    decimal.Decimal
	DropPct      decimal.Decimal
	ThresholdPct decimal.Decimal
	Advisory     string
	ObservedAt   time.Time
}

// TxNotification carries the context of one observed transaction on a
// watched address.
type TxNotification struct {
	UserID      int64
	Address     string
	Hash        string
	Kind        string
	Direction   string
	Block       string
	AmountSEI   decimal.Decimal
	ExplorerURL string
	ObservedAt  time.Time
}

// Notifier delivers alerts to users. Delivery is best effort: the caller
// logs failures and never retries.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TxNotifier delivers transaction notifications for watched addresses.
type TxNotifier interface {
	NotifyTransaction(ctx context.Context, notification TxNotification) error
}

// TelegramNotifier pushes alerts through the Telegram Bot API. The chat id
// is the Telegram user id of the alert's recipient.
type TelegramNotifier struct {
	botToken string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier constructs the Telegram delivery channel.
func NewTelegramNotifier(botToken, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify sends the rendered alert text via the sendMessage API.
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	if err := n.sendText(ctx, note.UserID, renderMessage(note)); err != nil {
		return err
	}

	n.logger.Info().Int64("user_id", note.UserID).
		Str("drop_pct", note.DropPct.StringFixed(1)).
		Msg("alert delivered via telegram")
	return nil
}

// NotifyTransaction sends a watched-address transaction notice.
func (n *TelegramNotifier) NotifyTransaction(ctx context.Context, note TxNotification) error {
	if err := n.sendText(ctx, note.UserID, renderTxMessage(note)); err != nil {
		return err
	}

	n.logger.Info().Int64("user_id", note.UserID).
		Str("address", note.Address).
		Str("tx_hash", note.Hash).
		Msg("transaction notice delivered via telegram")
	return nil
}

func (n *TelegramNotifier) sendText(ctx context.Context, chatID int64, text string) error {
	payload := map[string]string{
		"chat_id": strconv.FormatInt(chatID, 10),
		"text":    text,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram unexpected status: %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}
	return nil
}

func renderMessage(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString("[Portfolio Alert]\n")
	builder.WriteString(fmt.Sprintf("Your portfolio dropped %s%% from $%s to $%s\n",
		note.DropPct.StringFixed(1), note.AnchorUSD.StringFixed(2), note.CurrentUSD.StringFixed(2)))
	builder.WriteString(fmt.Sprintf("Alert threshold: %s%%\n", note.ThresholdPct.StringFixed(1)))
	if !note.ObservedAt.IsZero() {
		builder.WriteString(fmt.Sprintf("Observed: %s UTC\n", note.ObservedAt.UTC().Format(time.RFC3339)))
	}
	if note.Advisory != "" {
		builder.WriteString(fmt.Sprintf("Insight: %s\n", note.Advisory))
	}
	return builder.String()
}

func renderTxMessage(note TxNotification) string {
	builder := strings.Builder{}
	builder.WriteString("[Transaction Alert]\n")
	builder.WriteString(fmt.Sprintf("Address: %s...\n", shortHex(note.Address)))
	builder.WriteString(fmt.Sprintf("Type: %s\n", note.Kind))
	if note.Direction != "" {
		builder.WriteString(fmt.Sprintf("Direction: %s\n", note.Direction))
	}
	if note.AmountSEI.IsPositive() {
		builder.WriteString(fmt.Sprintf("Amount: %s SEI\n", note.AmountSEI.String()))
	}
	if note.Block != "" {
		builder.WriteString(fmt.Sprintf("Block: %s\n", note.Block))
	}
	builder.WriteString(fmt.Sprintf("Hash: %s...\n", shortHex(note.Hash)))
	if note.ExplorerURL != "" {
		builder.WriteString(fmt.Sprintf("Explorer: %s\n", note.ExplorerURL))
	}
	return builder.String()
}

func shortHex(s string) string {
	if len(s) <= 10 {
		return s
	}
	return s[:10]
}

var (
	_ Notifier   = (*TelegramNotifier)(nil)
	_ TxNotifier = (*TelegramNotifier)(nil)
)
