// Package advisor wraps the optional AI advisory endpoint. The advisory
// text only decorates alerts and reports; every failure path degrades to a
// static line so the caller's output stays meaningful without it.
package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// FallbackAdvice is returned whenever the upstream cannot answer in time.
const FallbackAdvice = "This appears to be normal market volatility."

// Advisor produces a short advisory line for the given prompt and context.
type Advisor interface {
	Advise(ctx context.Context, prompt string, promptCtx map[string]any) string
}

// Options parameterise the advisory client.
type Options struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client calls an ElizaOS-style /advise endpoint with a bounded timeout.
type Client struct {
	opts    Options
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewClient constructs an advisory client.
func NewClient(opts Options, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	return &Client{
		opts:    opts,
		logger:  logger.With().Str("component", "advisor").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
	}
}

// Advise requests advisory text. It never returns an error: timeouts,
// transport failures, and empty answers all fall back to FallbackAdvice.
func (c *Client) Advise(ctx context.Context, prompt string, promptCtx map[string]any) string {
	if c.baseURL == "" || c.opts.APIKey == "" {
		return FallbackAdvice
	}

	body, err := json.Marshal(map[string]any{
		"prompt":  prompt,
		"context": promptCtx,
	})
	if err != nil {
		c.logger.Error().Err(err).Msg("marshal advisory payload")
		return FallbackAdvice
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/advise", bytes.NewReader(body))
	if err != nil {
		return FallbackAdvice
	}
	req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Msg("advisory request failed")
		return FallbackAdvice
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn().Int("status", resp.StatusCode).Msg("advisory returned non-200")
		return FallbackAdvice
	}

	var result struct {
		Advice string `json:"advice"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		c.logger.Warn().Err(err).Msg("parse advisory response")
		return FallbackAdvice
	}
	if strings.TrimSpace(result.Advice) == "" {
		return FallbackAdvice
	}
	return result.Advice
}

// AlertPrompt frames the drop-alert advisory request.
func AlertPrompt() string {
	return "A user's crypto portfolio dropped past their alert threshold. " +
		"Give one short, calm sentence of context. No financial advice."
}

// DropContext packages alert numbers for the advisory call.
func DropContext(dropPct, anchorUSD, currentUSD, thresholdPct float64) map[string]any {
	return map[string]any{
		"drop_pct":        fmt.Sprintf("%.2f", dropPct),
		"anchor_usd":      fmt.Sprintf("%.2f", anchorUSD),
		"current_usd":     fmt.Sprintf("%.2f", currentUSD),
		"alert_threshold": fmt.Sprintf("%.2f", thresholdPct),
	}
}

var _ Advisor = (*Client)(nil)
