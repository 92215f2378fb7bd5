package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// OracleOptions parameterise the live price oracle source.
type OracleOptions struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	UserAgent string
}

// Oracle fetches USD prices from the Rivalz ADCS price endpoint.
type Oracle struct {
	opts    OracleOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewOracle constructs the primary oracle source.
func NewOracle(opts OracleOptions, logger zerolog.Logger) *Oracle {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.rivalz.ai/adcs/v1"
	}

	return &Oracle{
		opts:    opts,
		logger:  logger.With().Str("component", "price_oracle").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// Name identifies the source in logs.
func (o *Oracle) Name() string { return "oracle" }

// Tier reports the confidence tier of quotes produced by this source.
func (o *Oracle) Tier() Tier { return TierPrimary }

// Quote retrieves the current USD price for symbol.
func (o *Oracle) Quote(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if o.opts.APIKey == "" {
		return decimal.Decimal{}, Permanent(errors.New("oracle api key not configured"))
	}

	endpoint := fmt.Sprintf("%s/price/%s", o.baseURL, strings.ToUpper(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Decimal{}, Permanent(err)
	}
	req.Header.Set("Authorization", "Bearer "+o.opts.APIKey)
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(o.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("oracle request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("oracle response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return decimal.Decimal{}, Permanent(fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol))
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return decimal.Decimal{}, Permanent(parseOracleError(resp.StatusCode, payload))
	default:
		return decimal.Decimal{}, parseOracleError(resp.StatusCode, payload)
	}

	var body struct {
		Price *float64 `json:"price"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return decimal.Decimal{}, Permanent(fmt.Errorf("parse oracle payload: %w", err))
	}
	if body.Price == nil || *body.Price <= 0 {
		return decimal.Decimal{}, Permanent(fmt.Errorf("oracle returned no usable price for %s", symbol))
	}

	price := decimal.NewFromFloat(*body.Price)
	o.logger.Debug().Str("symbol", symbol).Str("price", price.String()).Msg("oracle price fetched")
	return price, nil
}

type oracleErrorResponse struct {
	Message     string `json:"message"`
	Description string `json:"description"`
}

func parseOracleError(status int, payload []byte) error {
	var apiErr oracleErrorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Description != "" {
			return fmt.Errorf("oracle error (%d): %s", status, apiErr.Description)
		}
		if apiErr.Message != "" {
			return fmt.Errorf("oracle error (%d): %s", status, apiErr.Message)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("oracle error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("oracle error (%d)", status)
}

var _ Source = (*Oracle)(nil)
