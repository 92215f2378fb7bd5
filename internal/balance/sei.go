package balance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var (
	dec1e18 = decimal.NewFromInt(1_000_000_000_000_000_000)
	dec1e6  = decimal.NewFromInt(1_000_000)
)

// SeiOptions parameterise the Sei balance client.
type SeiOptions struct {
	EVMRPCURL string
	LCDURL    string
	Timeout   time.Duration
}

// Sei reads native balances from the Sei network. EVM addresses go through
// the EVM JSON-RPC endpoint, bech32 addresses through the Cosmos LCD REST
// API. Both paths report in SEI.
type Sei struct {
	opts   SeiOptions
	logger zerolog.Logger
	client *http.Client
	lcdURL string

	ethMux sync.Mutex
	eth    *ethclient.Client
}

// NewSei constructs a Sei balance provider.
func NewSei(opts SeiOptions, logger zerolog.Logger) *Sei {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Sei{
		opts:   opts,
		logger: logger.With().Str("component", "sei_balance").Logger(),
		client: &http.Client{Timeout: timeout},
		lcdURL: strings.TrimRight(opts.LCDURL, "/"),
	}
}

// NativeBalance returns the SEI balance for address, dispatching on the
// address shape.
func (s *Sei) NativeBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	address = strings.TrimSpace(address)

	var cancel context.CancelFunc
	if s.opts.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	switch {
	case IsEVMAddress(address):
		return s.evmBalance(ctx, address)
	case IsNativeAddress(address):
		return s.lcdBalance(ctx, address)
	default:
		return decimal.Decimal{}, fmt.Errorf("%w: %s", ErrInvalidAddress, address)
	}
}

func (s *Sei) evmBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	client, err := s.getEthClient(ctx)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("dial evm rpc: %w", err)
	}

	wei, err := client.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("evm balance for %s: %w", address, err)
	}

	return decimal.NewFromBigInt(wei, 0).Div(dec1e18), nil
}

func (s *Sei) lcdBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	endpoint := fmt.Sprintf("%s/cosmos/bank/v1beta1/balances/%s", s.lcdURL, address)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Decimal{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("lcd request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("lcd response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return decimal.Decimal{}, fmt.Errorf("lcd status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var body struct {
		Balances []struct {
			Denom  string `json:"denom"`
			Amount string `json:"amount"`
		} `json:"balances"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse lcd payload: %w", err)
	}

	for _, bal := range body.Balances {
		if bal.Denom != "usei" {
			continue
		}
		usei, err := decimal.NewFromString(bal.Amount)
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("parse usei amount: %w", err)
		}
		return usei.Div(dec1e6), nil
	}

	// No usei entry means a zero balance, not an error.
	return decimal.Zero, nil
}

func (s *Sei) getEthClient(ctx context.Context) (*ethclient.Client, error) {
	s.ethMux.Lock()
	defer s.ethMux.Unlock()

	if s.eth != nil {
		return s.eth, nil
	}

	client, err := ethclient.DialContext(ctx, s.opts.EVMRPCURL)
	if err != nil {
		return nil, err
	}
	s.eth = client
	return client, nil
}

var _ Provider = (*Sei)(nil)
