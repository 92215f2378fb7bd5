// Package watch polls watched addresses for new transactions and notifies
// their owners.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"portfolio-drop-alerts/internal/balance"
)

const (
	KindEVM    = "EVM"
	KindNative = "SEI"

	DirectionIncoming = "incoming"
	DirectionOutgoing = "outgoing"
)

var (
	dec1e18 = decimal.NewFromInt(1_000_000_000_000_000_000)
	dec1e6  = decimal.NewFromInt(1_000_000)
)

// Transaction is one observed transfer touching a watched address.
type Transaction struct {
	Hash      string
	Kind      string
	Direction string
	Block     string
	AmountSEI decimal.Decimal
}

// Source lists recent transactions touching an address, newest first.
type Source interface {
	RecentTransactions(ctx context.Context, address string) ([]Transaction, error)
}

// ScannerOptions parameterise the transaction scanner.
type ScannerOptions struct {
	EVMRPCURL  string
	LCDURL     string
	BlockRange uint64
	PageLimit  int
	Timeout    time.Duration
}

// Scanner reads recent transactions from the Sei network. EVM addresses are
// resolved by walking the newest blocks over JSON-RPC, bech32 addresses by
// querying the Cosmos LCD tx search endpoint.
type Scanner struct {
	opts   ScannerOptions
	logger zerolog.Logger
	client *http.Client
	lcdURL string

	rpcMux sync.Mutex
	rpc    *rpc.Client
}

// NewScanner constructs a transaction scanner.
func NewScanner(opts ScannerOptions, logger zerolog.Logger) *Scanner {
	if opts.BlockRange == 0 {
		opts.BlockRange = 10
	}
	if opts.PageLimit <= 0 {
		opts.PageLimit = 20
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Scanner{
		opts:   opts,
		logger: logger.With().Str("component", "tx_scanner").Logger(),
		client: &http.Client{Timeout: timeout},
		lcdURL: strings.TrimRight(opts.LCDURL, "/"),
	}
}

// RecentTransactions returns transactions touching address, newest first,
// dispatching on the address shape.
func (s *Scanner) RecentTransactions(ctx context.Context, address string) ([]Transaction, error) {
	address = strings.TrimSpace(address)

	var cancel context.CancelFunc
	if s.opts.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	switch {
	case balance.IsEVMAddress(address):
		return s.evmTransactions(ctx, address)
	case balance.IsNativeAddress(address):
		return s.lcdTransactions(ctx, address)
	default:
		return nil, fmt.Errorf("%w: %s", balance.ErrInvalidAddress, address)
	}
}

type evmTx struct {
	Hash  string `json:"hash"`
	From  string `json:"from"`
	To    string `json:"to"`
	Value string `json:"value"`
}

type evmBlock struct {
	Transactions []evmTx `json:"transactions"`
}

func (s *Scanner) evmTransactions(ctx context.Context, address string) ([]Transaction, error) {
	client, err := s.getRPCClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("dial evm rpc: %w", err)
	}

	var latestHex string
	if err := client.CallContext(ctx, &latestHex, "eth_blockNumber"); err != nil {
		return nil, fmt.Errorf("latest block: %w", err)
	}
	latest, err := hexutil.DecodeUint64(latestHex)
	if err != nil {
		return nil, fmt.Errorf("parse block number %q: %w", latestHex, err)
	}

	var start uint64
	if latest >= s.opts.BlockRange {
		start = latest - s.opts.BlockRange + 1
	}

	var txs []Transaction
	for number := latest; ; number-- {
		var block *evmBlock
		if err := client.CallContext(ctx, &block, "eth_getBlockByNumber", hexutil.EncodeUint64(number), true); err != nil {
			return nil, fmt.Errorf("block %d: %w", number, err)
		}
		if block != nil {
			// Reverse order keeps the newest transaction first.
			for i := len(block.Transactions) - 1; i >= 0; i-- {
				tx := block.Transactions[i]
				var direction string
				switch {
				case strings.EqualFold(tx.From, address):
					direction = DirectionOutgoing
				case strings.EqualFold(tx.To, address):
					direction = DirectionIncoming
				default:
					continue
				}
				txs = append(txs, Transaction{
					Hash:      tx.Hash,
					Kind:      KindEVM,
					Direction: direction,
					Block:     strconv.FormatUint(number, 10),
					AmountSEI: weiToSei(tx.Value),
				})
			}
		}
		if number == start {
			break
		}
	}
	return txs, nil
}

// lcdTransactions merges the recipient and sender event queries since the
// LCD tx search matches one event filter at a time.
func (s *Scanner) lcdTransactions(ctx context.Context, address string) ([]Transaction, error) {
	incoming, err := s.lcdQuery(ctx, address, fmt.Sprintf("transfer.recipient='%s'", address))
	if err != nil {
		return nil, err
	}
	outgoing, err := s.lcdQuery(ctx, address, fmt.Sprintf("transfer.sender='%s'", address))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(incoming)+len(outgoing))
	merged := make([]Transaction, 0, len(incoming)+len(outgoing))
	for _, tx := range append(incoming, outgoing...) {
		if _, ok := seen[tx.Hash]; ok {
			continue
		}
		seen[tx.Hash] = struct{}{}
		merged = append(merged, tx)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return blockHeight(merged[i].Block) > blockHeight(merged[j].Block)
	})
	return merged, nil
}

func (s *Scanner) lcdQuery(ctx context.Context, address, events string) ([]Transaction, error) {
	params := url.Values{}
	params.Set("events", events)
	params.Set("pagination.limit", strconv.Itoa(s.opts.PageLimit))
	params.Set("order_by", "ORDER_BY_DESC")

	endpoint := fmt.Sprintf("%s/cosmos/tx/v1beta1/txs?%s", s.lcdURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lcd tx request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("lcd tx response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("lcd tx status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var body struct {
		TxResponses []struct {
			TxHash string `json:"txhash"`
			Height string `json:"height"`
			Tx     struct {
				Body struct {
					Messages []lcdMessage `json:"messages"`
				} `json:"body"`
			} `json:"tx"`
		} `json:"tx_responses"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("parse lcd tx payload: %w", err)
	}

	txs := make([]Transaction, 0, len(body.TxResponses))
	for _, item := range body.TxResponses {
		direction, amount := classifyMessages(item.Tx.Body.Messages, address)
		txs = append(txs, Transaction{
			Hash:      item.TxHash,
			Kind:      KindNative,
			Direction: direction,
			Block:     item.Height,
			AmountSEI: amount,
		})
	}
	return txs, nil
}

type lcdMessage struct {
	Type        string `json:"@type"`
	FromAddress string `json:"from_address"`
	ToAddress   string `json:"to_address"`
	Amount      []struct {
		Denom  string `json:"denom"`
		Amount string `json:"amount"`
	} `json:"amount"`
}

// classifyMessages derives the transfer direction and SEI amount from the
// first bank send involving the address. Other message types leave the
// direction empty.
func classifyMessages(messages []lcdMessage, address string) (string, decimal.Decimal) {
	for _, msg := range messages {
		if msg.Type != "/cosmos.bank.v1beta1.MsgSend" {
			continue
		}

		var direction string
		switch {
		case msg.FromAddress == address:
			direction = DirectionOutgoing
		case msg.ToAddress == address:
			direction = DirectionIncoming
		default:
			continue
		}

		amount := decimal.Zero
		for _, coin := range msg.Amount {
			if coin.Denom != "usei" {
				continue
			}
			if usei, err := decimal.NewFromString(coin.Amount); err == nil {
				amount = amount.Add(usei.Div(dec1e6))
			}
		}
		return direction, amount
	}
	return "", decimal.Zero
}

func weiToSei(hexWei string) decimal.Decimal {
	if hexWei == "" {
		return decimal.Zero
	}
	wei, err := hexutil.DecodeBig(hexWei)
	if err != nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(wei, 0).Div(dec1e18)
}

func blockHeight(block string) int64 {
	height, _ := strconv.ParseInt(block, 10, 64)
	return height
}

func (s *Scanner) getRPCClient(ctx context.Context) (*rpc.Client, error) {
	s.rpcMux.Lock()
	defer s.rpcMux.Unlock()

	if s.rpc != nil {
		return s.rpc, nil
	}

	client, err := rpc.DialContext(ctx, s.opts.EVMRPCURL)
	if err != nil {
		return nil, err
	}
	s.rpc = client
	return client, nil
}

var _ Source = (*Scanner)(nil)
