package pricing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// CacheOptions tune TTL and retry behaviour.
type CacheOptions struct {
	TTL            time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

type cacheEntry struct {
	quote     Quote
	expiresAt time.Time
}

type inflightFetch struct {
	done  chan struct{}
	quote Quote
	err   error
}

// Cache answers price lookups from a short-lived per-symbol cache, walking
// an ordered source chain on miss. Upstream failure degrades the quote's
// tier; it is never surfaced to callers.
type Cache struct {
	opts      CacheOptions
	chain     []Source
	supported map[string]struct{}
	logger    zerolog.Logger

	mu      sync.RWMutex
	entries map[string]cacheEntry

	inflightMu sync.Mutex
	inflight   map[string]*inflightFetch

	now func() time.Time
}

// NewCache wires the source chain, primary first. The terminal source
// defines the supported symbol set.
func NewCache(opts CacheOptions, chain []Source, supported []string, logger zerolog.Logger) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = 500 * time.Millisecond
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 2 * time.Second
	}

	supportedSet := make(map[string]struct{}, len(supported))
	for _, symbol := range supported {
		supportedSet[strings.ToUpper(symbol)] = struct{}{}
	}

	return &Cache{
		opts:      opts,
		chain:     chain,
		supported: supportedSet,
		logger:    logger.With().Str("component", "price_cache").Logger(),
		entries:   make(map[string]cacheEntry),
		inflight:  make(map[string]*inflightFetch),
		now:       time.Now,
	}
}

// Quote returns a price quote for symbol. A valid cached entry is served
// without network access; concurrent misses for the same symbol share a
// single upstream fetch. The only possible error is ErrUnknownSymbol.
func (c *Cache) Quote(ctx context.Context, symbol string) (Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if _, ok := c.supported[symbol]; !ok {
		return Quote{}, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}

	if quote, ok := c.lookup(symbol); ok {
		return quote, nil
	}

	flight, leader := c.join(symbol)
	if !leader {
		select {
		case <-flight.done:
			return flight.quote, flight.err
		case <-ctx.Done():
			return Quote{}, ctx.Err()
		}
	}

	quote, err := c.fetch(ctx, symbol)
	if err == nil {
		c.store(symbol, quote)
	}

	flight.quote = quote
	flight.err = err
	c.leave(symbol, flight)
	return quote, err
}

// Quotes resolves several symbols, skipping unknown ones.
func (c *Cache) Quotes(ctx context.Context, symbols []string) (map[string]Quote, error) {
	quotes := make(map[string]Quote, len(symbols))
	for _, symbol := range symbols {
		quote, err := c.Quote(ctx, symbol)
		if err != nil {
			if errors.Is(err, ErrUnknownSymbol) {
				c.logger.Warn().Str("symbol", symbol).Msg("skipping unknown symbol")
				continue
			}
			return nil, err
		}
		quotes[quote.Symbol] = quote
	}
	return quotes, nil
}

func (c *Cache) lookup(symbol string) (Quote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[symbol]
	if !ok || !c.now().Before(entry.expiresAt) {
		return Quote{}, false
	}
	return entry.quote, true
}

func (c *Cache) store(symbol string, quote Quote) {
	c.mu.Lock()
	c.entries[symbol] = cacheEntry{quote: quote, expiresAt: c.now().Add(c.opts.TTL)}
	c.mu.Unlock()
}

// join registers interest in an in-flight fetch for symbol. The first
// caller becomes the leader and performs the fetch; later callers wait on
// the returned flight.
func (c *Cache) join(symbol string) (*inflightFetch, bool) {
	c.inflightMu.Lock()
	defer c.inflightMu.Unlock()

	if flight, ok := c.inflight[symbol]; ok {
		return flight, false
	}

	flight := &inflightFetch{done: make(chan struct{})}
	c.inflight[symbol] = flight
	return flight, true
}

func (c *Cache) leave(symbol string, flight *inflightFetch) {
	c.inflightMu.Lock()
	delete(c.inflight, symbol)
	c.inflightMu.Unlock()
	close(flight.done)
}

// fetch walks the source chain. Transient failures are retried with
// exponential backoff; permanent ones skip straight to the next source.
func (c *Cache) fetch(ctx context.Context, symbol string) (Quote, error) {
	var lastErr error

	for _, source := range c.chain {
		for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
			price, err := source.Quote(ctx, symbol)
			if err == nil {
				quote := Quote{
					Symbol:     symbol,
					USD:        price,
					ObservedAt: c.now().UTC(),
					Tier:       source.Tier(),
				}
				if quote.Tier != TierPrimary {
					c.logger.Debug().Str("symbol", symbol).Str("source", source.Name()).Msg("serving degraded quote")
				}
				return quote, nil
			}

			lastErr = err
			if IsPermanent(err) {
				c.logger.Debug().Err(err).Str("symbol", symbol).Str("source", source.Name()).Msg("source failed permanently")
				break
			}

			c.logger.Warn().Err(err).
				Str("symbol", symbol).
				Str("source", source.Name()).
				Int("attempt", attempt).
				Msg("source fetch failed")

			if attempt == c.opts.MaxAttempts {
				break
			}
			if err := c.sleep(ctx, c.backoff(attempt)); err != nil {
				return Quote{}, err
			}
		}
	}

	return Quote{}, fmt.Errorf("all price sources failed for %s: %w", symbol, lastErr)
}

func (c *Cache) backoff(attempt int) time.Duration {
	delay := c.opts.InitialBackoff
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.opts.MaxBackoff {
			return c.opts.MaxBackoff
		}
	}
	if delay > c.opts.MaxBackoff {
		return c.opts.MaxBackoff
	}
	return delay
}

func (c *Cache) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
