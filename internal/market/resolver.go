// Package market resolves native-currency USD prices through a waterfall of
// public quote APIs. Resolution never fails: after the waterfall is exhausted
// it degrades to the last known price, then a default, then zero. A zero
// price means "unknown" and suppresses downstream value calculations.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/trustscope/trustscope/internal/domain"
)

const (
	priceTTL = 60 * time.Second

	// fallbackETHPrice is served only for the Ethereum coin ID when every
	// source has failed and nothing was ever cached.
	fallbackETHPrice = 3000.0
)

// Resolver resolves USD prices with the source order: CoinGecko by coin ID,
// Coinbase spot (Ethereum only), CryptoCompare by ticker symbol.
type Resolver struct {
	client *http.Client
	cache  domain.KVCache
	logger *slog.Logger

	// Base URLs are fields so tests can point the waterfall at fakes.
	CoinGeckoURL     string
	CoinbaseURL      string
	CryptoCompareURL string

	mu        sync.Mutex
	lastKnown map[string]float64
}

func NewResolver(client *http.Client, cache domain.KVCache, logger *slog.Logger) *Resolver {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Resolver{
		client:           client,
		cache:            cache,
		logger:           logger.With(slog.String("component", "market")),
		CoinGeckoURL:     "https://api.coingecko.com/api/v3",
		CoinbaseURL:      "https://api.coinbase.com/v2",
		CryptoCompareURL: "https://min-api.cryptocompare.com",
		lastKnown:        make(map[string]float64),
	}
}

// NativePriceUSD resolves the USD price for a native currency identified by
// its canonical coin ID and ticker symbol. It never returns an error.
func (r *Resolver) NativePriceUSD(ctx context.Context, coinID, symbol string) float64 {
	key := coinID
	if key == "" {
		key = strings.ToLower(symbol)
	}
	if key == "" {
		return 0
	}
	cacheKey := "price:" + key

	if raw, ok, err := r.cache.Get(ctx, cacheKey); err == nil && ok {
		if p, err := strconv.ParseFloat(string(raw), 64); err == nil {
			return p
		}
	}

	price := r.resolve(ctx, coinID, symbol)
	if price > 0 {
		if err := r.cache.Set(ctx, cacheKey, []byte(strconv.FormatFloat(price, 'f', -1, 64)), priceTTL); err != nil {
			r.logger.Warn("price cache write failed", slog.String("key", key), slog.String("error", err.Error()))
		}
		r.mu.Lock()
		r.lastKnown[key] = price
		r.mu.Unlock()
		return price
	}

	// Waterfall exhausted: last known, then the ETH default, then zero.
	r.mu.Lock()
	last, ok := r.lastKnown[key]
	r.mu.Unlock()
	if ok {
		r.logger.Warn("all price sources failed, serving last known", slog.String("key", key), slog.Float64("price", last))
		return last
	}
	if coinID == "ethereum" {
		r.logger.Warn("all price sources failed, serving default", slog.String("key", key))
		return fallbackETHPrice
	}
	return 0
}

func (r *Resolver) resolve(ctx context.Context, coinID, symbol string) float64 {
	if coinID != "" {
		if p, err := r.fromCoinGecko(ctx, coinID); err == nil && p > 0 {
			return p
		} else if err != nil {
			r.logger.Warn("coingecko lookup failed", slog.String("coin", coinID), slog.String("error", err.Error()))
		}
	}
	if coinID == "ethereum" {
		if p, err := r.fromCoinbase(ctx, "ETH"); err == nil && p > 0 {
			return p
		} else if err != nil {
			r.logger.Warn("coinbase lookup failed", slog.String("error", err.Error()))
		}
	}
	if symbol != "" {
		if p, err := r.fromCryptoCompare(ctx, symbol); err == nil && p > 0 {
			return p
		} else if err != nil {
			r.logger.Warn("cryptocompare lookup failed", slog.String("symbol", symbol), slog.String("error", err.Error()))
		}
	}
	return 0
}

func (r *Resolver) fromCoinGecko(ctx context.Context, coinID string) (float64, error) {
	u := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd", r.CoinGeckoURL, url.QueryEscape(coinID))
	var out map[string]struct {
		USD float64 `json:"usd"`
	}
	if err := r.getJSON(ctx, u, &out); err != nil {
		return 0, err
	}
	entry, ok := out[coinID]
	if !ok {
		return 0, fmt.Errorf("market: coingecko: no entry for %q", coinID)
	}
	return entry.USD, nil
}

func (r *Resolver) fromCoinbase(ctx context.Context, symbol string) (float64, error) {
	u := fmt.Sprintf("%s/prices/%s-USD/spot", r.CoinbaseURL, url.PathEscape(symbol))
	var out struct {
		Data struct {
			Amount string `json:"amount"`
		} `json:"data"`
	}
	if err := r.getJSON(ctx, u, &out); err != nil {
		return 0, err
	}
	p, err := strconv.ParseFloat(out.Data.Amount, 64)
	if err != nil {
		return 0, fmt.Errorf("market: coinbase: parse amount %q: %w", out.Data.Amount, err)
	}
	return p, nil
}

func (r *Resolver) fromCryptoCompare(ctx context.Context, symbol string) (float64, error) {
	// Ticker normalization: CryptoCompare keys wrapped assets by the base
	// symbol.
	sym := strings.ToUpper(strings.TrimPrefix(symbol, "L-"))
	u := fmt.Sprintf("%s/data/price?fsym=%s&tsyms=USD", r.CryptoCompareURL, url.QueryEscape(sym))
	var out map[string]float64
	if err := r.getJSON(ctx, u, &out); err != nil {
		return 0, err
	}
	return out["USD"], nil
}

func (r *Resolver) getJSON(ctx context.Context, url string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("market: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("market: request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("market: read response: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("market: status %d: %w", resp.StatusCode, domain.ErrRateLimited)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("market: status %d: %w", resp.StatusCode, domain.ErrUpstream)
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("market: decode response: %w", err)
	}
	return nil
}
