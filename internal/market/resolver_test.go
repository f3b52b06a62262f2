package market

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustscope/trustscope/internal/cache/memory"
)

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewResolver(http.DefaultClient, memory.NewKVCache(), logger)
}

func TestNativePriceUSDPrimarySource(t *testing.T) {
	var hits int32
	gecko := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte(`{"solana": {"usd": 142.35}}`))
	}))
	defer gecko.Close()

	r := newTestResolver(t)
	r.CoinGeckoURL = gecko.URL

	p := r.NativePriceUSD(context.Background(), "solana", "SOL")
	assert.Equal(t, 142.35, p)

	// Second lookup within the TTL is served from cache.
	p = r.NativePriceUSD(context.Background(), "solana", "SOL")
	assert.Equal(t, 142.35, p)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestNativePriceUSDCoinbaseFallbackForEthereum(t *testing.T) {
	gecko := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer gecko.Close()
	coinbase := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Contains(t, r.URL.Path, "ETH-USD")
		w.Write([]byte(`{"data": {"amount": "3521.18"}}`))
	}))
	defer coinbase.Close()

	r := newTestResolver(t)
	r.CoinGeckoURL = gecko.URL
	r.CoinbaseURL = coinbase.URL

	p := r.NativePriceUSD(context.Background(), "ethereum", "ETH")
	assert.Equal(t, 3521.18, p)
}

func TestNativePriceUSDSymbolFallback(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer failing.Close()
	compare := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "BTC", r.URL.Query().Get("fsym"))
		w.Write([]byte(`{"USD": 97123.5}`))
	}))
	defer compare.Close()

	r := newTestResolver(t)
	r.CoinGeckoURL = failing.URL
	r.CryptoCompareURL = compare.URL

	p := r.NativePriceUSD(context.Background(), "bitcoin", "BTC")
	assert.Equal(t, 97123.5, p)
}

func TestNativePriceUSDServesLastKnownOnTotalFailure(t *testing.T) {
	up := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !up {
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"solana": {"usd": 140}}`))
	}))
	defer srv.Close()

	r := newTestResolver(t)
	r.CoinGeckoURL = srv.URL
	r.CryptoCompareURL = srv.URL

	require.Equal(t, 140.0, r.NativePriceUSD(context.Background(), "solana", "SOL"))

	// Drop the cache entry so the waterfall reruns, then take the source down.
	require.NoError(t, r.cache.Delete(context.Background(), "price:solana"))
	up = false
	assert.Equal(t, 140.0, r.NativePriceUSD(context.Background(), "solana", "SOL"))
}

func TestNativePriceUSDDefaultsAndZero(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	r := newTestResolver(t)
	r.CoinGeckoURL = srv.URL
	r.CoinbaseURL = srv.URL
	r.CryptoCompareURL = srv.URL

	assert.Equal(t, fallbackETHPrice, r.NativePriceUSD(context.Background(), "ethereum", "ETH"),
		"ethereum gets the hardcoded default with nothing cached")
	assert.Equal(t, 0.0, r.NativePriceUSD(context.Background(), "the-open-network", "TON"),
		"other chains degrade to zero")
	assert.Equal(t, 0.0, r.NativePriceUSD(context.Background(), "", ""))
}
