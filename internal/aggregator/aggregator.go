// Package aggregator is the orchestration hub: it turns (query, chain) into
// one normalized AggregatedSearchData record by combining the chain engine
// fetch, the baseline scorer, the market price resolver, and the social
// signal resolver, with a TTL cache keyed by (chain, normalized query).
package aggregator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/trustscope/trustscope/internal/chains"
	"github.com/trustscope/trustscope/internal/domain"
	"github.com/trustscope/trustscope/internal/market"
	"github.com/trustscope/trustscope/internal/scoring"
	"github.com/trustscope/trustscope/internal/social"
)

const DefaultTTL = 30 * time.Second

// PriceResolver is what the aggregator needs from the market layer.
type PriceResolver interface {
	NativePriceUSD(ctx context.Context, coinID, symbol string) float64
}

var _ PriceResolver = (*market.Resolver)(nil)

type Aggregator struct {
	registry *chains.Registry
	prices   PriceResolver
	social   social.Resolver
	cache    domain.KVCache
	ttl      time.Duration
	logger   *slog.Logger
}

func New(registry *chains.Registry, prices PriceResolver, socialResolver social.Resolver, cache domain.KVCache, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		registry: registry,
		prices:   prices,
		social:   socialResolver,
		cache:    cache,
		ttl:      DefaultTTL,
		logger:   logger.With(slog.String("component", "aggregator")),
	}
}

// WithTTL overrides the result cache TTL. A zero or negative ttl disables
// caching.
func (a *Aggregator) WithTTL(ttl time.Duration) *Aggregator {
	a.ttl = ttl
	return a
}

// Aggregate produces the normalized record for one (query, chain) lookup.
// A cached record within its TTL is returned unchanged. Unknown chains and
// unresolvable queries fail with domain.ErrNotFound.
func (a *Aggregator) Aggregate(ctx context.Context, query, chainID string) (*domain.AggregatedSearchData, error) {
	spec, ok := a.registry.Lookup(chainID)
	if !ok {
		return nil, fmt.Errorf("aggregator: unknown chain %q: %w", chainID, domain.ErrNotFound)
	}
	cacheKey := CacheKey(spec, query)

	if a.ttl > 0 {
		if raw, hit, err := a.cache.Get(ctx, cacheKey); err == nil && hit {
			var cached domain.AggregatedSearchData
			if err := json.Unmarshal(raw, &cached); err == nil {
				return &cached, nil
			}
			// Unreadable entry: drop it and fall through to a fresh fetch.
			_ = a.cache.Delete(ctx, cacheKey)
		}
	}

	engine, ok := a.registry.EngineFor(spec.Key)
	if !ok {
		return nil, fmt.Errorf("aggregator: no engine for chain %q: %w", spec.Key, domain.ErrNotFound)
	}
	data, err := engine.FetchData(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("aggregator: fetch %q on %s: %w", query, spec.Key, err)
	}
	if data == nil {
		return nil, fmt.Errorf("aggregator: entity %q on %s: %w", query, spec.Key, domain.ErrNotFound)
	}

	balanceNative, _ := strconv.ParseFloat(data.Balance, 64)
	signals := scoring.Baseline(scoring.Input{
		TransactionCount: data.TransactionCount,
		BalanceNative:    balanceNative,
		IsContract:       data.IsContract,
		IsToken:          data.Token != nil,
	})

	// Price and social resolution are independent I/O; run them together.
	// The social resolver takes the baseline as its seed, which is why the
	// pure scorer runs before this fan-out.
	socialQuery := data.ResolvedName
	if socialQuery == "" {
		socialQuery = data.Address
	}
	var (
		price     float64
		socialSig domain.SocialSignal
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		price = a.prices.NativePriceUSD(gctx, spec.CoinID, spec.NativeSymbol)
		return nil
	})
	g.Go(func() error {
		sig, err := a.social.Resolve(gctx, socialQuery, signals.BaselineScore)
		if err != nil {
			// Social is advisory: a failed resolve degrades to a zero signal.
			a.logger.Warn("social resolve failed", slog.String("query", socialQuery), slog.String("error", err.Error()))
			return nil
		}
		socialSig = sig
		return nil
	})
	_ = g.Wait()

	var known *domain.KnownEntity
	if k, ok := scoring.LookupKnown(spec.Key, data.Address); ok {
		known = &k
		signals = scoring.ApplyKnownOverride(signals, k)
	}

	portfolio := 0.0
	if price > 0 {
		portfolio = balanceNative * price
	}

	out := &domain.AggregatedSearchData{
		Query:        query,
		ChainID:      spec.Key,
		ChainName:    spec.Name,
		NativeSymbol: spec.NativeSymbol,
		FetchedAt:    time.Now().UTC(),
		Entity: domain.EntityFacts{
			Address:          data.Address,
			ResolvedName:     data.ResolvedName,
			Balance:          data.Balance,
			BalanceNative:    balanceNative,
			TransactionCount: data.TransactionCount,
			IsContract:       data.IsContract,
			CodeSize:         data.CodeSize,
			Token:            data.Token,
		},
		Market: domain.MarketData{
			NativePriceUSD:    price,
			PortfolioValueUSD: portfolio,
		},
		Social:  socialSig,
		Signals: signals,
		Known:   known,
	}

	if a.ttl > 0 {
		if raw, err := json.Marshal(out); err == nil {
			if err := a.cache.Set(ctx, cacheKey, raw, a.ttl); err != nil {
				a.logger.Warn("cache write failed", slog.String("key", cacheKey), slog.String("error", err.Error()))
			}
		}
	}
	return out, nil
}

// CacheKey is the composite cache key for one lookup. The query side is
// canonicalized per the chain's address encoding, so differently formatted
// requests share an entry without conflating the case variants that base58,
// bech32, and c32 treat as distinct addresses.
func CacheKey(spec chains.Spec, query string) string {
	return "agg:" + spec.Key + ":" + spec.NormalizeQuery(query)
}
