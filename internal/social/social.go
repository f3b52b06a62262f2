// Package social produces social-sentiment signals for a query term. The
// default resolver deterministically simulates plausible output; it sits
// behind the same interface a credentialed API client would satisfy so the
// simulation can be swapped out without touching callers.
package social

import (
	"context"
	"hash/fnv"
	"strings"

	"github.com/trustscope/trustscope/internal/domain"
)

// Resolver produces a social signal for a query. seedScore is the baseline
// trust score for the same entity; resolvers may use it to correlate volume
// with notoriety.
type Resolver interface {
	Resolve(ctx context.Context, query string, seedScore int) (domain.SocialSignal, error)
}

// SimulatedResolver synthesizes a deterministic signal from the query text
// and the seed score. Both very high and very low seeds produce high mention
// volume: prominent legitimate entities and viral scams are talked about;
// mid-score obscurities are not.
type SimulatedResolver struct{}

var _ Resolver = (*SimulatedResolver)(nil)

func NewSimulatedResolver() *SimulatedResolver { return &SimulatedResolver{} }

func (s *SimulatedResolver) Resolve(_ context.Context, query string, seedScore int) (domain.SocialSignal, error) {
	h := hash32(query)

	// 0 at seed 50, 1 at the extremes.
	notoriety := float64(abs(seedScore-50)) / 50.0

	baseMentions := int(h%400) + 25
	mentions := baseMentions + int(float64(baseMentions)*3*notoriety)

	jitter := int(h%21) - 10 // [-10, 10]
	score := clamp(seedScore+jitter, 0, 100)

	return domain.SocialSignal{
		Score:    score,
		Mentions: mentions,
		Trending: mentions > 600,
	}, nil
}

// Source is one independent feed in the multi-source resolver.
type Source interface {
	Name() string
	Fetch(ctx context.Context, query string) (domain.SocialSignal, error)
}

// MultiSourceResolver queries several sources and blends them. A failing
// source contributes a zero-valued signal and never blocks the others.
type MultiSourceResolver struct {
	sources []Source
	seed    Resolver
}

var _ Resolver = (*MultiSourceResolver)(nil)

// NewMultiSourceResolver wires the default simulated feeds: a primary X-like
// stream and two simpler keyword-counting sources.
func NewMultiSourceResolver() *MultiSourceResolver {
	return &MultiSourceResolver{
		sources: []Source{
			simulatedSource{name: "x", weight: 2},
			simulatedSource{name: "reddit", weight: 1},
			simulatedSource{name: "telegram", weight: 1},
		},
		seed: NewSimulatedResolver(),
	}
}

func NewMultiSourceResolverWith(seed Resolver, sources ...Source) *MultiSourceResolver {
	return &MultiSourceResolver{sources: sources, seed: seed}
}

func (m *MultiSourceResolver) Resolve(ctx context.Context, query string, seedScore int) (domain.SocialSignal, error) {
	type result struct {
		sig domain.SocialSignal
		err error
	}
	results := make([]result, len(m.sources))
	done := make(chan int, len(m.sources))
	for i, src := range m.sources {
		go func(i int, src Source) {
			sig, err := src.Fetch(ctx, query)
			results[i] = result{sig: sig, err: err}
			done <- i
		}(i, src)
	}
	for range m.sources {
		<-done
	}

	total := domain.SocialSignal{}
	scored := 0
	for _, r := range results {
		if r.err != nil {
			continue // failed source counts as zero
		}
		total.Mentions += r.sig.Mentions
		total.Score += r.sig.Score
		total.Trending = total.Trending || r.sig.Trending
		scored++
	}
	if scored > 0 {
		total.Score = total.Score / scored
	} else if m.seed != nil {
		// Every source down: fall back to the plain simulated signal so the
		// aggregator still gets a usable value.
		return m.seed.Resolve(ctx, query, seedScore)
	}
	return total, nil
}

// simulatedSource stands in for one real feed, keyed by name so the three
// feeds disagree plausibly for the same query.
type simulatedSource struct {
	name   string
	weight int
}

func (s simulatedSource) Name() string { return s.name }

func (s simulatedSource) Fetch(_ context.Context, query string) (domain.SocialSignal, error) {
	h := hash32(s.name + ":" + query)
	mentions := (int(h%250) + 10) * s.weight
	return domain.SocialSignal{
		Score:    int(h % 101),
		Mentions: mentions,
		Trending: mentions > 400,
	}, nil
}

func hash32(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(s))))
	return h.Sum32()
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
