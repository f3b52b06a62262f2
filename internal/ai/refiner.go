package ai

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/trustscope/trustscope/internal/domain"
)

const refineCacheTTL = 60 * time.Second

// Refiner turns an aggregated record into a final trust verdict, asking the
// model when one is configured and falling back to the baseline score
// otherwise. Refine never fails: every path produces a usable result.
type Refiner struct {
	model  Completer
	cache  domain.KVCache
	logger *slog.Logger
}

func NewRefiner(model Completer, cache domain.KVCache, logger *slog.Logger) *Refiner {
	return &Refiner{
		model:  model,
		cache:  cache,
		logger: logger.With(slog.String("component", "refiner")),
	}
}

// Refine produces the trust verdict for one aggregated record. Successful
// model responses are cached by (chain, address) for a short TTL to absorb
// duplicate lookups of the same entity.
func (r *Refiner) Refine(ctx context.Context, agg *domain.AggregatedSearchData) domain.TrustRefinementResult {
	if !r.model.Enabled() {
		return r.fallback(agg)
	}

	cacheKey := "refine:" + agg.ChainID + ":" + strings.ToLower(agg.Entity.Address)
	if raw, hit, err := r.cache.Get(ctx, cacheKey); err == nil && hit {
		var cached domain.TrustRefinementResult
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached
		}
	}

	resp, err := r.model.Complete(ctx, RefinePrompt(agg))
	if err != nil {
		r.logger.Warn("model call failed, serving baseline",
			slog.String("chain", agg.ChainID), slog.String("address", agg.Entity.Address), slog.String("error", err.Error()))
		return r.fallback(agg)
	}
	score, summary, err := ParseRefinement(resp)
	if err != nil {
		r.logger.Warn("unparseable model response, serving baseline",
			slog.String("chain", agg.ChainID), slog.String("error", err.Error()))
		return r.fallback(agg)
	}

	result := domain.TrustRefinementResult{
		TrustScore: score,
		Summary:    summary,
		RiskLevel:  domain.RiskLevelFor(score),
		Source:     "ai",
	}
	if raw, err := json.Marshal(result); err == nil {
		if err := r.cache.Set(ctx, cacheKey, raw, refineCacheTTL); err != nil {
			r.logger.Warn("refinement cache write failed", slog.String("key", cacheKey), slog.String("error", err.Error()))
		}
	}
	return result
}

// RefineMulti produces one verdict across several per-chain analyses. The
// model gets one retry with a stricter JSON-only instruction before the
// deterministic fallback takes over.
func (r *Refiner) RefineMulti(ctx context.Context, results []domain.AnalysisResult) domain.TrustRefinementResult {
	if !r.model.Enabled() || len(results) == 0 {
		return r.fallbackMulti(results)
	}

	prompt := MultiChainPrompt(results)
	resp, err := r.model.Complete(ctx, prompt)
	if err == nil {
		if verdict, err := ParseMultiChain(resp); err == nil {
			return verdict
		}
		// One retry, JSON only.
		resp, err = r.model.Complete(ctx, prompt+strictJSONRetrySuffix)
		if err == nil {
			if verdict, err := ParseMultiChain(resp); err == nil {
				return verdict
			}
		}
	}
	if err != nil {
		r.logger.Warn("multi-chain model call failed, serving baseline", slog.String("error", err.Error()))
	} else {
		r.logger.Warn("multi-chain response unparseable after retry, serving baseline")
	}
	return r.fallbackMulti(results)
}

func (r *Refiner) fallback(agg *domain.AggregatedSearchData) domain.TrustRefinementResult {
	return BaselineResult(agg)
}

// BaselineResult is the deterministic verdict derived from the aggregated
// record alone. The pipeline also uses it when the model call is skipped, for
// example under rate limiting.
func BaselineResult(agg *domain.AggregatedSearchData) domain.TrustRefinementResult {
	score := agg.Signals.BaselineScore
	return domain.TrustRefinementResult{
		TrustScore: score,
		Summary:    FallbackSummary(score),
		RiskLevel:  domain.RiskLevelFor(score),
		Source:     "baseline",
	}
}

func (r *Refiner) fallbackMulti(results []domain.AnalysisResult) domain.TrustRefinementResult {
	if len(results) == 0 {
		return domain.TrustRefinementResult{
			TrustScore: 0,
			Summary:    "No per-chain results to assess.",
			RiskLevel:  domain.RiskHigh,
			Source:     "baseline",
		}
	}
	scores := make([]int, len(results))
	sum := 0
	for i, res := range results {
		scores[i] = res.Score
		sum += res.Score
	}
	avg := sum / len(results)
	return domain.TrustRefinementResult{
		TrustScore: avg,
		Summary:    fallbackMultiChainSummary(scores),
		RiskLevel:  domain.RiskLevelFor(avg),
		Source:     "baseline",
	}
}
