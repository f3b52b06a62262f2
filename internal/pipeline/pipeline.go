// Package pipeline composes aggregation, AI refinement, auditing, and event
// publication into the scan operations the API serves. It owns the short-TTL
// result cache, the per-stage timeouts, and the token bucket protecting the
// model quota.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/trustscope/trustscope/internal/ai"
	"github.com/trustscope/trustscope/internal/chains"
	"github.com/trustscope/trustscope/internal/domain"
)

const (
	// ResultTTL is how long a finished scan response is served from cache.
	ResultTTL = 60 * time.Second

	// StageTimeout bounds each external stage (aggregation, refinement).
	StageTimeout = 3 * time.Second

	// AIRateLimit and AIRateWindow protect the model quota; scans beyond the
	// budget get the baseline verdict instead of a model call.
	AIRateLimit  = 12
	AIRateWindow = 60 * time.Second

	aiRateKey = "ai_refine"

	// Signal bus channels.
	ChannelScans  = "scans"
	ChannelAlerts = "alerts"
)

// Aggregator is the upstream the pipeline scans through.
type Aggregator interface {
	Aggregate(ctx context.Context, query, chainID string) (*domain.AggregatedSearchData, error)
}

// Refiner produces the final trust verdict.
type Refiner interface {
	Refine(ctx context.Context, agg *domain.AggregatedSearchData) domain.TrustRefinementResult
	RefineMulti(ctx context.Context, results []domain.AnalysisResult) domain.TrustRefinementResult
}

// Notifier receives scan lifecycle events. Implementations must not block.
type Notifier interface {
	ScanEvent(ctx context.Context, event string, payload any)
}

// Validation reports whether the aggregated record carried every field a
// response structurally needs. A failed validation still yields a response.
type Validation struct {
	OK      bool     `json:"ok"`
	Missing []string `json:"missing,omitempty"`
}

// Response is the normalized scan result served to clients and recorded in
// the audit trail.
type Response struct {
	ScanID      string                       `json:"scan_id"`
	Data        *domain.AggregatedSearchData `json:"data"`
	Refinement  domain.TrustRefinementResult `json:"refinement"`
	Validation  Validation                   `json:"validation"`
	Cached      bool                         `json:"cached"`
	GeneratedAt time.Time                    `json:"generated_at"`
}

type Pipeline struct {
	aggregator Aggregator
	refiner    Refiner
	cache      domain.KVCache
	limiter    domain.RateLimiter
	audit      domain.AuditStore
	bus        domain.SignalBus
	notifier   Notifier
	resultTTL  time.Duration
	logger     *slog.Logger
}

func New(aggregator Aggregator, refiner Refiner, cache domain.KVCache, limiter domain.RateLimiter, audit domain.AuditStore, bus domain.SignalBus, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		aggregator: aggregator,
		refiner:    refiner,
		cache:      cache,
		limiter:    limiter,
		audit:      audit,
		bus:        bus,
		resultTTL:  ResultTTL,
		logger:     logger.With(slog.String("component", "pipeline")),
	}
}

// WithResultTTL overrides how long finished scan responses stay cached.
func (p *Pipeline) WithResultTTL(ttl time.Duration) *Pipeline {
	if ttl > 0 {
		p.resultTTL = ttl
	}
	return p
}

// WithNotifier attaches an event sink for high-risk and degraded scans.
func (p *Pipeline) WithNotifier(n Notifier) *Pipeline {
	p.notifier = n
	return p
}

// Scan runs the full pipeline for one (query, chain) pair. Aggregation
// failures propagate (a not-found query is the caller's error); everything
// downstream of a successful aggregation degrades instead of failing.
func (p *Pipeline) Scan(ctx context.Context, query, chainID string) (*Response, error) {
	return p.scan(ctx, query, chainID, true)
}

// ScanBaseline skips the model stage and serves the baseline verdict
// directly. Responses are not written to the result cache so a later full
// scan is not answered with an unrefined entry.
func (p *Pipeline) ScanBaseline(ctx context.Context, query, chainID string) (*Response, error) {
	return p.scan(ctx, query, chainID, false)
}

func (p *Pipeline) scan(ctx context.Context, query, chainID string, doRefine bool) (*Response, error) {
	key := Key(chainID, query)

	if raw, hit, err := p.cache.Get(ctx, key); err == nil && hit {
		var cached Response
		if err := json.Unmarshal(raw, &cached); err == nil {
			cached.Cached = true
			return &cached, nil
		}
		_ = p.cache.Delete(ctx, key)
	}

	var agg *domain.AggregatedSearchData
	err := p.runStage(ctx, "aggregate", func(ctx context.Context) error {
		var err error
		agg, err = p.aggregator.Aggregate(ctx, query, chainID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline: scan %s on %s: %w", query, chainID, err)
	}

	validation := validate(agg)
	if !validation.OK {
		p.logger.Warn("degraded scan, required fields missing",
			slog.String("key", key), slog.Any("missing", validation.Missing))
	}

	refinement := ai.BaselineResult(agg)
	if doRefine {
		refinement = p.refine(ctx, key, agg)
	}

	resp := &Response{
		ScanID:      uuid.NewString(),
		Data:        agg,
		Refinement:  refinement,
		Validation:  validation,
		GeneratedAt: time.Now().UTC(),
	}

	p.record(ctx, key, resp)

	if doRefine {
		if raw, err := json.Marshal(resp); err == nil {
			if err := p.cache.Set(ctx, key, raw, p.resultTTL); err != nil {
				p.logger.Warn("result cache write failed", slog.String("key", key), slog.String("error", err.Error()))
			}
		}
	}
	return resp, nil
}

// refine runs the AI stage behind the token bucket. A denied or failed stage
// yields the baseline verdict, never an error.
func (p *Pipeline) refine(ctx context.Context, key string, agg *domain.AggregatedSearchData) domain.TrustRefinementResult {
	allowed, err := p.limiter.Allow(ctx, aiRateKey, AIRateLimit, AIRateWindow)
	if err != nil {
		// Fail open: a broken limiter must not take refinement down with it.
		p.logger.Warn("rate limiter check failed", slog.String("error", err.Error()))
		allowed = true
	}
	if !allowed {
		p.logger.Info("model budget exhausted, serving baseline", slog.String("key", key))
		return ai.BaselineResult(agg)
	}

	refinement := ai.BaselineResult(agg)
	stageErr := p.runStage(ctx, "refine", func(ctx context.Context) error {
		refinement = p.refiner.Refine(ctx, agg)
		return nil
	})
	if stageErr != nil {
		p.logger.Warn("refinement stage failed, serving baseline", slog.String("key", key), slog.String("error", stageErr.Error()))
		return ai.BaselineResult(agg)
	}
	return refinement
}

// record appends the normalized payload to the audit trail, publishes it on
// the signal bus, and raises notifier events. All best-effort.
func (p *Pipeline) record(ctx context.Context, key string, resp *Response) {
	payload, err := json.Marshal(resp)
	if err != nil {
		p.logger.Error("encode scan payload", slog.String("error", err.Error()))
		return
	}

	if err := p.audit.Append(ctx, domain.AuditEntry{
		ID:        resp.ScanID,
		Key:       key,
		Event:     "scan_completed",
		Payload:   payload,
		CreatedAt: resp.GeneratedAt,
	}); err != nil {
		p.logger.Warn("audit append failed", slog.String("key", key), slog.String("error", err.Error()))
	}

	if err := p.bus.Publish(ctx, ChannelScans, payload); err != nil {
		p.logger.Warn("scan publish failed", slog.String("error", err.Error()))
	}

	highRisk := resp.Refinement.RiskLevel == domain.RiskHigh
	if highRisk {
		if err := p.bus.Publish(ctx, ChannelAlerts, payload); err != nil {
			p.logger.Warn("alert publish failed", slog.String("error", err.Error()))
		}
	}
	if p.notifier != nil {
		p.notifier.ScanEvent(ctx, "scan_completed", resp)
		if highRisk {
			p.notifier.ScanEvent(ctx, "high_risk", resp)
		}
		if !resp.Validation.OK {
			p.notifier.ScanEvent(ctx, "degraded", resp)
		}
	}
}

// runStage executes fn under the stage timeout. A deadline hit surfaces as
// domain.ErrTimeout so callers can tell a slow upstream from a broken one.
func (p *Pipeline) runStage(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	stageCtx, cancel := context.WithTimeout(ctx, StageTimeout)
	defer cancel()

	err := fn(stageCtx)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("pipeline: stage %s: %w", name, domain.ErrTimeout)
	}
	return err
}

func validate(agg *domain.AggregatedSearchData) Validation {
	var missing []string
	if agg.Entity.Address == "" {
		missing = append(missing, "address")
	}
	if agg.Entity.TransactionCount < 0 {
		missing = append(missing, "transaction_count")
	}
	if agg.Entity.Balance == "" {
		missing = append(missing, "balance")
	}
	return Validation{OK: len(missing) == 0, Missing: missing}
}

// Key is the pipeline cache and audit key for one scan. The query side uses
// the chain's own normalization so case-sensitive addresses never share an
// entry.
func Key(chainID, query string) string {
	return "pipe:" + chainID + ":" + chains.NormalizeQuery(chainID, query)
}
