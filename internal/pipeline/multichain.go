package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/trustscope/trustscope/internal/chains"
	"github.com/trustscope/trustscope/internal/domain"
	"github.com/trustscope/trustscope/internal/scoring"
)

// MultiResponse is the verdict for one entity analyzed across several chains.
type MultiResponse struct {
	ScanID      string                       `json:"scan_id"`
	Query       string                       `json:"query"`
	Results     []domain.AnalysisResult      `json:"results"`
	Refinement  domain.TrustRefinementResult `json:"refinement"`
	GeneratedAt time.Time                    `json:"generated_at"`
}

// MultiScanner fans one query out across chains and joins the per-chain
// analyses into a single refined verdict. Chain failures are isolated: a
// failing engine contributes a zero-score placeholder flagged "Fetch Failed"
// and never aborts the batch.
type MultiScanner struct {
	registry *chains.Registry
	refiner  Refiner
	audit    domain.AuditStore
	logger   *slog.Logger
}

func NewMultiScanner(registry *chains.Registry, refiner Refiner, audit domain.AuditStore, logger *slog.Logger) *MultiScanner {
	return &MultiScanner{
		registry: registry,
		refiner:  refiner,
		audit:    audit,
		logger:   logger.With(slog.String("component", "multiscan")),
	}
}

// Scan analyzes the query on every requested chain concurrently.
func (m *MultiScanner) Scan(ctx context.Context, query string, chainIDs []string) *MultiResponse {
	results := make([]domain.AnalysisResult, len(chainIDs))

	g, gctx := errgroup.WithContext(ctx)
	for i, chainID := range chainIDs {
		g.Go(func() error {
			results[i] = m.analyzeOne(gctx, query, chainID)
			return nil
		})
	}
	_ = g.Wait()

	refinement := m.refiner.RefineMulti(ctx, results)

	resp := &MultiResponse{
		ScanID:      uuid.NewString(),
		Query:       query,
		Results:     results,
		Refinement:  refinement,
		GeneratedAt: time.Now().UTC(),
	}

	if payload, err := json.Marshal(resp); err == nil {
		if err := m.audit.Append(ctx, domain.AuditEntry{
			ID:        resp.ScanID,
			Key:       Key("multi", query),
			Event:     "multi_scan_completed",
			Payload:   payload,
			CreatedAt: resp.GeneratedAt,
		}); err != nil {
			m.logger.Warn("audit append failed", slog.String("error", err.Error()))
		}
	}
	return resp
}

func (m *MultiScanner) analyzeOne(ctx context.Context, query, chainID string) domain.AnalysisResult {
	stageCtx, cancel := context.WithTimeout(ctx, StageTimeout)
	defer cancel()

	engine, ok := m.registry.EngineFor(chainID)
	if !ok {
		return placeholder(chainID, chainID, query)
	}
	res, err := engine.Analyze(stageCtx, query)
	if err != nil {
		m.logger.Warn("chain analysis failed",
			slog.String("chain", chainID), slog.String("query", query), slog.String("error", err.Error()))
		spec := engine.Spec()
		return placeholder(spec.Key, spec.Name, query)
	}
	return res
}

// placeholder is the failure-flagged stand-in for a chain that could not be
// analyzed, keeping the batch result shape stable.
func placeholder(chainKey, chainName, query string) domain.AnalysisResult {
	return domain.AnalysisResult{
		ChainKey:  chainKey,
		ChainName: chainName,
		Query:     query,
		Score:     0,
		RiskLevel: domain.RiskLevelFor(0),
		Details:   "analysis unavailable",
		Flags:     []string{scoring.FlagFetchFailed},
	}
}
