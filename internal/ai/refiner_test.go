package ai

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustscope/trustscope/internal/cache/memory"
	"github.com/trustscope/trustscope/internal/domain"
)

type scriptedModel struct {
	enabled   bool
	responses []string
	err       error
	calls     int
}

func (m *scriptedModel) Enabled() bool { return m.enabled }

func (m *scriptedModel) Complete(context.Context, string) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	i := m.calls - 1
	if i >= len(m.responses) {
		i = len(m.responses) - 1
	}
	return m.responses[i], nil
}

func testAgg() *domain.AggregatedSearchData {
	return &domain.AggregatedSearchData{
		Query:   "0xabc",
		ChainID: "1",
		Entity:  domain.EntityFacts{Address: "0xAbC", Balance: "2.5", TransactionCount: 900},
		Signals: domain.BaselineSignals{BaselineScore: 65, Flags: []string{"High Activity"}},
	}
}

func newRefiner(m Completer) *Refiner {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRefiner(m, memory.NewKVCache(), logger)
}

func TestRefineUsesModelVerdict(t *testing.T) {
	m := &scriptedModel{enabled: true, responses: []string{"TRUSTSCORE: 88\nSUMMARY: looks legitimate\nEND"}}
	r := newRefiner(m)

	res := r.Refine(context.Background(), testAgg())
	assert.Equal(t, 88, res.TrustScore)
	assert.Equal(t, "looks legitimate", res.Summary)
	assert.Equal(t, domain.RiskSafe, res.RiskLevel)
	assert.Equal(t, "ai", res.Source)
}

func TestRefineCachesByChainAndAddress(t *testing.T) {
	m := &scriptedModel{enabled: true, responses: []string{"TRUSTSCORE: 88\nSUMMARY: cached verdict\nEND"}}
	r := newRefiner(m)

	first := r.Refine(context.Background(), testAgg())
	agg := testAgg()
	agg.Entity.Address = "0xABC" // same address, different case
	second := r.Refine(context.Background(), agg)

	assert.Equal(t, 1, m.calls, "second refine must hit the cache")
	assert.Equal(t, first, second)
}

func TestRefineFallsBackOnModelError(t *testing.T) {
	m := &scriptedModel{enabled: true, err: errors.New("upstream down")}
	r := newRefiner(m)

	res := r.Refine(context.Background(), testAgg())
	assert.Equal(t, 65, res.TrustScore, "fallback serves the baseline score")
	assert.Equal(t, "baseline", res.Source)
	assert.Equal(t, domain.RiskCaution, res.RiskLevel)
	assert.NotEmpty(t, res.Summary)
}

func TestRefineFallsBackOnUnparseableResponse(t *testing.T) {
	m := &scriptedModel{enabled: true, responses: []string{"the entity seems okay i guess"}}
	r := newRefiner(m)

	res := r.Refine(context.Background(), testAgg())
	assert.Equal(t, "baseline", res.Source)
	assert.Equal(t, 65, res.TrustScore)
}

func TestRefineDisabledModelIsBaselineOnly(t *testing.T) {
	m := &scriptedModel{enabled: false}
	r := newRefiner(m)

	res := r.Refine(context.Background(), testAgg())
	assert.Equal(t, "baseline", res.Source)
	assert.Equal(t, 0, m.calls)
}

func TestRefineFallbackIdempotent(t *testing.T) {
	m := &scriptedModel{enabled: false}
	r := newRefiner(m)
	a := r.Refine(context.Background(), testAgg())
	b := r.Refine(context.Background(), testAgg())
	assert.Equal(t, a, b)
}

func multiResults() []domain.AnalysisResult {
	return []domain.AnalysisResult{
		{ChainKey: "1", Score: 80, RiskLevel: domain.RiskSafe},
		{ChainKey: "solana", Score: 40, RiskLevel: domain.RiskCaution},
	}
}

func TestRefineMultiParsesVerdict(t *testing.T) {
	m := &scriptedModel{enabled: true, responses: []string{
		`{"trust_score": 66, "summary": "mixed picture", "risk_level": "Caution", "audit_notes": "solana side is thin"}`,
	}}
	r := newRefiner(m)

	res := r.RefineMulti(context.Background(), multiResults())
	assert.Equal(t, 66, res.TrustScore)
	assert.Equal(t, domain.RiskCaution, res.RiskLevel)
	assert.Equal(t, "solana side is thin", res.AuditNotes)
	assert.Equal(t, 1, m.calls)
}

func TestRefineMultiRetriesOnceThenFallsBack(t *testing.T) {
	m := &scriptedModel{enabled: true, responses: []string{
		"garbage the first time",
		"still garbage",
	}}
	r := newRefiner(m)

	res := r.RefineMulti(context.Background(), multiResults())
	require.Equal(t, 2, m.calls, "exactly one retry")
	assert.Equal(t, "baseline", res.Source)
	assert.Equal(t, 60, res.TrustScore, "fallback averages per-chain scores")
	assert.Equal(t, domain.RiskCaution, res.RiskLevel)
}

func TestRefineMultiRetrySucceeds(t *testing.T) {
	m := &scriptedModel{enabled: true, responses: []string{
		"not json",
		"```json\n{\"trust_score\": 55, \"summary\": \"second try\", \"risk_level\": \"Caution\"}\n```",
	}}
	r := newRefiner(m)

	res := r.RefineMulti(context.Background(), multiResults())
	assert.Equal(t, 2, m.calls)
	assert.Equal(t, "ai", res.Source)
	assert.Equal(t, 55, res.TrustScore)
}

func TestRefineMultiEmptyResults(t *testing.T) {
	r := newRefiner(&scriptedModel{enabled: true})
	res := r.RefineMulti(context.Background(), nil)
	assert.Equal(t, 0, res.TrustScore)
	assert.Equal(t, domain.RiskHigh, res.RiskLevel)
	assert.Equal(t, "baseline", res.Source)
}
