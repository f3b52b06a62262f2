// Package chains implements the per-chain-family data-fetch engines behind a
// uniform interface, plus the registry that maps chain identifiers to them.
// Each engine normalizes a different external API (different pagination,
// units, and contract semantics) into domain.EntityData.
package chains

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/trustscope/trustscope/internal/domain"
	"github.com/trustscope/trustscope/internal/scoring"
)

// Engine is the uniform per-chain contract. FetchData returns (nil, nil) when
// the identifier cannot be resolved to a valid on-chain entity; transport
// failures are treated the same way so Analyze error semantics stay uniform.
type Engine interface {
	Spec() Spec
	FetchData(ctx context.Context, identifier string) (*domain.EntityData, error)
	Analyze(ctx context.Context, identifier string) (domain.AnalysisResult, error)
}

// analyze is the shared Analyze implementation: fetch, then score with the
// baseline formula. Every engine delegates here so the scoring rules live in
// exactly one place.
func analyze(ctx context.Context, e Engine, identifier string) (domain.AnalysisResult, error) {
	data, err := e.FetchData(ctx, identifier)
	if err != nil {
		return domain.AnalysisResult{}, fmt.Errorf("chains: analyze %s on %s: %w", identifier, e.Spec().Key, err)
	}
	if data == nil {
		return domain.AnalysisResult{}, fmt.Errorf("chains: analyze %s on %s: %w", identifier, e.Spec().Key, domain.ErrNotFound)
	}

	balance, _ := strconv.ParseFloat(data.Balance, 64)
	signals := scoring.Baseline(scoring.Input{
		TransactionCount: data.TransactionCount,
		BalanceNative:    balance,
		IsContract:       data.IsContract,
		IsToken:          data.Token != nil,
	})

	spec := e.Spec()
	return domain.AnalysisResult{
		ChainKey:  spec.Key,
		ChainName: spec.Name,
		Query:     identifier,
		Score:     signals.BaselineScore,
		RiskLevel: domain.RiskLevelFor(signals.BaselineScore),
		Details: fmt.Sprintf("%s: %d transactions, balance %s %s",
			spec.Name, data.TransactionCount, data.Balance, spec.NativeSymbol),
		Flags: signals.Flags,
	}, nil
}

// normalizeQuery lowercases and trims a query so cache keys and lookups are
// stable regardless of user formatting. Base58, base64url, and c32 encodings
// are case sensitive, so only surrounding whitespace is stripped for those
// chains.
func normalizeQuery(family Family, query string) string {
	q := strings.TrimSpace(query)
	switch family {
	case FamilySolana, FamilyBitcoin, FamilyLightning, FamilyCosmos, FamilyPolkadot, FamilyTON, FamilyStacks:
		return q
	default:
		return strings.ToLower(q)
	}
}

// NormalizeQuery canonicalizes a query for the named chain the same way its
// engine does, so cache and audit keys never conflate two case-sensitive
// addresses. Unknown chain keys fall back to lowercasing, matching the
// numeric-ID fallback to the EVM engine.
func NormalizeQuery(chainKey, query string) string {
	if family, ok := familyByKey[chainKey]; ok {
		return normalizeQuery(family, query)
	}
	return strings.ToLower(strings.TrimSpace(query))
}
