package domain

import "time"

// EntityFacts is EntityData enriched with the parsed native balance. It is
// embedded in AggregatedSearchData so the API payload is self-contained.
type EntityFacts struct {
	Address          string         `json:"address"`
	ResolvedName     string         `json:"resolved_name,omitempty"`
	Balance          string         `json:"balance"`
	BalanceNative    float64        `json:"balance_native"`
	TransactionCount int            `json:"transaction_count"`
	IsContract       bool           `json:"is_contract"`
	CodeSize         int            `json:"code_size"`
	Token            *TokenMetadata `json:"token,omitempty"`
}

// MarketData holds the resolved native price and the derived portfolio value.
// PortfolioValueUSD is BalanceNative * NativePriceUSD when the price is
// known, and 0 when it is not (price 0 means "unknown, do not use").
type MarketData struct {
	NativePriceUSD    float64 `json:"native_price_usd"`
	PortfolioValueUSD float64 `json:"portfolio_value_usd"`
}

// SocialSignal is the hype proxy for a query term.
type SocialSignal struct {
	Score    int  `json:"score"` // 0-100
	Mentions int  `json:"mentions"`
	Trending bool `json:"trending"`
}

// BaselineSignals is the deterministic heuristic score plus qualitative
// flags, in a fixed order (activity, balance, contract/token).
type BaselineSignals struct {
	BaselineScore int      `json:"baseline_score"`
	Flags         []string `json:"flags"`
}

// KnownEntity is curated metadata for a well-known contract. When present it
// overrides the baseline score downstream.
type KnownEntity struct {
	Name              string  `json:"name"`
	Symbol            string  `json:"symbol"`
	Description       string  `json:"description"`
	ReferencePriceUSD float64 `json:"reference_price_usd"`
	Score             int     `json:"score"`
}

// AggregatedSearchData is the canonical unit of work downstream: one
// normalized record combining on-chain, market, and social signals for a
// single entity lookup. Constructed once per aggregation, never mutated.
type AggregatedSearchData struct {
	Query        string          `json:"query"`
	ChainID      string          `json:"chain_id"`
	ChainName    string          `json:"chain_name"`
	NativeSymbol string          `json:"native_symbol"`
	FetchedAt    time.Time       `json:"fetched_at"`
	Entity       EntityFacts     `json:"entity"`
	Market       MarketData      `json:"market"`
	Social       SocialSignal    `json:"social"`
	Signals      BaselineSignals `json:"signals"`
	Known        *KnownEntity    `json:"known_entity,omitempty"`
}

// TrustRefinementResult is the AI-refined (or baseline-fallback) final score.
// Source records which path produced it: "ai" or "baseline".
type TrustRefinementResult struct {
	TrustScore int       `json:"trust_score"`
	Summary    string    `json:"summary"`
	RiskLevel  RiskLevel `json:"risk_level,omitempty"`
	AuditNotes string    `json:"audit_notes,omitempty"`
	Source     string    `json:"source"`
}
