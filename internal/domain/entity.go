package domain

// TokenMetadata describes a fungible-token contract. Fields are populated
// best-effort: any single read may fail upstream, leaving its field zero.
type TokenMetadata struct {
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Decimals    int    `json:"decimals"`
	TotalSupply string `json:"total_supply"`
}

// EntityData is the raw per-chain fetch result for one address. Balance is a
// decimal string in the chain's native unit, already converted from the
// smallest denomination. TransactionCount may be a capped approximation on
// chains that require paginated counting.
type EntityData struct {
	Address          string         `json:"address"`
	ResolvedName     string         `json:"resolved_name,omitempty"`
	Balance          string         `json:"balance"`
	TransactionCount int            `json:"transaction_count"`
	IsContract       bool           `json:"is_contract"`
	CodeSize         int            `json:"code_size"`
	Token            *TokenMetadata `json:"token,omitempty"`
}

// RiskLevel buckets an analysis score into a coarse category.
type RiskLevel string

const (
	RiskSafe    RiskLevel = "Safe"      // score >= 80
	RiskCaution RiskLevel = "Caution"   // 40..79
	RiskHigh    RiskLevel = "High Risk" // < 40
)

// RiskLevelFor maps a 0-100 score to its RiskLevel bucket.
func RiskLevelFor(score int) RiskLevel {
	switch {
	case score >= 80:
		return RiskSafe
	case score >= 40:
		return RiskCaution
	default:
		return RiskHigh
	}
}

// AnalysisResult is the per-chain output of Engine.Analyze.
type AnalysisResult struct {
	ChainKey  string    `json:"chain_key"`
	ChainName string    `json:"chain_name"`
	Query     string    `json:"query"`
	Score     int       `json:"score"`
	RiskLevel RiskLevel `json:"risk_level"`
	Details   string    `json:"details"`
	Flags     []string  `json:"flags"`
}
