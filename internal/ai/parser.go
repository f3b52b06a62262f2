package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/trustscope/trustscope/internal/domain"
	"github.com/trustscope/trustscope/internal/scoring"
)

var (
	trustScoreRe = regexp.MustCompile(`(?i)TRUSTSCORE\s*:\s*(-?\d+)`)
	summaryRe    = regexp.MustCompile(`(?is)SUMMARY\s*:\s*(.+?)(?:\n\s*END\b|$)`)

	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
)

// ParseRefinement extracts the score and summary from a TRUSTSCORE/SUMMARY/END
// response. Matching is case-insensitive and whitespace-tolerant; the score is
// clamped to [0, 100]. Both fields must be present for the parse to succeed.
func ParseRefinement(resp string) (int, string, error) {
	m := trustScoreRe.FindStringSubmatch(resp)
	if m == nil {
		return 0, "", fmt.Errorf("ai: parse refinement: no TRUSTSCORE field: %w", domain.ErrMalformed)
	}
	score, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, "", fmt.Errorf("ai: parse refinement: score %q: %w", m[1], domain.ErrMalformed)
	}

	sm := summaryRe.FindStringSubmatch(resp)
	if sm == nil {
		return 0, "", fmt.Errorf("ai: parse refinement: no SUMMARY field: %w", domain.ErrMalformed)
	}
	summary := strings.TrimSpace(sm[1])
	if summary == "" {
		return 0, "", fmt.Errorf("ai: parse refinement: empty SUMMARY: %w", domain.ErrMalformed)
	}

	return scoring.Clamp(score), summary, nil
}

// multiChainVerdict is the JSON shape the multi-chain prompt asks for.
type multiChainVerdict struct {
	TrustScore int    `json:"trust_score"`
	Summary    string `json:"summary"`
	RiskLevel  string `json:"risk_level"`
	AuditNotes string `json:"audit_notes"`
}

// ParseMultiChain parses the model's JSON verdict: direct unmarshal first,
// then a salvage pass over the largest balanced {...} substring with code
// fences and trailing commas stripped.
func ParseMultiChain(resp string) (domain.TrustRefinementResult, error) {
	var v multiChainVerdict
	if err := json.Unmarshal([]byte(resp), &v); err != nil {
		salvaged := ExtractJSON(resp)
		if err := json.Unmarshal(salvaged, &v); err != nil {
			return domain.TrustRefinementResult{}, fmt.Errorf("ai: parse multi-chain verdict: %w", domain.ErrMalformed)
		}
	}
	if v.Summary == "" {
		return domain.TrustRefinementResult{}, fmt.Errorf("ai: parse multi-chain verdict: empty summary: %w", domain.ErrMalformed)
	}

	score := scoring.Clamp(v.TrustScore)
	risk := domain.RiskLevel(v.RiskLevel)
	switch risk {
	case domain.RiskSafe, domain.RiskCaution, domain.RiskHigh:
	default:
		risk = domain.RiskLevelFor(score)
	}
	return domain.TrustRefinementResult{
		TrustScore: score,
		Summary:    v.Summary,
		RiskLevel:  risk,
		AuditNotes: v.AuditNotes,
		Source:     "ai",
	}, nil
}

// ExtractJSON salvages a JSON object from model chatter: markdown code fences
// are stripped, the largest balanced {...} substring is extracted, and
// trailing commas before a closing brace or bracket are removed. With no
// braces at all the trimmed input is returned as-is for the caller's
// unmarshal to reject.
func ExtractJSON(s string) []byte {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	start := strings.Index(s, "{")
	if start < 0 {
		return []byte(s)
	}
	// Walk for the balanced close of the first brace, honoring strings.
	depth, end := 0, -1
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				end = i
			}
		}
		if end >= 0 {
			break
		}
	}
	if end < 0 {
		// Unbalanced: fall back to the last closing brace.
		end = strings.LastIndex(s, "}")
		if end <= start {
			return []byte(s)
		}
	}

	out := s[start : end+1]
	out = trailingCommaRe.ReplaceAllString(out, "$1")
	return []byte(out)
}
