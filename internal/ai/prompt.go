package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/trustscope/trustscope/internal/domain"
)

// RefinePrompt embeds the full aggregated record and instructs the model to
// answer in the three-line TRUSTSCORE/SUMMARY/END protocol that
// ParseRefinement expects.
func RefinePrompt(agg *domain.AggregatedSearchData) string {
	raw, _ := json.MarshalIndent(agg, "", "  ")
	return fmt.Sprintf(`You are a blockchain trust analyst. Assess the trustworthiness of the entity described by the aggregated data below.

AGGREGATED DATA:
%s

Consider on-chain activity, balance, contract status, market value, social signals, and the heuristic baseline score. Respond in EXACTLY this format and nothing else:

TRUSTSCORE: <integer 0-100>
SUMMARY: <one or two sentences explaining the score>
END`, raw)
}

// MultiChainPrompt asks for a JSON verdict over several per-chain analyses.
func MultiChainPrompt(results []domain.AnalysisResult) string {
	raw, _ := json.MarshalIndent(results, "", "  ")
	return fmt.Sprintf(`You are a blockchain trust analyst. The same entity was analyzed on several chains; the per-chain results are below.

PER-CHAIN RESULTS:
%s

Weigh the chains against each other (consistent activity across chains is a good sign, a single-chain spike is not) and return a JSON object:
{
  "trust_score": <integer 0-100>,
  "summary": "<overall assessment>",
  "risk_level": "Safe|Caution|High Risk",
  "audit_notes": "<anything suspicious worth flagging>"
}

Return ONLY valid JSON, no other text.`, raw)
}

// strictJSONRetrySuffix is appended to the multi-chain prompt for the single
// retry after an unparseable response.
const strictJSONRetrySuffix = "\n\nIMPORTANT: Your previous response could not be parsed. Respond with the raw JSON object ONLY. No markdown, no code fences, no commentary."

// FallbackSummary is the deterministic summary used when the model is
// unavailable or unparseable.
func FallbackSummary(score int) string {
	return fmt.Sprintf("Heuristic assessment only: baseline trust score %d based on on-chain activity, balance, and contract signals.", score)
}

func fallbackMultiChainSummary(scores []int) string {
	parts := make([]string, len(scores))
	for i, s := range scores {
		parts[i] = fmt.Sprintf("%d", s)
	}
	return fmt.Sprintf("Heuristic assessment only: averaged per-chain baseline scores [%s].", strings.Join(parts, ", "))
}
