// Package scoring implements the deterministic baseline trust heuristics.
// Every chain engine and the aggregator share this single implementation so
// the formula cannot drift between call sites.
package scoring

import (
	"math"

	"github.com/trustscope/trustscope/internal/domain"
)

// Flag labels, in the order they are accumulated: activity, balance,
// contract/token. Display and prompt serialization rely on this order.
const (
	FlagHighActivity       = "High Activity"
	FlagLowActivity        = "Low Activity"
	FlagSignificantBalance = "Significant Balance"
	FlagTokenContract      = "Token Contract"
	FlagUnverifiedContract = "Unverified Contract"
	FlagVerifiedEntity     = "Verified Entity"
	FlagFetchFailed        = "Fetch Failed"
)

// Input holds the on-chain facts the baseline formula consumes.
type Input struct {
	TransactionCount int
	BalanceNative    float64
	IsContract       bool
	IsToken          bool
}

// Baseline computes the heuristic trust score and its qualitative flags.
// Pure function: no I/O, same input always yields the same output including
// flag order.
//
// Neutral bands: transaction counts in [5, 500] and balances strictly
// between 0 and 1.0 contribute nothing.
func Baseline(in Input) domain.BaselineSignals {
	score := 50.0
	var flags []string

	if in.TransactionCount > 500 {
		score += 20
		flags = append(flags, FlagHighActivity)
	} else if in.TransactionCount < 5 {
		score -= 10
		flags = append(flags, FlagLowActivity)
	}

	if in.BalanceNative > 1.0 {
		score += 15
		flags = append(flags, FlagSignificantBalance)
	} else if in.BalanceNative == 0 {
		score -= 5 // no flag for an empty balance
	}

	if in.IsContract {
		score -= 10
		if in.IsToken {
			score += 30
			flags = append(flags, FlagTokenContract)
		} else {
			flags = append(flags, FlagUnverifiedContract)
		}
	} else {
		score += 10
	}

	return domain.BaselineSignals{
		BaselineScore: Clamp(int(math.Round(score))),
		Flags:         flags,
	}
}

// Clamp bounds a score to [0, 100].
func Clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
