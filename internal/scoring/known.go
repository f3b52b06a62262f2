package scoring

import (
	"strings"

	"github.com/trustscope/trustscope/internal/domain"
)

// knownEntities is the curated allow-list of well-known contracts, scoped per
// chain key. Addresses are stored lowercase; lookups are case-insensitive.
var knownEntities = map[string]map[string]domain.KnownEntity{
	"1": {
		"0xdac17f958d2ee523a2206206994597c13d831ec7": {
			Name: "Tether USD", Symbol: "USDT",
			Description:       "Largest USD stablecoin by market capitalization.",
			ReferencePriceUSD: 1.0, Score: 95,
		},
		"0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48": {
			Name: "USD Coin", Symbol: "USDC",
			Description:       "Fully-reserved USD stablecoin issued by Circle.",
			ReferencePriceUSD: 1.0, Score: 95,
		},
		"0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2": {
			Name: "Wrapped Ether", Symbol: "WETH",
			Description:       "Canonical ERC-20 wrapper around ether.",
			ReferencePriceUSD: 0, Score: 92,
		},
		"0x6b175474e89094c44da98b954eedeac495271d0f": {
			Name: "Dai Stablecoin", Symbol: "DAI",
			Description:       "Decentralized USD stablecoin governed by MakerDAO.",
			ReferencePriceUSD: 1.0, Score: 92,
		},
	},
	"56": {
		"0x55d398326f99059ff775485246999027b3197955": {
			Name: "Tether USD (BSC)", Symbol: "USDT",
			Description:       "BNB Smart Chain issuance of Tether USD.",
			ReferencePriceUSD: 1.0, Score: 90,
		},
	},
	"137": {
		"0x3c499c542cef5e3811e1192ce70d8cc03d5c3359": {
			Name: "USD Coin (Polygon)", Symbol: "USDC",
			Description:       "Native Circle USDC on Polygon PoS.",
			ReferencePriceUSD: 1.0, Score: 90,
		},
	},
	"solana": {
		"es9vmfrzacermjfrf4h2fyd4kconky11mcce8benwnyb": {
			Name: "Tether USD (Solana)", Symbol: "USDT",
			Description:       "Solana SPL issuance of Tether USD.",
			ReferencePriceUSD: 1.0, Score: 90,
		},
		"epjfwdd5aufqssqem2qn1xzybapc8g4weggkzwytdt1v": {
			Name: "USD Coin (Solana)", Symbol: "USDC",
			Description:       "Solana SPL issuance of Circle USDC.",
			ReferencePriceUSD: 1.0, Score: 90,
		},
	},
}

// LookupKnown returns the curated entry for an address on the given chain,
// if one exists. The match is case-insensitive.
func LookupKnown(chainKey, address string) (domain.KnownEntity, bool) {
	table, ok := knownEntities[chainKey]
	if !ok {
		return domain.KnownEntity{}, false
	}
	entry, ok := table[strings.ToLower(address)]
	return entry, ok
}

// ApplyKnownOverride replaces the baseline score with the curated score and
// appends the verified flag (deduplicated). It runs after the pure scorer,
// at the aggregator layer.
func ApplyKnownOverride(signals domain.BaselineSignals, known domain.KnownEntity) domain.BaselineSignals {
	signals.BaselineScore = Clamp(known.Score)
	for _, f := range signals.Flags {
		if f == FlagVerifiedEntity {
			return signals
		}
	}
	signals.Flags = append(signals.Flags, FlagVerifiedEntity)
	return signals
}
