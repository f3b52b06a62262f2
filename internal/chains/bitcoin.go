package chains

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"net/url"
	"regexp"

	"github.com/trustscope/trustscope/internal/domain"
)

// Covers legacy base58, P2SH, and bech32 addresses for Bitcoin and Liquid.
var bitcoinAddressRe = regexp.MustCompile(`^([13][a-km-zA-HJ-NP-Z1-9]{25,34}|(bc1|tb1|ex1|lq1)[a-zA-HJ-NP-Z0-9]{25,90})$`)

// bitcoinEngine reads an Esplora-style REST API and serves both the Bitcoin
// and Liquid specs. Balance is funded minus spent satoshis across confirmed
// and mempool stats. UTXO chains have no contracts, so IsContract is always
// false.
type bitcoinEngine struct {
	spec   Spec
	client *http.Client
	logger *slog.Logger
}

func newBitcoinEngine(spec Spec, client *http.Client, logger *slog.Logger) *bitcoinEngine {
	return &bitcoinEngine{spec: spec, client: client, logger: logger.With(slog.String("chain", spec.Key))}
}

func (e *bitcoinEngine) Spec() Spec { return e.spec }

func (e *bitcoinEngine) Analyze(ctx context.Context, identifier string) (domain.AnalysisResult, error) {
	return analyze(ctx, e, identifier)
}

func (e *bitcoinEngine) FetchData(ctx context.Context, identifier string) (*domain.EntityData, error) {
	addr := normalizeQuery(e.spec.Family, identifier)
	if !bitcoinAddressRe.MatchString(addr) {
		return nil, nil
	}

	var stats struct {
		ChainStats struct {
			FundedTxoSum int64 `json:"funded_txo_sum"`
			SpentTxoSum  int64 `json:"spent_txo_sum"`
			TxCount      int   `json:"tx_count"`
		} `json:"chain_stats"`
		MempoolStats struct {
			FundedTxoSum int64 `json:"funded_txo_sum"`
			SpentTxoSum  int64 `json:"spent_txo_sum"`
			TxCount      int   `json:"tx_count"`
		} `json:"mempool_stats"`
	}
	u := fmt.Sprintf("%s/address/%s", e.spec.RPCURL, url.PathEscape(addr))
	if err := getJSON(ctx, e.client, u, &stats); err != nil {
		e.logger.Warn("address stats fetch failed", slog.String("address", addr), slog.String("error", err.Error()))
		return nil, nil
	}

	sats := stats.ChainStats.FundedTxoSum - stats.ChainStats.SpentTxoSum +
		stats.MempoolStats.FundedTxoSum - stats.MempoolStats.SpentTxoSum
	txCount := stats.ChainStats.TxCount + stats.MempoolStats.TxCount

	// Esplora returns zeroed stats for well-formed addresses it has never
	// seen; treat a fully untouched address as not found.
	if sats == 0 && txCount == 0 {
		return nil, nil
	}

	return &domain.EntityData{
		Address:          addr,
		Balance:          FormatUnits(big.NewInt(sats), e.spec.Decimals, e.spec.MaxFractionDigits),
		TransactionCount: txCount,
		IsContract:       false,
	}, nil
}
