package chains

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"

	"github.com/trustscope/trustscope/internal/domain"
)

// SS58-encoded account identifiers.
var polkadotAddressRe = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{46,48}$`)

// polkadotEngine reads a Substrate API Sidecar instance. Free balance is in
// planck (10 decimals on Polkadot) and the account nonce is the count of
// extrinsics the account has signed.
type polkadotEngine struct {
	spec   Spec
	client *http.Client
	logger *slog.Logger
}

func newPolkadotEngine(spec Spec, client *http.Client, logger *slog.Logger) *polkadotEngine {
	return &polkadotEngine{spec: spec, client: client, logger: logger.With(slog.String("chain", spec.Key))}
}

func (e *polkadotEngine) Spec() Spec { return e.spec }

func (e *polkadotEngine) Analyze(ctx context.Context, identifier string) (domain.AnalysisResult, error) {
	return analyze(ctx, e, identifier)
}

func (e *polkadotEngine) FetchData(ctx context.Context, identifier string) (*domain.EntityData, error) {
	addr := normalizeQuery(e.spec.Family, identifier)
	if !polkadotAddressRe.MatchString(addr) {
		return nil, nil
	}

	var info struct {
		Nonce string `json:"nonce"`
		Free  string `json:"free"`
	}
	u := fmt.Sprintf("%s/accounts/%s/balance-info", e.spec.RPCURL, url.PathEscape(addr))
	if err := getJSON(ctx, e.client, u, &info); err != nil {
		e.logger.Warn("balance info fetch failed", slog.String("address", addr), slog.String("error", err.Error()))
		return nil, nil
	}
	txCount, _ := strconv.Atoi(info.Nonce)
	if info.Free == "" || (info.Free == "0" && txCount == 0) {
		return nil, nil
	}

	return &domain.EntityData{
		Address:          addr,
		Balance:          FormatUnitsString(info.Free, e.spec.Decimals, e.spec.MaxFractionDigits),
		TransactionCount: txCount,
		IsContract:       false,
	}, nil
}
