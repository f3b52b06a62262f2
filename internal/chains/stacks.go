package chains

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/trustscope/trustscope/internal/domain"
)

// Standard principals start with SP/SM (mainnet) or ST (testnet); contract
// principals append a dot and the contract name.
var stacksAddressRe = regexp.MustCompile(`^S[PTM][A-Z0-9]{38,39}(\.[a-zA-Z0-9_-]{1,128})?$`)

// stacksEngine reads the Hiro extended API. Balances are in microSTX.
type stacksEngine struct {
	spec   Spec
	client *http.Client
	logger *slog.Logger
}

func newStacksEngine(spec Spec, client *http.Client, logger *slog.Logger) *stacksEngine {
	return &stacksEngine{spec: spec, client: client, logger: logger.With(slog.String("chain", spec.Key))}
}

func (e *stacksEngine) Spec() Spec { return e.spec }

func (e *stacksEngine) Analyze(ctx context.Context, identifier string) (domain.AnalysisResult, error) {
	return analyze(ctx, e, identifier)
}

func (e *stacksEngine) FetchData(ctx context.Context, identifier string) (*domain.EntityData, error) {
	addr := normalizeQuery(e.spec.Family, identifier)
	if !stacksAddressRe.MatchString(addr) {
		return nil, nil
	}
	isContract := strings.Contains(addr, ".")

	var balances struct {
		STX struct {
			Balance string `json:"balance"`
		} `json:"stx"`
	}
	u := fmt.Sprintf("%s/extended/v1/address/%s/balances", e.spec.RPCURL, url.PathEscape(addr))
	if err := getJSON(ctx, e.client, u, &balances); err != nil {
		e.logger.Warn("balances fetch failed", slog.String("address", addr), slog.String("error", err.Error()))
		return nil, nil
	}

	var txs struct {
		Total int `json:"total"`
	}
	txURL := fmt.Sprintf("%s/extended/v1/address/%s/transactions?limit=1", e.spec.RPCURL, url.PathEscape(addr))
	if err := getJSON(ctx, e.client, txURL, &txs); err != nil {
		// A zero count from a failed call would wrongly read as inactivity.
		e.logger.Warn("transactions fetch failed", slog.String("address", addr), slog.String("error", err.Error()))
		return nil, nil
	}

	if balances.STX.Balance == "" && txs.Total == 0 && !isContract {
		return nil, nil
	}

	return &domain.EntityData{
		Address:          addr,
		Balance:          FormatUnitsString(balances.STX.Balance, e.spec.Decimals, e.spec.MaxFractionDigits),
		TransactionCount: txs.Total,
		IsContract:       isContract,
	}, nil
}
