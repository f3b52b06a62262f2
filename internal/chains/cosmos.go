package chains

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/trustscope/trustscope/internal/domain"
)

var cosmosAddressRe = regexp.MustCompile(`^[a-z]{2,20}1[a-z0-9]{38,58}$`)

// cosmosEngine reads a Cosmos SDK LCD endpoint. The bank module reports
// balances per denom (uatom on the Hub) and the auth module's account
// sequence serves as the sent-transaction count.
type cosmosEngine struct {
	spec   Spec
	client *http.Client
	logger *slog.Logger
}

func newCosmosEngine(spec Spec, client *http.Client, logger *slog.Logger) *cosmosEngine {
	return &cosmosEngine{spec: spec, client: client, logger: logger.With(slog.String("chain", spec.Key))}
}

func (e *cosmosEngine) Spec() Spec { return e.spec }

func (e *cosmosEngine) Analyze(ctx context.Context, identifier string) (domain.AnalysisResult, error) {
	return analyze(ctx, e, identifier)
}

func (e *cosmosEngine) FetchData(ctx context.Context, identifier string) (*domain.EntityData, error) {
	addr := normalizeQuery(e.spec.Family, identifier)
	if !cosmosAddressRe.MatchString(addr) {
		return nil, nil
	}

	var balances struct {
		Balances []struct {
			Denom  string `json:"denom"`
			Amount string `json:"amount"`
		} `json:"balances"`
	}
	u := fmt.Sprintf("%s/cosmos/bank/v1beta1/balances/%s", e.spec.RPCURL, url.PathEscape(addr))
	if err := getJSON(ctx, e.client, u, &balances); err != nil {
		e.logger.Warn("balances fetch failed", slog.String("address", addr), slog.String("error", err.Error()))
		return nil, nil
	}
	nativeDenom := "u" + strings.ToLower(e.spec.NativeSymbol)
	amount := "0"
	for _, b := range balances.Balances {
		if b.Denom == nativeDenom {
			amount = b.Amount
			break
		}
	}

	txCount := 0
	var account struct {
		Account struct {
			Sequence string `json:"sequence"`
		} `json:"account"`
	}
	acctURL := fmt.Sprintf("%s/cosmos/auth/v1beta1/accounts/%s", e.spec.RPCURL, url.PathEscape(addr))
	if err := getJSON(ctx, e.client, acctURL, &account); err == nil {
		txCount, _ = strconv.Atoi(account.Account.Sequence)
	} else if amount == "0" {
		// Unknown account with no balance: never seen on chain.
		return nil, nil
	}

	return &domain.EntityData{
		Address:          addr,
		Balance:          FormatUnitsString(amount, e.spec.Decimals, e.spec.MaxFractionDigits),
		TransactionCount: txCount,
		IsContract:       false,
	}, nil
}
