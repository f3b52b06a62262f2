package chains

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"

	"github.com/trustscope/trustscope/internal/domain"
)

var aptosAddressRe = regexp.MustCompile(`^0x[a-f0-9]{1,64}$`)

// aptosEngine speaks the Aptos fullnode REST API. Balances arrive in octas
// (8 decimals); the account sequence number serves as the transaction count;
// an account holding published Move modules counts as executable.
type aptosEngine struct {
	spec   Spec
	client *http.Client
	logger *slog.Logger
}

func newAptosEngine(spec Spec, client *http.Client, logger *slog.Logger) *aptosEngine {
	return &aptosEngine{spec: spec, client: client, logger: logger.With(slog.String("chain", spec.Key))}
}

func (e *aptosEngine) Spec() Spec { return e.spec }

func (e *aptosEngine) Analyze(ctx context.Context, identifier string) (domain.AnalysisResult, error) {
	return analyze(ctx, e, identifier)
}

func (e *aptosEngine) FetchData(ctx context.Context, identifier string) (*domain.EntityData, error) {
	addr := normalizeQuery(FamilyAptos, identifier)
	if !aptosAddressRe.MatchString(addr) {
		return nil, nil
	}

	var account struct {
		SequenceNumber string `json:"sequence_number"`
	}
	if err := getJSON(ctx, e.client, fmt.Sprintf("%s/accounts/%s", e.spec.RPCURL, url.PathEscape(addr)), &account); err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			e.logger.Warn("account fetch failed", slog.String("address", addr), slog.String("error", err.Error()))
		}
		return nil, nil
	}
	txCount, _ := strconv.Atoi(account.SequenceNumber)

	// Balance lives in the APT CoinStore resource; a missing resource just
	// means a zero balance.
	balance := "0"
	var store struct {
		Data struct {
			Coin struct {
				Value string `json:"value"`
			} `json:"coin"`
		} `json:"data"`
	}
	storeURL := fmt.Sprintf("%s/accounts/%s/resource/%s", e.spec.RPCURL, url.PathEscape(addr),
		url.PathEscape("0x1::coin::CoinStore<0x1::aptos_coin::AptosCoin>"))
	if err := getJSON(ctx, e.client, storeURL, &store); err == nil {
		balance = FormatUnitsString(store.Data.Coin.Value, e.spec.Decimals, e.spec.MaxFractionDigits)
	}

	isContract := false
	codeSize := 0
	var modules []struct {
		Bytecode string `json:"bytecode"`
	}
	if err := getJSON(ctx, e.client, fmt.Sprintf("%s/accounts/%s/modules?limit=25", e.spec.RPCURL, url.PathEscape(addr)), &modules); err == nil && len(modules) > 0 {
		isContract = true
		for _, m := range modules {
			codeSize += len(m.Bytecode) / 2 // hex-encoded
		}
	}

	return &domain.EntityData{
		Address:          addr,
		Balance:          balance,
		TransactionCount: txCount,
		IsContract:       isContract,
		CodeSize:         codeSize,
	}, nil
}
