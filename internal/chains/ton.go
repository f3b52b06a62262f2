package chains

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"

	"github.com/trustscope/trustscope/internal/domain"
)

// TON accepts both raw (workchain:hex) and base64url friendly addresses.
var tonAddressRe = regexp.MustCompile(`^(-?\d+:[a-fA-F0-9]{64}|[A-Za-z0-9_-]{48})$`)

// tonEngine uses a toncenter-compatible HTTP API. Balances are in nanotons.
// Any active non-wallet account is treated as a contract; wallet contracts
// are the TON equivalent of externally owned accounts.
type tonEngine struct {
	spec   Spec
	client *http.Client
	logger *slog.Logger
}

func newTONEngine(spec Spec, client *http.Client, logger *slog.Logger) *tonEngine {
	return &tonEngine{spec: spec, client: client, logger: logger.With(slog.String("chain", spec.Key))}
}

func (e *tonEngine) Spec() Spec { return e.spec }

func (e *tonEngine) Analyze(ctx context.Context, identifier string) (domain.AnalysisResult, error) {
	return analyze(ctx, e, identifier)
}

func (e *tonEngine) FetchData(ctx context.Context, identifier string) (*domain.EntityData, error) {
	addr := normalizeQuery(e.spec.Family, identifier)
	if !tonAddressRe.MatchString(addr) {
		return nil, nil
	}

	var info struct {
		OK     bool `json:"ok"`
		Result struct {
			Balance string `json:"balance"`
			State   string `json:"state"`
			Code    string `json:"code"`
		} `json:"result"`
	}
	infoURL := fmt.Sprintf("%s/getAddressInformation?address=%s", e.spec.RPCURL, url.QueryEscape(addr))
	if err := getJSON(ctx, e.client, infoURL, &info); err != nil || !info.OK {
		if err != nil {
			e.logger.Warn("address info fetch failed", slog.String("address", addr), slog.String("error", err.Error()))
		}
		return nil, nil
	}
	if info.Result.State == "uninitialized" && info.Result.Balance == "0" {
		return nil, nil
	}

	// A failed wallet check cannot be skipped: without it an active wallet
	// would be misclassified as a contract.
	var wallet struct {
		OK     bool `json:"ok"`
		Result struct {
			Wallet bool `json:"wallet"`
		} `json:"result"`
	}
	walletURL := fmt.Sprintf("%s/getWalletInformation?address=%s", e.spec.RPCURL, url.QueryEscape(addr))
	if err := getJSON(ctx, e.client, walletURL, &wallet); err != nil || !wallet.OK {
		if err != nil {
			e.logger.Warn("wallet info fetch failed", slog.String("address", addr), slog.String("error", err.Error()))
		}
		return nil, nil
	}
	isWallet := wallet.Result.Wallet

	txCount, err := e.countTransactions(ctx, addr)
	if err != nil {
		e.logger.Warn("transaction count failed", slog.String("address", addr), slog.String("error", err.Error()))
		return nil, nil
	}

	isContract := info.Result.State == "active" && !isWallet
	codeSize := 0
	if isContract {
		codeSize = len(info.Result.Code) * 3 / 4 // base64-encoded boc
	}

	return &domain.EntityData{
		Address:          addr,
		Balance:          FormatUnitsString(info.Result.Balance, e.spec.Decimals, e.spec.MaxFractionDigits),
		TransactionCount: txCount,
		IsContract:       isContract,
		CodeSize:         codeSize,
	}, nil
}

// countTransactions pages through getTransactions with the lt/hash cursor
// until the history ends or the chain's page cap is reached. A capped count
// is reported as-is; callers treat it as "at least this many". A failed page
// is an error, never a partial total.
func (e *tonEngine) countTransactions(ctx context.Context, addr string) (int, error) {
	const pageSize = 100
	total := 0
	lt, hash := "", ""
	for total < e.spec.TxPageCap {
		u := fmt.Sprintf("%s/getTransactions?address=%s&limit=%d", e.spec.RPCURL, url.QueryEscape(addr), pageSize)
		if lt != "" {
			u += fmt.Sprintf("&lt=%s&hash=%s", url.QueryEscape(lt), url.QueryEscape(hash))
		}
		var page struct {
			OK     bool `json:"ok"`
			Result []struct {
				TransactionID struct {
					LT   string `json:"lt"`
					Hash string `json:"hash"`
				} `json:"transaction_id"`
			} `json:"result"`
		}
		if err := getJSON(ctx, e.client, u, &page); err != nil {
			return 0, err
		}
		if !page.OK {
			return 0, fmt.Errorf("transactions page for %s: %w", addr, domain.ErrUpstream)
		}
		n := len(page.Result)
		if lt != "" && n > 0 {
			n-- // cursor entry repeats at the head of each page after the first
		}
		total += n
		if len(page.Result) < pageSize {
			return total, nil
		}
		last := page.Result[len(page.Result)-1]
		lt, hash = last.TransactionID.LT, last.TransactionID.Hash
	}
	return e.spec.TxPageCap, nil
}
