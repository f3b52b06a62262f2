package chains

import (
	"context"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/trustscope/trustscope/internal/domain"
)

// Named accounts (alice.near) and 64-char hex implicit accounts.
var nearAccountRe = regexp.MustCompile(`^([a-z0-9]([a-z0-9_-]*[a-z0-9])?\.)*[a-z0-9]([a-z0-9_-]*[a-z0-9])?$`)

// nearEngine queries a NEAR JSON-RPC node with the view_account method.
// Balances are in yoctoNEAR (24 decimals). NEAR exposes no cheap per-account
// transaction count, so it stays zero and activity flags never fire here.
type nearEngine struct {
	spec   Spec
	client *http.Client
	logger *slog.Logger
}

func newNearEngine(spec Spec, client *http.Client, logger *slog.Logger) *nearEngine {
	return &nearEngine{spec: spec, client: client, logger: logger.With(slog.String("chain", spec.Key))}
}

func (e *nearEngine) Spec() Spec { return e.spec }

func (e *nearEngine) Analyze(ctx context.Context, identifier string) (domain.AnalysisResult, error) {
	return analyze(ctx, e, identifier)
}

func (e *nearEngine) FetchData(ctx context.Context, identifier string) (*domain.EntityData, error) {
	account := normalizeQuery(e.spec.Family, identifier)
	if len(account) < 2 || len(account) > 64 || !nearAccountRe.MatchString(account) {
		return nil, nil
	}

	req := map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "query",
		"params": map[string]any{
			"request_type": "view_account",
			"finality":     "final",
			"account_id":   account,
		},
	}
	var resp struct {
		Result struct {
			Amount   string `json:"amount"`
			CodeHash string `json:"code_hash"`
		} `json:"result"`
		Error *struct {
			Cause struct {
				Name string `json:"name"`
			} `json:"cause"`
		} `json:"error"`
	}
	if err := postJSON(ctx, e.client, e.spec.RPCURL, req, &resp); err != nil {
		e.logger.Warn("view_account failed", slog.String("account", account), slog.String("error", err.Error()))
		return nil, nil
	}
	if resp.Error != nil || resp.Result.Amount == "" {
		return nil, nil
	}

	return &domain.EntityData{
		Address:          account,
		Balance:          FormatUnitsString(resp.Result.Amount, e.spec.Decimals, e.spec.MaxFractionDigits),
		TransactionCount: 0,
		IsContract:       false,
	}, nil
}
