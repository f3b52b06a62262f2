package chains

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/big"
	"net/http"

	"github.com/mr-tron/base58"

	"github.com/trustscope/trustscope/internal/domain"
)

// solanaEngine speaks the Solana JSON-RPC API. Balances arrive in lamports
// (9 decimals); transaction counting walks getSignaturesForAddress pages up
// to the configured cap; "contract" means an executable account.
type solanaEngine struct {
	spec   Spec
	client *http.Client
	logger *slog.Logger
}

func newSolanaEngine(spec Spec, client *http.Client, logger *slog.Logger) *solanaEngine {
	return &solanaEngine{spec: spec, client: client, logger: logger.With(slog.String("chain", spec.Key))}
}

func (e *solanaEngine) Spec() Spec { return e.spec }

func (e *solanaEngine) Analyze(ctx context.Context, identifier string) (domain.AnalysisResult, error) {
	return analyze(ctx, e, identifier)
}

type solanaRPCResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (e *solanaEngine) rpc(ctx context.Context, method string, params []any, result any) error {
	payload := map[string]any{"jsonrpc": "2.0", "id": 1, "method": method, "params": params}
	var resp solanaRPCResponse
	if err := postJSON(ctx, e.client, e.spec.RPCURL, payload, &resp); err != nil {
		return err
	}
	if resp.Error != nil {
		return domain.ErrUpstream
	}
	return json.Unmarshal(resp.Result, result)
}

func (e *solanaEngine) FetchData(ctx context.Context, identifier string) (*domain.EntityData, error) {
	addr := normalizeQuery(FamilySolana, identifier)
	if !isSolanaAddress(addr) {
		return nil, nil
	}

	var account struct {
		Value *struct {
			Lamports   uint64 `json:"lamports"`
			Executable bool   `json:"executable"`
			Data       []any  `json:"data"`
		} `json:"value"`
	}
	if err := e.rpc(ctx, "getAccountInfo", []any{addr, map[string]string{"encoding": "base64"}}, &account); err != nil {
		e.logger.Warn("account fetch failed", slog.String("address", addr), slog.String("error", err.Error()))
		return nil, nil
	}
	if account.Value == nil {
		return nil, nil
	}

	codeSize := 0
	if account.Value.Executable && len(account.Value.Data) > 0 {
		if encoded, ok := account.Value.Data[0].(string); ok {
			codeSize = len(encoded) * 3 / 4 // base64 payload size
		}
	}

	txCount, err := e.countSignatures(ctx, addr)
	if err != nil {
		e.logger.Warn("signature count failed", slog.String("address", addr), slog.String("error", err.Error()))
		return nil, nil
	}

	return &domain.EntityData{
		Address:          addr,
		Balance:          FormatUnits(new(big.Int).SetUint64(account.Value.Lamports), e.spec.Decimals, e.spec.MaxFractionDigits),
		TransactionCount: txCount,
		IsContract:       account.Value.Executable,
		CodeSize:         codeSize,
	}, nil
}

// countSignatures walks signature pages (1000 per page) until the history is
// exhausted or the cap is reached. Hitting the cap reports the cap itself as
// an approximation.
func (e *solanaEngine) countSignatures(ctx context.Context, addr string) (int, error) {
	const pageLimit = 1000

	total := 0
	before := ""
	for total < e.spec.TxPageCap {
		opts := map[string]any{"limit": pageLimit}
		if before != "" {
			opts["before"] = before
		}

		var page []struct {
			Signature string `json:"signature"`
		}
		if err := e.rpc(ctx, "getSignaturesForAddress", []any{addr, opts}, &page); err != nil {
			return 0, err
		}

		total += len(page)
		if len(page) < pageLimit {
			return total, nil
		}
		before = page[len(page)-1].Signature
	}
	return e.spec.TxPageCap, nil
}

// isSolanaAddress checks that the identifier decodes as a 32-byte base58
// public key.
func isSolanaAddress(addr string) bool {
	raw, err := base58.Decode(addr)
	return err == nil && len(raw) == 32
}
