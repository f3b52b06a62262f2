package chains

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/trustscope/trustscope/internal/domain"
)

var suiAddressRe = regexp.MustCompile(`^0x[a-f0-9]{64}$`)

// suiEngine speaks the Sui JSON-RPC API. Balances arrive in MIST (9
// decimals); transaction counting pages suix_queryTransactionBlocks and
// counts distinct digests up to the cap.
type suiEngine struct {
	spec   Spec
	client *http.Client
	logger *slog.Logger
}

func newSuiEngine(spec Spec, client *http.Client, logger *slog.Logger) *suiEngine {
	return &suiEngine{spec: spec, client: client, logger: logger.With(slog.String("chain", spec.Key))}
}

func (e *suiEngine) Spec() Spec { return e.spec }

func (e *suiEngine) Analyze(ctx context.Context, identifier string) (domain.AnalysisResult, error) {
	return analyze(ctx, e, identifier)
}

func (e *suiEngine) rpc(ctx context.Context, method string, params []any, result any) error {
	payload := map[string]any{"jsonrpc": "2.0", "id": 1, "method": method, "params": params}
	var resp struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := postJSON(ctx, e.client, e.spec.RPCURL, payload, &resp); err != nil {
		return err
	}
	if resp.Error != nil {
		return domain.ErrUpstream
	}
	return json.Unmarshal(resp.Result, result)
}

func (e *suiEngine) FetchData(ctx context.Context, identifier string) (*domain.EntityData, error) {
	addr := normalizeQuery(FamilySui, identifier)
	if !suiAddressRe.MatchString(addr) {
		return nil, nil
	}

	var balance struct {
		TotalBalance string `json:"totalBalance"`
	}
	if err := e.rpc(ctx, "suix_getBalance", []any{addr, "0x2::sui::SUI"}, &balance); err != nil {
		e.logger.Warn("balance fetch failed", slog.String("address", addr), slog.String("error", err.Error()))
		return nil, nil
	}

	txCount, err := e.countTransactionBlocks(ctx, addr)
	if err != nil {
		e.logger.Warn("tx count failed", slog.String("address", addr), slog.String("error", err.Error()))
		return nil, nil
	}

	return &domain.EntityData{
		Address:          addr,
		Balance:          FormatUnitsString(balance.TotalBalance, e.spec.Decimals, e.spec.MaxFractionDigits),
		TransactionCount: txCount,
		IsContract:       false, // package objects are out of this model
	}, nil
}

// countTransactionBlocks counts distinct digests across sent and received
// pages until both are exhausted or the combined cap is reached.
func (e *suiEngine) countTransactionBlocks(ctx context.Context, addr string) (int, error) {
	const pageLimit = 50

	seen := make(map[string]bool)
	for _, filter := range []map[string]any{
		{"FromAddress": addr},
		{"ToAddress": addr},
	} {
		var cursor any
		for len(seen) < e.spec.TxPageCap {
			query := map[string]any{"filter": filter}
			params := []any{query, cursor, pageLimit, true}

			var page struct {
				Data []struct {
					Digest string `json:"digest"`
				} `json:"data"`
				NextCursor  *string `json:"nextCursor"`
				HasNextPage bool    `json:"hasNextPage"`
			}
			if err := e.rpc(ctx, "suix_queryTransactionBlocks", params, &page); err != nil {
				return 0, err
			}

			for _, tx := range page.Data {
				seen[tx.Digest] = true
			}
			if !page.HasNextPage || page.NextCursor == nil {
				break
			}
			cursor = *page.NextCursor
		}
	}

	if len(seen) >= e.spec.TxPageCap {
		return e.spec.TxPageCap, nil
	}
	return len(seen), nil
}
