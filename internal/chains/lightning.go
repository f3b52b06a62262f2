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

// Lightning node identifiers are 33-byte compressed pubkeys in hex.
var lightningNodeRe = regexp.MustCompile(`^0[23][a-fA-F0-9]{64}$`)

// lightningEngine profiles Lightning Network nodes through a 1ML-style
// explorer API. The node's total channel capacity (satoshis) stands in for
// balance and its channel count for transaction count, which keeps the
// baseline signals meaningful for routing nodes.
type lightningEngine struct {
	spec   Spec
	client *http.Client
	logger *slog.Logger
}

func newLightningEngine(spec Spec, client *http.Client, logger *slog.Logger) *lightningEngine {
	return &lightningEngine{spec: spec, client: client, logger: logger.With(slog.String("chain", spec.Key))}
}

func (e *lightningEngine) Spec() Spec { return e.spec }

func (e *lightningEngine) Analyze(ctx context.Context, identifier string) (domain.AnalysisResult, error) {
	return analyze(ctx, e, identifier)
}

func (e *lightningEngine) FetchData(ctx context.Context, identifier string) (*domain.EntityData, error) {
	pubkey := normalizeQuery(e.spec.Family, identifier)
	if !lightningNodeRe.MatchString(pubkey) {
		return nil, nil
	}

	var node struct {
		PubKey       string `json:"pub_key"`
		Alias        string `json:"alias"`
		Capacity     int64  `json:"capacity"`
		ChannelCount int    `json:"channelcount"`
	}
	u := fmt.Sprintf("%s/node/%s/json", e.spec.RPCURL, url.PathEscape(pubkey))
	if err := getJSON(ctx, e.client, u, &node); err != nil {
		e.logger.Warn("node fetch failed", slog.String("pubkey", pubkey), slog.String("error", err.Error()))
		return nil, nil
	}
	if node.PubKey == "" {
		return nil, nil
	}

	return &domain.EntityData{
		Address:          pubkey,
		ResolvedName:     node.Alias,
		Balance:          FormatUnits(big.NewInt(node.Capacity), e.spec.Decimals, e.spec.MaxFractionDigits),
		TransactionCount: node.ChannelCount,
		IsContract:       false,
	}, nil
}
