package handler

import (
	"log/slog"
	"net/http"

	"github.com/trustscope/trustscope/internal/chains"
)

// ChainsHandler serves the supported-chains catalogue.
type ChainsHandler struct {
	registry *chains.Registry
	logger   *slog.Logger
}

// NewChainsHandler creates a ChainsHandler backed by the given registry.
func NewChainsHandler(registry *chains.Registry, logger *slog.Logger) *ChainsHandler {
	return &ChainsHandler{registry: registry, logger: logger}
}

// chainInfo is the wire representation of a supported chain.
type chainInfo struct {
	Key          string `json:"key"`
	ChainID      int    `json:"chain_id,omitempty"`
	Name         string `json:"name"`
	Family       string `json:"family"`
	NativeSymbol string `json:"native_symbol"`
	Decimals     int    `json:"decimals"`
	Testnet      bool   `json:"testnet,omitempty"`
}

// ListChains returns every chain the registry can analyze.
// GET /api/chains
func (h *ChainsHandler) ListChains(w http.ResponseWriter, r *http.Request) {
	specs := h.registry.Specs()
	out := make([]chainInfo, 0, len(specs))
	for _, s := range specs {
		out = append(out, chainInfo{
			Key:          s.Key,
			ChainID:      s.ChainID,
			Name:         s.Name,
			Family:       string(s.Family),
			NativeSymbol: s.NativeSymbol,
			Decimals:     s.Decimals,
			Testnet:      s.Testnet,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"chains": out,
		"total":  len(out),
	})
}
