package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/trustscope/trustscope/internal/pipeline"
)

// ScanService defines the methods the scan handler requires from the
// pipeline layer. It is declared locally so the handler package does not
// depend on concrete pipeline wiring.
type ScanService interface {
	Scan(ctx context.Context, query, chainID string) (*pipeline.Response, error)
	ScanBaseline(ctx context.Context, query, chainID string) (*pipeline.Response, error)
}

// MultiScanService runs the same query across several chains at once.
type MultiScanService interface {
	Scan(ctx context.Context, query string, chainIDs []string) *pipeline.MultiResponse
}

// ScanHandler serves trust-scan HTTP endpoints.
type ScanHandler struct {
	scans      ScanService
	multiScans MultiScanService
	logger     *slog.Logger
}

// NewScanHandler creates a ScanHandler with the given services and logger.
func NewScanHandler(scans ScanService, multiScans MultiScanService, logger *slog.Logger) *ScanHandler {
	return &ScanHandler{
		scans:      scans,
		multiScans: multiScans,
		logger:     logger,
	}
}

// scanRequest is the POST /api/scan request body. Refine defaults to true;
// an explicit false serves the baseline score without spending model budget.
type scanRequest struct {
	Query   string `json:"query"`
	ChainID string `json:"chain_id"`
	Refine  *bool  `json:"refine"`
}

// multiScanRequest is the POST /api/scan/multi request body.
type multiScanRequest struct {
	Query    string   `json:"query"`
	ChainIDs []string `json:"chain_ids"`
}

// Scan runs the full analysis pipeline for a single address on one chain.
// POST /api/scan
func (h *ScanHandler) Scan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Query = strings.TrimSpace(req.Query)
	req.ChainID = strings.TrimSpace(req.ChainID)
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "missing query")
		return
	}
	if req.ChainID == "" {
		writeError(w, http.StatusBadRequest, "missing chain_id")
		return
	}

	scan := h.scans.Scan
	if req.Refine != nil && !*req.Refine {
		scan = h.scans.ScanBaseline
	}

	resp, err := scan(r.Context(), req.Query, req.ChainID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: scan failed",
			slog.String("chain_id", req.ChainID),
			slog.String("error", err.Error()),
		)
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// ScanMulti runs the same query across every requested chain, tolerating
// per-chain failures.
// POST /api/scan/multi
func (h *ScanHandler) ScanMulti(w http.ResponseWriter, r *http.Request) {
	var req multiScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "missing query")
		return
	}
	if len(req.ChainIDs) == 0 {
		writeError(w, http.StatusBadRequest, "missing chain_ids")
		return
	}

	resp := h.multiScans.Scan(r.Context(), req.Query, req.ChainIDs)
	writeJSON(w, http.StatusOK, resp)
}
