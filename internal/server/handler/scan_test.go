package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustscope/trustscope/internal/domain"
	"github.com/trustscope/trustscope/internal/pipeline"
)

type fakeScanService struct {
	resp *pipeline.Response
	err  error

	gotQuery      string
	gotChain      string
	baselineCalls int
}

func (f *fakeScanService) Scan(_ context.Context, query, chainID string) (*pipeline.Response, error) {
	f.gotQuery = query
	f.gotChain = chainID
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func (f *fakeScanService) ScanBaseline(ctx context.Context, query, chainID string) (*pipeline.Response, error) {
	f.baselineCalls++
	return f.Scan(ctx, query, chainID)
}

type fakeMultiScanService struct {
	resp *pipeline.MultiResponse
}

func (f *fakeMultiScanService) Scan(_ context.Context, query string, chainIDs []string) *pipeline.MultiResponse {
	return f.resp
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func postJSON(t *testing.T, h http.HandlerFunc, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/scan", bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestScanReturnsPipelineResponse(t *testing.T) {
	svc := &fakeScanService{resp: &pipeline.Response{
		ScanID: "scan-1",
		Data: &domain.AggregatedSearchData{
			Query:   "0xabc",
			ChainID: "1",
		},
		Validation: pipeline.Validation{OK: true},
	}}
	h := NewScanHandler(svc, &fakeMultiScanService{}, testLogger())

	rec := postJSON(t, h.Scan, map[string]string{"query": "  0xabc ", "chain_id": "1"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0xabc", svc.gotQuery)
	assert.Equal(t, "1", svc.gotChain)

	var got pipeline.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "scan-1", got.ScanID)
	assert.True(t, got.Validation.OK)
}

func TestScanRefineFlagSelectsBaseline(t *testing.T) {
	svc := &fakeScanService{resp: &pipeline.Response{ScanID: "scan-2"}}
	h := NewScanHandler(svc, &fakeMultiScanService{}, testLogger())

	rec := postJSON(t, h.Scan, map[string]any{"query": "0xabc", "chain_id": "1", "refine": false})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, svc.baselineCalls)

	// Omitted and explicit true both take the full path.
	rec = postJSON(t, h.Scan, map[string]any{"query": "0xabc", "chain_id": "1"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = postJSON(t, h.Scan, map[string]any{"query": "0xabc", "chain_id": "1", "refine": true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, svc.baselineCalls)
}

func TestScanRejectsMissingFields(t *testing.T) {
	h := NewScanHandler(&fakeScanService{}, &fakeMultiScanService{}, testLogger())

	rec := postJSON(t, h.Scan, map[string]string{"chain_id": "1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, h.Scan, map[string]string{"query": "0xabc"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/scan", bytes.NewReader([]byte("{not json")))
	rec = httptest.NewRecorder()
	h.Scan(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScanMapsDomainErrors(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrRateLimited, http.StatusTooManyRequests},
		{domain.ErrTimeout, http.StatusGatewayTimeout},
		{domain.ErrUpstream, http.StatusBadGateway},
	}

	for _, tc := range cases {
		h := NewScanHandler(&fakeScanService{err: tc.err}, &fakeMultiScanService{}, testLogger())
		rec := postJSON(t, h.Scan, map[string]string{"query": "0xabc", "chain_id": "1"})
		assert.Equal(t, tc.want, rec.Code, "error %v", tc.err)
	}
}

func TestScanMultiAlwaysSucceeds(t *testing.T) {
	svc := &fakeMultiScanService{resp: &pipeline.MultiResponse{
		ScanID: "multi-1",
		Query:  "0xabc",
		Results: []domain.AnalysisResult{
			{ChainKey: "1", Score: 80},
			{ChainKey: "solana", Score: 0},
		},
	}}
	h := NewScanHandler(&fakeScanService{}, svc, testLogger())

	raw, err := json.Marshal(map[string]any{
		"query":     "0xabc",
		"chain_ids": []string{"1", "solana"},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/scan/multi", bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	h.ScanMulti(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got pipeline.MultiResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got.Results, 2)
}

func TestScanMultiRejectsEmptyChainList(t *testing.T) {
	h := NewScanHandler(&fakeScanService{}, &fakeMultiScanService{}, testLogger())

	raw, _ := json.Marshal(map[string]any{"query": "0xabc"})
	req := httptest.NewRequest(http.MethodPost, "/api/scan/multi", bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	h.ScanMulti(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
