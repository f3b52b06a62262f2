package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustscope/trustscope/internal/chains"
)

func TestHealthCheckReportsChainCount(t *testing.T) {
	registry := chains.NewRegistry(nil, testLogger())
	h := NewHealthHandler(registry, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	h.HealthCheck(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		Status string `json:"status"`
		Chains int    `json:"chains"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "ok", got.Status)
	assert.Equal(t, len(registry.Specs()), got.Chains)
}
