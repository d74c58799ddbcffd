package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/prepstack-ai/prepstack-engine/pkg/config"
)

type stubPinger struct {
	err error
}

func (s *stubPinger) Ping(ctx context.Context) error {
	return s.err
}

func TestHealth(t *testing.T) {
	h := NewHealthHandler(&config.Config{}, nil, zap.NewNop())

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestReady_DatabaseReachable(t *testing.T) {
	h := NewHealthHandler(&config.Config{}, &stubPinger{}, zap.NewNop())

	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", rec.Body.String())
}

func TestReady_DatabaseDown(t *testing.T) {
	h := NewHealthHandler(&config.Config{}, &stubPinger{err: errors.New("connection refused")}, zap.NewNop())

	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "not_ready")
}

func TestReady_NoDatabaseConfigured(t *testing.T) {
	h := NewHealthHandler(&config.Config{}, nil, zap.NewNop())

	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPing(t *testing.T) {
	h := NewHealthHandler(&config.Config{Version: "1.2.3", Env: "local"}, nil, zap.NewNop())

	rec := httptest.NewRecorder()
	h.Ping(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp PingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
	assert.Equal(t, "prepstack-engine", resp.Service)
	assert.Equal(t, "local", resp.Environment)
}
