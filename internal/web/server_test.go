package web

import (
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/romanzzaa/bybit-orderbook-monitor/internal/domain"
	"github.com/romanzzaa/bybit-orderbook-monitor/internal/worker"
)

type staticStatus struct{ st worker.Status }

func (s staticStatus) Snapshot() worker.Status { return s.st }

type staticSubs int

func (s staticSubs) Subscribers() int { return int(s) }

func newTestServer(st worker.Status, subs int) *Server {
	return NewServer(":0", staticStatus{st}, staticSubs(subs), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHealth(t *testing.T) {
	srv := newTestServer(worker.Status{}, 0)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestStatusRunning(t *testing.T) {
	updated := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	srv := newTestServer(worker.Status{
		State:        domain.SessionRunning,
		Filter:       domain.FilterConfig{MinVolume: 10, MaxVolume: math.Inf(1), MinPrice: 1, MaxPrice: 2, FilteringEnabled: true},
		Topics:       []string{"orderbook.500.BTCUSDT"},
		Sessions:     3,
		Restarts:     1,
		LastUpdateAt: updated,
		LastError:    "feed transport error: read: EOF",
	}, 4)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, domain.SessionRunning, body.State)
	assert.Equal(t, "+Inf", body.Filter.MaxVolume)
	assert.True(t, body.Filter.Enabled)
	assert.Equal(t, 4, body.Subscribers)
	assert.Equal(t, uint64(3), body.Sessions)
	assert.Equal(t, 1, body.Restarts)
	require.NotNil(t, body.LastUpdateAt)
	assert.True(t, updated.Equal(*body.LastUpdateAt))
}

func TestStatusStoppedHasNoLastUpdate(t *testing.T) {
	srv := newTestServer(worker.Status{State: domain.SessionStopped}, 0)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"last_update_at":null`)
	assert.Contains(t, rec.Body.String(), `"state":"STOPPED"`)
}
