package httputil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-risk/pkg/config"
	"github.com/wonny/aegis-risk/pkg/logger"
)

func newTestClient() *Client {
	return New(&config.Config{Env: "test"}, logger.NewNop())
}

type snapshotStub struct {
	PortfolioID string `json:"portfolioId"`
	Positions   []struct {
		Symbol string `json:"symbol"`
	} `json:"positions"`
}

func TestNew_TimeoutCappedByRunTimeout(t *testing.T) {
	cfg := &config.Config{Risk: config.RiskConfig{RunTimeout: 5 * time.Second}}
	c := New(cfg, logger.NewNop())

	assert.Equal(t, 5*time.Second, c.httpClient.Timeout)
	assert.True(t, c.retry.Enabled)

	assert.Equal(t, 30*time.Second, newTestClient().httpClient.Timeout)
}

func TestGetJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, userAgent, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"portfolioId":"p1","positions":[{"symbol":"AAPL"},{"symbol":"TLT"}]}`))
	}))
	defer server.Close()

	var out snapshotStub
	require.NoError(t, newTestClient().DisableRetry().GetJSON(context.Background(), server.URL, &out))

	assert.Equal(t, "p1", out.PortfolioID)
	assert.Len(t, out.Positions, 2)
}

func TestGetJSON_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`no snapshot`))
	}))
	defer server.Close()

	var out snapshotStub
	err := newTestClient().DisableRetry().GetJSON(context.Background(), server.URL, &out)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Equal(t, "no snapshot", statusErr.Body)
}

func TestGetJSON_BadBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer server.Close()

	var out snapshotStub
	err := newTestClient().DisableRetry().GetJSON(context.Background(), server.URL, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode JSON")
}

func TestRetry_RecoversFrom503(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"portfolioId":"p1"}`))
	}))
	defer server.Close()

	var out snapshotStub
	err := newTestClient().WithRetry(3, 10*time.Millisecond).GetJSON(context.Background(), server.URL, &out)

	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
	assert.Equal(t, "p1", out.PortfolioID)
}

func TestRetry_ExhaustedReturnsLastStatus(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	var out snapshotStub
	err := newTestClient().WithRetry(2, time.Millisecond).GetJSON(context.Background(), server.URL, &out)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestRetry_NotOn4xx(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	var out snapshotStub
	err := newTestClient().WithRetry(3, time.Millisecond).GetJSON(context.Background(), server.URL, &out)

	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestRetry_StopsOnContextCancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	var out snapshotStub
	err := newTestClient().WithRetry(5, time.Second).GetJSON(ctx, server.URL, &out)

	require.Error(t, err)
	assert.Less(t, time.Since(start), 900*time.Millisecond)
}

func TestIsRetryableStatus(t *testing.T) {
	tests := map[int]bool{
		200: false,
		400: false,
		404: false,
		429: true,
		500: true,
		502: true,
		503: true,
	}

	for code, want := range tests {
		assert.Equal(t, want, IsRetryableStatus(code), "status %d", code)
	}
}
