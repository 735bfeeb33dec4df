package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowforge/ostiumgate/internal/hmacsig"
	"github.com/flowforge/ostiumgate/internal/middleware"
	"github.com/flowforge/ostiumgate/internal/readiness"
	"github.com/flowforge/ostiumgate/internal/replay"
)

const testSecret = "s3cr3t"

type dispatchFixture struct {
	router    *gin.Engine
	gate      *readiness.Gate
	readHits  int
	writeHits int
}

func newDispatchFixture(t *testing.T, gateChecks ...readiness.Check) *dispatchFixture {
	return newDispatchFixtureOpts(t, true, gateChecks...)
}

func newDispatchFixtureOpts(t *testing.T, allowDegradedReads bool, gateChecks ...readiness.Check) *dispatchFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &dispatchFixture{gate: readiness.NewGate(gateChecks...)}
	table := []Descriptor{
		{Route: "/positions/list", Handle: func(c *gin.Context) {
			f.readHits++
			ok(c, gin.H{"positions": []any{}})
		}},
		{Route: "/positions/open", Mutating: true, Handle: func(c *gin.Context) {
			f.writeHits++
			ok(c, gin.H{"status": "submitted"})
		}},
	}

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.ErrorHandler(f.gate))

	r.GET("/ready", Ready(f.gate))

	guard := replay.NewGuard(30*time.Second, 5*time.Second)
	v1 := r.Group("/v1")
	v1.Use(middleware.HMACAuth(testSecret, guard))
	Register(v1, f.gate, table, allowDegradedReads)

	f.router = r
	return f
}

func (f *dispatchFixture) do(t *testing.T, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	ts := time.Now().UnixMilli()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("X-Timestamp", strconv.FormatInt(ts, 10))
	req.Header.Set("X-Signature", hmacsig.Sign(testSecret, ts, http.MethodPost, path, body))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope
}

func TestMutationBlockedWhileNotReady(t *testing.T) {
	f := newDispatchFixture(t)

	w := f.do(t, "/v1/positions/open", []byte(`{"network":"testnet"}`))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	envelope := decodeEnvelope(t, w)
	assert.Equal(t, false, envelope["success"])
	errBody := envelope["error"].(map[string]any)
	assert.Equal(t, "SERVICE_NOT_READY", errBody["code"])
	assert.Zero(t, f.writeHits, "handler must not run while gated")
}

func TestReadsServedRegardlessOfGate(t *testing.T) {
	f := newDispatchFixture(t)

	w := f.do(t, "/v1/positions/list", []byte(`{"network":"testnet"}`))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, f.readHits)
}

func TestMutationAllowedWhenReady(t *testing.T) {
	f := newDispatchFixture(t, readiness.Check{
		Name:  "ok",
		Probe: func(context.Context) error { return nil },
	})
	f.gate.Probe(context.Background())

	w := f.do(t, "/v1/positions/open", []byte(`{"network":"testnet"}`))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, f.writeHits)

	envelope := decodeEnvelope(t, w)
	assert.Equal(t, true, envelope["success"])
	meta := envelope["meta"].(map[string]any)
	assert.NotEmpty(t, meta["requestId"])
}

func TestMutationBlockedWhileDegraded(t *testing.T) {
	probeErr := error(nil)
	f := newDispatchFixture(t, readiness.Check{
		Name:  "upstream",
		Probe: func(context.Context) error { return probeErr },
	})
	f.gate.Probe(context.Background())
	probeErr = errors.New("rpc timeout")
	f.gate.Probe(context.Background())

	w := f.do(t, "/v1/positions/open", []byte(`{"network":"testnet"}`))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Zero(t, f.writeHits)

	// reads keep flowing while degraded
	w = f.do(t, "/v1/positions/list", []byte(`{"network":"testnet"}`))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDegradedReadsBlockedWhenConfigured(t *testing.T) {
	probeErr := error(nil)
	f := newDispatchFixtureOpts(t, false, readiness.Check{
		Name:  "upstream",
		Probe: func(context.Context) error { return probeErr },
	})
	f.gate.Probe(context.Background())
	probeErr = errors.New("rpc timeout")
	f.gate.Probe(context.Background())

	w := f.do(t, "/v1/positions/list", []byte(`{"network":"testnet"}`))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Zero(t, f.readHits)
}

func TestUnauthenticatedRequestNeverDispatches(t *testing.T) {
	f := newDispatchFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/positions/list", bytes.NewReader([]byte(`{}`)))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Zero(t, f.readHits)
	assert.Zero(t, f.writeHits)
}

func TestReadyBypassesAuthAndReflectsGate(t *testing.T) {
	probeErr := error(nil)
	f := newDispatchFixture(t, readiness.Check{
		Name:  "upstream",
		Probe: func(context.Context) error { return probeErr },
	})

	// No auth headers at any point.
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "not_ready")

	f.gate.Probe(context.Background())
	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ready")

	probeErr = errors.New("rpc timeout")
	f.gate.Probe(context.Background())
	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "degraded")
}

func TestRouteTableCoversSurface(t *testing.T) {
	markets := NewMarketHandler(nil)
	accounts := NewAccountHandler(nil)
	trading := NewTradingHandler(nil)
	orders := NewOrderHandler(nil)

	table := Routes(markets, accounts, trading, orders)
	assert.Len(t, table, 18)

	mutating := map[string]bool{}
	for _, d := range table {
		mutating[d.Route] = d.Mutating
	}
	for _, route := range []string{
		"/positions/open", "/positions/close", "/positions/update-sl",
		"/positions/update-tp", "/orders/cancel", "/orders/update", "/faucet/request",
	} {
		assert.True(t, mutating[route], "%s must be readiness-gated", route)
	}
	for _, route := range []string{
		"/markets/list", "/prices/get", "/positions/list", "/orders/track",
	} {
		assert.False(t, mutating[route], "%s must stay read-only", route)
	}
}
