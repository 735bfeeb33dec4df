package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowforge/ostiumgate/internal/hmacsig"
	"github.com/flowforge/ostiumgate/internal/replay"
)

const testSecret = "s3cr3t"

func newAuthRouter(t *testing.T, handled *int) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.Use(ErrorHandler(nil))

	guard := replay.NewGuard(30*time.Second, 5*time.Second)
	v1 := r.Group("/v1")
	v1.Use(HMACAuth(testSecret, guard))
	v1.POST("/markets/list", func(c *gin.Context) {
		*handled++
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	return r
}

func signedRequest(t *testing.T, ts int64, body []byte) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/markets/list", bytes.NewReader(body))
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(HeaderSignature, hmacsig.Sign(testSecret, ts, http.MethodPost, "/v1/markets/list", body))
	return req
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Success bool `json:"success"`
		Error   struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.False(t, envelope.Success)
	return envelope.Error.Code
}

func TestAuthValidSignaturePasses(t *testing.T) {
	var handled int
	r := newAuthRouter(t, &handled)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedRequest(t, time.Now().UnixMilli(), []byte(`{"network":"testnet"}`)))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, handled)
	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))
}

func TestAuthMissingHeaders(t *testing.T) {
	var handled int
	r := newAuthRouter(t, &handled)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/markets/list", bytes.NewReader([]byte(`{}`)))
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "AUTH_FAILED", errorCode(t, w))
	assert.Zero(t, handled)
}

func TestAuthMalformedTimestamp(t *testing.T) {
	var handled int
	r := newAuthRouter(t, &handled)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/markets/list", bytes.NewReader([]byte(`{}`)))
	req.Header.Set(HeaderTimestamp, "not-a-number")
	req.Header.Set(HeaderSignature, "deadbeef")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "AUTH_FAILED", errorCode(t, w))
	assert.Zero(t, handled)
}

func TestAuthBadSignature(t *testing.T) {
	var handled int
	r := newAuthRouter(t, &handled)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/markets/list", bytes.NewReader([]byte(`{}`)))
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(time.Now().UnixMilli(), 10))
	req.Header.Set(HeaderSignature, "0000000000000000000000000000000000000000000000000000000000000000")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "AUTH_FAILED", errorCode(t, w))
	assert.Zero(t, handled)
}

func TestAuthTamperedBody(t *testing.T) {
	var handled int
	r := newAuthRouter(t, &handled)

	ts := time.Now().UnixMilli()
	req := httptest.NewRequest(http.MethodPost, "/v1/markets/list", bytes.NewReader([]byte(`{"network":"mainnet"}`)))
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(HeaderSignature, hmacsig.Sign(testSecret, ts, http.MethodPost, "/v1/markets/list", []byte(`{"network":"testnet"}`)))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "AUTH_FAILED", errorCode(t, w))
	assert.Zero(t, handled)
}

func TestAuthAcceptsNonCanonicalTimestampHeader(t *testing.T) {
	var handled int
	r := newAuthRouter(t, &handled)

	// Signed over the header bytes verbatim, leading zero included.
	tsHeader := "0" + strconv.FormatInt(time.Now().UnixMilli(), 10)
	body := []byte(`{"network":"testnet"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/markets/list", bytes.NewReader(body))
	req.Header.Set(HeaderTimestamp, tsHeader)
	req.Header.Set(HeaderSignature, hmacsig.SignRaw(testSecret, tsHeader, http.MethodPost, "/v1/markets/list", body))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, handled)
}

func TestAuthStaleTimestamp(t *testing.T) {
	var handled int
	r := newAuthRouter(t, &handled)

	stale := time.Now().Add(-2 * time.Minute).UnixMilli()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedRequest(t, stale, []byte(`{}`)))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "REQUEST_STALE", errorCode(t, w))
	assert.Zero(t, handled)
}

func TestAuthReplayRejected(t *testing.T) {
	var handled int
	r := newAuthRouter(t, &handled)

	ts := time.Now().UnixMilli()
	body := []byte(`{"network":"testnet"}`)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedRequest(t, ts, body))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, signedRequest(t, ts, body))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "REQUEST_REPLAYED", errorCode(t, w))
	assert.Equal(t, 1, handled)
}

func TestHealthBypassesAuth(t *testing.T) {
	var handled int
	r := newAuthRouter(t, &handled)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
