package middleware

import (
	"bytes"
	"errors"
	"io"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/flowforge/ostiumgate/internal/hmacsig"
	"github.com/flowforge/ostiumgate/internal/pkg/apperrors"
	"github.com/flowforge/ostiumgate/internal/pkg/metrics"
	"github.com/flowforge/ostiumgate/internal/replay"
)

const (
	HeaderTimestamp = "X-Timestamp"
	HeaderSignature = "X-Signature"
)

// HMACAuth verifies the request signature over
// "{timestamp}:{METHOD}:{path}:{body}" and admits the signature into
// the replay store. Freshness and replay are checked only after the
// signature itself verifies, so the guard never stores attacker-chosen
// garbage.
func HMACAuth(secret string, store replay.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		tsHeader := c.GetHeader(HeaderTimestamp)
		sig := c.GetHeader(HeaderSignature)
		if tsHeader == "" || sig == "" {
			reject(c, "missing_headers", apperrors.New(apperrors.CodeAuthFailed,
				"Missing X-Timestamp or X-Signature header", nil))
			return
		}

		tsMillis, err := strconv.ParseInt(tsHeader, 10, 64)
		if err != nil {
			reject(c, "bad_timestamp", apperrors.New(apperrors.CodeAuthFailed,
				"X-Timestamp must be unix milliseconds", nil))
			return
		}

		var body []byte
		if c.Request.Body != nil {
			body, err = io.ReadAll(c.Request.Body)
			if err != nil {
				reject(c, "body_read", apperrors.New(apperrors.CodeAuthFailed,
					"Could not read request body", err))
				return
			}
			c.Request.Body = io.NopCloser(bytes.NewBuffer(body))
		}

		if !hmacsig.VerifyRaw(secret, tsHeader, c.Request.Method, c.Request.URL.Path, body, sig) {
			reject(c, "bad_signature", apperrors.New(apperrors.CodeAuthFailed,
				"Signature verification failed", nil))
			return
		}

		ts := time.UnixMilli(tsMillis)
		if err := store.Admit(c.Request.Context(), sig, ts, time.Now()); err != nil {
			switch {
			case errors.Is(err, replay.ErrStale):
				reject(c, "stale", apperrors.New(apperrors.CodeRequestStale,
					"Request timestamp is outside the accepted freshness window", nil))
			case errors.Is(err, replay.ErrReplayed):
				reject(c, "replayed", apperrors.New(apperrors.CodeRequestReplayed,
					"Signature has already been used", nil))
			default:
				reject(c, "store_error", apperrors.New(apperrors.CodeInternal,
					"Replay guard unavailable", err))
			}
			return
		}

		c.Next()
	}
}

func reject(c *gin.Context, reason string, appErr *apperrors.AppError) {
	metrics.AuthRejects.WithLabelValues(reason).Inc()
	_ = c.Error(appErr)
	c.Abort()
}
