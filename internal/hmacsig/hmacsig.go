package hmacsig

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// CanonicalRaw builds the exact string covered by the request signature:
// "{timestamp}:{METHOD}:{path}:{rawBody}". The timestamp is the header
// value exactly as the caller sent it, and the body is the raw byte
// sequence as received; normalizing either would change the bytes the
// caller signed and break verification.
func CanonicalRaw(timestamp, method, path string, rawBody []byte) []byte {
	var b strings.Builder
	b.Grow(len(rawBody) + len(path) + len(timestamp) + 8)
	b.WriteString(timestamp)
	b.WriteByte(':')
	b.WriteString(strings.ToUpper(method))
	b.WriteByte(':')
	b.WriteString(path)
	b.WriteByte(':')
	b.Write(rawBody)
	return []byte(b.String())
}

// Canonical is CanonicalRaw for callers holding a parsed timestamp.
func Canonical(timestamp int64, method, path string, rawBody []byte) []byte {
	return CanonicalRaw(strconv.FormatInt(timestamp, 10), method, path, rawBody)
}

// Sign computes the hex-encoded HMAC-SHA256 of the canonical string.
func Sign(secret string, timestamp int64, method, path string, rawBody []byte) string {
	return SignRaw(secret, strconv.FormatInt(timestamp, 10), method, path, rawBody)
}

// SignRaw signs over the timestamp string verbatim.
func SignRaw(secret, timestamp, method, path string, rawBody []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(CanonicalRaw(timestamp, method, path, rawBody))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the expected signature and compares it to the one
// supplied by the caller. The comparison is constant-time; a short-circuit
// byte compare here would leak how much of a forged signature matched.
// Verify never fails hard: malformed input simply yields false.
func Verify(secret string, timestamp int64, method, path string, rawBody []byte, provided string) bool {
	return VerifyRaw(secret, strconv.FormatInt(timestamp, 10), method, path, rawBody, provided)
}

// VerifyRaw verifies against the timestamp string exactly as received,
// so a caller who signed "0123" is not broken by integer normalization.
func VerifyRaw(secret, timestamp, method, path string, rawBody []byte, provided string) bool {
	if secret == "" || provided == "" {
		return false
	}
	got, err := hex.DecodeString(strings.ToLower(provided))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(CanonicalRaw(timestamp, method, path, rawBody))
	return hmac.Equal(mac.Sum(nil), got)
}
