package hmacsig

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignKnownVector(t *testing.T) {
	// HMAC-SHA256("1700000000000:POST:/v1/prices/get:{"pair":"BTC-USD"}", "s3cr3t")
	sig := Sign("s3cr3t", 1700000000000, "POST", "/v1/prices/get", []byte(`{"pair":"BTC-USD"}`))
	assert.Equal(t, "cf2caae9fbc25cd5ebb246c11a02e32583fb207a7f31c9b34d13a195f6a2ff4e", sig)
}

func TestSignEmptyBody(t *testing.T) {
	sig := Sign("s3cr3t", 1700000000000, "GET", "/health", nil)
	assert.Equal(t, "9decec521b83bdf1996e25e6037d806e54d53b706dc98eaa63d145b03769cc6e", sig)
	// nil body and empty body sign identically
	assert.Equal(t, sig, Sign("s3cr3t", 1700000000000, "GET", "/health", []byte{}))
}

func TestVerifyRoundTrip(t *testing.T) {
	body := []byte(`{"network":"testnet"}`)
	sig := Sign("topsecret", 1700000000123, "POST", "/v1/markets/list", body)
	assert.Equal(t, "fac0ddbf9982dbf74b6925b5f66762295ad5c6cded5aedb48aee8e9f5fbcd07f", sig)
	assert.True(t, Verify("topsecret", 1700000000123, "POST", "/v1/markets/list", body, sig))
}

func TestVerifyLowercasesMethod(t *testing.T) {
	body := []byte(`{}`)
	sig := Sign("k", 1, "POST", "/v1/orders/list", body)
	assert.True(t, Verify("k", 1, "post", "/v1/orders/list", body, sig))
}

func TestVerifyRejectsAnyMutation(t *testing.T) {
	secret := "s3cr3t"
	body := []byte(`{"pair":"BTC-USD"}`)
	sig := Sign(secret, 1700000000000, "POST", "/v1/prices/get", body)

	mutatedBody := []byte(`{"pair":"BTC-USd"}`)
	assert.False(t, Verify(secret, 1700000000000, "POST", "/v1/prices/get", mutatedBody, sig))
	assert.False(t, Verify(secret, 1700000000001, "POST", "/v1/prices/get", body, sig))
	assert.False(t, Verify(secret, 1700000000000, "PUT", "/v1/prices/get", body, sig))
	assert.False(t, Verify(secret, 1700000000000, "POST", "/v1/prices/get/", body, sig))
	assert.False(t, Verify("wrong", 1700000000000, "POST", "/v1/prices/get", body, sig))
}

func TestVerifyMalformedInputs(t *testing.T) {
	body := []byte(`{}`)
	sig := Sign("k", 1, "POST", "/v1/orders/list", body)
	assert.False(t, Verify("k", 1, "POST", "/v1/orders/list", body, ""))
	assert.False(t, Verify("k", 1, "POST", "/v1/orders/list", body, "not-hex"))
	assert.False(t, Verify("k", 1, "POST", "/v1/orders/list", body, sig[:32]))
	assert.False(t, Verify("", 1, "POST", "/v1/orders/list", body, sig))
}

func TestVerifyAcceptsUppercaseHex(t *testing.T) {
	body := []byte(`{}`)
	sig := Sign("k", 42, "POST", "/v1/positions/list", body)
	upper := ""
	for _, r := range sig {
		if r >= 'a' && r <= 'f' {
			r = r - 'a' + 'A'
		}
		upper += string(r)
	}
	assert.True(t, Verify("k", 42, "POST", "/v1/positions/list", body, upper))
}

func TestVerifyRawPreservesTimestampBytes(t *testing.T) {
	// A caller signing "0123..." must verify against the header verbatim;
	// integer normalization would strip the leading zero and break it.
	raw := "01700000000000"
	body := []byte(`{"pair":"BTC-USD"}`)
	sig := SignRaw("s3cr3t", raw, "POST", "/v1/prices/get", body)

	assert.True(t, VerifyRaw("s3cr3t", raw, "POST", "/v1/prices/get", body, sig))
	assert.False(t, VerifyRaw("s3cr3t", "1700000000000", "POST", "/v1/prices/get", body, sig))
}

func TestSignRawMatchesSignForCanonicalForm(t *testing.T) {
	body := []byte(`{"network":"testnet"}`)
	assert.Equal(t,
		Sign("s3cr3t", 1700000000000, "POST", "/v1/markets/list", body),
		SignRaw("s3cr3t", "1700000000000", "POST", "/v1/markets/list", body))
}
