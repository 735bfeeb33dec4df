package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestApplySingleQuote(t *testing.T) {
	f := New("")
	f.apply([]byte(`{"feed":"BTC/USD","mid":64123.5,"isMarketOpen":true}`))

	q, ok := f.Last("btc/usd")
	assert.True(t, ok)
	assert.Equal(t, "64123.5", q.Mid.String())
	assert.True(t, q.MarketOpen)
}

func TestApplyBatch(t *testing.T) {
	f := New("")
	f.apply([]byte(`[{"feed":"ETH/USD","price":"3010.25"},{"feed":"XAU/USD","mid":2350,"isMarketOpen":false}]`))

	q, ok := f.Last("ETH/USD")
	assert.True(t, ok)
	assert.Equal(t, "3010.25", q.Mid.String())

	q, ok = f.Last("XAU/USD")
	assert.True(t, ok)
	assert.False(t, q.MarketOpen)
}

func TestApplyIgnoresGarbage(t *testing.T) {
	f := New("")
	f.apply([]byte(`not json`))
	f.apply([]byte(`{"feed":"","mid":1}`))
	f.apply([]byte(`{"feed":"BTC/USD"}`))

	_, ok := f.Last("BTC/USD")
	assert.False(t, ok)
}

func TestStaleQuoteMisses(t *testing.T) {
	f := New("")
	f.apply([]byte(`{"feed":"BTC/USD","mid":1}`))

	f.mu.Lock()
	q := f.quotes["BTC/USD"]
	q.ReceivedAt = time.Now().Add(-time.Minute)
	f.quotes["BTC/USD"] = q
	f.mu.Unlock()

	_, ok := f.Last("BTC/USD")
	assert.False(t, ok)
}

func TestIdleFeedNeverHits(t *testing.T) {
	f := New("")
	f.Start() // no URL: no-op
	_, ok := f.Last("BTC/USD")
	assert.False(t, ok)
	f.Stop()
}
