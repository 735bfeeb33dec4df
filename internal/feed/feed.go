// Package feed keeps a live cache of the most recent published price per
// symbol, fed by the Ostium price-publisher websocket. The gateway uses
// it as a fallback quote source when the REST price endpoint fails.
package feed

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/flowforge/ostiumgate/internal/pkg/logger"
)

const (
	reconnBaseDelay = 1 * time.Second
	reconnMaxDelay  = 30 * time.Second
	pingPeriod      = 15 * time.Second
	staleAfter      = 30 * time.Second
)

type Quote struct {
	Symbol     string
	Mid        decimal.Decimal
	MarketOpen bool
	ReceivedAt time.Time
}

type PriceFeed struct {
	url    string
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	quotes map[string]Quote
}

func New(url string) *PriceFeed {
	ctx, cancel := context.WithCancel(context.Background())
	return &PriceFeed{
		url:    url,
		ctx:    ctx,
		cancel: cancel,
		quotes: make(map[string]Quote),
	}
}

// Start launches the connection loop. A feed without a URL stays idle
// and every lookup misses.
func (f *PriceFeed) Start() {
	if f.url == "" {
		return
	}
	go f.runLoop()
}

func (f *PriceFeed) Stop() {
	f.cancel()
}

// Last returns the cached quote for a symbol like "BTC/USD" unless it
// has gone stale.
func (f *PriceFeed) Last(symbol string) (Quote, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	q, ok := f.quotes[strings.ToUpper(symbol)]
	if !ok || time.Since(q.ReceivedAt) > staleAfter {
		return Quote{}, false
	}
	return q, true
}

func (f *PriceFeed) runLoop() {
	delay := reconnBaseDelay

	for {
		select {
		case <-f.ctx.Done():
			return
		default:
		}

		conn, _, err := websocket.DefaultDialer.DialContext(f.ctx, f.url, nil)
		if err != nil {
			logger.Error("price feed connection failed", "error", err, "retry_in", delay)
			select {
			case <-f.ctx.Done():
				return
			case <-time.After(delay):
			}
			delay *= 2
			if delay > reconnMaxDelay {
				delay = reconnMaxDelay
			}
			continue
		}

		logger.Info("price feed connected", "url", f.url)
		delay = reconnBaseDelay
		f.readUntilClosed(conn)
		conn.Close()
	}
}

func (f *PriceFeed) readUntilClosed(conn *websocket.Conn) {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-f.ctx.Done():
				conn.Close()
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
					conn.Close()
					return
				}
			}
		}
	}()
	defer close(done)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if f.ctx.Err() == nil {
				logger.Warn("price feed read failed", "error", err)
			}
			return
		}
		f.apply(msg)
	}
}

type feedMessage struct {
	Feed         string       `json:"feed"`
	Mid          *json.Number `json:"mid"`
	Price        *json.Number `json:"price"`
	IsMarketOpen *bool        `json:"isMarketOpen"`
}

// apply ingests one feed frame; frames may carry a single quote or a
// batch.
func (f *PriceFeed) apply(msg []byte) {
	var batch []feedMessage
	if err := json.Unmarshal(msg, &batch); err != nil {
		var one feedMessage
		if err := json.Unmarshal(msg, &one); err != nil {
			return
		}
		batch = []feedMessage{one}
	}

	now := time.Now()
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range batch {
		if m.Feed == "" {
			continue
		}
		num := m.Mid
		if num == nil {
			num = m.Price
		}
		if num == nil {
			continue
		}
		mid, err := decimal.NewFromString(num.String())
		if err != nil {
			continue
		}
		open := true
		if m.IsMarketOpen != nil {
			open = *m.IsMarketOpen
		}
		f.quotes[strings.ToUpper(m.Feed)] = Quote{
			Symbol:     strings.ToUpper(m.Feed),
			Mid:        mid,
			MarketOpen: open,
			ReceivedAt: now,
		}
	}
}
