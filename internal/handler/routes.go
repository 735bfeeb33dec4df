package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/flowforge/ostiumgate/internal/middleware"
	"github.com/flowforge/ostiumgate/internal/readiness"
)

// Descriptor is one dispatch table row. The table is the single source
// of truth for the /v1 surface: adding a route here wires auth, the
// readiness gate for mutations, and metrics in one place.
type Descriptor struct {
	Route    string
	Mutating bool
	Handle   gin.HandlerFunc
}

// Routes builds the full dispatch table. Every operation is POST with a
// JSON body; reads and mutations differ only in the Mutating flag.
func Routes(markets *MarketHandler, accounts *AccountHandler, trading *TradingHandler, orders *OrderHandler) []Descriptor {
	return []Descriptor{
		{Route: "/markets/list", Handle: markets.List},
		{Route: "/markets/details", Handle: markets.Details},
		{Route: "/markets/funding-rate", Handle: markets.FundingRate},
		{Route: "/markets/rollover-rate", Handle: markets.RolloverRate},
		{Route: "/prices/get", Handle: markets.Price},

		{Route: "/accounts/balance", Handle: accounts.Balance},
		{Route: "/accounts/history", Handle: accounts.History},
		{Route: "/faucet/request", Mutating: true, Handle: accounts.Faucet},

		{Route: "/positions/list", Handle: trading.List},
		{Route: "/positions/metrics", Handle: trading.Metrics},
		{Route: "/positions/open", Mutating: true, Handle: trading.Open},
		{Route: "/positions/close", Mutating: true, Handle: trading.Close},
		{Route: "/positions/update-sl", Mutating: true, Handle: trading.UpdateSL},
		{Route: "/positions/update-tp", Mutating: true, Handle: trading.UpdateTP},

		{Route: "/orders/list", Handle: orders.List},
		{Route: "/orders/track", Handle: orders.Track},
		{Route: "/orders/cancel", Mutating: true, Handle: orders.Cancel},
		{Route: "/orders/update", Mutating: true, Handle: orders.Update},
	}
}

// Register mounts the table onto the authenticated group. Mutating
// routes get the readiness gate in front of the handler; reads are
// additionally gated while degraded when allowDegradedReads is off.
func Register(group *gin.RouterGroup, gate *readiness.Gate, table []Descriptor, allowDegradedReads bool) {
	requireReady := middleware.RequireReady(gate)
	var readGuard gin.HandlerFunc
	if !allowDegradedReads {
		readGuard = middleware.BlockDegradedReads(gate)
	}
	for _, d := range table {
		switch {
		case d.Mutating:
			group.POST(d.Route, requireReady, d.Handle)
		case readGuard != nil:
			group.POST(d.Route, readGuard, d.Handle)
		default:
			group.POST(d.Route, d.Handle)
		}
	}
}
