package ostium

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/flowforge/ostiumgate/internal/upstream"
)

// The subgraph is the indexed view of Ostium state: pairs, open trades,
// limit orders and trade history. Results that the gateway does not
// interpret are passed through as raw JSON, unchanged in shape.

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (c *Client) querySubgraph(ctx context.Context, network, op, query string, variables map[string]any) (json.RawMessage, error) {
	ep, err := c.endpoints(network)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.SubgraphURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classify(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, classify(op, err)
	}
	if resp.StatusCode >= 500 {
		return nil, upstream.NewError(upstream.KindUnavailable, op, fmt.Errorf("subgraph returned %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, upstream.NewError(upstream.KindOther, op, fmt.Errorf("subgraph returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var gr graphqlResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return nil, upstream.NewError(upstream.KindOther, op, fmt.Errorf("invalid subgraph response: %w", err))
	}
	if len(gr.Errors) > 0 {
		return nil, upstream.NewError(upstream.KindOther, op, fmt.Errorf("subgraph error: %s", gr.Errors[0].Message))
	}
	return gr.Data, nil
}

const pairsQuery = `query Pairs {
  pairs(first: 200) {
    id
    from
    to
    isPaused
    maxLeverage
    group { name }
  }
}`

func (c *Client) ListPairs(ctx context.Context, network string) ([]upstream.Pair, error) {
	data, err := c.querySubgraph(ctx, network, "list_pairs", pairsQuery, nil)
	if err != nil {
		return nil, err
	}

	var out struct {
		Pairs []struct {
			ID          string `json:"id"`
			From        string `json:"from"`
			To          string `json:"to"`
			IsPaused    bool   `json:"isPaused"`
			MaxLeverage string `json:"maxLeverage"`
		} `json:"pairs"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, upstream.NewError(upstream.KindOther, "list_pairs", err)
	}

	pairs := make([]upstream.Pair, 0, len(out.Pairs))
	for _, p := range out.Pairs {
		id, err := strconv.Atoi(p.ID)
		if err != nil {
			continue
		}
		// maxLeverage is indexed with two implied decimals (10000 = 100x)
		maxLev := decimal.Zero
		if raw, err := decimal.NewFromString(p.MaxLeverage); err == nil {
			maxLev = raw.Shift(-2)
		}
		pairs = append(pairs, upstream.Pair{
			ID:          id,
			From:        strings.ToUpper(p.From),
			To:          strings.ToUpper(p.To),
			IsPaused:    p.IsPaused,
			MaxLeverage: maxLev,
		})
	}
	return pairs, nil
}

const pairDetailsQuery = `query PairDetails($id: ID!) {
  pair(id: $id) {
    id
    from
    to
    isPaused
    maxLeverage
    maxOpenInterest
    makerFeeP
    takerFeeP
    curFundingLong
    curFundingShort
    curRollover
    lastFundingRate
    group { name minLeverage maxLeverage }
    fee { minLevPos }
  }
}`

func (c *Client) GetPairDetails(ctx context.Context, network string, pairID int) (json.RawMessage, error) {
	data, err := c.querySubgraph(ctx, network, "pair_details", pairDetailsQuery, map[string]any{
		"id": strconv.Itoa(pairID),
	})
	if err != nil {
		return nil, err
	}
	return extractField(data, "pair", "pair_details")
}

const openTradesQuery = `query OpenTrades($trader: String!) {
  trades(where: { trader: $trader, isOpen: true }, orderBy: timestamp, orderDirection: desc, first: 100) {
    id
    tradeID
    index
    trader
    isOpen
    isBuy
    collateral
    leverage
    openPrice
    takeProfitPrice
    stopLossPrice
    timestamp
    pair { id from to }
  }
}`

func (c *Client) GetOpenTrades(ctx context.Context, network, trader string) (json.RawMessage, error) {
	data, err := c.querySubgraph(ctx, network, "open_trades", openTradesQuery, map[string]any{
		"trader": strings.ToLower(trader),
	})
	if err != nil {
		return nil, err
	}
	return extractField(data, "trades", "open_trades")
}

const ordersQuery = `query Orders($trader: String!) {
  limits(where: { trader: $trader }, orderBy: initiatedAt, orderDirection: desc, first: 100) {
    id
    limitID
    index
    trader
    isBuy
    isActive
    collateral
    leverage
    openPrice
    takeProfitPrice
    stopLossPrice
    limitType
    initiatedAt
    pair { id from to }
  }
}`

func (c *Client) GetOrders(ctx context.Context, network, trader string) (json.RawMessage, error) {
	data, err := c.querySubgraph(ctx, network, "orders", ordersQuery, map[string]any{
		"trader": strings.ToLower(trader),
	})
	if err != nil {
		return nil, err
	}
	return extractField(data, "limits", "orders")
}

const historyQuery = `query History($trader: String!, $first: Int!) {
  orders(where: { trader: $trader }, orderBy: executedAt, orderDirection: desc, first: $first) {
    id
    orderID
    orderAction
    orderType
    isBuy
    price
    collateral
    leverage
    profitPercent
    amountSentToTrader
    isCancelled
    cancelReason
    executedAt
    pair { id from to }
  }
}`

func (c *Client) GetRecentHistory(ctx context.Context, network, trader string, limit int) (json.RawMessage, error) {
	if limit <= 0 || limit > 200 {
		limit = 20
	}
	data, err := c.querySubgraph(ctx, network, "history", historyQuery, map[string]any{
		"trader": strings.ToLower(trader),
		"first":  limit,
	})
	if err != nil {
		return nil, err
	}
	return extractField(data, "orders", "history")
}

const tradeMetricsQuery = `query TradeMetrics($id: ID!) {
  trade(id: $id) {
    id
    index
    trader
    isOpen
    isBuy
    collateral
    leverage
    openPrice
    takeProfitPrice
    stopLossPrice
    fundingFee
    rolloverFee
    timestamp
    pair { id from to curFundingLong curFundingShort curRollover }
  }
}`

// GetTradeMetrics returns the indexed state of one open trade. Trade ids
// follow the subgraph convention "{trader}-{pairId}-{index}".
func (c *Client) GetTradeMetrics(ctx context.Context, network string, pairID, tradeIndex int, trader string) (json.RawMessage, error) {
	id := fmt.Sprintf("%s-%d-%d", strings.ToLower(trader), pairID, tradeIndex)
	data, err := c.querySubgraph(ctx, network, "trade_metrics", tradeMetricsQuery, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	return extractField(data, "trade", "trade_metrics")
}

const trackOrderQuery = `query TrackOrder($id: ID!) {
  order(id: $id) {
    id
    orderID
    orderAction
    orderType
    isBuy
    price
    priceAfterImpact
    collateral
    leverage
    isCancelled
    cancelReason
    executedAt
    trade { id isOpen closePrice }
    pair { id from to }
  }
}`

func (c *Client) TrackOrder(ctx context.Context, network, orderID string) (json.RawMessage, error) {
	data, err := c.querySubgraph(ctx, network, "track_order", trackOrderQuery, map[string]any{"id": orderID})
	if err != nil {
		return nil, err
	}
	return extractField(data, "order", "track_order")
}

func extractField(data json.RawMessage, field, op string) (json.RawMessage, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, upstream.NewError(upstream.KindOther, op, err)
	}
	raw, ok := m[field]
	if !ok {
		return json.RawMessage("null"), nil
	}
	return raw, nil
}
