package ostium

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/flowforge/ostiumgate/internal/upstream"
)

// priceFeedPayload tolerates both shapes the publisher emits: a flat
// price field and a bid/mid/ask object.
type priceFeedPayload struct {
	Feed               string       `json:"feed"`
	Price              *json.Number `json:"price"`
	Mid                *json.Number `json:"mid"`
	Bid                *json.Number `json:"bid"`
	Ask                *json.Number `json:"ask"`
	IsMarketOpen       *bool        `json:"isMarketOpen"`
	IsDayTradingClosed *bool        `json:"isDayTradingClosed"`
}

func (c *Client) GetPrice(ctx context.Context, network, base, quote string) (upstream.Price, error) {
	ep, err := c.endpoints(network)
	if err != nil {
		return upstream.Price{}, err
	}

	u, err := url.Parse(ep.PriceAPIURL)
	if err != nil {
		return upstream.Price{}, err
	}
	q := u.Query()
	q.Set("from", strings.ToUpper(base))
	q.Set("to", strings.ToUpper(quote))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return upstream.Price{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return upstream.Price{}, classify("get_price", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return upstream.Price{}, classify("get_price", err)
	}
	if resp.StatusCode >= 500 {
		return upstream.Price{}, upstream.NewError(upstream.KindUnavailable, "get_price", fmt.Errorf("price feed returned %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return upstream.Price{}, upstream.NewError(upstream.KindOther, "get_price", fmt.Errorf("price feed returned %d", resp.StatusCode))
	}

	// The endpoint answers with a single object or a one-element array.
	var payload priceFeedPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		var many []priceFeedPayload
		if err2 := json.Unmarshal(body, &many); err2 != nil || len(many) == 0 {
			return upstream.Price{}, upstream.NewError(upstream.KindOther, "get_price", fmt.Errorf("invalid price payload: %w", err))
		}
		payload = many[0]
	}

	num := payload.Mid
	if num == nil {
		num = payload.Price
	}
	if num == nil {
		return upstream.Price{}, upstream.NewError(upstream.KindOther, "get_price", fmt.Errorf("price feed had no quote for %s/%s", base, quote))
	}
	value, err := decimal.NewFromString(num.String())
	if err != nil {
		return upstream.Price{}, upstream.NewError(upstream.KindOther, "get_price", err)
	}

	return upstream.Price{
		Value:              value,
		IsMarketOpen:       payload.IsMarketOpen,
		IsDayTradingClosed: payload.IsDayTradingClosed,
	}, nil
}

const pairRatesQuery = `query PairRates($id: ID!) {
  pair(id: $id) {
    id
    curFundingLong
    curFundingShort
    lastFundingRate
    maxFundingFeePerBlock
    curRollover
    rolloverFeePerBlock
  }
}`

type pairRates struct {
	CurFundingLong        string `json:"curFundingLong"`
	CurFundingShort       string `json:"curFundingShort"`
	LastFundingRate       string `json:"lastFundingRate"`
	MaxFundingFeePerBlock string `json:"maxFundingFeePerBlock"`
	CurRollover           string `json:"curRollover"`
	RolloverFeePerBlock   string `json:"rolloverFeePerBlock"`
}

func (c *Client) pairRates(ctx context.Context, network string, pairID int, op string) (*pairRates, error) {
	data, err := c.querySubgraph(ctx, network, op, pairRatesQuery, map[string]any{
		"id": strconv.Itoa(pairID),
	})
	if err != nil {
		return nil, err
	}
	var out struct {
		Pair *pairRates `json:"pair"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, upstream.NewError(upstream.KindOther, op, err)
	}
	if out.Pair == nil {
		return nil, upstream.NewError(upstream.KindOther, op, fmt.Errorf("pair %d not indexed", pairID))
	}
	return out.Pair, nil
}

// Funding values are indexed at 18-decimal precision; rates are
// per-block and scaled to the requested period.
const blocksPerHour = 4 * 60 * 60 // Arbitrum ~4 blocks/s

func (c *Client) GetFundingRate(ctx context.Context, network string, pairID, periodHours int) (upstream.FundingRate, error) {
	rates, err := c.pairRates(ctx, network, pairID, "funding_rate")
	if err != nil {
		return upstream.FundingRate{}, err
	}

	accLong := parseScaled(rates.CurFundingLong, -priceDecimals)
	accShort := parseScaled(rates.CurFundingShort, -priceDecimals)
	perBlock := parseScaled(rates.LastFundingRate, -priceDecimals)
	target := parseScaled(rates.MaxFundingFeePerBlock, -priceDecimals)

	period := decimal.NewFromInt(int64(periodHours) * blocksPerHour)
	return upstream.FundingRate{
		AccFundingLong:  accLong,
		AccFundingShort: accShort,
		RatePercent:     perBlock.Mul(period).Shift(2),
		TargetPercent:   target.Mul(period).Shift(2),
	}, nil
}

func (c *Client) GetRolloverRate(ctx context.Context, network string, pairID, periodHours int) (decimal.Decimal, error) {
	rates, err := c.pairRates(ctx, network, pairID, "rollover_rate")
	if err != nil {
		return decimal.Zero, err
	}
	perBlock := parseScaled(rates.RolloverFeePerBlock, -priceDecimals)
	period := decimal.NewFromInt(int64(periodHours) * blocksPerHour)
	return perBlock.Mul(period).Shift(2), nil
}

func parseScaled(raw string, shift int32) decimal.Decimal {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero
	}
	return d.Shift(shift)
}
