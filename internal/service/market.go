package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/flowforge/ostiumgate/internal/feed"
	"github.com/flowforge/ostiumgate/internal/pkg/apperrors"
	"github.com/flowforge/ostiumgate/internal/pkg/logger"
	"github.com/flowforge/ostiumgate/internal/upstream"
)

// MarketService serves market reads and resolves human market names
// ("BTC", "42") to backend pair ids for the trading flow.
type MarketService struct {
	up   upstream.Capability
	feed *feed.PriceFeed
}

func NewMarketService(up upstream.Capability, priceFeed *feed.PriceFeed) *MarketService {
	return &MarketService{up: up, feed: priceFeed}
}

func (s *MarketService) ListMarkets(ctx context.Context, network string) (map[string]any, error) {
	pairs, err := s.up.ListPairs(ctx, network)
	if err != nil {
		return nil, classifyUpstream("markets/list", apperrors.CodeUpstream, "Failed to fetch markets from Ostium", err)
	}

	markets := make([]map[string]any, 0, len(pairs))
	for _, p := range pairs {
		quote := p.To
		if quote == "" {
			quote = "USD"
		}
		status := "active"
		if p.IsPaused {
			status = "paused"
		}
		markets = append(markets, map[string]any{
			"pairId": p.ID,
			"symbol": p.From,
			"pair":   p.From + "/" + quote,
			"status": status,
		})
	}
	return map[string]any{"network": network, "markets": markets}, nil
}

// ResolvePairID accepts either a numeric pair id or a market symbol.
func (s *MarketService) ResolvePairID(ctx context.Context, network, market string) (int, error) {
	if id, err := strconv.Atoi(market); err == nil {
		return id, nil
	}

	normalized := strings.ToUpper(market)
	pairs, err := s.up.ListPairs(ctx, network)
	if err != nil {
		return 0, classifyUpstream("markets/resolve", apperrors.CodeUpstream, "Failed to fetch markets from Ostium", err)
	}
	for _, p := range pairs {
		if p.From == normalized || p.From+"/"+p.To == normalized {
			return p.ID, nil
		}
	}
	return 0, apperrors.New(apperrors.CodeInvalidMarket,
		fmt.Sprintf("Market %q is not available on %s", market, network), nil)
}

func (s *MarketService) ResolvePairSymbol(ctx context.Context, network string, pairID int) (string, error) {
	pairs, err := s.up.ListPairs(ctx, network)
	if err != nil {
		return "", classifyUpstream("markets/resolve", apperrors.CodeUpstream, "Failed to fetch markets from Ostium", err)
	}
	for _, p := range pairs {
		if p.ID == pairID {
			return p.From, nil
		}
	}
	return "", apperrors.New(apperrors.CodeInvalidMarket,
		fmt.Sprintf("Could not resolve market symbol for pairId=%d", pairID), nil)
}

func (s *MarketService) GetPrice(ctx context.Context, network, base, quote string) (map[string]any, error) {
	base = strings.ToUpper(base)
	quote = strings.ToUpper(quote)
	if quote == "" {
		quote = "USD"
	}

	price, err := s.up.GetPrice(ctx, network, base, quote)
	if err != nil {
		// fall back to the live feed cache before failing the read
		if q, ok := s.lastFeedQuote(base, quote); ok {
			logger.Debug("serving price from feed cache", "pair", base+"/"+quote)
			open := q.MarketOpen
			return priceResponse(network, base, quote, q.Mid, &open, nil), nil
		}
		return nil, classifyUpstream("prices/get", apperrors.CodePriceFetchFailed,
			fmt.Sprintf("Failed to fetch price for %s/%s", base, quote), err)
	}
	return priceResponse(network, base, quote, price.Value, price.IsMarketOpen, price.IsDayTradingClosed), nil
}

// PriceValue is the internal quote used to place market orders.
func (s *MarketService) PriceValue(ctx context.Context, network, base string) (decimal.Decimal, error) {
	price, err := s.up.GetPrice(ctx, network, base, "USD")
	if err == nil {
		return price.Value, nil
	}
	if q, ok := s.lastFeedQuote(base, "USD"); ok {
		return q.Mid, nil
	}
	return decimal.Zero, classifyUpstream("prices/get", apperrors.CodePriceFetchFailed,
		fmt.Sprintf("Could not determine market price for %s", base), err)
}

func (s *MarketService) lastFeedQuote(base, quote string) (feed.Quote, bool) {
	if s.feed == nil {
		return feed.Quote{}, false
	}
	return s.feed.Last(base + "/" + quote)
}

func priceResponse(network, base, quote string, value decimal.Decimal, open, dayClosed *bool) map[string]any {
	resp := map[string]any{
		"network":            network,
		"base":               base,
		"quote":              quote,
		"price":              value.InexactFloat64(),
		"isMarketOpen":       nil,
		"isDayTradingClosed": nil,
	}
	if open != nil {
		resp["isMarketOpen"] = *open
	}
	if dayClosed != nil {
		resp["isDayTradingClosed"] = *dayClosed
	}
	return resp
}

func (s *MarketService) GetFundingRate(ctx context.Context, network string, pairID, periodHours int) (map[string]any, error) {
	if periodHours <= 0 {
		periodHours = 24
	}
	fr, err := s.up.GetFundingRate(ctx, network, pairID, periodHours)
	if err != nil {
		return nil, classifyUpstream("markets/funding-rate", apperrors.CodeUpstream,
			fmt.Sprintf("Failed to fetch funding rate for pairId=%d", pairID), err)
	}
	return map[string]any{
		"network":                  network,
		"pairId":                   pairID,
		"periodHours":              periodHours,
		"accFundingLong":           fr.AccFundingLong.String(),
		"accFundingShort":          fr.AccFundingShort.String(),
		"fundingRatePercent":       fr.RatePercent.InexactFloat64(),
		"targetFundingRatePercent": fr.TargetPercent.InexactFloat64(),
	}, nil
}

func (s *MarketService) GetRolloverRate(ctx context.Context, network string, pairID, periodHours int) (map[string]any, error) {
	if periodHours <= 0 {
		periodHours = 24
	}
	rate, err := s.up.GetRolloverRate(ctx, network, pairID, periodHours)
	if err != nil {
		return nil, classifyUpstream("markets/rollover-rate", apperrors.CodeUpstream,
			fmt.Sprintf("Failed to fetch rollover rate for pairId=%d", pairID), err)
	}
	return map[string]any{
		"network":      network,
		"pairId":       pairID,
		"periodHours":  periodHours,
		"rolloverRate": rate.String(),
	}, nil
}

func (s *MarketService) GetMarketDetails(ctx context.Context, network string, pairID int) (map[string]any, error) {
	details, err := s.up.GetPairDetails(ctx, network, pairID)
	if err != nil {
		return nil, classifyUpstream("markets/details", apperrors.CodeUpstream,
			fmt.Sprintf("Failed to fetch details for pairId=%d", pairID), err)
	}
	return map[string]any{"network": network, "pairId": pairID, "details": details}, nil
}
