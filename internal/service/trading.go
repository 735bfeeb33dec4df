package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/flowforge/ostiumgate/internal/model"
	"github.com/flowforge/ostiumgate/internal/pkg/apperrors"
	"github.com/flowforge/ostiumgate/internal/pkg/logger"
	"github.com/flowforge/ostiumgate/internal/repository"
	"github.com/flowforge/ostiumgate/internal/upstream"
)

const (
	defaultSlippagePct = 2.0
	idempotencyTTL     = time.Hour
)

// TradingService carries every position mutation. Submissions are
// at-most-once: a failed send is reported, never silently retried, and
// a repeated idempotencyKey replays the recorded response instead of
// re-submitting.
type TradingService struct {
	up      upstream.Capability
	markets *MarketService
	idem    repository.IdempotencyStore
}

func NewTradingService(up upstream.Capability, markets *MarketService, idem repository.IdempotencyStore) *TradingService {
	return &TradingService{up: up, markets: markets, idem: idem}
}

func (s *TradingService) OpenPosition(ctx context.Context, req *model.PositionOpenRequest) (map[string]any, error) {
	if cached, ok := s.lookupIdempotent(ctx, req.IdempotencyKey); ok {
		return cached, nil
	}

	pairID, err := s.markets.ResolvePairID(ctx, req.Network, req.Market)
	if err != nil {
		return nil, err
	}
	symbol, err := s.markets.ResolvePairSymbol(ctx, req.Network, pairID)
	if err != nil {
		return nil, err
	}

	if err := s.checkLeverage(ctx, req.Network, pairID, req.Leverage); err != nil {
		return nil, err
	}

	orderType := strings.ToUpper(req.OrderType)
	if orderType == "" {
		orderType = "MARKET"
	}

	var atPrice decimal.Decimal
	if orderType == "MARKET" {
		atPrice, err = s.markets.PriceValue(ctx, req.Network, symbol)
		if err != nil {
			return nil, err
		}
	} else {
		if req.TriggerPrice == nil {
			return nil, apperrors.New(apperrors.CodeTriggerPriceRequired,
				fmt.Sprintf("%s orders require a triggerPrice", strings.ToLower(orderType)), nil)
		}
		atPrice = decimal.NewFromFloat(*req.TriggerPrice)
	}

	trader, err := s.resolveTrader(req.TraderAddress)
	if err != nil {
		return nil, err
	}

	slippage := req.Slippage
	if slippage <= 0 {
		slippage = defaultSlippagePct
	}

	order := upstream.TradeOrder{
		PairID:      pairID,
		Collateral:  decimal.NewFromFloat(req.Collateral),
		Leverage:    decimal.NewFromFloat(req.Leverage),
		Long:        req.Side == "long",
		OrderType:   orderType,
		AtPrice:     atPrice,
		SlippagePct: decimal.NewFromFloat(slippage),
		SL:          optDecimal(req.SLPrice),
		TP:          optDecimal(req.TPPrice),
		Trader:      trader,
	}

	sub, err := s.up.PerformTrade(ctx, req.Network, order)
	if err != nil {
		return nil, classifyUpstream("positions/open", apperrors.CodeUpstream, "Failed to open position", err)
	}

	resp := map[string]any{
		"network":      req.Network,
		"pairId":       pairID,
		"market":       symbol,
		"side":         req.Side,
		"orderType":    strings.ToLower(orderType),
		"triggerPrice": atPrice.InexactFloat64(),
		"status":       "submitted",
		"result":       sub,
	}
	s.recordIdempotent(ctx, req.IdempotencyKey, resp)
	return resp, nil
}

func (s *TradingService) ClosePosition(ctx context.Context, req *model.PositionCloseRequest) (map[string]any, error) {
	if cached, ok := s.lookupIdempotent(ctx, req.IdempotencyKey); ok {
		return cached, nil
	}

	symbol, err := s.markets.ResolvePairSymbol(ctx, req.Network, req.PairID)
	if err != nil {
		return nil, err
	}
	marketPrice, err := s.markets.PriceValue(ctx, req.Network, symbol)
	if err != nil {
		return nil, err
	}

	trader, err := s.resolveTrader(req.TraderAddress)
	if err != nil {
		return nil, err
	}

	closePct := req.ClosePercentage
	if closePct <= 0 {
		closePct = 100
	}
	slippage := req.Slippage
	if slippage <= 0 {
		slippage = defaultSlippagePct
	}

	sub, err := s.up.CloseTrade(ctx, req.Network, upstream.CloseOrder{
		PairID:          req.PairID,
		TradeIndex:      req.TradeIndex,
		MarketPrice:     marketPrice,
		ClosePercentage: decimal.NewFromFloat(closePct),
		SlippagePct:     decimal.NewFromFloat(slippage),
		Trader:          trader,
	})
	if err != nil {
		return nil, classifyUpstream("positions/close", apperrors.CodeUpstream, "Failed to close position", err)
	}

	resp := map[string]any{
		"network":         req.Network,
		"pairId":          req.PairID,
		"tradeIndex":      req.TradeIndex,
		"closePercentage": closePct,
		"status":          "submitted",
		"result":          sub,
	}
	s.recordIdempotent(ctx, req.IdempotencyKey, resp)
	return resp, nil
}

func (s *TradingService) UpdateStopLoss(ctx context.Context, req *model.PositionUpdateSLRequest) (map[string]any, error) {
	trader, err := s.resolveTrader(req.TraderAddress)
	if err != nil {
		return nil, err
	}
	sub, err := s.up.UpdateSL(ctx, req.Network, req.PairID, req.TradeIndex,
		decimal.NewFromFloat(req.SLPrice), trader)
	if err != nil {
		return nil, classifyUpstream("positions/update-sl", apperrors.CodeUpstream, "Failed to update stop loss", err)
	}
	return map[string]any{
		"network":    req.Network,
		"pairId":     req.PairID,
		"tradeIndex": req.TradeIndex,
		"slPrice":    req.SLPrice,
		"status":     "submitted",
		"result":     sub,
	}, nil
}

func (s *TradingService) UpdateTakeProfit(ctx context.Context, req *model.PositionUpdateTPRequest) (map[string]any, error) {
	trader, err := s.resolveTrader(req.TraderAddress)
	if err != nil {
		return nil, err
	}
	sub, err := s.up.UpdateTP(ctx, req.Network, req.PairID, req.TradeIndex,
		decimal.NewFromFloat(req.TPPrice), trader)
	if err != nil {
		return nil, classifyUpstream("positions/update-tp", apperrors.CodeUpstream, "Failed to update take profit", err)
	}
	return map[string]any{
		"network":    req.Network,
		"pairId":     req.PairID,
		"tradeIndex": req.TradeIndex,
		"tpPrice":    req.TPPrice,
		"status":     "submitted",
		"result":     sub,
	}, nil
}

func (s *TradingService) ListPositions(ctx context.Context, network, trader string) (map[string]any, error) {
	trades, err := s.up.GetOpenTrades(ctx, network, trader)
	if err != nil {
		return nil, classifyUpstream("positions/list", apperrors.CodeUpstream, "Failed to fetch open positions", err)
	}
	return map[string]any{
		"network":       network,
		"traderAddress": trader,
		"positions":     json.RawMessage(trades),
	}, nil
}

func (s *TradingService) GetPositionMetrics(ctx context.Context, req *model.PositionMetricsRequest) (map[string]any, error) {
	trader, err := s.resolveTrader(req.TraderAddress)
	if err != nil {
		return nil, err
	}
	metrics, err := s.up.GetTradeMetrics(ctx, req.Network, req.PairID, req.TradeIndex, trader)
	if err != nil {
		return nil, classifyUpstream("positions/metrics", apperrors.CodeUpstream, "Failed to fetch position metrics", err)
	}
	return map[string]any{
		"network":    req.Network,
		"pairId":     req.PairID,
		"tradeIndex": req.TradeIndex,
		"metrics":    json.RawMessage(metrics),
	}, nil
}

func (s *TradingService) checkLeverage(ctx context.Context, network string, pairID int, leverage float64) error {
	pairs, err := s.up.ListPairs(ctx, network)
	if err != nil {
		return classifyUpstream("markets/resolve", apperrors.CodeUpstream, "Failed to fetch markets from Ostium", err)
	}
	for _, p := range pairs {
		if p.ID != pairID {
			continue
		}
		if p.MaxLeverage.IsPositive() && decimal.NewFromFloat(leverage).GreaterThan(p.MaxLeverage) {
			return apperrors.New(apperrors.CodeLeverageTooHigh,
				fmt.Sprintf("Leverage %.1f exceeds the market maximum of %s", leverage, p.MaxLeverage.String()),
				nil).WithDetails(map[string]any{"maxLeverage": p.MaxLeverage.InexactFloat64()})
		}
		return nil
	}
	return apperrors.New(apperrors.CodeInvalidMarket,
		fmt.Sprintf("Market with pairId=%d is not available on %s", pairID, network), nil)
}

// resolveTrader falls back to the delegate wallet when the caller does
// not name a trader. Mutations with neither are rejected before any
// chain interaction happens.
func (s *TradingService) resolveTrader(trader string) (string, error) {
	if trader != "" {
		return trader, nil
	}
	if addr, ok := s.up.DelegateAddress(); ok {
		return addr, nil
	}
	return "", apperrors.New(apperrors.CodeDelegateKeyMissing,
		"No traderAddress given and no delegate wallet is configured", nil)
}

func (s *TradingService) lookupIdempotent(ctx context.Context, key string) (map[string]any, bool) {
	if key == "" || s.idem == nil {
		return nil, false
	}
	payload, ok, err := s.idem.Get(ctx, key)
	if err != nil || !ok {
		return nil, false
	}
	var resp map[string]any
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, false
	}
	resp["idempotentReplay"] = true
	return resp, true
}

func (s *TradingService) recordIdempotent(ctx context.Context, key string, resp map[string]any) {
	if key == "" || s.idem == nil {
		return
	}
	payload, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if err := s.idem.Set(ctx, key, payload, idempotencyTTL); err != nil {
		logger.Warn("failed to record idempotent response", "key", key, "error", err)
	}
}

func optDecimal(v *float64) *decimal.Decimal {
	if v == nil {
		return nil
	}
	d := decimal.NewFromFloat(*v)
	return &d
}
