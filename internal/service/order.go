package service

import (
	"context"
	"encoding/json"

	"github.com/flowforge/ostiumgate/internal/model"
	"github.com/flowforge/ostiumgate/internal/pkg/apperrors"
	"github.com/flowforge/ostiumgate/internal/repository"
	"github.com/flowforge/ostiumgate/internal/upstream"
)

// OrderService manages pending limit and stop orders.
type OrderService struct {
	up   upstream.Capability
	idem repository.IdempotencyStore
}

func NewOrderService(up upstream.Capability, idem repository.IdempotencyStore) *OrderService {
	return &OrderService{up: up, idem: idem}
}

func (s *OrderService) ListOrders(ctx context.Context, network, trader string) (map[string]any, error) {
	orders, err := s.up.GetOrders(ctx, network, trader)
	if err != nil {
		return nil, classifyUpstream("orders/list", apperrors.CodeUpstream, "Failed to fetch open orders", err)
	}
	return map[string]any{
		"network":       network,
		"traderAddress": trader,
		"orders":        json.RawMessage(orders),
	}, nil
}

func (s *OrderService) CancelOrder(ctx context.Context, req *model.OrderCancelRequest) (map[string]any, error) {
	if req.IdempotencyKey != "" && s.idem != nil {
		if payload, ok, err := s.idem.Get(ctx, req.IdempotencyKey); err == nil && ok {
			var resp map[string]any
			if json.Unmarshal(payload, &resp) == nil {
				resp["idempotentReplay"] = true
				return resp, nil
			}
		}
	}

	sub, err := s.up.CancelLimitOrder(ctx, req.Network, req.PairID, req.TradeIndex, req.TraderAddress)
	if err != nil {
		return nil, classifyUpstream("orders/cancel", apperrors.CodeUpstream, "Failed to cancel order", err)
	}
	resp := map[string]any{
		"network":    req.Network,
		"pairId":     req.PairID,
		"tradeIndex": req.TradeIndex,
		"status":     "submitted",
		"result":     sub,
	}
	if req.IdempotencyKey != "" && s.idem != nil {
		if payload, err := json.Marshal(resp); err == nil {
			_ = s.idem.Set(ctx, req.IdempotencyKey, payload, idempotencyTTL)
		}
	}
	return resp, nil
}

func (s *OrderService) UpdateOrder(ctx context.Context, req *model.OrderUpdateRequest) (map[string]any, error) {
	if req.Price == nil && req.SLPrice == nil && req.TPPrice == nil {
		return nil, apperrors.NewInvalidRequest("At least one of price, slPrice or tpPrice must be set")
	}

	sub, err := s.up.UpdateLimitOrder(ctx, req.Network, req.PairID, req.TradeIndex,
		optDecimal(req.Price), optDecimal(req.SLPrice), optDecimal(req.TPPrice))
	if err != nil {
		return nil, classifyUpstream("orders/update", apperrors.CodeUpstream, "Failed to update order", err)
	}
	return map[string]any{
		"network":    req.Network,
		"pairId":     req.PairID,
		"tradeIndex": req.TradeIndex,
		"status":     "submitted",
		"result":     sub,
	}, nil
}

func (s *OrderService) TrackOrder(ctx context.Context, network, orderID string) (map[string]any, error) {
	order, err := s.up.TrackOrder(ctx, network, orderID)
	if err != nil {
		return nil, classifyUpstream("orders/track", apperrors.CodeUpstream, "Failed to track order", err)
	}
	return map[string]any{
		"network": network,
		"orderId": orderID,
		"order":   json.RawMessage(order),
	}, nil
}
