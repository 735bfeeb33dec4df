package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/flowforge/ostiumgate/internal/model"
	"github.com/flowforge/ostiumgate/internal/service"
)

type MarketHandler struct {
	svc *service.MarketService
}

func NewMarketHandler(svc *service.MarketService) *MarketHandler {
	return &MarketHandler{svc: svc}
}

func (h *MarketHandler) List(c *gin.Context) {
	var req model.MarketsListRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.svc.ListMarkets(c.Request.Context(), req.Network)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, resp)
}

func (h *MarketHandler) Price(c *gin.Context) {
	var req model.PriceRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.svc.GetPrice(c.Request.Context(), req.Network, req.Base, req.Quote)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, resp)
}

func (h *MarketHandler) FundingRate(c *gin.Context) {
	var req model.MarketFundingRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.svc.GetFundingRate(c.Request.Context(), req.Network, req.PairID, req.PeriodHours)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, resp)
}

func (h *MarketHandler) RolloverRate(c *gin.Context) {
	var req model.MarketFundingRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.svc.GetRolloverRate(c.Request.Context(), req.Network, req.PairID, req.PeriodHours)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, resp)
}

func (h *MarketHandler) Details(c *gin.Context) {
	var req model.MarketDetailsRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.svc.GetMarketDetails(c.Request.Context(), req.Network, req.PairID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, resp)
}
