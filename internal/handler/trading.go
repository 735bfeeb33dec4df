package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/flowforge/ostiumgate/internal/middleware"
	"github.com/flowforge/ostiumgate/internal/model"
	"github.com/flowforge/ostiumgate/internal/service"
)

type TradingHandler struct {
	svc *service.TradingService
}

func NewTradingHandler(svc *service.TradingService) *TradingHandler {
	return &TradingHandler{svc: svc}
}

func (h *TradingHandler) Open(c *gin.Context) {
	var req model.PositionOpenRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.svc.OpenPosition(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	middleware.AddAuditContext(c, "operation", "positions/open")
	middleware.AddAuditContext(c, "pair_id", resp["pairId"])
	ok(c, resp)
}

func (h *TradingHandler) Close(c *gin.Context) {
	var req model.PositionCloseRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.svc.ClosePosition(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	middleware.AddAuditContext(c, "operation", "positions/close")
	middleware.AddAuditContext(c, "pair_id", req.PairID)
	ok(c, resp)
}

func (h *TradingHandler) UpdateSL(c *gin.Context) {
	var req model.PositionUpdateSLRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.svc.UpdateStopLoss(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, resp)
}

func (h *TradingHandler) UpdateTP(c *gin.Context) {
	var req model.PositionUpdateTPRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.svc.UpdateTakeProfit(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, resp)
}

func (h *TradingHandler) List(c *gin.Context) {
	var req model.PositionsListRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.svc.ListPositions(c.Request.Context(), req.Network, req.TraderAddress)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, resp)
}

func (h *TradingHandler) Metrics(c *gin.Context) {
	var req model.PositionMetricsRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.svc.GetPositionMetrics(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, resp)
}
