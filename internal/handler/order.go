package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/flowforge/ostiumgate/internal/middleware"
	"github.com/flowforge/ostiumgate/internal/model"
	"github.com/flowforge/ostiumgate/internal/service"
)

type OrderHandler struct {
	svc *service.OrderService
}

func NewOrderHandler(svc *service.OrderService) *OrderHandler {
	return &OrderHandler{svc: svc}
}

func (h *OrderHandler) List(c *gin.Context) {
	var req model.PositionsListRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.svc.ListOrders(c.Request.Context(), req.Network, req.TraderAddress)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, resp)
}

func (h *OrderHandler) Cancel(c *gin.Context) {
	var req model.OrderCancelRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.svc.CancelOrder(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	middleware.AddAuditContext(c, "operation", "orders/cancel")
	ok(c, resp)
}

func (h *OrderHandler) Update(c *gin.Context) {
	var req model.OrderUpdateRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.svc.UpdateOrder(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, resp)
}

func (h *OrderHandler) Track(c *gin.Context) {
	var req model.OrderTrackRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.svc.TrackOrder(c.Request.Context(), req.Network, req.OrderID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, resp)
}
