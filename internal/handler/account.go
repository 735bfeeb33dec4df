package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/flowforge/ostiumgate/internal/middleware"
	"github.com/flowforge/ostiumgate/internal/model"
	"github.com/flowforge/ostiumgate/internal/service"
)

type AccountHandler struct {
	svc *service.AccountService
}

func NewAccountHandler(svc *service.AccountService) *AccountHandler {
	return &AccountHandler{svc: svc}
}

func (h *AccountHandler) Balance(c *gin.Context) {
	var req model.BalanceRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.svc.GetBalance(c.Request.Context(), req.Network, req.Address)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, resp)
}

func (h *AccountHandler) History(c *gin.Context) {
	var req model.PositionsListRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.svc.GetHistory(c.Request.Context(), req.Network, req.TraderAddress)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, resp)
}

func (h *AccountHandler) Faucet(c *gin.Context) {
	var req model.FaucetRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.svc.RequestFaucet(c.Request.Context(), req.Network, req.TraderAddress)
	if err != nil {
		fail(c, err)
		return
	}
	middleware.AddAuditContext(c, "operation", "faucet/request")
	if tx, exists := resp["txHash"]; exists {
		middleware.AddAuditContext(c, "tx_hash", tx)
	}
	ok(c, resp)
}
