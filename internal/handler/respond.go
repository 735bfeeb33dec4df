package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flowforge/ostiumgate/internal/middleware"
	"github.com/flowforge/ostiumgate/internal/model"
	"github.com/flowforge/ostiumgate/internal/pkg/apperrors"
)

// bindJSON decodes the request body and converts binding failures into
// the gateway error shape. Returns false when the request was rejected.
func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		fail(c, apperrors.NewInvalidRequest(err.Error()))
		return false
	}
	return true
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, model.SuccessEnvelope{
		Success: true,
		Data:    data,
		Meta:    model.NewMeta(middleware.RequestIDFrom(c)),
	})
}

func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
