package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/flowforge/ostiumgate/internal/model"
	"github.com/flowforge/ostiumgate/internal/pkg/apperrors"
	"github.com/flowforge/ostiumgate/internal/pkg/logger"
	"github.com/flowforge/ostiumgate/internal/readiness"
)

// ErrorHandler renders any error pushed onto the gin context as the
// stable error envelope. Upstream timeout and unavailable failures also
// demote the readiness gate so subsequent mutations are held back.
func ErrorHandler(gate *readiness.Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		var appErr *apperrors.AppError
		if !errors.As(err, &appErr) {
			appErr = apperrors.New(apperrors.CodeInternal, "Internal server error", err)
		}

		if gate != nil {
			switch appErr.Code {
			case apperrors.CodeUpstreamTimeout, apperrors.CodeUpstreamUnavailable:
				gate.ReportFault(string(appErr.Code))
			}
		}

		logFields := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"code", string(appErr.Code),
			"client_ip", c.ClientIP(),
		}
		if appErr.HTTPStatus >= 500 {
			logger.LogError(c.Request.Context(), appErr, "request failed", logFields...)
		} else {
			logger.Warn(appErr.Message, logFields...)
		}

		c.JSON(appErr.HTTPStatus, model.ErrorEnvelope{
			Success: false,
			Error: model.ErrorBody{
				Code:      string(appErr.Code),
				Message:   appErr.Message,
				Details:   appErr.Details,
				Retryable: appErr.Retryable,
			},
			Meta: model.NewMeta(RequestIDFrom(c)),
		})
	}
}
