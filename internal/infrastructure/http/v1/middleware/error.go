package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"supplyledger/internal/core/apperror"
	appctx "supplyledger/internal/core/context"
	"supplyledger/internal/infrastructure/http/v1/dto"
	"supplyledger/pkg/logger"
)

// ErrorHandler middleware transforms errors into consistent JSON responses.
// Hides internal errors from clients while logging full details.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err

		// If response already written by handler, do not override it.
		if c.Writer.Written() {
			return
		}

		status := apperror.GetHTTPStatus(err)
		requestID := appctx.GetRequestID(c.Request.Context())

		resp := dto.ErrorResponse{
			Code:    apperror.CodeInternal,
			Message: "Internal server error",
			Details: map[string]any{"request_id": requestID},
		}

		appErr, ok := apperror.AsAppError(err)
		switch {
		case !ok:
			logger.Error(c.Request.Context(), "unhandled error", "error", err)
		case status >= http.StatusInternalServerError:
			resp.Code = appErr.Code
			logger.Error(c.Request.Context(), "request error", "code", appErr.Code, "cause", appErr.Err)
		default:
			if appErr.Err != nil {
				logger.Error(c.Request.Context(), "request error", "code", appErr.Code, "cause", appErr.Err)
			}
			resp.Code = appErr.Code
			resp.Message = appErr.Message
			resp.Details = appErr.Details
		}

		if apperror.IsRetryable(err) {
			if resp.Details == nil {
				resp.Details = map[string]any{}
			}
			resp.Details["retryable"] = true
		}

		c.JSON(status, resp)
	}
}
