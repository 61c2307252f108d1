// Package handlers provides HTTP request handlers.
package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"supplyledger/internal/core/apperror"
	"supplyledger/internal/core/id"
	"supplyledger/internal/infrastructure/http/v1/dto"
)

// BaseHandler provides common handler utilities.
type BaseHandler struct{}

// NewBaseHandler creates a new base handler.
func NewBaseHandler() *BaseHandler {
	return &BaseHandler{}
}

// BindJSON binds the JSON request body.
func (h *BaseHandler) BindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		h.Error(c, apperror.NewValidation("invalid request body").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// BindOptionalJSON binds the body if there is one. An empty body leaves obj untouched.
func (h *BaseHandler) BindOptionalJSON(c *gin.Context, obj any) bool {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		h.Error(c, apperror.NewValidation("invalid request body").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// ParseID parses a UUID path parameter.
func (h *BaseHandler) ParseID(c *gin.Context, param string) (id.ID, bool) {
	parsed, err := id.Parse(c.Param(param))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid "+param+" format").WithDetail("field", param))
		return id.ID{}, false
	}
	return parsed, true
}

// Error registers the error on the Gin context and aborts the request.
// The JSON response is produced by middleware.ErrorHandler.
func (h *BaseHandler) Error(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// OK sends 200 with the data wrapped in the success envelope.
func (h *BaseHandler) OK(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, dto.SuccessResponse{Success: true, Message: message, Data: data})
}

// Accepted sends 202 for work handed to the worker.
func (h *BaseHandler) Accepted(c *gin.Context, message string, data any) {
	c.JSON(http.StatusAccepted, dto.SuccessResponse{Success: true, Message: message, Data: data})
}
