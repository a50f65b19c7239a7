// Package handlers provides the HTTP handlers of the close API.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"invclose/internal/core/apperror"
	appctx "invclose/internal/core/context"
	"invclose/internal/core/types"
	"invclose/internal/infrastructure/http/v1/dto"
)

// BaseHandler provides common handler utilities.
type BaseHandler struct{}

// NewBaseHandler creates a new base handler.
func NewBaseHandler() *BaseHandler {
	return &BaseHandler{}
}

// BindJSON binds the request body. An empty body leaves obj untouched.
func (h *BaseHandler) BindJSON(c *gin.Context, obj any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(obj); err != nil {
		h.Error(c, apperror.NewValidation("invalid request body").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// BindQuery binds and validates query parameters.
func (h *BaseHandler) BindQuery(c *gin.Context, obj any) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		h.Error(c, apperror.NewValidation("invalid query parameters").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// BusinessDate parses the :date path parameter.
func (h *BaseHandler) BusinessDate(c *gin.Context) (time.Time, bool) {
	date, err := types.ParseBusinessDate(c.Param("date"))
	if err != nil {
		h.Error(c, apperror.NewValidation(err.Error()).WithDetail("date", c.Param("date")))
		return time.Time{}, false
	}
	return date, true
}

// Operator is the "executed by" of processes started by this request.
func (h *BaseHandler) Operator(c *gin.Context) string {
	return appctx.Operator(c.Request.Context())
}

// Error registers err on the gin context and aborts. The JSON response is
// written by middleware.ErrorHandler.
func (h *BaseHandler) Error(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// OK sends 200 response with data.
func (h *BaseHandler) OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// Created sends 201 response with data.
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, data)
}

// Success sends a success message.
func (h *BaseHandler) Success(c *gin.Context, message string) {
	c.JSON(http.StatusOK, dto.SuccessResponse{Success: true, Message: message})
}
