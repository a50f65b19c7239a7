package handlers

import (
	"github.com/gin-gonic/gin"

	"invclose/internal/core/apperror"
	"invclose/internal/domain/dailyclose"
	"invclose/internal/infrastructure/http/v1/dto"
)

// CloseHandler serves the daily close.
type CloseHandler struct {
	*BaseHandler
	service *dailyclose.Service
}

// NewCloseHandler creates a close handler.
func NewCloseHandler(base *BaseHandler, service *dailyclose.Service) *CloseHandler {
	return &CloseHandler{BaseHandler: base, service: service}
}

// List handles GET /closes.
func (h *CloseHandler) List(c *gin.Context) {
	var req dto.CloseListRequest
	if !h.BindQuery(c, &req) {
		return
	}
	filter, err := req.ToFilter()
	if err != nil {
		h.Error(c, apperror.NewValidation(err.Error()))
		return
	}
	records, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(records))
}

// Get handles GET /closes/:date.
func (h *CloseHandler) Get(c *gin.Context) {
	date, ok := h.BusinessDate(c)
	if !ok {
		return
	}
	rec, err := h.service.Get(c.Request.Context(), date)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, rec)
}

// Confirm handles GET /closes/:date/confirm.
func (h *CloseHandler) Confirm(c *gin.Context) {
	date, ok := h.BusinessDate(c)
	if !ok {
		return
	}
	conf, err := h.service.Confirm(c.Request.Context(), date)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, conf)
}

// Execute handles POST /closes/:date. A new close answers 201, an already
// closed day 200.
func (h *CloseHandler) Execute(c *gin.Context) {
	date, ok := h.BusinessDate(c)
	if !ok {
		return
	}
	out, err := h.service.Execute(c.Request.Context(), date, h.Operator(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.respond(c, out)
}

// ExecuteDevelopment handles POST /closes/:date/dev.
func (h *CloseHandler) ExecuteDevelopment(c *gin.Context) {
	date, ok := h.BusinessDate(c)
	if !ok {
		return
	}
	var req dto.DevCloseRequest
	if !h.BindJSON(c, &req) {
		return
	}
	out, err := h.service.ExecuteDevelopment(c.Request.Context(), date, h.Operator(c), dailyclose.DevOptions{
		SkipValidation: req.SkipValidation,
		DryRun:         req.DryRun,
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.respond(c, out)
}

// Reset handles POST /closes/:date/reset.
func (h *CloseHandler) Reset(c *gin.Context) {
	date, ok := h.BusinessDate(c)
	if !ok {
		return
	}
	rec, err := h.service.ResetFailed(c.Request.Context(), date)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, rec)
}

func (h *CloseHandler) respond(c *gin.Context, out dailyclose.Outcome) {
	if out.Status == dailyclose.OutcomeClosed {
		h.Created(c, out)
		return
	}
	h.OK(c, out)
}
