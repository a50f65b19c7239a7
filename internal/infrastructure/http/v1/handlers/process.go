package handlers

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"

	"invclose/internal/core/apperror"
	"invclose/internal/core/types"
	"invclose/internal/domain/dailyreport"
	"invclose/internal/domain/dataset"
	"invclose/internal/domain/history"
	"invclose/internal/domain/integrity"
	"invclose/internal/domain/unmatch"
	"invclose/internal/infrastructure/http/v1/dto"
)

// ProcessHandler serves reconciliation, report preparation and the
// dataset and history listings.
type ProcessHandler struct {
	*BaseHandler
	authority *dataset.Authority
	recorder  *history.Recorder
	detector  *unmatch.Detector
	reports   *dailyreport.Service
	validator *integrity.Validator
}

// NewProcessHandler creates a process handler.
func NewProcessHandler(
	base *BaseHandler,
	authority *dataset.Authority,
	recorder *history.Recorder,
	detector *unmatch.Detector,
	reports *dailyreport.Service,
	validator *integrity.Validator,
) *ProcessHandler {
	return &ProcessHandler{
		BaseHandler: base,
		authority:   authority,
		recorder:    recorder,
		detector:    detector,
		reports:     reports,
		validator:   validator,
	}
}

// ListDatasets handles GET /datasets.
func (h *ProcessHandler) ListDatasets(c *gin.Context) {
	var req dto.DatasetListRequest
	if !h.BindQuery(c, &req) {
		return
	}
	filter, err := req.ToFilter()
	if err != nil {
		h.Error(c, apperror.NewValidation(err.Error()))
		return
	}
	records, err := h.authority.GetAll(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(records))
}

// ListHistory handles GET /history.
func (h *ProcessHandler) ListHistory(c *gin.Context) {
	var req dto.HistoryListRequest
	if !h.BindQuery(c, &req) {
		return
	}
	filter, err := req.ToFilter()
	if err != nil {
		h.Error(c, apperror.NewValidation(err.Error()))
		return
	}
	entries, err := h.recorder.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(entries))
}

// RunUnmatch handles POST /unmatch/:date. With ?format=text the findings
// are returned as the operator listing.
func (h *ProcessHandler) RunUnmatch(c *gin.Context) {
	date, ok := h.BusinessDate(c)
	if !ok {
		return
	}
	res, err := h.detector.Detect(c.Request.Context(), date, h.Operator(c))
	if err != nil {
		h.Error(c, err)
		return
	}

	if c.Query("format") == "text" {
		var buf bytes.Buffer
		if err := unmatch.Render(&buf, res); err != nil {
			h.Error(c, apperror.NewInternal(err))
			return
		}
		c.Data(http.StatusOK, "text/plain; charset=utf-8", buf.Bytes())
		return
	}
	h.OK(c, res)
}

// PrepareReport handles POST /reports/:date. ?rebuild=true always issues a
// new dataset.
func (h *ProcessHandler) PrepareReport(c *gin.Context) {
	date, ok := h.BusinessDate(c)
	if !ok {
		return
	}
	opts := dailyreport.Options{Rebuild: c.Query("rebuild") == "true"}
	res, err := h.reports.Prepare(c.Request.Context(), date, h.Operator(c), opts)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, res)
}

// ContentHash handles GET /reports/:date/hash.
func (h *ProcessHandler) ContentHash(c *gin.Context) {
	date, ok := h.BusinessDate(c)
	if !ok {
		return
	}
	hash, err := h.validator.ComputeContentHash(c.Request.Context(), date)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.HashResponse{BusinessDate: types.FormatDate(date), DataHash: hash})
}
