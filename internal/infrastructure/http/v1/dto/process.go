package dto

import (
	"fmt"
	"time"

	"invclose/internal/core/types"
	"invclose/internal/domain/dailyclose"
	"invclose/internal/domain/dataset"
	"invclose/internal/domain/history"
)

// DatasetListRequest filters GET /datasets.
type DatasetListRequest struct {
	Date        string `form:"date"`
	ProcessType string `form:"processType"`
	Limit       int    `form:"limit" binding:"omitempty,min=1,max=1000"`
}

// ToFilter validates the request.
func (r DatasetListRequest) ToFilter() (dataset.Filter, error) {
	f := dataset.Filter{Limit: r.Limit}
	date, err := optionalDate(r.Date)
	if err != nil {
		return f, err
	}
	f.BusinessDate = date
	pt, err := optionalProcessType(r.ProcessType)
	if err != nil {
		return f, err
	}
	f.ProcessType = pt
	return f, nil
}

// HistoryListRequest filters GET /history.
type HistoryListRequest struct {
	Date        string `form:"date"`
	ProcessType string `form:"processType"`
	Limit       int    `form:"limit" binding:"omitempty,min=1,max=1000"`
}

// ToFilter validates the request.
func (r HistoryListRequest) ToFilter() (history.Filter, error) {
	f := history.Filter{Limit: r.Limit}
	date, err := optionalDate(r.Date)
	if err != nil {
		return f, err
	}
	f.BusinessDate = date
	pt, err := optionalProcessType(r.ProcessType)
	if err != nil {
		return f, err
	}
	f.ProcessType = pt
	return f, nil
}

// CloseListRequest filters GET /closes.
type CloseListRequest struct {
	From   string `form:"from"`
	To     string `form:"to"`
	Status string `form:"status"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=1000"`
}

// ToFilter validates the request.
func (r CloseListRequest) ToFilter() (dailyclose.Filter, error) {
	f := dailyclose.Filter{Limit: r.Limit, Status: dailyclose.Status(r.Status)}
	var err error
	if f.From, err = optionalDate(r.From); err != nil {
		return f, err
	}
	if f.To, err = optionalDate(r.To); err != nil {
		return f, err
	}
	switch f.Status {
	case "", dailyclose.StatusPending, dailyclose.StatusProcessing, dailyclose.StatusValidating,
		dailyclose.StatusPassed, dailyclose.StatusFailed:
	default:
		return f, fmt.Errorf("unknown status %q", r.Status)
	}
	return f, nil
}

// DevCloseRequest is the body of POST /closes/:date/dev.
type DevCloseRequest struct {
	SkipValidation bool `json:"skipValidation"`
	DryRun         bool `json:"dryRun"`
}

// HashResponse is the content hash of a business date.
type HashResponse struct {
	BusinessDate string `json:"businessDate"`
	DataHash     string `json:"dataHash"`
}

func optionalDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	d, err := types.ParseBusinessDate(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func optionalProcessType(s string) (dataset.ProcessType, error) {
	pt := dataset.ProcessType(s)
	if s != "" && !pt.Valid() {
		return "", fmt.Errorf("unknown process type %q", s)
	}
	return pt, nil
}
