// Package dataset issues and tracks the single authoritative working-set id
// for a (business date, process type) pair.
package dataset

import (
	"context"
	"time"

	"invclose/internal/core/id"
)

// ProcessType names a batch process that owns datasets.
type ProcessType string

const (
	ProcessImport      ProcessType = "IMPORT"
	ProcessUnmatchList ProcessType = "UNMATCH_LIST"
	ProcessDailyReport ProcessType = "DAILY_REPORT"
	ProcessDailyClose  ProcessType = "DAILY_CLOSE"
)

// Valid reports whether p is a known process type.
func (p ProcessType) Valid() bool {
	switch p {
	case ProcessImport, ProcessUnmatchList, ProcessDailyReport, ProcessDailyClose:
		return true
	}
	return false
}

// Record identifies one working set.
type Record struct {
	ID           id.ID       `db:"id" json:"id"`
	BusinessDate time.Time   `db:"business_date" json:"businessDate"`
	ProcessType  ProcessType `db:"process_type" json:"processType"`
	CreatedAt    time.Time   `db:"created_at" json:"createdAt"`
	CreatedBy    string      `db:"created_by" json:"createdBy"`
	IsActive     bool        `db:"is_active" json:"isActive"`
}

// Filter narrows GetAll.
type Filter struct {
	BusinessDate *time.Time
	ProcessType  ProcessType
	Limit        int
}

// Repository persists dataset records. (business_date, process_type) is unique.
type Repository interface {
	// DeleteByKey removes every record of the pair and returns their ids.
	DeleteByKey(ctx context.Context, date time.Time, processType ProcessType) ([]id.ID, error)
	Insert(ctx context.Context, rec Record) error
	FindCurrent(ctx context.Context, date time.Time, processType ProcessType) (*Record, error)
	Exists(ctx context.Context, datasetID id.ID) (bool, error)
	List(ctx context.Context, filter Filter) ([]Record, error)
}

// SnapshotPurger deletes snapshot rows of a superseded dataset.
type SnapshotPurger interface {
	DeleteByDataset(ctx context.Context, datasetID id.ID) (int64, error)
}
