// Package dailyclose commits one business day into the inventory master
// exactly once, guarded by timing, integrity and a persisted state machine.
package dailyclose

import (
	"context"
	"time"

	"invclose/internal/core/id"
)

// Status of a daily close record.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusValidating Status = "VALIDATING"
	StatusPassed     Status = "PASSED"
	StatusFailed     Status = "FAILED"
)

// Terminal reports statuses no transition leaves.
func (s Status) Terminal() bool {
	return s == StatusPassed || s == StatusFailed
}

// Record is the persisted close of one business date. There is at most one
// record per date.
type Record struct {
	BusinessDate    time.Time `db:"business_date" json:"businessDate"`
	DatasetID       id.ID     `db:"dataset_id" json:"datasetId"`
	ReportDatasetID id.ID     `db:"report_dataset_id" json:"reportDatasetId"`
	BackupPath      string    `db:"backup_path" json:"backupPath"`
	DataHash        string    `db:"data_hash" json:"dataHash"`
	Status          Status    `db:"status" json:"status"`
	ProcessedBy     string    `db:"processed_by" json:"processedBy"`
	ProcessedAt     time.Time `db:"processed_at" json:"processedAt"`
	UpdatedAt       time.Time `db:"updated_at" json:"updatedAt"`
	Remarks         string    `db:"remarks" json:"remarks,omitempty"`
	RowsApplied     int       `db:"rows_applied" json:"rowsApplied"`
	RowsDeactivated int       `db:"rows_deactivated" json:"rowsDeactivated"`
}

// Filter narrows List.
type Filter struct {
	From   *time.Time
	To     *time.Time
	Status Status
	Limit  int
}

// Repository persists close records.
type Repository interface {
	// Get returns the record of date or nil.
	Get(ctx context.Context, date time.Time) (*Record, error)

	// Insert adds a record. A second record for the same date fails with a
	// CONFLICT AppError.
	Insert(ctx context.Context, rec Record) error

	// Update writes status, counters, remarks and updated_at of rec.
	Update(ctx context.Context, rec Record) error

	// Delete removes the record of date and reports whether one existed.
	Delete(ctx context.Context, date time.Time) (bool, error)

	List(ctx context.Context, filter Filter) ([]Record, error)
}
