// Package history records the start and completion of every batch process,
// keyed by dataset id and business date.
package history

import (
	"context"
	"fmt"
	"time"

	"invclose/internal/core/clock"
	"invclose/internal/core/id"
	"invclose/internal/core/types"
	"invclose/internal/domain/dataset"
)

// Status of a history entry.
type Status string

const (
	StatusStarted   Status = "STARTED"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// Entry is one process execution.
type Entry struct {
	ID           id.ID               `db:"id" json:"id"`
	DatasetID    *id.ID              `db:"dataset_id" json:"datasetId,omitempty"`
	BusinessDate time.Time           `db:"business_date" json:"businessDate"`
	ProcessType  dataset.ProcessType `db:"process_type" json:"processType"`
	Status       Status              `db:"status" json:"status"`
	DataHash     string              `db:"data_hash" json:"dataHash,omitempty"`
	Remark       string              `db:"remark" json:"remark,omitempty"`
	ExecutedBy   string              `db:"executed_by" json:"executedBy"`
	StartedAt    time.Time           `db:"started_at" json:"startedAt"`
	CompletedAt  *time.Time          `db:"completed_at" json:"completedAt,omitempty"`
}

// Filter narrows List.
type Filter struct {
	BusinessDate *time.Time
	ProcessType  dataset.ProcessType
	Limit        int
}

// Repository persists history entries.
type Repository interface {
	Insert(ctx context.Context, e Entry) error
	Finish(ctx context.Context, entryID id.ID, status Status, dataHash, remark string, completedAt time.Time) error

	// LatestCompleted returns the most recently completed entry of the
	// process for date, restricted to datasetID when it is non-nil.
	LatestCompleted(ctx context.Context, date time.Time, processType dataset.ProcessType, datasetID *id.ID) (*Entry, error)
	List(ctx context.Context, filter Filter) ([]Entry, error)
}

// Recorder is the history sink used by the processes.
type Recorder struct {
	repo  Repository
	clock clock.Clock
}

// NewRecorder creates a history recorder.
func NewRecorder(repo Repository, clk clock.Clock) *Recorder {
	return &Recorder{repo: repo, clock: clk}
}

// Start opens an entry in STARTED status.
func (r *Recorder) Start(ctx context.Context, datasetID id.ID, date time.Time, processType dataset.ProcessType, executedBy string) (Entry, error) {
	e := Entry{
		ID:           id.New(),
		BusinessDate: types.BusinessDate(date),
		ProcessType:  processType,
		Status:       StatusStarted,
		ExecutedBy:   executedBy,
		StartedAt:    r.clock.Now().UTC(),
	}
	if !id.IsNil(datasetID) {
		ds := datasetID
		e.DatasetID = &ds
	}
	if err := r.repo.Insert(ctx, e); err != nil {
		return Entry{}, fmt.Errorf("start %s history: %w", processType, err)
	}
	return e, nil
}

// Complete closes e as COMPLETED with the content hash it produced.
func (r *Recorder) Complete(ctx context.Context, e Entry, dataHash, remark string) error {
	if err := r.repo.Finish(ctx, e.ID, StatusCompleted, dataHash, remark, r.clock.Now().UTC()); err != nil {
		return fmt.Errorf("complete %s history: %w", e.ProcessType, err)
	}
	return nil
}

// Fail closes e as FAILED with the reason.
func (r *Recorder) Fail(ctx context.Context, e Entry, remark string) error {
	if err := r.repo.Finish(ctx, e.ID, StatusFailed, "", remark, r.clock.Now().UTC()); err != nil {
		return fmt.Errorf("fail %s history: %w", e.ProcessType, err)
	}
	return nil
}

// RecordFailure writes a one-shot FAILED entry. It is the fallback when a
// process cannot persist its own failure status.
func (r *Recorder) RecordFailure(ctx context.Context, datasetID id.ID, date time.Time, processType dataset.ProcessType, executedBy, remark string) error {
	now := r.clock.Now().UTC()
	e := Entry{
		ID:           id.New(),
		BusinessDate: types.BusinessDate(date),
		ProcessType:  processType,
		Status:       StatusFailed,
		Remark:       remark,
		ExecutedBy:   executedBy,
		StartedAt:    now,
		CompletedAt:  &now,
	}
	if !id.IsNil(datasetID) {
		ds := datasetID
		e.DatasetID = &ds
	}
	if err := r.repo.Insert(ctx, e); err != nil {
		return fmt.Errorf("record %s failure: %w", processType, err)
	}
	return nil
}

// LatestCompleted returns the latest completed entry or nil.
func (r *Recorder) LatestCompleted(ctx context.Context, date time.Time, processType dataset.ProcessType, datasetID *id.ID) (*Entry, error) {
	e, err := r.repo.LatestCompleted(ctx, types.BusinessDate(date), processType, datasetID)
	if err != nil {
		return nil, fmt.Errorf("latest %s history: %w", processType, err)
	}
	return e, nil
}

// List returns entries newest first.
func (r *Recorder) List(ctx context.Context, filter Filter) ([]Entry, error) {
	entries, err := r.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return entries, nil
}
