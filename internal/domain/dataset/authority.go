package dataset

import (
	"context"
	"fmt"
	"time"

	"invclose/internal/core/apperror"
	"invclose/internal/core/clock"
	"invclose/internal/core/id"
	"invclose/internal/core/tx"
	"invclose/internal/core/types"
	"invclose/pkg/logger"
)

// Authority guarantees at most one current dataset per pair. It never
// retries; callers own the retry policy.
type Authority struct {
	repo      Repository
	purger    SnapshotPurger
	txManager tx.Manager
	clock     clock.Clock
}

// NewAuthority creates the dataset authority. purger may be nil.
func NewAuthority(repo Repository, purger SnapshotPurger, txManager tx.Manager, clk clock.Clock) *Authority {
	return &Authority{
		repo:      repo,
		purger:    purger,
		txManager: txManager,
		clock:     clk,
	}
}

// CreateNew supersedes any record of the pair with a freshly issued one.
// Snapshot rows of superseded ids are purged after the swap commits.
func (a *Authority) CreateNew(ctx context.Context, date time.Time, processType ProcessType, createdBy string) (Record, error) {
	if !processType.Valid() {
		return Record{}, apperror.NewValidation(fmt.Sprintf("unknown process type %q", processType))
	}

	rec := Record{
		ID:           id.New(),
		BusinessDate: types.BusinessDate(date),
		ProcessType:  processType,
		CreatedAt:    a.clock.Now().UTC(),
		CreatedBy:    createdBy,
		IsActive:     true,
	}

	var superseded []id.ID
	err := a.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		superseded, err = a.repo.DeleteByKey(ctx, rec.BusinessDate, processType)
		if err != nil {
			return fmt.Errorf("delete datasets: %w", err)
		}
		return a.repo.Insert(ctx, rec)
	})
	if err != nil {
		if apperror.HasCode(err, apperror.CodeConflict) {
			return Record{}, err
		}
		return Record{}, fmt.Errorf("create dataset %s/%s: %w", processType, types.FormatDate(date), err)
	}

	if a.purger != nil {
		for _, old := range superseded {
			if _, err := a.purger.DeleteByDataset(ctx, old); err != nil {
				return Record{}, fmt.Errorf("purge snapshot of superseded dataset %s: %w", old, err)
			}
		}
	}

	logger.Info(ctx, "dataset issued",
		"dataset_id", rec.ID,
		"process_type", processType,
		"business_date", types.FormatDate(rec.BusinessDate),
		"superseded", len(superseded),
	)
	return rec, nil
}

// GetOrCreate returns the current record of the pair, or issues one. Read and
// report paths use it so they never fork identity.
func (a *Authority) GetOrCreate(ctx context.Context, date time.Time, processType ProcessType, createdBy string) (Record, bool, error) {
	current, err := a.Current(ctx, date, processType)
	if err != nil {
		return Record{}, false, err
	}
	if current != nil {
		return *current, false, nil
	}
	rec, err := a.CreateNew(ctx, date, processType, createdBy)
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

// Current returns the current record of the pair or nil.
func (a *Authority) Current(ctx context.Context, date time.Time, processType ProcessType) (*Record, error) {
	rec, err := a.repo.FindCurrent(ctx, types.BusinessDate(date), processType)
	if err != nil {
		return nil, fmt.Errorf("find dataset %s/%s: %w", processType, types.FormatDate(date), err)
	}
	return rec, nil
}

// Exists reports whether datasetID is a current record.
func (a *Authority) Exists(ctx context.Context, datasetID id.ID) (bool, error) {
	ok, err := a.repo.Exists(ctx, datasetID)
	if err != nil {
		return false, fmt.Errorf("check dataset %s: %w", datasetID, err)
	}
	return ok, nil
}

// GetAll lists records for diagnostics, newest first.
func (a *Authority) GetAll(ctx context.Context, filter Filter) ([]Record, error) {
	if filter.BusinessDate != nil {
		d := types.BusinessDate(*filter.BusinessDate)
		filter.BusinessDate = &d
	}
	records, err := a.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	return records, nil
}
