// Package dailyreport prepares the daily report dataset whose snapshot and
// content hash the daily close commits.
package dailyreport

import (
	"context"
	"fmt"
	"time"

	appctx "invclose/internal/core/context"
	"invclose/internal/core/id"
	"invclose/internal/core/types"
	"invclose/internal/domain/dataset"
	"invclose/internal/domain/history"
	"invclose/internal/domain/integrity"
	"invclose/internal/domain/inventory"
	"invclose/internal/domain/snapshot"
	"invclose/internal/domain/unmatch"
	"invclose/pkg/logger"
)

// Options control one preparation.
type Options struct {
	// Rebuild always issues a new dataset, even when the current one is
	// still valid.
	Rebuild bool
}

// Result of Prepare.
type Result struct {
	DatasetID    id.ID             `json:"datasetId"`
	BusinessDate time.Time         `json:"businessDate"`
	DataHash     string            `json:"dataHash"`
	Reused       bool              `json:"reused"`
	Unmatched    int               `json:"unmatched"`
	Summary      *snapshot.Summary `json:"summary,omitempty"`
}

// Service prepares daily reports.
type Service struct {
	authority        *dataset.Authority
	detector         *unmatch.Detector
	engine           *snapshot.Engine
	snapshots        inventory.SnapshotRepository
	validator        *integrity.Validator
	history          *history.Recorder
	requireNoUnmatch bool
}

// NewService creates the report service. With requireNoUnmatch the report
// is refused while reconciliation has findings.
func NewService(
	authority *dataset.Authority,
	detector *unmatch.Detector,
	engine *snapshot.Engine,
	snapshots inventory.SnapshotRepository,
	validator *integrity.Validator,
	recorder *history.Recorder,
	requireNoUnmatch bool,
) *Service {
	return &Service{
		authority:        authority,
		detector:         detector,
		engine:           engine,
		snapshots:        snapshots,
		validator:        validator,
		history:          recorder,
		requireNoUnmatch: requireNoUnmatch,
	}
}

// Prepare makes sure a DAILY_REPORT dataset with a built snapshot exists
// for date and records its content hash. A current dataset is reused when
// its snapshot is present and the voucher content is unchanged.
func (s *Service) Prepare(ctx context.Context, date time.Time, executedBy string, opts Options) (Result, error) {
	date = types.BusinessDate(date)
	result := Result{BusinessDate: date}

	if s.requireNoUnmatch {
		found, err := s.detector.Detect(ctx, date, executedBy)
		if err != nil {
			return Result{}, err
		}
		result.Unmatched = found.Count()
		if err := unmatch.Gate(found); err != nil {
			logger.Warn(ctx, "daily report blocked by unmatched lines", "count", found.Count())
			return result, err
		}
	}

	ctx = appctx.WithProcess(ctx, string(dataset.ProcessDailyReport), date)

	if !opts.Rebuild {
		datasetID, hash, ok, err := s.reuse(ctx, date)
		if err != nil {
			return Result{}, err
		}
		if ok {
			result.DatasetID = datasetID
			result.DataHash = hash
			result.Reused = true
			logger.Info(ctx, "daily report dataset reused", "dataset_id", datasetID)
			return result, nil
		}
	}

	ds, err := s.authority.CreateNew(ctx, date, dataset.ProcessDailyReport, executedBy)
	if err != nil {
		return Result{}, err
	}
	entry, err := s.history.Start(ctx, ds.ID, date, dataset.ProcessDailyReport, executedBy)
	if err != nil {
		return Result{}, err
	}

	summary, hash, err := s.build(ctx, ds.ID, date)
	if err != nil {
		if ferr := s.history.Fail(ctx, entry, err.Error()); ferr != nil {
			logger.Error(ctx, "failed to record daily report failure", "error", ferr)
		}
		return Result{}, err
	}

	remark := fmt.Sprintf("%d rows, %d created", summary.CopiedRows+int64(summary.CreatedRows), summary.CreatedRows)
	if err := s.history.Complete(ctx, entry, hash, remark); err != nil {
		return Result{}, err
	}

	result.DatasetID = ds.ID
	result.DataHash = hash
	result.Summary = &summary
	logger.Info(ctx, "daily report prepared",
		"dataset_id", ds.ID,
		"rows", summary.CopiedRows+int64(summary.CreatedRows),
	)
	return result, nil
}

func (s *Service) build(ctx context.Context, datasetID id.ID, date time.Time) (snapshot.Summary, string, error) {
	summary, err := s.engine.Build(ctx, datasetID, date, inventory.CopyAsOf)
	if err != nil {
		return snapshot.Summary{}, "", err
	}
	hash, err := s.validator.ComputeContentHash(ctx, date)
	if err != nil {
		return snapshot.Summary{}, "", err
	}
	return summary, hash, nil
}

// reuse returns the current dataset and its recorded hash when the dataset
// can serve the close as is.
func (s *Service) reuse(ctx context.Context, date time.Time) (id.ID, string, bool, error) {
	current, err := s.authority.Current(ctx, date, dataset.ProcessDailyReport)
	if err != nil || current == nil {
		return id.Nil(), "", false, err
	}

	rows, err := s.snapshots.CountByDataset(ctx, current.ID)
	if err != nil {
		return id.Nil(), "", false, fmt.Errorf("count snapshot %s: %w", current.ID, err)
	}
	if rows == 0 {
		return id.Nil(), "", false, nil
	}

	ds := current.ID
	entry, err := s.history.LatestCompleted(ctx, date, dataset.ProcessDailyReport, &ds)
	if err != nil || entry == nil || entry.DataHash == "" {
		return id.Nil(), "", false, err
	}

	hash, err := s.validator.ComputeContentHash(ctx, date)
	if err != nil {
		return id.Nil(), "", false, err
	}
	if hash != entry.DataHash {
		logger.Info(ctx, "voucher content changed since last report", "dataset_id", current.ID)
		return id.Nil(), "", false, nil
	}
	return current.ID, hash, true, nil
}
