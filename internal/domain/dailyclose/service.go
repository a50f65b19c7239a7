package dailyclose

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"invclose/internal/core/apperror"
	"invclose/internal/core/clock"
	appctx "invclose/internal/core/context"
	"invclose/internal/core/id"
	"invclose/internal/core/types"
	"invclose/internal/domain/backup"
	"invclose/internal/domain/dataset"
	"invclose/internal/domain/history"
	"invclose/internal/domain/integrity"
	"invclose/internal/domain/inventory"
	"invclose/internal/domain/snapshot"
	"invclose/internal/domain/voucher"
	"invclose/pkg/logger"
)

var tracer = otel.Tracer("invclose/dailyclose")

// ServiceConfig holds close policy not covered by the timing policy.
type ServiceConfig struct {
	// ZeroStockDeactivateDays deactivates items idle at zero stock this many
	// days after a successful close. 0 disables it.
	ZeroStockDeactivateDays int

	// BackupRetentionDays prunes master backups older than this many days
	// after a successful close. 0 keeps every backup.
	BackupRetentionDays int
}

// OutcomeStatus tags the result of a close request.
type OutcomeStatus string

const (
	// OutcomeClosed means this call committed the day.
	OutcomeClosed OutcomeStatus = "CLOSED"
	// OutcomeAlreadyClosed means a PASSED record existed and nothing ran.
	OutcomeAlreadyClosed OutcomeStatus = "ALREADY_CLOSED"
	// OutcomePlanned means a dry run computed a plan and mutated nothing.
	OutcomePlanned OutcomeStatus = "PLANNED"
)

// Outcome of Execute and ExecuteDevelopment.
type Outcome struct {
	Status OutcomeStatus `json:"status"`
	Record *Record       `json:"record,omitempty"`
	Plan   *Plan         `json:"plan,omitempty"`
}

// DevOptions relax the close for development and recovery runs.
type DevOptions struct {
	// SkipValidation skips the timing and integrity gates.
	SkipValidation bool
	// DryRun computes a Plan and writes nothing.
	DryRun bool
}

// Plan describes what a close would do.
type Plan struct {
	BusinessDate time.Time `json:"businessDate"`
	DatasetID    *id.ID    `json:"datasetId,omitempty"`
	DataHash     string    `json:"dataHash"`
	SnapshotRows int64     `json:"snapshotRows"`
	MasterRows   int       `json:"masterRows"`
	NewKeys      int       `json:"newKeys"`
	Skipped      int       `json:"skipped"`
	Warnings     []string  `json:"warnings,omitempty"`
}

// Service runs the daily close.
type Service struct {
	repo      Repository
	authority *dataset.Authority
	engine    *snapshot.Engine
	snapshots inventory.SnapshotRepository
	vouchers  voucher.Set
	mutator   *inventory.Mutator
	validator *integrity.Validator
	backup    backup.Creator
	history   *history.Recorder
	clock     clock.Clock
	config    ServiceConfig
}

// NewService creates the daily close service.
func NewService(
	repo Repository,
	authority *dataset.Authority,
	engine *snapshot.Engine,
	snapshots inventory.SnapshotRepository,
	vouchers voucher.Set,
	mutator *inventory.Mutator,
	validator *integrity.Validator,
	backupCreator backup.Creator,
	recorder *history.Recorder,
	clk clock.Clock,
	config ServiceConfig,
) *Service {
	return &Service{
		repo:      repo,
		authority: authority,
		engine:    engine,
		snapshots: snapshots,
		vouchers:  vouchers,
		mutator:   mutator,
		validator: validator,
		backup:    backupCreator,
		history:   recorder,
		clock:     clk,
		config:    config,
	}
}

// Execute closes date. A PASSED record makes it a no-op; any other record
// fails with DUPLICATE_CLOSE until it is reset. Timing and integrity
// violations fail before anything is written.
func (s *Service) Execute(ctx context.Context, date time.Time, executedBy string) (Outcome, error) {
	date = types.BusinessDate(date)
	ctx = appctx.WithProcess(ctx, string(dataset.ProcessDailyClose), date)

	if out, done, err := s.guard(ctx, date); done || err != nil {
		return out, err
	}

	report, err := s.reportDataset(ctx, date)
	if err != nil {
		return Outcome{}, err
	}

	if err := s.validator.ValidateProcessingTime(ctx, date, report.ID); err != nil {
		logger.Warn(ctx, "daily close rejected by timing", "error", err)
		return Outcome{}, err
	}

	check, err := s.validator.RequireIntegrity(ctx, date, report.ID)
	if err != nil {
		logger.Warn(ctx, "daily close rejected by integrity", "error", err)
		return Outcome{}, err
	}

	rec, err := s.commit(ctx, date, report.ID, check.CurrentHash, executedBy)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Status: OutcomeClosed, Record: rec}, nil
}

// ExecuteDevelopment closes date with the gates relaxed by opts. Without a
// daily report and with SkipValidation it issues a report dataset and builds
// its snapshot.
func (s *Service) ExecuteDevelopment(ctx context.Context, date time.Time, executedBy string, opts DevOptions) (Outcome, error) {
	date = types.BusinessDate(date)
	ctx = appctx.WithProcess(ctx, string(dataset.ProcessDailyClose), date)

	logger.Warn(ctx, "daily close in development mode",
		"skip_validation", opts.SkipValidation,
		"dry_run", opts.DryRun,
	)

	if out, done, err := s.guard(ctx, date); done || err != nil {
		return out, err
	}

	report, err := s.authority.Current(ctx, date, dataset.ProcessDailyReport)
	if err != nil {
		return Outcome{}, err
	}
	if report == nil && !opts.SkipValidation {
		return Outcome{}, apperror.NewMissingPrerequisite("daily report", types.FormatDate(date))
	}

	if opts.DryRun {
		plan, err := s.plan(ctx, date, report)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Status: OutcomePlanned, Plan: plan}, nil
	}

	if report == nil {
		rec, _, err := s.authority.GetOrCreate(ctx, date, dataset.ProcessDailyReport, executedBy)
		if err != nil {
			return Outcome{}, err
		}
		report = &rec
	}

	var hash string
	if opts.SkipValidation {
		logger.Warn(ctx, "timing and integrity validation skipped", "dataset_id", report.ID)
		if hash, err = s.validator.ComputeContentHash(ctx, date); err != nil {
			return Outcome{}, err
		}
	} else {
		if err := s.validator.ValidateProcessingTime(ctx, date, report.ID); err != nil {
			return Outcome{}, err
		}
		check, err := s.validator.RequireIntegrity(ctx, date, report.ID)
		if err != nil {
			return Outcome{}, err
		}
		hash = check.CurrentHash
	}

	rec, err := s.commit(ctx, date, report.ID, hash, executedBy)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Status: OutcomeClosed, Record: rec}, nil
}

// guard applies the idempotency rule. done is true when the date is
// already closed.
func (s *Service) guard(ctx context.Context, date time.Time) (Outcome, bool, error) {
	existing, err := s.repo.Get(ctx, date)
	if err != nil {
		return Outcome{}, false, fmt.Errorf("get daily close %s: %w", types.FormatDate(date), err)
	}
	if existing == nil {
		return Outcome{}, false, nil
	}
	if existing.Status == StatusPassed {
		logger.Info(ctx, "daily close already passed", "dataset_id", existing.DatasetID)
		return Outcome{Status: OutcomeAlreadyClosed, Record: existing}, true, nil
	}
	return Outcome{}, false, apperror.NewDuplicateClose(types.FormatDate(date), string(existing.Status))
}

func (s *Service) reportDataset(ctx context.Context, date time.Time) (*dataset.Record, error) {
	report, err := s.authority.Current(ctx, date, dataset.ProcessDailyReport)
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, apperror.NewMissingPrerequisite("daily report", types.FormatDate(date))
	}
	return report, nil
}

func (s *Service) plan(ctx context.Context, date time.Time, report *dataset.Record) (*Plan, error) {
	hash, err := s.validator.ComputeContentHash(ctx, date)
	if err != nil {
		return nil, err
	}
	p := &Plan{BusinessDate: date, DataHash: hash}
	if report == nil {
		p.Warnings = append(p.Warnings, "no daily report dataset; a close would issue one")
		return p, nil
	}

	ds := report.ID
	p.DatasetID = &ds
	if p.SnapshotRows, err = s.snapshots.CountByDataset(ctx, ds); err != nil {
		return nil, fmt.Errorf("count snapshot %s: %w", ds, err)
	}
	if p.SnapshotRows == 0 {
		p.Warnings = append(p.Warnings, "snapshot not built; a close would rebuild it")
		return p, nil
	}

	preview, err := s.mutator.Preview(ctx, ds, date)
	if err != nil {
		return nil, err
	}
	p.MasterRows = preview.Rows
	p.NewKeys = preview.NewKeys
	p.Skipped = preview.Skipped

	logger.Info(ctx, "daily close planned",
		"dataset_id", ds,
		"snapshot_rows", p.SnapshotRows,
		"master_rows", p.MasterRows,
	)
	return p, nil
}

// commit takes the backup and walks the record from PENDING to PASSED.
func (s *Service) commit(ctx context.Context, date time.Time, datasetID id.ID, hash, executedBy string) (*Record, error) {
	ctx, span := tracer.Start(ctx, "dailyclose.commit",
		trace.WithAttributes(
			attribute.String("business_date", types.FormatDate(date)),
			attribute.String("dataset.id", datasetID.String()),
		))
	defer span.End()

	backupPath, err := s.backup.CreateBackup(ctx, dataset.ProcessDailyClose, date)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("backup before daily close: %w", err)
	}
	logger.Info(ctx, "master backup created", "path", backupPath)

	now := s.clock.Now().UTC()
	rec := Record{
		BusinessDate:    date,
		DatasetID:       datasetID,
		ReportDatasetID: datasetID,
		BackupPath:      backupPath,
		DataHash:        hash,
		Status:          StatusPending,
		ProcessedBy:     executedBy,
		ProcessedAt:     now,
		UpdatedAt:       now,
	}
	if err := s.repo.Insert(ctx, rec); err != nil {
		if apperror.HasCode(err, apperror.CodeConflict) {
			return nil, s.duplicate(ctx, date, err)
		}
		return nil, fmt.Errorf("insert daily close: %w", err)
	}

	entry, herr := s.history.Start(ctx, datasetID, date, dataset.ProcessDailyClose, executedBy)
	if herr != nil {
		logger.Warn(ctx, "daily close history not started", "error", herr)
	}

	if err := s.process(ctx, &rec); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.fail(ctx, &rec, entry, herr == nil, err)
		return nil, err
	}

	s.finish(ctx, &rec)

	if herr == nil {
		remark := fmt.Sprintf("applied %d rows, deactivated %d", rec.RowsApplied, rec.RowsDeactivated)
		if err := s.history.Complete(ctx, entry, rec.DataHash, remark); err != nil {
			logger.Warn(ctx, "daily close history not completed", "error", err)
		}
	}

	logger.Info(ctx, "daily close passed",
		"dataset_id", rec.DatasetID,
		"rows_applied", rec.RowsApplied,
		"rows_deactivated", rec.RowsDeactivated,
	)
	return &rec, nil
}

// process runs PROCESSING, VALIDATING and PASSED. Each transition is
// persisted before the next phase starts.
func (s *Service) process(ctx context.Context, rec *Record) error {
	if err := s.transition(ctx, rec, StatusProcessing); err != nil {
		return err
	}

	rows, err := s.snapshots.CountByDataset(ctx, rec.DatasetID)
	if err != nil {
		return fmt.Errorf("count snapshot %s: %w", rec.DatasetID, err)
	}
	if rows == 0 {
		logger.Info(ctx, "snapshot missing, rebuilding", "dataset_id", rec.DatasetID)
		if _, err := s.engine.Build(ctx, rec.DatasetID, rec.BusinessDate, inventory.CopyAsOf); err != nil {
			return err
		}
		if rows, err = s.snapshots.CountByDataset(ctx, rec.DatasetID); err != nil {
			return fmt.Errorf("count snapshot %s: %w", rec.DatasetID, err)
		}
	}

	applied, err := s.mutator.Apply(ctx, rec.DatasetID, rec.BusinessDate)
	if err != nil {
		return err
	}
	rec.RowsApplied = applied.Rows

	if err := s.transition(ctx, rec, StatusValidating); err != nil {
		return err
	}

	if got := int64(applied.Rows + applied.Skipped); got != rows {
		return apperror.NewBusinessRule(apperror.CodeDataIntegrity,
			fmt.Sprintf("applied %d master rows for %d snapshot rows", got, rows)).
			WithDetail("snapshot_rows", rows).
			WithDetail("applied_rows", got)
	}

	hash, err := s.validator.ComputeContentHash(ctx, rec.BusinessDate)
	if err != nil {
		return err
	}
	if hash != rec.DataHash {
		return apperror.NewDataIntegrity(rec.DataHash, hash).
			WithDetail("phase", string(StatusValidating))
	}

	return s.transition(ctx, rec, StatusPassed)
}

func (s *Service) transition(ctx context.Context, rec *Record, to Status) error {
	from := rec.Status
	rec.Status = to
	rec.UpdatedAt = s.clock.Now().UTC()
	if err := s.repo.Update(ctx, *rec); err != nil {
		rec.Status = from
		return fmt.Errorf("move daily close %s to %s: %w", types.FormatDate(rec.BusinessDate), to, err)
	}
	logger.Info(ctx, "daily close status changed", "from", from, "to", to)
	return nil
}

// finish runs the post-close housekeeping. Failures here do not undo the
// close; they are logged.
func (s *Service) finish(ctx context.Context, rec *Record) {
	if _, err := s.snapshots.DeleteByDataset(ctx, rec.DatasetID); err != nil {
		logger.Warn(ctx, "failed to delete closed snapshot", "dataset_id", rec.DatasetID, "error", err)
	}

	if pruner, ok := s.backup.(backup.Pruner); ok && s.config.BackupRetentionDays > 0 {
		if _, err := pruner.Prune(ctx, s.config.BackupRetentionDays); err != nil {
			logger.Warn(ctx, "backup pruning failed", "error", err)
		}
	}

	if s.config.ZeroStockDeactivateDays <= 0 {
		return
	}
	keys, err := s.mutator.DeactivateZeroStock(ctx, rec.BusinessDate, s.config.ZeroStockDeactivateDays)
	if err != nil {
		logger.Warn(ctx, "zero stock deactivation failed", "error", err)
		return
	}
	rec.RowsDeactivated = len(keys)
	rec.UpdatedAt = s.clock.Now().UTC()
	if err := s.repo.Update(ctx, *rec); err != nil {
		logger.Warn(ctx, "failed to record deactivation count", "error", err)
	}
}

// fail marks rec FAILED. When the record cannot be written the failure goes
// to process history instead.
func (s *Service) fail(ctx context.Context, rec *Record, entry history.Entry, started bool, cause error) {
	logger.Error(ctx, "daily close failed",
		"status", rec.Status,
		"backup_path", rec.BackupPath,
		"error", cause,
	)

	rec.Status = StatusFailed
	rec.Remarks = cause.Error()
	rec.UpdatedAt = s.clock.Now().UTC()
	recorded := true
	if err := s.repo.Update(ctx, *rec); err != nil {
		recorded = false
		logger.Error(ctx, "failed to mark daily close FAILED", "error", err)
	}

	switch {
	case started:
		if err := s.history.Fail(ctx, entry, cause.Error()); err != nil {
			logger.Error(ctx, "failed to record daily close failure", "error", err)
		}
	case !recorded:
		if err := s.history.RecordFailure(ctx, rec.DatasetID, rec.BusinessDate, dataset.ProcessDailyClose, rec.ProcessedBy, cause.Error()); err != nil {
			logger.Error(ctx, "failed to record daily close failure", "error", err)
		}
	}
}

func (s *Service) duplicate(ctx context.Context, date time.Time, cause error) error {
	existing, err := s.repo.Get(ctx, date)
	if err != nil {
		return errors.Join(cause, err)
	}
	status := "UNKNOWN"
	if existing != nil {
		status = string(existing.Status)
	}
	return apperror.NewDuplicateClose(types.FormatDate(date), status).WithCause(cause)
}

// ResetFailed removes a record that did not pass so the close can be
// retried. PASSED records cannot be reset.
func (s *Service) ResetFailed(ctx context.Context, date time.Time) (*Record, error) {
	date = types.BusinessDate(date)
	rec, err := s.repo.Get(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("get daily close %s: %w", types.FormatDate(date), err)
	}
	if rec == nil {
		return nil, apperror.NewNotFound("daily close", types.FormatDate(date))
	}
	if rec.Status == StatusPassed {
		return nil, apperror.NewBusinessRule(apperror.CodeBusinessRule,
			fmt.Sprintf("Daily close for %s passed and cannot be reset", types.FormatDate(date)))
	}
	if _, err := s.repo.Delete(ctx, date); err != nil {
		return nil, fmt.Errorf("delete daily close %s: %w", types.FormatDate(date), err)
	}
	logger.Info(ctx, "daily close record reset",
		"business_date", types.FormatDate(date),
		"status", rec.Status,
	)
	return rec, nil
}

// Get returns the record of date.
func (s *Service) Get(ctx context.Context, date time.Time) (*Record, error) {
	date = types.BusinessDate(date)
	rec, err := s.repo.Get(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("get daily close %s: %w", types.FormatDate(date), err)
	}
	if rec == nil {
		return nil, apperror.NewNotFound("daily close", types.FormatDate(date))
	}
	return rec, nil
}

// List returns records newest first.
func (s *Service) List(ctx context.Context, filter Filter) ([]Record, error) {
	records, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list daily close: %w", err)
	}
	return records, nil
}
