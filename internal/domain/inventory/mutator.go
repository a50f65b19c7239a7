package inventory

import (
	"context"
	"fmt"
	"time"

	"invclose/internal/core/id"
	"invclose/internal/core/tx"
	"invclose/pkg/logger"
)

// ApplyResult summarizes one application of a snapshot onto the master.
type ApplyResult struct {
	Rows    int `json:"rows"`
	NewKeys int `json:"newKeys"`
	// Skipped counts snapshot rows with excluded keys.
	Skipped int `json:"skipped"`
}

// Mutator is the only writer of the permanent master during a close.
type Mutator struct {
	snapshots SnapshotRepository
	masters   MasterRepository
	audit     AuditTrail
	txManager tx.Manager
	batchSize int
}

// NewMutator creates a mutator. batchSize bounds rows per upsert statement.
func NewMutator(snapshots SnapshotRepository, masters MasterRepository, audit AuditTrail, txManager tx.Manager, batchSize int) *Mutator {
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &Mutator{
		snapshots: snapshots,
		masters:   masters,
		audit:     audit,
		txManager: txManager,
		batchSize: batchSize,
	}
}

// Plan returns the master rows Apply would write, without writing them.
func (m *Mutator) Plan(ctx context.Context, datasetID id.ID, date time.Time) ([]Master, error) {
	masters, _, err := m.plan(ctx, datasetID, date)
	return masters, err
}

// Preview returns the counts Apply would report, without writing.
func (m *Mutator) Preview(ctx context.Context, datasetID id.ID, date time.Time) (ApplyResult, error) {
	_, res, err := m.plan(ctx, datasetID, date)
	return res, err
}

func (m *Mutator) plan(ctx context.Context, datasetID id.ID, date time.Time) ([]Master, ApplyResult, error) {
	rows, err := m.snapshots.GetByDataset(ctx, datasetID)
	if err != nil {
		return nil, ApplyResult{}, fmt.Errorf("load snapshot %s: %w", datasetID, err)
	}

	var res ApplyResult
	masters := make([]Master, 0, len(rows))
	for _, s := range rows {
		if s.Key.Excluded() {
			res.Skipped++
			continue
		}
		if s.Origin == OriginVoucher {
			res.NewKeys++
		}
		masters = append(masters, MasterFromSnapshot(s, date))
	}
	res.Rows = len(masters)
	return masters, res, nil
}

// Apply upserts every snapshot row of datasetID onto the master in one
// transaction.
func (m *Mutator) Apply(ctx context.Context, datasetID id.ID, date time.Time) (ApplyResult, error) {
	masters, result, err := m.plan(ctx, datasetID, date)
	if err != nil {
		return ApplyResult{}, err
	}

	err = m.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		for start := 0; start < len(masters); start += m.batchSize {
			end := min(start+m.batchSize, len(masters))
			if err := m.masters.Upsert(ctx, masters[start:end]); err != nil {
				return fmt.Errorf("upsert master rows %d-%d: %w", start, end, err)
			}
		}
		return nil
	})
	if err != nil {
		return ApplyResult{}, err
	}

	logger.Info(ctx, "inventory master updated",
		"dataset_id", datasetID,
		"rows", result.Rows,
		"new_keys", result.NewKeys,
		"skipped", result.Skipped,
	)
	return result, nil
}

// DeactivateZeroStock deactivates items idle at zero stock for thresholdDays
// and records an audit entry for them.
func (m *Mutator) DeactivateZeroStock(ctx context.Context, date time.Time, thresholdDays int) ([]Key, error) {
	if thresholdDays <= 0 {
		return nil, nil
	}

	var keys []Key
	err := m.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		keys, err = m.masters.DeactivateZeroStock(ctx, date, thresholdDays)
		if err != nil {
			return fmt.Errorf("deactivate zero stock: %w", err)
		}
		if len(keys) == 0 || m.audit == nil {
			return nil
		}
		if err := m.audit.RecordDeactivation(ctx, date, thresholdDays, keys); err != nil {
			return fmt.Errorf("audit deactivation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(keys) > 0 {
		logger.Info(ctx, "zero stock items deactivated",
			"count", len(keys),
			"threshold_days", thresholdDays,
		)
	}
	return keys, nil
}

// MasterFromSnapshot rolls a computed snapshot row into its next master state.
func MasterFromSnapshot(s Snapshot, date time.Time) Master {
	closed := date
	m := Master{
		Key:                 s.Key,
		ProductName:         s.ProductName,
		Unit:                s.Unit,
		ProductCategory1:    s.ProductCategory1,
		PreviousStock:       s.PreviousStock,
		PreviousStockAmount: s.PreviousStockAmount,
		CurrentStock:        s.DailyStock,
		CurrentStockAmount:  s.DailyStockAmount,
		UnitPrice:           s.DailyUnitPrice,
		LastReceiptDate:     s.LastReceiptDate,
		LastSalesDate:       s.LastSalesDate,
		AsOfDate:            date,
		LastCloseDate:       &closed,
		IsActive:            true,
	}

	if s.DailyStock.IsZero() {
		if s.ZeroStockSince != nil {
			m.ZeroStockSince = s.ZeroStockSince
		} else {
			since := date
			m.ZeroStockSince = &since
		}
	}
	return m
}
