// Package snapshot builds a dataset-scoped working inventory from the
// permanent master and folds one business day's vouchers into it.
package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"invclose/internal/core/id"
	"invclose/internal/core/tx"
	"invclose/internal/core/types"
	"invclose/internal/domain/inventory"
	"invclose/internal/domain/voucher"
	"invclose/pkg/logger"
)

var tracer = otel.Tracer("invclose/snapshot")

// DefaultBatchSize bounds rows per write statement.
const DefaultBatchSize = 1000

// Summary describes one build.
type Summary struct {
	DatasetID    id.ID     `json:"datasetId"`
	BusinessDate time.Time `json:"businessDate"`
	Mode         string    `json:"mode"`

	CopiedRows   int64 `json:"copiedRows"`
	CreatedRows  int   `json:"createdRows"`
	TouchedRows  int   `json:"touchedRows"`
	SkippedLines int   `json:"skippedLines"`

	SalesLines      int `json:"salesLines"`
	DiscountLines   int `json:"discountLines"`
	PurchaseLines   int `json:"purchaseLines"`
	AdjustmentLines int `json:"adjustmentLines"`

	SalesAmount    decimal.Decimal `json:"salesAmount"`
	PurchaseAmount decimal.Decimal `json:"purchaseAmount"`
	GrossProfit    decimal.Decimal `json:"grossProfit"`
}

// Engine runs the aggregation pipeline.
type Engine struct {
	snapshots inventory.SnapshotRepository
	vouchers  voucher.Set
	txManager tx.Manager
	batchSize int
}

// NewEngine creates the aggregation engine.
func NewEngine(snapshots inventory.SnapshotRepository, vouchers voucher.Set, txManager tx.Manager, batchSize int) *Engine {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Engine{
		snapshots: snapshots,
		vouchers:  vouchers,
		txManager: txManager,
		batchSize: batchSize,
	}
}

// Build seeds the snapshot of datasetID from the master and folds the
// vouchers of date into it, in one transaction:
//
//  1. copy master rows (mode decides which)
//  2. reset daily accumulators
//  3. fold sales, 4. purchases, 5. adjustments
//  6. compute daily stock, unit price, stock amount and gross profit
//  7. mark touched rows processed
func (e *Engine) Build(ctx context.Context, datasetID id.ID, date time.Time, mode inventory.CopyMode) (Summary, error) {
	ctx, span := tracer.Start(ctx, "snapshot.build",
		trace.WithAttributes(
			attribute.String("dataset.id", datasetID.String()),
			attribute.String("snapshot.mode", mode.String()),
		))
	defer span.End()

	date = types.BusinessDate(date)
	summary := Summary{
		DatasetID:      datasetID,
		BusinessDate:   date,
		Mode:           mode.String(),
		SalesAmount:    decimal.Zero,
		PurchaseAmount: decimal.Zero,
		GrossProfit:    decimal.Zero,
	}

	err := e.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		copied, err := e.snapshots.CopyFromMaster(ctx, datasetID, date, mode)
		if err != nil {
			return fmt.Errorf("copy master: %w", err)
		}
		summary.CopiedRows = copied

		if err := e.snapshots.ResetDaily(ctx, datasetID); err != nil {
			return fmt.Errorf("reset daily: %w", err)
		}

		existing, err := e.snapshots.GetByDataset(ctx, datasetID)
		if err != nil {
			return fmt.Errorf("load snapshot: %w", err)
		}

		sales, purchases, adjustments, err := e.vouchers.Lines(ctx, date)
		if err != nil {
			return fmt.Errorf("load vouchers: %w", err)
		}

		f := newFolder(datasetID, date, existing)
		for _, l := range sales {
			switch {
			case l.Key.Normalize().Excluded():
				summary.SkippedLines++
			case l.IsSalesDiscount():
				f.discount(l)
				summary.DiscountLines++
			case l.Qualifies():
				f.sale(l)
				summary.SalesLines++
				summary.SalesAmount = summary.SalesAmount.Add(l.Amount)
			}
		}
		for _, l := range purchases {
			switch {
			case l.Key.Normalize().Excluded():
				summary.SkippedLines++
			case l.Qualifies():
				f.purchase(l)
				summary.PurchaseLines++
				summary.PurchaseAmount = summary.PurchaseAmount.Add(l.Amount)
			}
		}
		for _, l := range adjustments {
			switch {
			case l.Key.Normalize().Excluded():
				summary.SkippedLines++
			case l.Qualifies():
				f.adjustment(l)
				summary.AdjustmentLines++
			}
		}

		pricing := f.compute()
		created, updated := f.split()
		summary.CreatedRows = len(created)
		summary.TouchedRows = len(f.touched)
		for _, u := range pricing {
			summary.GrossProfit = summary.GrossProfit.Add(u.GrossProfit)
		}

		if err := inBatches(created, e.batchSize, func(b []inventory.Snapshot) error {
			return e.snapshots.Insert(ctx, b)
		}); err != nil {
			return fmt.Errorf("insert voucher rows: %w", err)
		}
		if err := inBatches(updated, e.batchSize, func(b []inventory.Snapshot) error {
			return e.snapshots.UpdateDaily(ctx, b)
		}); err != nil {
			return fmt.Errorf("update daily totals: %w", err)
		}
		if err := inBatches(pricing, e.batchSize, func(b []voucher.PricingUpdate) error {
			return e.vouchers.Sales.UpdatePricing(ctx, b)
		}); err != nil {
			return fmt.Errorf("update sales pricing: %w", err)
		}

		if _, err := e.snapshots.MarkProcessed(ctx, datasetID); err != nil {
			return fmt.Errorf("mark processed: %w", err)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return Summary{}, fmt.Errorf("build snapshot %s: %w", datasetID, err)
	}

	logger.Info(ctx, "snapshot built",
		"dataset_id", datasetID,
		"mode", summary.Mode,
		"copied", summary.CopiedRows,
		"created", summary.CreatedRows,
		"touched", summary.TouchedRows,
		"sales_lines", summary.SalesLines,
		"purchase_lines", summary.PurchaseLines,
		"adjustment_lines", summary.AdjustmentLines,
	)
	return summary, nil
}

// inBatches calls fn with consecutive slices of at most size items.
func inBatches[T any](items []T, size int, fn func([]T) error) error {
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		if err := fn(items[start:end]); err != nil {
			return err
		}
	}
	return nil
}
