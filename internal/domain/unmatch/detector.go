package unmatch

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"invclose/internal/core/apperror"
	appctx "invclose/internal/core/context"
	"invclose/internal/core/id"
	"invclose/internal/core/types"
	"invclose/internal/domain/dataset"
	"invclose/internal/domain/history"
	"invclose/internal/domain/inventory"
	"invclose/internal/domain/masterdata"
	"invclose/internal/domain/snapshot"
	"invclose/internal/domain/voucher"
	"invclose/pkg/logger"
)

// Detector runs reconciliation for one business date.
type Detector struct {
	authority  *dataset.Authority
	engine     *snapshot.Engine
	snapshots  inventory.SnapshotRepository
	masters    inventory.MasterRepository
	vouchers   voucher.Set
	masterData masterdata.Source
	history    *history.Recorder
	policy     ZeroStockPolicy
}

// NewDetector creates a detector. masterData may be nil.
func NewDetector(
	authority *dataset.Authority,
	engine *snapshot.Engine,
	snapshots inventory.SnapshotRepository,
	masters inventory.MasterRepository,
	vouchers voucher.Set,
	masterData masterdata.Source,
	recorder *history.Recorder,
	policy ZeroStockPolicy,
) *Detector {
	if policy == "" {
		policy = ZeroStockSuppress
	}
	return &Detector{
		authority:  authority,
		engine:     engine,
		snapshots:  snapshots,
		masters:    masters,
		vouchers:   vouchers,
		masterData: masterData,
		history:    recorder,
		policy:     policy,
	}
}

// Policy returns the zero-stock policy in effect.
func (d *Detector) Policy() ZeroStockPolicy {
	return d.policy
}

// Detect issues a fresh reconciliation dataset, builds its snapshot and
// reports every qualifying voucher line without an inventory record. The
// snapshot is discarded when detection ends.
func (d *Detector) Detect(ctx context.Context, date time.Time, executedBy string) (Result, error) {
	date = types.BusinessDate(date)
	ctx = appctx.WithProcess(ctx, string(dataset.ProcessUnmatchList), date)

	ds, err := d.authority.CreateNew(ctx, date, dataset.ProcessUnmatchList, executedBy)
	if err != nil {
		return Result{}, err
	}

	entry, err := d.history.Start(ctx, ds.ID, date, dataset.ProcessUnmatchList, executedBy)
	if err != nil {
		return Result{}, err
	}

	defer d.discard(ctx, ds.ID)

	result, err := d.detect(ctx, ds.ID, date)
	if err != nil {
		if ferr := d.history.Fail(ctx, entry, err.Error()); ferr != nil {
			logger.Error(ctx, "failed to record unmatch failure", "error", ferr)
		}
		return Result{}, err
	}

	if err := d.history.Complete(ctx, entry, "", fmt.Sprintf("%d unmatched of %d lines", result.Count(), result.CheckedLines)); err != nil {
		return Result{}, err
	}

	logger.Info(ctx, "unmatch detection finished",
		"dataset_id", ds.ID,
		"business_date", types.FormatDate(date),
		"checked", result.CheckedLines,
		"unmatched", result.Count(),
		"policy", d.policy,
	)
	return result, nil
}

func (d *Detector) detect(ctx context.Context, datasetID id.ID, date time.Time) (Result, error) {
	if _, err := d.engine.Build(ctx, datasetID, date, inventory.CopyThrough); err != nil {
		return Result{}, err
	}

	rows, err := d.snapshots.GetByDataset(ctx, datasetID)
	if err != nil {
		return Result{}, fmt.Errorf("load snapshot %s: %w", datasetID, err)
	}
	byKey := make(map[inventory.Key]inventory.Snapshot, len(rows))
	for _, s := range rows {
		byKey[s.Key.Normalize()] = s
	}

	sales, purchases, adjustments, err := d.vouchers.Lines(ctx, date)
	if err != nil {
		return Result{}, fmt.Errorf("load vouchers: %w", err)
	}

	result := Result{
		DatasetID:    datasetID,
		BusinessDate: date,
		Policy:       d.policy,
	}
	resolver := masterdata.NewResolver(d.masterData)
	classifications := make(map[inventory.Key]string)

	for _, lines := range [][]voucher.Line{sales, purchases, adjustments} {
		for _, l := range lines {
			if !l.Qualifies() {
				continue
			}
			result.CheckedLines++

			key := l.Key.Normalize()
			reason, found := d.check(l, byKey, key)
			if !found {
				continue
			}

			class, err := d.classification(ctx, classifications, key)
			if err != nil {
				return Result{}, err
			}
			result.Items = append(result.Items, d.item(ctx, resolver, l, key, class, reason))
		}
	}

	SortItems(result.Items)
	return result, nil
}

// check returns the finding reason for a qualifying line, found=false when
// the line reconciles.
func (d *Detector) check(l voucher.Line, rows map[inventory.Key]inventory.Snapshot, key inventory.Key) (Reason, bool) {
	s, ok := rows[key]
	if !ok || s.Origin == inventory.OriginVoucher {
		return ReasonNotFound, true
	}
	if d.policy != ZeroStockFlag || !s.DailyStock.IsZero() {
		return "", false
	}
	if l.Kind == voucher.KindSales && s.PreviousStock.IsNegative() {
		return "", false
	}
	return ReasonZeroStock, true
}

func (d *Detector) classification(ctx context.Context, cache map[inventory.Key]string, key inventory.Key) (string, error) {
	lookup := key.WithoutMarkName()
	if c, ok := cache[lookup]; ok {
		return c, nil
	}
	c, err := d.masters.FindClassification(ctx, key)
	if err != nil {
		return "", fmt.Errorf("find classification of %s: %w", key, err)
	}
	cache[lookup] = c
	return c, nil
}

func (d *Detector) item(ctx context.Context, r *masterdata.Resolver, l voucher.Line, key inventory.Key, class string, reason Reason) Item {
	it := Item{
		Reason:         reason,
		Kind:           l.Kind,
		Category:       l.Category(),
		CategoryLabel:  l.CategoryLabel(),
		VoucherNumber:  l.VoucherNumber,
		VoucherDate:    l.VoucherDate,
		LineNumber:     l.LineNumber,
		Key:            key,
		ProductName:    r.Resolve(ctx, masterdata.EntityProduct, key.ProductCode, l.ProductName),
		Classification: class,
		Quantity:       l.Quantity,
		Amount:         l.Amount,
	}
	switch l.Kind {
	case voucher.KindSales:
		it.CounterpartyCode = l.CounterpartyCode
		it.CounterpartyName = r.Resolve(ctx, masterdata.EntityCustomer, l.CounterpartyCode, l.CounterpartyName)
	case voucher.KindPurchase:
		it.CounterpartyCode = l.CounterpartyCode
		it.CounterpartyName = r.Resolve(ctx, masterdata.EntitySupplier, l.CounterpartyCode, l.CounterpartyName)
	}
	return it
}

// discard deletes the reconciliation snapshot. It runs on success and failure.
func (d *Detector) discard(ctx context.Context, datasetID id.ID) {
	if _, err := d.snapshots.DeleteByDataset(ctx, datasetID); err != nil {
		logger.Warn(ctx, "failed to discard unmatch snapshot",
			"dataset_id", datasetID,
			"error", err,
		)
	}
}

// SortItems orders findings by classification, product code, shipping-mark
// code, shipping-mark name, grade code and class code. Ties keep input order.
func SortItems(items []Item) {
	slices.SortStableFunc(items, func(a, b Item) int {
		return cmp.Or(
			cmp.Compare(a.Classification, b.Classification),
			cmp.Compare(a.ProductCode, b.ProductCode),
			cmp.Compare(a.ShippingMarkCode, b.ShippingMarkCode),
			cmp.Compare(a.ShippingMarkName, b.ShippingMarkName),
			cmp.Compare(a.GradeCode, b.GradeCode),
			cmp.Compare(a.ClassCode, b.ClassCode),
		)
	})
}

// Gate returns UNMATCH_PENDING when r has findings.
func Gate(r Result) error {
	if r.Empty() {
		return nil
	}
	return apperror.NewUnmatchPending(types.FormatDate(r.BusinessDate), r.Count())
}
