package snapshot_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invclose/internal/core/id"
	"invclose/internal/core/types"
	"invclose/internal/domain/inventory"
	"invclose/internal/domain/voucher"
	"invclose/internal/testutil/harness"
	"invclose/internal/testutil/memstore"
)

var businessDate = memstore.Date("2026-10-15")

func decEqual(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, types.MustDecimal(want).Equal(got), "want %s, got %s", want, got)
}

func newHarness(t *testing.T) *harness.Harness {
	t.Helper()
	return harness.New(time.Date(2026, 10, 15, 16, 0, 0, 0, time.UTC))
}

func insert(t *testing.T, repo voucher.Repository, lines ...voucher.Line) {
	t.Helper()
	require.NoError(t, repo.BulkInsert(context.Background(), lines))
}

func rowsByProduct(t *testing.T, h *harness.Harness, ds id.ID) map[string]inventory.Snapshot {
	t.Helper()
	rows, err := h.Store.Snapshots().GetByDataset(context.Background(), ds)
	require.NoError(t, err)
	out := make(map[string]inventory.Snapshot, len(rows))
	for _, r := range rows {
		out[r.ProductCode] = r
	}
	return out
}

func TestBuild_WeightedAverageAndGrossProfit(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	a := memstore.Key("1")
	h.Store.Masters().Seed(memstore.Master(a, "10", "5.00", businessDate.AddDate(0, 0, -1)))
	v := h.Store.Vouchers()
	insert(t, v.Purchases, memstore.Purchase(businessDate, a, "10", "70.00"))
	insert(t, v.Sales, memstore.Sale(businessDate, a, "5", "400"))

	ds := id.New()
	sum, err := h.Engine.Build(ctx, ds, businessDate, inventory.CopyThrough)
	require.NoError(t, err)

	assert.EqualValues(t, 1, sum.CopiedRows)
	assert.Equal(t, 0, sum.CreatedRows)
	assert.Equal(t, 1, sum.SalesLines)
	assert.Equal(t, 1, sum.PurchaseLines)
	decEqual(t, "370", sum.GrossProfit)

	row := rowsByProduct(t, h, ds)["00001"]
	decEqual(t, "15", row.DailyStock)
	decEqual(t, "6", row.DailyUnitPrice)
	decEqual(t, "90", row.DailyStockAmount)
	decEqual(t, "370", row.DailyGrossProfit)
	decEqual(t, "10", row.PreviousStock)
	assert.Equal(t, inventory.DailyFlagProcessed, row.DailyFlag)
	require.NotNil(t, row.LastSalesDate)
	require.NotNil(t, row.LastReceiptDate)

	sales, err := v.Sales.GetByDate(ctx, businessDate)
	require.NoError(t, err)
	require.Len(t, sales, 1)
	decEqual(t, "6", sales[0].InventoryUnitPrice)
	decEqual(t, "370", sales[0].GrossProfit)
}

func TestBuild_CreatesRowsAndSkipsExcluded(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	a, b, c := memstore.Key("1"), memstore.Key("2"), memstore.Key("3")
	h.Store.Masters().Seed(memstore.Master(a, "10", "5", businessDate.AddDate(0, 0, -1)))
	v := h.Store.Vouchers()

	insert(t, v.Purchases, memstore.Purchase(businessDate, b, "3", "30"))
	insert(t, v.Sales,
		memstore.Discount(businessDate, c, "-100"),
		memstore.Sale(businessDate, memstore.Key("0"), "1", "10"),
	)
	insert(t, v.Adjustments,
		memstore.Adjustment(businessDate, a, voucher.UnitLoss, "-2", "-10"),
		memstore.Adjustment(businessDate, a, voucher.UnitTransfer, "1", "5"),
		memstore.Adjustment(businessDate, a, voucher.UnitProcessingCost, "7", "70"),
	)

	ds := id.New()
	sum, err := h.Engine.Build(ctx, ds, businessDate, inventory.CopyThrough)
	require.NoError(t, err)

	assert.Equal(t, 1, sum.CreatedRows)
	assert.Equal(t, 1, sum.SkippedLines)
	assert.Equal(t, 1, sum.DiscountLines)
	assert.Equal(t, 2, sum.AdjustmentLines)

	rows := rowsByProduct(t, h, ds)
	require.Len(t, rows, 2)
	assert.NotContains(t, rows, "00003")
	assert.NotContains(t, rows, "00000")

	created := rows["00002"]
	assert.Equal(t, inventory.OriginVoucher, created.Origin)
	decEqual(t, "0", created.PreviousStock)
	decEqual(t, "3", created.DailyStock)
	decEqual(t, "10", created.DailyUnitPrice)

	adjusted := rows["00001"]
	assert.Equal(t, inventory.OriginMaster, adjusted.Origin)
	decEqual(t, "9", adjusted.DailyStock)
	decEqual(t, "-2", adjusted.DailyLossQuantity)
	decEqual(t, "1", adjusted.DailyTransferQuantity)
	decEqual(t, "45", adjusted.DailyStockAmount)
}

func TestBuild_RerunReplacesDatasetRows(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	a, b := memstore.Key("1"), memstore.Key("2")
	h.Store.Masters().Seed(memstore.Master(a, "10", "5", businessDate.AddDate(0, 0, -1)))
	insert(t, h.Store.Vouchers().Sales,
		memstore.Sale(businessDate, a, "2", "20"),
		memstore.Sale(businessDate, b, "1", "10"),
	)

	ds := id.New()
	first, err := h.Engine.Build(ctx, ds, businessDate, inventory.CopyThrough)
	require.NoError(t, err)
	before := rowsByProduct(t, h, ds)

	second, err := h.Engine.Build(ctx, ds, businessDate, inventory.CopyThrough)
	require.NoError(t, err)
	after := rowsByProduct(t, h, ds)

	assert.Equal(t, first.CreatedRows, second.CreatedRows)
	require.Len(t, after, 2)
	for k, row := range before {
		decEqual(t, row.DailyStock.String(), after[k].DailyStock)
		decEqual(t, row.DailySalesQuantity.String(), after[k].DailySalesQuantity)
	}
}

func TestBuild_WritesInBatches(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	for _, p := range []string{"1", "2", "3", "4", "5"} {
		insert(t, h.Store.Vouchers().Purchases, memstore.Purchase(businessDate, memstore.Key(p), "1", "1"))
	}

	ds := id.New()
	sum, err := h.Engine.Build(ctx, ds, businessDate, inventory.CopyThrough)
	require.NoError(t, err)

	assert.Equal(t, 5, sum.CreatedRows)
	assert.Equal(t, 3, h.Store.Calls("snapshots.Insert"))
	assert.Len(t, rowsByProduct(t, h, ds), 5)
}

func TestBuild_CopyAsOfSkipsRowsClosedForDate(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	closed := memstore.Master(memstore.Key("1"), "1", "1", businessDate)
	closedOn := businessDate
	closed.LastCloseDate = &closedOn
	open := memstore.Master(memstore.Key("2"), "1", "1", businessDate.AddDate(0, 0, -1))
	future := memstore.Master(memstore.Key("3"), "1", "1", businessDate.AddDate(0, 0, 1))
	h.Store.Masters().Seed(closed, open, future)

	through := id.New()
	sum, err := h.Engine.Build(ctx, through, businessDate, inventory.CopyThrough)
	require.NoError(t, err)
	assert.EqualValues(t, 2, sum.CopiedRows)

	asOf := id.New()
	sum, err = h.Engine.Build(ctx, asOf, businessDate, inventory.CopyAsOf)
	require.NoError(t, err)
	assert.EqualValues(t, 1, sum.CopiedRows)
	assert.Contains(t, rowsByProduct(t, h, asOf), "00002")
}

func TestBuild_PropagatesStoreErrors(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	a := memstore.Key("1")
	h.Store.Masters().Seed(memstore.Master(a, "10", "5", businessDate.AddDate(0, 0, -1)))
	insert(t, h.Store.Vouchers().Sales, memstore.Sale(businessDate, a, "1", "10"))
	boom := errors.New("boom")
	h.Store.FailOn("snapshots.UpdateDaily", boom)

	_, err := h.Engine.Build(ctx, id.New(), businessDate, inventory.CopyThrough)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}
