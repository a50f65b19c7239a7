package unmatch_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invclose/internal/core/apperror"
	"invclose/internal/domain/dataset"
	"invclose/internal/domain/history"
	"invclose/internal/domain/inventory"
	"invclose/internal/domain/masterdata"
	"invclose/internal/domain/unmatch"
	"invclose/internal/domain/voucher"
	"invclose/internal/testutil/harness"
	"invclose/internal/testutil/memstore"
)

var businessDate = memstore.Date("2026-10-15")

func newHarness(opts ...harness.Option) *harness.Harness {
	return harness.New(time.Date(2026, 10, 15, 16, 0, 0, 0, time.UTC), opts...)
}

func insert(t *testing.T, repo voucher.Repository, lines ...voucher.Line) {
	t.Helper()
	require.NoError(t, repo.BulkInsert(context.Background(), lines))
}

func TestDetect_SaleWithoutInventoryRecord(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	insert(t, h.Store.Vouchers().Sales, memstore.Sale(businessDate, memstore.Key("1"), "3", "300"))

	res, err := h.Detector.Detect(ctx, businessDate, "operator")
	require.NoError(t, err)

	assert.Equal(t, 1, res.CheckedLines)
	require.Len(t, res.Items, 1)
	it := res.Items[0]
	assert.Equal(t, unmatch.ReasonNotFound, it.Reason)
	assert.Equal(t, voucher.KindSales, it.Kind)
	assert.Equal(t, "sale", it.Category)
	assert.Equal(t, "credit sale", it.CategoryLabel)
	assert.Equal(t, "00001", it.ProductCode)
	assert.Equal(t, "Item 00001", it.ProductName)
	assert.Equal(t, "C001", it.CounterpartyCode)
	assert.Equal(t, "Customer(C001)", it.CounterpartyName)
	assert.Equal(t, "3", it.Quantity.String())
	assert.Equal(t, "300", it.Amount.String())

	err = unmatch.Gate(res)
	assert.True(t, apperror.HasCode(err, apperror.CodeUnmatchPending))
}

func TestDetect_RecordsDatasetAndDiscardsSnapshot(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	a := memstore.Key("1")
	h.Store.Masters().Seed(memstore.Master(a, "10", "5", businessDate.AddDate(0, 0, -1)))
	insert(t, h.Store.Vouchers().Sales, memstore.Sale(businessDate, a, "3", "300"))

	res, err := h.Detector.Detect(ctx, businessDate, "operator")
	require.NoError(t, err)
	assert.True(t, res.Empty())

	current, err := h.Authority.Current(ctx, businessDate, dataset.ProcessUnmatchList)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, res.DatasetID, current.ID)

	n, err := h.Store.Snapshots().CountByDataset(ctx, res.DatasetID)
	require.NoError(t, err)
	assert.Zero(t, n)

	entries := h.Store.History().Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, dataset.ProcessUnmatchList, entries[0].ProcessType)
	assert.Equal(t, history.StatusCompleted, entries[0].Status)
	require.NotNil(t, entries[0].DatasetID)
	assert.Equal(t, res.DatasetID, *entries[0].DatasetID)
}

func TestDetect_RerunSupersedesDataset(t *testing.T) {
	ctx := context.Background()
	h := newHarness()

	first, err := h.Detector.Detect(ctx, businessDate, "operator")
	require.NoError(t, err)
	second, err := h.Detector.Detect(ctx, businessDate, "operator")
	require.NoError(t, err)
	assert.NotEqual(t, first.DatasetID, second.DatasetID)

	records, err := h.Authority.GetAll(ctx, dataset.Filter{ProcessType: dataset.ProcessUnmatchList})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, second.DatasetID, records[0].ID)
}

func TestDetect_ZeroStockPolicy(t *testing.T) {
	seed := func(h *harness.Harness) {
		a := memstore.Key("2")
		h.Store.Masters().Seed(memstore.Master(a, "3", "100", businessDate.AddDate(0, 0, -1)))
		insert(t, h.Store.Vouchers().Sales, memstore.Sale(businessDate, a, "3", "450"))
	}

	t.Run("suppress", func(t *testing.T) {
		h := newHarness(harness.WithPolicy(unmatch.ZeroStockSuppress))
		seed(h)
		res, err := h.Detector.Detect(context.Background(), businessDate, "operator")
		require.NoError(t, err)
		assert.True(t, res.Empty())
		assert.Equal(t, unmatch.ZeroStockSuppress, res.Policy)
	})

	t.Run("flag", func(t *testing.T) {
		h := newHarness(harness.WithPolicy(unmatch.ZeroStockFlag))
		seed(h)
		res, err := h.Detector.Detect(context.Background(), businessDate, "operator")
		require.NoError(t, err)
		require.Len(t, res.Items, 1)
		assert.Equal(t, unmatch.ReasonZeroStock, res.Items[0].Reason)
	})
}

func TestDetect_FlagIgnoresSaleFromNegativeStock(t *testing.T) {
	h := newHarness(harness.WithPolicy(unmatch.ZeroStockFlag))
	a := memstore.Key("3")
	h.Store.Masters().Seed(memstore.Master(a, "-2", "100", businessDate.AddDate(0, 0, -1)))
	insert(t, h.Store.Vouchers().Sales, memstore.Sale(businessDate, a, "-2", "-200"))

	res, err := h.Detector.Detect(context.Background(), businessDate, "operator")
	require.NoError(t, err)
	assert.Equal(t, 1, res.CheckedLines)
	assert.True(t, res.Empty())
}

func TestDetect_SkipsExcludedAndNonQualifyingLines(t *testing.T) {
	h := newHarness()
	v := h.Store.Vouchers()
	insert(t, v.Sales,
		memstore.Sale(businessDate, inventory.NewKey("5", "1", "1", "1", "EXIT01"), "1", "10"),
		memstore.Discount(businessDate, memstore.Key("6"), "-50"),
	)
	insert(t, v.Adjustments, memstore.Adjustment(businessDate, memstore.Key("7"), voucher.UnitProcessingCost, "1", "10"))

	res, err := h.Detector.Detect(context.Background(), businessDate, "operator")
	require.NoError(t, err)
	assert.Zero(t, res.CheckedLines)
	assert.True(t, res.Empty())
}

func TestDetect_ResolvesNamesAndSorts(t *testing.T) {
	h := newHarness()
	h.Store.SetName(masterdata.EntitySupplier, "S001", "Kobe Trading")
	v := h.Store.Vouchers()

	purchase := memstore.Purchase(businessDate, memstore.Key("9"), "4", "40")
	purchase.ProductName = ""
	insert(t, v.Purchases, purchase)
	insert(t, v.Sales, memstore.Sale(businessDate, memstore.Key("8"), "1", "10"))

	res, err := h.Detector.Detect(context.Background(), businessDate, "operator")
	require.NoError(t, err)
	require.Len(t, res.Items, 2)

	assert.Equal(t, "00008", res.Items[0].ProductCode)
	assert.Equal(t, "00009", res.Items[1].ProductCode)
	assert.Equal(t, "Kobe Trading", res.Items[1].CounterpartyName)
	assert.Equal(t, "Product(00009)", res.Items[1].ProductName)
}

func TestDetect_FailureMarksHistoryAndDiscards(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	a := memstore.Key("1")
	h.Store.Masters().Seed(memstore.Master(a, "10", "5", businessDate.AddDate(0, 0, -1)))
	boom := errors.New("boom")
	h.Store.FailOn("vouchers.PURCHASE.GetByDate", boom)

	_, err := h.Detector.Detect(ctx, businessDate, "operator")
	require.ErrorIs(t, err, boom)

	entries := h.Store.History().Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, history.StatusFailed, entries[0].Status)

	current, err := h.Authority.Current(ctx, businessDate, dataset.ProcessUnmatchList)
	require.NoError(t, err)
	require.NotNil(t, current)
	n, err := h.Store.Snapshots().CountByDataset(ctx, current.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}
