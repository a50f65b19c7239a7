package dailyreport_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invclose/internal/core/apperror"
	"invclose/internal/domain/dailyreport"
	"invclose/internal/domain/dataset"
	"invclose/internal/domain/history"
	"invclose/internal/domain/inventory"
	"invclose/internal/domain/voucher"
	"invclose/internal/testutil/harness"
	"invclose/internal/testutil/memstore"
)

var businessDate = memstore.Date("2026-10-15")

func newHarness(opts ...harness.Option) *harness.Harness {
	h := harness.New(time.Date(2026, 10, 15, 16, 0, 0, 0, time.UTC), opts...)
	a := memstore.Key("1")
	h.Store.Masters().Seed(memstore.Master(a, "10", "5", businessDate.AddDate(0, 0, -1)))
	return h
}

func insertSale(t *testing.T, h *harness.Harness, l voucher.Line) {
	t.Helper()
	require.NoError(t, h.Store.Vouchers().Sales.BulkInsert(context.Background(), []voucher.Line{l}))
}

func reportEntries(h *harness.Harness) []history.Entry {
	var out []history.Entry
	for _, e := range h.Store.History().Entries() {
		if e.ProcessType == dataset.ProcessDailyReport {
			out = append(out, e)
		}
	}
	return out
}

func TestPrepare_BuildsSnapshotAndRecordsHash(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	insertSale(t, h, memstore.Sale(businessDate, memstore.Key("1"), "3", "300"))

	res, err := h.Reports.Prepare(ctx, businessDate, "operator", dailyreport.Options{})
	require.NoError(t, err)
	assert.False(t, res.Reused)
	assert.Zero(t, res.Unmatched)
	require.NotNil(t, res.Summary)
	assert.Equal(t, 1, res.Summary.SalesLines)
	assert.Equal(t, inventory.CopyAsOf.String(), res.Summary.Mode)

	hash, err := h.Validator.ComputeContentHash(ctx, businessDate)
	require.NoError(t, err)
	assert.Equal(t, hash, res.DataHash)

	current, err := h.Authority.Current(ctx, businessDate, dataset.ProcessDailyReport)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, res.DatasetID, current.ID)

	n, err := h.Store.Snapshots().CountByDataset(ctx, res.DatasetID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	entries := reportEntries(h)
	require.Len(t, entries, 1)
	assert.Equal(t, history.StatusCompleted, entries[0].Status)
	assert.Equal(t, hash, entries[0].DataHash)
}

func TestPrepare_BlockedByUnmatchedLines(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	insertSale(t, h, memstore.Sale(businessDate, memstore.Key("404"), "1", "10"))

	res, err := h.Reports.Prepare(ctx, businessDate, "operator", dailyreport.Options{})
	require.True(t, apperror.HasCode(err, apperror.CodeUnmatchPending), "got %v", err)
	assert.Equal(t, 1, res.Unmatched)

	current, err := h.Authority.Current(ctx, businessDate, dataset.ProcessDailyReport)
	require.NoError(t, err)
	assert.Nil(t, current)
	assert.Empty(t, reportEntries(h))
}

func TestPrepare_GateDisabledCreatesVoucherRows(t *testing.T) {
	ctx := context.Background()
	h := newHarness(harness.WithUnmatchGate(false))
	insertSale(t, h, memstore.Sale(businessDate, memstore.Key("404"), "1", "10"))

	res, err := h.Reports.Prepare(ctx, businessDate, "operator", dailyreport.Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Summary.CreatedRows)

	rows, err := h.Store.Snapshots().GetByDataset(ctx, res.DatasetID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, inventory.OriginVoucher, rows[1].Origin)
}

func TestPrepare_ReusesUnchangedDataset(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	insertSale(t, h, memstore.Sale(businessDate, memstore.Key("1"), "3", "300"))

	first, err := h.Reports.Prepare(ctx, businessDate, "operator", dailyreport.Options{})
	require.NoError(t, err)
	second, err := h.Reports.Prepare(ctx, businessDate, "operator", dailyreport.Options{})
	require.NoError(t, err)

	assert.True(t, second.Reused)
	assert.Equal(t, first.DatasetID, second.DatasetID)
	assert.Equal(t, first.DataHash, second.DataHash)
	assert.Nil(t, second.Summary)
	assert.Len(t, reportEntries(h), 1)
}

func TestPrepare_RebuildsAfterChange(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	insertSale(t, h, memstore.Sale(businessDate, memstore.Key("1"), "3", "300"))

	first, err := h.Reports.Prepare(ctx, businessDate, "operator", dailyreport.Options{})
	require.NoError(t, err)

	h.Clock.Advance(time.Minute)
	insertSale(t, h, memstore.Sale(businessDate, memstore.Key("1"), "1", "90"))

	second, err := h.Reports.Prepare(ctx, businessDate, "operator", dailyreport.Options{})
	require.NoError(t, err)
	assert.False(t, second.Reused)
	assert.NotEqual(t, first.DatasetID, second.DatasetID)
	assert.NotEqual(t, first.DataHash, second.DataHash)

	n, err := h.Store.Snapshots().CountByDataset(ctx, first.DatasetID)
	require.NoError(t, err)
	assert.Zero(t, n, "superseded snapshot is purged")
}

func TestPrepare_RebuildOption(t *testing.T) {
	ctx := context.Background()
	h := newHarness()

	first, err := h.Reports.Prepare(ctx, businessDate, "operator", dailyreport.Options{})
	require.NoError(t, err)
	second, err := h.Reports.Prepare(ctx, businessDate, "operator", dailyreport.Options{Rebuild: true})
	require.NoError(t, err)

	assert.False(t, second.Reused)
	assert.NotEqual(t, first.DatasetID, second.DatasetID)
	assert.Equal(t, first.DataHash, second.DataHash)

	records, err := h.Authority.GetAll(ctx, dataset.Filter{ProcessType: dataset.ProcessDailyReport})
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestPrepare_BuildFailureRecordsHistory(t *testing.T) {
	ctx := context.Background()
	h := newHarness(harness.WithUnmatchGate(false))
	boom := errors.New("boom")
	h.Store.FailOn("snapshots.MarkProcessed", boom)

	_, err := h.Reports.Prepare(ctx, businessDate, "operator", dailyreport.Options{})
	require.ErrorIs(t, err, boom)

	entries := reportEntries(h)
	require.Len(t, entries, 1)
	assert.Equal(t, history.StatusFailed, entries[0].Status)
	assert.Contains(t, entries[0].Remark, "boom")
}
