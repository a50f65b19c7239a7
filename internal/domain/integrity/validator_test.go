package integrity_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invclose/internal/core/apperror"
	"invclose/internal/core/id"
	"invclose/internal/domain/dataset"
	"invclose/internal/domain/integrity"
	"invclose/internal/domain/voucher"
	"invclose/internal/testutil/harness"
	"invclose/internal/testutil/memstore"
)

var businessDate = memstore.Date("2026-10-15")

func at(hour, minute int) time.Time {
	return time.Date(2026, 10, 15, hour, minute, 0, 0, time.UTC)
}

func check(t *testing.T, err error) string {
	t.Helper()
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok, "want AppError, got %v", err)
	require.Equal(t, apperror.CodeTimingViolation, appErr.Code)
	return appErr.Details["check"].(string)
}

// completeReport records a finished daily report for ds carrying hash.
func completeReport(t *testing.T, h *harness.Harness, ds id.ID, hash string) {
	t.Helper()
	ctx := context.Background()
	e, err := h.Recorder.Start(ctx, ds, businessDate, dataset.ProcessDailyReport, "operator")
	require.NoError(t, err)
	require.NoError(t, h.Recorder.Complete(ctx, e, hash, ""))
}

func TestValidateProcessingTime_Cutoff(t *testing.T) {
	ctx := context.Background()
	h := harness.New(at(14, 59))

	err := h.Validator.ValidateProcessingTime(ctx, businessDate, id.New())
	assert.Equal(t, integrity.CheckCutoff, check(t, err))

	h.Clock.Set(at(15, 0))
	assert.NoError(t, h.Validator.ValidateProcessingTime(ctx, businessDate, id.New()))
}

func TestValidateProcessingTime_CutoffAppliesOnLaterDays(t *testing.T) {
	ctx := context.Background()
	nextMorning := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	h := harness.New(nextMorning)

	err := h.Validator.ValidateProcessingTime(ctx, businessDate, id.New())
	assert.Equal(t, integrity.CheckCutoff, check(t, err))
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, 15, appErr.Details["cutoff_hour"])

	h.Clock.Set(time.Date(2026, 10, 16, 15, 0, 0, 0, time.UTC))
	assert.NoError(t, h.Validator.ValidateProcessingTime(ctx, businessDate, id.New()))
}

func TestValidateProcessingTime_CutoffInLocation(t *testing.T) {
	ctx := context.Background()
	tokyo := time.FixedZone("JST", 9*60*60)
	policy := integrity.DefaultTimingPolicy()
	policy.Location = tokyo

	// 15:00 JST is 06:00 UTC.
	h := harness.New(at(5, 59), harness.WithTiming(policy))
	assert.Equal(t, integrity.CheckCutoff, check(t, h.Validator.ValidateProcessingTime(ctx, businessDate, id.New())))

	h.Clock.Set(at(6, 0))
	assert.NoError(t, h.Validator.ValidateProcessingTime(ctx, businessDate, id.New()))
}

func TestValidateProcessingTime_ReportCooldown(t *testing.T) {
	ctx := context.Background()
	h := harness.New(at(16, 0))
	ds := id.New()
	completeReport(t, h, ds, "hash")

	h.Clock.Advance(10 * time.Minute)
	err := h.Validator.ValidateProcessingTime(ctx, businessDate, ds)
	assert.Equal(t, integrity.CheckReportCooldown, check(t, err))
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, 10, appErr.Details["elapsed_minutes"])
	assert.Equal(t, 30, appErr.Details["required_minutes"])

	// Reports of other datasets do not count.
	assert.NoError(t, h.Validator.ValidateProcessingTime(ctx, businessDate, id.New()))

	h.Clock.Advance(20 * time.Minute)
	assert.NoError(t, h.Validator.ValidateProcessingTime(ctx, businessDate, ds))
}

func TestValidateProcessingTime_ImportCooldown(t *testing.T) {
	ctx := context.Background()
	h := harness.New(at(16, 0))
	require.NoError(t, h.CompleteImport(ctx, businessDate))

	h.Clock.Advance(2 * time.Minute)
	assert.Equal(t, integrity.CheckImportCooldown, check(t, h.Validator.ValidateProcessingTime(ctx, businessDate, id.New())))

	h.Clock.Advance(3 * time.Minute)
	assert.NoError(t, h.Validator.ValidateProcessingTime(ctx, businessDate, id.New()))
}

func TestValidateProcessingTime_ChecksCanBeDisabled(t *testing.T) {
	ctx := context.Background()
	policy := integrity.DefaultTimingPolicy()
	policy.EnforceCutoff = false
	policy.EnforceImportCooldown = false
	h := harness.New(at(9, 0), harness.WithTiming(policy))
	require.NoError(t, h.CompleteImport(ctx, businessDate))

	assert.NoError(t, h.Validator.ValidateProcessingTime(ctx, businessDate, id.New()))
}

func TestComputeContentHash_MatchesStoredLines(t *testing.T) {
	ctx := context.Background()
	h := harness.New(at(16, 0))
	v := h.Store.Vouchers()
	sale := memstore.Sale(businessDate, memstore.Key("1"), "3", "300")
	require.NoError(t, v.Sales.BulkInsert(ctx, []voucher.Line{sale}))

	got, err := h.Validator.ComputeContentHash(ctx, businessDate)
	require.NoError(t, err)

	lines, err := v.Sales.GetByDate(ctx, businessDate)
	require.NoError(t, err)
	assert.Equal(t, integrity.ContentHash(lines, nil, nil), got)

	other, err := h.Validator.ComputeContentHash(ctx, businessDate.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.NotEqual(t, got, other)
}

func TestValidateDataIntegrity(t *testing.T) {
	ctx := context.Background()
	h := harness.New(at(16, 0))
	v := h.Store.Vouchers()
	require.NoError(t, v.Sales.BulkInsert(ctx, []voucher.Line{
		memstore.Sale(businessDate, memstore.Key("1"), "3", "300"),
		memstore.Sale(businessDate, memstore.Key("2"), "1", "50"),
	}))

	hash, err := h.Validator.ComputeContentHash(ctx, businessDate)
	require.NoError(t, err)
	ds := id.New()
	completeReport(t, h, ds, hash)

	res, err := h.Validator.ValidateDataIntegrity(ctx, businessDate, ds)
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, hash, res.ExpectedHash)
	assert.EqualValues(t, 2, res.Counts[voucher.KindSales])
	assert.Contains(t, res.Warnings, "no PURCHASE vouchers for 2026-10-15")
	assert.Empty(t, res.Changes)

	t.Run("modified after report", func(t *testing.T) {
		h.Clock.Advance(time.Minute)
		lines, err := v.Sales.GetByDate(ctx, businessDate)
		require.NoError(t, err)
		repo := v.Sales.(*memstore.VoucherRepo)
		require.NoError(t, repo.Modify(lines[0].ID, func(l *voucher.Line) {
			l.Amount = l.Amount.Add(l.Amount)
		}))

		res, err := h.Validator.ValidateDataIntegrity(ctx, businessDate, ds)
		require.NoError(t, err)
		assert.False(t, res.Valid)
		assert.Equal(t, 1, res.Changes[voucher.KindSales])
		assert.Equal(t, "modified after report: SALES 1", res.Summary())

		_, err = h.Validator.RequireIntegrity(ctx, businessDate, ds)
		require.Error(t, err)
		appErr, ok := apperror.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperror.CodeDataIntegrity, appErr.Code)
		assert.Equal(t, hash, appErr.Details["expected_hash"])
		assert.Equal(t, "modified after report: SALES 1", appErr.Details["changes"])
	})
}

func TestValidateDataIntegrity_NoRecordedHash(t *testing.T) {
	ctx := context.Background()
	h := harness.New(at(16, 0))

	res, err := h.Validator.ValidateDataIntegrity(ctx, businessDate, id.New())
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Empty(t, res.ExpectedHash)
	assert.NotEmpty(t, res.CurrentHash)
	assert.Nil(t, res.Changes)
	assert.Contains(t, res.Warnings, integrity.NoRecordedHash)
	assert.Len(t, res.Warnings, 4)

	_, err = h.Validator.RequireIntegrity(ctx, businessDate, id.New())
	assert.NoError(t, err)
}
