package history_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invclose/internal/core/clock"
	"invclose/internal/core/id"
	"invclose/internal/domain/dataset"
	"invclose/internal/domain/history"
	"invclose/internal/testutil/memstore"
)

var businessDate = memstore.Date("2026-10-15")

func TestRecorder_Lifecycle(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFixed(time.Date(2026, 10, 15, 16, 0, 0, 0, time.UTC))
	store := memstore.New(clk)
	r := history.NewRecorder(store.History(), clk)
	ds := id.New()

	e, err := r.Start(ctx, ds, businessDate, dataset.ProcessDailyReport, "operator")
	require.NoError(t, err)
	assert.Equal(t, history.StatusStarted, e.Status)
	require.NotNil(t, e.DatasetID)
	assert.Equal(t, ds, *e.DatasetID)

	latest, err := r.LatestCompleted(ctx, businessDate, dataset.ProcessDailyReport, &ds)
	require.NoError(t, err)
	assert.Nil(t, latest, "started entries do not count")

	clk.Advance(time.Minute)
	require.NoError(t, r.Complete(ctx, e, "hash-1", "ok"))

	latest, err = r.LatestCompleted(ctx, businessDate, dataset.ProcessDailyReport, &ds)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "hash-1", latest.DataHash)
	assert.Equal(t, "ok", latest.Remark)
	assert.True(t, latest.CompletedAt.Equal(clk.Now()))

	other := id.New()
	latest, err = r.LatestCompleted(ctx, businessDate, dataset.ProcessDailyReport, &other)
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestRecorder_LatestCompletedPicksNewest(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFixed(time.Date(2026, 10, 15, 16, 0, 0, 0, time.UTC))
	store := memstore.New(clk)
	r := history.NewRecorder(store.History(), clk)

	for _, by := range []string{"first", "second"} {
		e, err := r.Start(ctx, id.Nil(), businessDate, dataset.ProcessImport, by)
		require.NoError(t, err)
		assert.Nil(t, e.DatasetID)
		clk.Advance(time.Minute)
		require.NoError(t, r.Complete(ctx, e, "", ""))
	}
	failed, err := r.Start(ctx, id.Nil(), businessDate, dataset.ProcessImport, "third")
	require.NoError(t, err)
	require.NoError(t, r.Fail(ctx, failed, "broken file"))

	latest, err := r.LatestCompleted(ctx, businessDate, dataset.ProcessImport, nil)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "second", latest.ExecutedBy)

	entries, err := r.List(ctx, history.Filter{ProcessType: dataset.ProcessImport, Limit: 2})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "third", entries[0].ExecutedBy)
	assert.Equal(t, history.StatusFailed, entries[0].Status)
	assert.Equal(t, "broken file", entries[0].Remark)
}

func TestRecorder_RecordFailure(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFixed(time.Date(2026, 10, 15, 16, 0, 0, 0, time.UTC))
	store := memstore.New(clk)
	r := history.NewRecorder(store.History(), clk)
	ds := id.New()

	require.NoError(t, r.RecordFailure(ctx, ds, businessDate, dataset.ProcessDailyClose, "operator", "db down"))

	entries := store.History().Entries()
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, history.StatusFailed, e.Status)
	assert.Equal(t, "db down", e.Remark)
	require.NotNil(t, e.CompletedAt)
	assert.True(t, e.CompletedAt.Equal(e.StartedAt))
	assert.Equal(t, ds, *e.DatasetID)
}
