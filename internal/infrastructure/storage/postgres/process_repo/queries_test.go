package process_repo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invclose/internal/core/id"
	"invclose/internal/domain/dailyclose"
	"invclose/internal/domain/dataset"
	"invclose/internal/domain/history"
)

var businessDate = time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)

func TestDeleteDatasetsQuery_ReturnsSupersededIDs(t *testing.T) {
	sql, args, err := deleteDatasetsQuery(businessDate.Add(9*time.Hour), dataset.ProcessDailyReport).ToSql()
	require.NoError(t, err)

	assert.Equal(t, "DELETE FROM datasets WHERE business_date = $1 AND process_type = $2 RETURNING id", sql)
	assert.Equal(t, []any{businessDate, "DAILY_REPORT"}, args)
}

func TestListDatasetsQuery(t *testing.T) {
	t.Run("no filter", func(t *testing.T) {
		sql, args, err := listDatasetsQuery(dataset.Filter{}).ToSql()
		require.NoError(t, err)
		assert.NotContains(t, sql, "WHERE")
		assert.Contains(t, sql, "ORDER BY created_at DESC, id DESC")
		assert.Empty(t, args)
	})

	t.Run("all filters", func(t *testing.T) {
		d := businessDate
		sql, args, err := listDatasetsQuery(dataset.Filter{
			BusinessDate: &d,
			ProcessType:  dataset.ProcessDailyClose,
			Limit:        5,
		}).ToSql()
		require.NoError(t, err)
		assert.Contains(t, sql, "WHERE business_date = $1 AND process_type = $2 ORDER BY created_at DESC, id DESC LIMIT 5")
		assert.Equal(t, []any{businessDate, "DAILY_CLOSE"}, args)
	})
}

func TestDatasetColumns(t *testing.T) {
	assert.Equal(t, []string{"id", "business_date", "process_type", "created_at", "created_by", "is_active"}, datasetColumns)
}

func TestFinishQuery(t *testing.T) {
	entryID := id.New()
	done := businessDate.Add(15 * time.Hour)

	sql, args, err := finishQuery(entryID, history.StatusCompleted, "hash", "ok", done).ToSql()
	require.NoError(t, err)

	assert.Equal(t, "UPDATE process_history SET status = $1, data_hash = $2, remark = $3, completed_at = $4 WHERE id = $5", sql)
	assert.Equal(t, []any{"COMPLETED", "hash", "ok", done, entryID}, args)
}

func TestLatestCompletedQuery(t *testing.T) {
	t.Run("any dataset", func(t *testing.T) {
		sql, args, err := latestCompletedQuery(businessDate, dataset.ProcessImport, nil).ToSql()
		require.NoError(t, err)
		assert.Contains(t, sql, "WHERE business_date = $1 AND process_type = $2 AND status = $3 ORDER BY completed_at DESC, started_at DESC LIMIT 1")
		assert.Equal(t, []any{businessDate, "IMPORT", "COMPLETED"}, args)
	})

	t.Run("one dataset", func(t *testing.T) {
		ds := id.New()
		sql, args, err := latestCompletedQuery(businessDate, dataset.ProcessDailyReport, &ds).ToSql()
		require.NoError(t, err)
		assert.Contains(t, sql, "AND dataset_id = $4")
		assert.Equal(t, ds, args[3])
	})
}

func TestUpdateCloseQuery_KeepsIdentityColumns(t *testing.T) {
	rec := dailyclose.Record{
		BusinessDate: businessDate,
		DatasetID:    id.New(),
		Status:       dailyclose.StatusPassed,
		RowsApplied:  2,
	}

	sql, args, err := updateCloseQuery(rec).ToSql()
	require.NoError(t, err)

	assert.NotContains(t, sql, "dataset_id")
	assert.NotContains(t, sql, "processed_by")
	assert.Contains(t, sql, "WHERE business_date = $8")
	assert.Equal(t, "PASSED", args[0])
	assert.Equal(t, 2, args[4])
}

func TestListClosesQuery(t *testing.T) {
	from := businessDate.AddDate(0, 0, -7)
	sql, args, err := listClosesQuery(dailyclose.Filter{From: &from, Status: dailyclose.StatusFailed}).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "WHERE business_date >= $1 AND status = $2 ORDER BY business_date DESC")
	assert.Equal(t, []any{from, "FAILED"}, args)
}
