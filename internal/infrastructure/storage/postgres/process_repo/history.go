package process_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"invclose/internal/core/id"
	"invclose/internal/core/types"
	"invclose/internal/domain/dataset"
	"invclose/internal/domain/history"
	"invclose/internal/infrastructure/storage/postgres"
)

const historyTable = "process_history"

var historyColumns = postgres.ExtractDBColumns[history.Entry]()

var _ history.Repository = (*HistoryRepo)(nil)

// HistoryRepo implements history.Repository.
type HistoryRepo struct {
	txManager *postgres.TxManager
}

// NewHistoryRepo creates the history repository.
func NewHistoryRepo(txManager *postgres.TxManager) *HistoryRepo {
	return &HistoryRepo{txManager: txManager}
}

func (r *HistoryRepo) Insert(ctx context.Context, e history.Entry) error {
	sql, args, err := postgres.Builder().
		Insert(historyTable).
		SetMap(postgres.StructToMap(e)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

func (r *HistoryRepo) Finish(ctx context.Context, entryID id.ID, status history.Status, dataHash, remark string, completedAt time.Time) error {
	sql, args, err := finishQuery(entryID, status, dataHash, remark, completedAt).ToSql()
	if err != nil {
		return fmt.Errorf("build finish: %w", err)
	}
	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("finish history %s: %w", entryID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("finish history %s: entry not found", entryID)
	}
	return nil
}

func finishQuery(entryID id.ID, status history.Status, dataHash, remark string, completedAt time.Time) squirrel.UpdateBuilder {
	return postgres.Builder().
		Update(historyTable).
		Set("status", string(status)).
		Set("data_hash", dataHash).
		Set("remark", remark).
		Set("completed_at", completedAt).
		Where(squirrel.Eq{"id": entryID})
}

func (r *HistoryRepo) LatestCompleted(ctx context.Context, date time.Time, processType dataset.ProcessType, datasetID *id.ID) (*history.Entry, error) {
	sql, args, err := latestCompletedQuery(date, processType, datasetID).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var e history.Entry
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &e, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest history: %w", err)
	}
	return &e, nil
}

func latestCompletedQuery(date time.Time, processType dataset.ProcessType, datasetID *id.ID) squirrel.SelectBuilder {
	q := postgres.Builder().
		Select(historyColumns...).
		From(historyTable).
		Where(squirrel.Eq{
			"business_date": types.BusinessDate(date),
			"process_type":  string(processType),
			"status":        string(history.StatusCompleted),
		})
	if datasetID != nil {
		q = q.Where(squirrel.Eq{"dataset_id": *datasetID})
	}
	return q.OrderBy("completed_at DESC", "started_at DESC").Limit(1)
}

func (r *HistoryRepo) List(ctx context.Context, filter history.Filter) ([]history.Entry, error) {
	q := postgres.Builder().
		Select(historyColumns...).
		From(historyTable).
		OrderBy("started_at DESC", "id DESC")
	if filter.BusinessDate != nil {
		q = q.Where(squirrel.Eq{"business_date": types.BusinessDate(*filter.BusinessDate)})
	}
	if filter.ProcessType != "" {
		q = q.Where(squirrel.Eq{"process_type": string(filter.ProcessType)})
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list: %w", err)
	}

	var entries []history.Entry
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &entries, sql, args...); err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return entries, nil
}
