// Package process_repo provides PostgreSQL repositories for process
// bookkeeping: dataset records, process history and daily close records.
package process_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"invclose/internal/core/apperror"
	"invclose/internal/core/id"
	"invclose/internal/core/types"
	"invclose/internal/domain/dataset"
	"invclose/internal/infrastructure/storage/postgres"
)

const datasetTable = "datasets"

var datasetColumns = postgres.ExtractDBColumns[dataset.Record]()

var _ dataset.Repository = (*DatasetRepo)(nil)

// DatasetRepo implements dataset.Repository. The table's unique constraint
// on (business_date, process_type) backs the one-current-dataset rule.
type DatasetRepo struct {
	txManager *postgres.TxManager
}

// NewDatasetRepo creates the dataset repository.
func NewDatasetRepo(txManager *postgres.TxManager) *DatasetRepo {
	return &DatasetRepo{txManager: txManager}
}

func (r *DatasetRepo) DeleteByKey(ctx context.Context, date time.Time, processType dataset.ProcessType) ([]id.ID, error) {
	sql, args, err := deleteDatasetsQuery(date, processType).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build delete: %w", err)
	}

	var ids []id.ID
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &ids, sql, args...); err != nil {
		return nil, fmt.Errorf("delete datasets: %w", err)
	}
	return ids, nil
}

func deleteDatasetsQuery(date time.Time, processType dataset.ProcessType) squirrel.DeleteBuilder {
	return postgres.Builder().
		Delete(datasetTable).
		Where(squirrel.Eq{
			"business_date": types.BusinessDate(date),
			"process_type":  string(processType),
		}).
		Suffix("RETURNING id")
}

func (r *DatasetRepo) Insert(ctx context.Context, rec dataset.Record) error {
	sql, args, err := postgres.Builder().
		Insert(datasetTable).
		SetMap(postgres.StructToMap(rec)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		if postgres.IsUniqueViolation(err) {
			return apperror.NewConflict(fmt.Sprintf("dataset for %s/%s was issued concurrently",
				rec.ProcessType, types.FormatDate(rec.BusinessDate))).WithCause(err)
		}
		return fmt.Errorf("insert dataset: %w", err)
	}
	return nil
}

func (r *DatasetRepo) FindCurrent(ctx context.Context, date time.Time, processType dataset.ProcessType) (*dataset.Record, error) {
	sql, args, err := postgres.Builder().
		Select(datasetColumns...).
		From(datasetTable).
		Where(squirrel.Eq{
			"business_date": types.BusinessDate(date),
			"process_type":  string(processType),
			"is_active":     true,
		}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rec dataset.Record
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &rec, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find dataset: %w", err)
	}
	return &rec, nil
}

func (r *DatasetRepo) Exists(ctx context.Context, datasetID id.ID) (bool, error) {
	sql, args, err := postgres.Builder().
		Select("1").
		Prefix("SELECT EXISTS (").
		From(datasetTable).
		Where(squirrel.Eq{"id": datasetID, "is_active": true}).
		Suffix(")").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build exists: %w", err)
	}

	var exists bool
	if err := r.txManager.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("check dataset: %w", err)
	}
	return exists, nil
}

func (r *DatasetRepo) List(ctx context.Context, filter dataset.Filter) ([]dataset.Record, error) {
	sql, args, err := listDatasetsQuery(filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list: %w", err)
	}

	var records []dataset.Record
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &records, sql, args...); err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	return records, nil
}

func listDatasetsQuery(filter dataset.Filter) squirrel.SelectBuilder {
	q := postgres.Builder().
		Select(datasetColumns...).
		From(datasetTable).
		OrderBy("created_at DESC", "id DESC")
	if filter.BusinessDate != nil {
		q = q.Where(squirrel.Eq{"business_date": types.BusinessDate(*filter.BusinessDate)})
	}
	if filter.ProcessType != "" {
		q = q.Where(squirrel.Eq{"process_type": string(filter.ProcessType)})
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	return q
}
