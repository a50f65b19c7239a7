package process_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"invclose/internal/core/apperror"
	"invclose/internal/core/types"
	"invclose/internal/domain/dailyclose"
	"invclose/internal/infrastructure/storage/postgres"
)

const closeTable = "daily_close"

var closeColumns = postgres.ExtractDBColumns[dailyclose.Record]()

var _ dailyclose.Repository = (*CloseRepo)(nil)

// CloseRepo implements dailyclose.Repository. business_date is the primary
// key, so a second record for a date fails with a unique violation.
type CloseRepo struct {
	txManager *postgres.TxManager
}

// NewCloseRepo creates the close record repository.
func NewCloseRepo(txManager *postgres.TxManager) *CloseRepo {
	return &CloseRepo{txManager: txManager}
}

func (r *CloseRepo) Get(ctx context.Context, date time.Time) (*dailyclose.Record, error) {
	sql, args, err := postgres.Builder().
		Select(closeColumns...).
		From(closeTable).
		Where(squirrel.Eq{"business_date": types.BusinessDate(date)}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rec dailyclose.Record
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &rec, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get close record: %w", err)
	}
	return &rec, nil
}

func (r *CloseRepo) Insert(ctx context.Context, rec dailyclose.Record) error {
	rec.BusinessDate = types.BusinessDate(rec.BusinessDate)
	sql, args, err := postgres.Builder().
		Insert(closeTable).
		SetMap(postgres.StructToMap(rec)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		if postgres.IsUniqueViolation(err) {
			return apperror.NewConflict(fmt.Sprintf("close record for %s already exists",
				types.FormatDate(rec.BusinessDate))).WithCause(err)
		}
		return fmt.Errorf("insert close record: %w", err)
	}
	return nil
}

func (r *CloseRepo) Update(ctx context.Context, rec dailyclose.Record) error {
	sql, args, err := updateCloseQuery(rec).ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update close record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("daily close", types.FormatDate(rec.BusinessDate))
	}
	return nil
}

func updateCloseQuery(rec dailyclose.Record) squirrel.UpdateBuilder {
	return postgres.Builder().
		Update(closeTable).
		Set("status", string(rec.Status)).
		Set("data_hash", rec.DataHash).
		Set("backup_path", rec.BackupPath).
		Set("remarks", rec.Remarks).
		Set("rows_applied", rec.RowsApplied).
		Set("rows_deactivated", rec.RowsDeactivated).
		Set("updated_at", rec.UpdatedAt).
		Where(squirrel.Eq{"business_date": types.BusinessDate(rec.BusinessDate)})
}

func (r *CloseRepo) Delete(ctx context.Context, date time.Time) (bool, error) {
	sql, args, err := postgres.Builder().
		Delete(closeTable).
		Where(squirrel.Eq{"business_date": types.BusinessDate(date)}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build delete: %w", err)
	}
	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("delete close record: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *CloseRepo) List(ctx context.Context, filter dailyclose.Filter) ([]dailyclose.Record, error) {
	sql, args, err := listClosesQuery(filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list: %w", err)
	}

	var records []dailyclose.Record
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &records, sql, args...); err != nil {
		return nil, fmt.Errorf("list close records: %w", err)
	}
	return records, nil
}

func listClosesQuery(filter dailyclose.Filter) squirrel.SelectBuilder {
	q := postgres.Builder().
		Select(closeColumns...).
		From(closeTable).
		OrderBy("business_date DESC")
	if filter.From != nil {
		q = q.Where(squirrel.GtOrEq{"business_date": types.BusinessDate(*filter.From)})
	}
	if filter.To != nil {
		q = q.Where(squirrel.LtOrEq{"business_date": types.BusinessDate(*filter.To)})
	}
	if filter.Status != "" {
		q = q.Where(squirrel.Eq{"status": string(filter.Status)})
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	return q
}
