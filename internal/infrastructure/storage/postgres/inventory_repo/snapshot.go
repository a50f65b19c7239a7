package inventory_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"invclose/internal/core/id"
	"invclose/internal/core/types"
	"invclose/internal/domain/inventory"
	"invclose/internal/infrastructure/storage/postgres"
)

const snapshotTable = "inventory_snapshot"

var snapshotColumns = postgres.ExtractDBColumns[inventory.Snapshot]()

// dailyColumns are the columns UpdateDaily writes.
var dailyColumns = []string{
	"daily_sales_quantity", "daily_sales_amount",
	"daily_purchase_quantity", "daily_purchase_amount",
	"daily_adjustment_quantity", "daily_adjustment_amount",
	"daily_loss_quantity", "daily_transfer_quantity", "daily_correction_quantity",
	"daily_gross_profit", "daily_discount_amount",
	"daily_stock", "daily_stock_amount", "daily_unit_price",
	"daily_flag", "product_category1",
	"last_receipt_date", "last_sales_date", "zero_stock_since",
}

var _ inventory.SnapshotRepository = (*SnapshotRepo)(nil)

// SnapshotRepo implements inventory.SnapshotRepository. Every statement is
// filtered by dataset_id.
type SnapshotRepo struct {
	txManager *postgres.TxManager
}

// NewSnapshotRepo creates the snapshot repository.
func NewSnapshotRepo(txManager *postgres.TxManager) *SnapshotRepo {
	return &SnapshotRepo{txManager: txManager}
}

func (r *SnapshotRepo) CopyFromMaster(ctx context.Context, datasetID id.ID, date time.Time, mode inventory.CopyMode) (int64, error) {
	var copied int64
	err := r.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if _, err := r.DeleteByDataset(ctx, datasetID); err != nil {
			return err
		}

		sql, args, err := copyFromMasterQuery(datasetID, date, mode).ToSql()
		if err != nil {
			return fmt.Errorf("build copy: %w", err)
		}
		tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
		if err != nil {
			return fmt.Errorf("copy master into snapshot: %w", err)
		}
		copied = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return copied, nil
}

// copyFromMasterQuery seeds the dataset from active master rows. The
// carried balance doubles as the starting daily stock.
func copyFromMasterQuery(datasetID id.ID, date time.Time, mode inventory.CopyMode) squirrel.InsertBuilder {
	date = types.BusinessDate(date)

	sel := postgres.Builder().
		Select().
		Column("?::uuid", datasetID).
		Columns(keyColumns...).
		Columns(
			"product_name", "unit", "product_category1",
			"current_stock", "current_stock_amount", "unit_price",
			"current_stock", "current_stock_amount", "unit_price",
		).
		Column("?", string(inventory.DailyFlagPending)).
		Column("?", string(inventory.OriginMaster)).
		Columns("last_receipt_date", "last_sales_date", "zero_stock_since").
		Column("?::date", date).
		From(masterTable).
		Where(squirrel.Eq{"is_active": true}).
		Where(squirrel.LtOrEq{"as_of_date": date})

	if mode == inventory.CopyAsOf {
		sel = sel.Where(squirrel.Or{
			squirrel.Eq{"last_close_date": nil},
			squirrel.Lt{"last_close_date": date},
		})
	}

	columns := append([]string{"dataset_id"}, keyColumns...)
	columns = append(columns,
		"product_name", "unit", "product_category1",
		"previous_stock", "previous_stock_amount", "previous_unit_price",
		"daily_stock", "daily_stock_amount", "daily_unit_price",
		"daily_flag", "origin",
		"last_receipt_date", "last_sales_date", "zero_stock_since",
		"as_of_date",
	)

	return postgres.Builder().
		Insert(snapshotTable).
		Columns(columns...).
		Select(sel)
}

func (r *SnapshotRepo) ResetDaily(ctx context.Context, datasetID id.ID) error {
	sql, args, err := resetDailyQuery(datasetID).ToSql()
	if err != nil {
		return fmt.Errorf("build reset: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("reset snapshot %s: %w", datasetID, err)
	}
	return nil
}

func resetDailyQuery(datasetID id.ID) squirrel.UpdateBuilder {
	q := postgres.Builder().Update(snapshotTable)
	for _, c := range dailyColumns[:11] {
		q = q.Set(c, 0)
	}
	return q.
		Set("daily_stock", squirrel.Expr("previous_stock")).
		Set("daily_stock_amount", squirrel.Expr("previous_stock_amount")).
		Set("daily_unit_price", squirrel.Expr("previous_unit_price")).
		Set("daily_flag", string(inventory.DailyFlagPending)).
		Where(squirrel.Eq{"dataset_id": datasetID})
}

func (r *SnapshotRepo) GetByDataset(ctx context.Context, datasetID id.ID) ([]inventory.Snapshot, error) {
	sql, args, err := postgres.Builder().
		Select(snapshotColumns...).
		From(snapshotTable).
		Where(squirrel.Eq{"dataset_id": datasetID}).
		OrderBy(keyOrder).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []inventory.Snapshot
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("select snapshot %s: %w", datasetID, err)
	}
	normalizeKeys(rows, func(s *inventory.Snapshot) *inventory.Key { return &s.Key })
	return rows, nil
}

func (r *SnapshotRepo) CountByDataset(ctx context.Context, datasetID id.ID) (int64, error) {
	sql, args, err := postgres.Builder().
		Select("COUNT(*)").
		From(snapshotTable).
		Where(squirrel.Eq{"dataset_id": datasetID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}

	var n int64
	if err := r.txManager.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count snapshot %s: %w", datasetID, err)
	}
	return n, nil
}

func (r *SnapshotRepo) Insert(ctx context.Context, rows []inventory.Snapshot) error {
	return postgres.InsertStructs(ctx, r.txManager, snapshotTable, snapshotColumns, rows)
}

// UpdateDaily queues one UPDATE per row and sends them as a single batch.
func (r *SnapshotRepo) UpdateDaily(ctx context.Context, rows []inventory.Snapshot) error {
	queries := make([]postgres.BatchQuery, 0, len(rows))
	for i := range rows {
		sql, args, err := updateDailyQuery(rows[i]).ToSql()
		if err != nil {
			return fmt.Errorf("build update: %w", err)
		}
		queries = append(queries, postgres.BatchQuery{SQL: sql, Args: args})
	}

	affected, err := postgres.NewBatchExecutor(r.txManager).ExecuteBatch(ctx, queries)
	if err != nil {
		return fmt.Errorf("update snapshot rows: %w", err)
	}
	if affected != int64(len(rows)) {
		return fmt.Errorf("update snapshot rows: %d of %d rows found", affected, len(rows))
	}
	return nil
}

func updateDailyQuery(row inventory.Snapshot) squirrel.UpdateBuilder {
	values := postgres.StructToMap(row)
	q := postgres.Builder().Update(snapshotTable)
	for _, c := range dailyColumns {
		q = q.Set(c, values[c])
	}
	return q.
		Where(squirrel.Eq{"dataset_id": row.DatasetID}).
		Where(keyEq(row.Key))
}

func (r *SnapshotRepo) MarkProcessed(ctx context.Context, datasetID id.ID) (int64, error) {
	sql, args, err := postgres.Builder().
		Update(snapshotTable).
		Set("daily_flag", string(inventory.DailyFlagProcessed)).
		Where(squirrel.Eq{"dataset_id": datasetID, "daily_flag": string(inventory.DailyFlagSeen)}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build mark processed: %w", err)
	}
	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("mark snapshot %s processed: %w", datasetID, err)
	}
	return tag.RowsAffected(), nil
}

func (r *SnapshotRepo) DeleteByDataset(ctx context.Context, datasetID id.ID) (int64, error) {
	sql, args, err := postgres.Builder().
		Delete(snapshotTable).
		Where(squirrel.Eq{"dataset_id": datasetID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete: %w", err)
	}
	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("delete snapshot %s: %w", datasetID, err)
	}
	return tag.RowsAffected(), nil
}
