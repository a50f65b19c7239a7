package inventory_repo

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"invclose/internal/core/types"
	"invclose/internal/domain/inventory"
	"invclose/internal/infrastructure/storage/postgres"
)

const masterTable = "inventory_master"

var masterColumns = postgres.ExtractDBColumns[inventory.Master]()

var _ inventory.MasterRepository = (*MasterRepo)(nil)

// MasterRepo implements inventory.MasterRepository.
type MasterRepo struct {
	txManager *postgres.TxManager
	now       func() time.Time
}

// NewMasterRepo creates the master repository.
func NewMasterRepo(txManager *postgres.TxManager) *MasterRepo {
	return &MasterRepo{txManager: txManager, now: time.Now}
}

func (r *MasterRepo) baseSelect() squirrel.SelectBuilder {
	return postgres.Builder().Select(masterColumns...).From(masterTable)
}

func (r *MasterRepo) GetByDate(ctx context.Context, date time.Time) ([]inventory.Master, error) {
	sql, args, err := r.byDateQuery(date).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []inventory.Master
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("select masters: %w", err)
	}
	normalizeKeys(rows, func(m *inventory.Master) *inventory.Key { return &m.Key })
	return rows, nil
}

func (r *MasterRepo) byDateQuery(date time.Time) squirrel.SelectBuilder {
	return r.baseSelect().
		Where(squirrel.Eq{"is_active": true}).
		Where(squirrel.LtOrEq{"as_of_date": types.BusinessDate(date)}).
		OrderBy(keyOrder)
}

func (r *MasterRepo) GetByKey(ctx context.Context, key inventory.Key) (*inventory.Master, error) {
	sql, args, err := r.baseSelect().Where(keyEq(key.Normalize())).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var m inventory.Master
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &m, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get master %s: %w", key, err)
	}
	m.Key = m.Key.Normalize()
	return &m, nil
}

func (r *MasterRepo) FindClassification(ctx context.Context, key inventory.Key) (string, error) {
	sql, args, err := classificationQuery(key.Normalize()).ToSql()
	if err != nil {
		return "", fmt.Errorf("build query: %w", err)
	}

	var class []string
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &class, sql, args...); err != nil {
		return "", fmt.Errorf("find classification %s: %w", key, err)
	}
	if len(class) == 0 {
		return "", nil
	}
	return class[0], nil
}

func classificationQuery(key inventory.Key) squirrel.SelectBuilder {
	return postgres.Builder().
		Select("product_category1").
		From(masterTable).
		Where(squirrel.Eq{
			"product_code":       key.ProductCode,
			"grade_code":         key.GradeCode,
			"class_code":         key.ClassCode,
			"shipping_mark_code": key.ShippingMarkCode,
		}).
		Where(squirrel.NotEq{"product_category1": ""}).
		OrderBy("as_of_date DESC").
		Limit(1)
}

func (r *MasterRepo) BulkInsert(ctx context.Context, rows []inventory.Master) error {
	rows = r.stamp(rows)
	if err := postgres.InsertStructs(ctx, r.txManager, masterTable, masterColumns, rows); err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("bulk insert masters: key already present: %w", err)
		}
		return err
	}
	return nil
}

func (r *MasterRepo) Upsert(ctx context.Context, rows []inventory.Master) error {
	if len(rows) == 0 {
		return nil
	}
	sql, args, err := upsertQuery(r.stamp(rows)).ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("upsert masters: %w", err)
	}
	return nil
}

// stamp normalizes keys and sets both timestamps to now. On conflict the
// existing created_at is kept by the upsert.
func (r *MasterRepo) stamp(rows []inventory.Master) []inventory.Master {
	now := r.now().UTC()
	out := slices.Clone(rows)
	for i := range out {
		out[i].Key = out[i].Key.Normalize()
		out[i].CreatedAt = now
		out[i].UpdatedAt = now
	}
	return out
}

// upsertQuery inserts rows and, on key conflict, overwrites every non-key
// column except created_at. A blank classification keeps the stored one.
func upsertQuery(rows []inventory.Master) squirrel.InsertBuilder {
	q := postgres.Builder().Insert(masterTable).Columns(masterColumns...)
	for i := range rows {
		q = q.Values(postgres.RowValues(rows[i], masterColumns)...)
	}

	var sets []string
	for _, c := range postgres.Without(masterColumns, append(slices.Clone(keyColumns), "created_at")...) {
		if c == "product_category1" {
			sets = append(sets, "product_category1 = COALESCE(NULLIF(EXCLUDED.product_category1, ''), "+masterTable+".product_category1)")
			continue
		}
		sets = append(sets, c+" = EXCLUDED."+c)
	}
	return q.Suffix("ON CONFLICT (" + keyOrder + ") DO UPDATE SET " + strings.Join(sets, ", "))
}

func (r *MasterRepo) DeactivateZeroStock(ctx context.Context, date time.Time, thresholdDays int) ([]inventory.Key, error) {
	sql, args, err := deactivateQuery(date, thresholdDays, r.now().UTC()).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build deactivate: %w", err)
	}

	var keys []inventory.Key
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &keys, sql, args...); err != nil {
		return nil, fmt.Errorf("deactivate zero-stock masters: %w", err)
	}
	for i := range keys {
		keys[i] = keys[i].Normalize()
	}
	slices.SortFunc(keys, inventory.Key.Compare)
	return keys, nil
}

func deactivateQuery(date time.Time, thresholdDays int, now time.Time) squirrel.UpdateBuilder {
	limit := types.BusinessDate(date).AddDate(0, 0, -thresholdDays)
	return postgres.Builder().
		Update(masterTable).
		Set("is_active", false).
		Set("updated_at", now).
		Where(squirrel.Eq{"is_active": true, "current_stock": 0}).
		Where(squirrel.NotEq{"zero_stock_since": nil}).
		Where(squirrel.LtOrEq{"zero_stock_since": limit}).
		Suffix("RETURNING " + keyOrder)
}
