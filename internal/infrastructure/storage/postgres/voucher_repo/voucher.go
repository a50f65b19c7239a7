// Package voucher_repo provides the PostgreSQL voucher repositories, one
// per voucher table.
package voucher_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"invclose/internal/core/id"
	"invclose/internal/core/types"
	"invclose/internal/domain/voucher"
	"invclose/internal/infrastructure/storage/postgres"
)

var (
	lineColumns   = postgres.ExtractDBColumns[voucher.Line]()
	insertColumns = postgres.Without(lineColumns, "id")
)

// tables maps each kind to its table.
var tables = map[voucher.Kind]string{
	voucher.KindSales:      "sales_vouchers",
	voucher.KindPurchase:   "purchase_vouchers",
	voucher.KindAdjustment: "inventory_adjustments",
}

var _ voucher.Repository = (*Repo)(nil)

// Repo implements voucher.Repository over the table of one kind.
type Repo struct {
	txManager *postgres.TxManager
	kind      voucher.Kind
	table     string
}

// NewRepo creates the repository of kind.
func NewRepo(txManager *postgres.TxManager, kind voucher.Kind) *Repo {
	table, ok := tables[kind]
	if !ok {
		panic(fmt.Sprintf("voucher_repo: unknown kind %q", kind))
	}
	return &Repo{txManager: txManager, kind: kind, table: table}
}

// NewSet creates the three repositories.
func NewSet(txManager *postgres.TxManager) voucher.Set {
	return voucher.Set{
		Sales:       NewRepo(txManager, voucher.KindSales),
		Purchases:   NewRepo(txManager, voucher.KindPurchase),
		Adjustments: NewRepo(txManager, voucher.KindAdjustment),
	}
}

func (r *Repo) Kind() voucher.Kind { return r.kind }

func (r *Repo) baseSelect() squirrel.SelectBuilder {
	return postgres.Builder().Select(lineColumns...).From(r.table).OrderBy("id")
}

func (r *Repo) selectLines(ctx context.Context, q squirrel.SelectBuilder) ([]voucher.Line, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var lines []voucher.Line
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("select %s: %w", r.table, err)
	}
	for i := range lines {
		lines[i].Kind = r.kind
		lines[i].Key = lines[i].Key.Normalize()
	}
	return lines, nil
}

func (r *Repo) GetByDate(ctx context.Context, date time.Time) ([]voucher.Line, error) {
	return r.selectLines(ctx, r.baseSelect().Where(squirrel.Eq{"job_date": types.BusinessDate(date)}))
}

func (r *Repo) GetByDataset(ctx context.Context, datasetID id.ID) ([]voucher.Line, error) {
	return r.selectLines(ctx, r.baseSelect().Where(squirrel.Eq{"dataset_id": datasetID}))
}

func (r *Repo) GetModifiedAfter(ctx context.Context, date time.Time, ts time.Time) ([]voucher.Line, error) {
	return r.selectLines(ctx, r.modifiedAfterQuery(date, ts))
}

func (r *Repo) modifiedAfterQuery(date time.Time, ts time.Time) squirrel.SelectBuilder {
	return r.baseSelect().
		Where(squirrel.Eq{"job_date": types.BusinessDate(date)}).
		Where(squirrel.Or{
			squirrel.Gt{"created_at": ts},
			squirrel.Gt{"updated_at": ts},
		})
}

func (r *Repo) CountByDate(ctx context.Context, date time.Time) (int64, error) {
	sql, args, err := postgres.Builder().
		Select("COUNT(*)").
		From(r.table).
		Where(squirrel.Eq{"job_date": types.BusinessDate(date)}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}

	var n int64
	if err := r.txManager.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", r.table, err)
	}
	return n, nil
}

// BulkInsert imports lines. Ids are assigned by the table; timestamps are
// set when missing.
func (r *Repo) BulkInsert(ctx context.Context, lines []voucher.Line) error {
	now := time.Now().UTC()
	rows := make([]voucher.Line, len(lines))
	for i, l := range lines {
		l.Key = l.Key.Normalize()
		l.JobDate = types.BusinessDate(l.JobDate)
		if l.CreatedAt.IsZero() {
			l.CreatedAt = now
		}
		if l.UpdatedAt.IsZero() {
			l.UpdatedAt = l.CreatedAt
		}
		rows[i] = l
	}

	if err := postgres.InsertStructs(ctx, r.txManager, r.table, insertColumns, rows); err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("%s: duplicate voucher line: %w", r.table, err)
		}
		return err
	}
	return nil
}

// UpdatePricing writes the enrichment in one batch. updated_at is left
// alone so enrichment never counts as a modification.
func (r *Repo) UpdatePricing(ctx context.Context, updates []voucher.PricingUpdate) error {
	queries := make([]postgres.BatchQuery, 0, len(updates))
	for _, u := range updates {
		sql, args, err := r.pricingQuery(u).ToSql()
		if err != nil {
			return fmt.Errorf("build pricing update: %w", err)
		}
		queries = append(queries, postgres.BatchQuery{SQL: sql, Args: args})
	}

	if _, err := postgres.NewBatchExecutor(r.txManager).ExecuteBatch(ctx, queries); err != nil {
		return fmt.Errorf("update %s pricing: %w", r.table, err)
	}
	return nil
}

func (r *Repo) pricingQuery(u voucher.PricingUpdate) squirrel.UpdateBuilder {
	return postgres.Builder().
		Update(r.table).
		Set("inventory_unit_price", u.InventoryUnitPrice).
		Set("gross_profit", u.GrossProfit).
		Where(squirrel.Eq{"id": u.ID})
}
