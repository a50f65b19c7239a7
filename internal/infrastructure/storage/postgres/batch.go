package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// CopyThreshold is the row count from which inserts use COPY instead of a
// multi-row INSERT.
const CopyThreshold = 64

// BatchInserter streams rows into a table with the COPY protocol.
type BatchInserter struct {
	txManager *TxManager
}

// NewBatchInserter creates a batch inserter.
func NewBatchInserter(txManager *TxManager) *BatchInserter {
	return &BatchInserter{txManager: txManager}
}

// CopyFromSlice copies rows (each matching columns) into table.
func (b *BatchInserter) CopyFromSlice(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	n, err := b.txManager.GetQuerier(ctx).CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return n, fmt.Errorf("copy into %s: %w", table, err)
	}
	return n, nil
}

// CopyStructs copies items into table, reading columns from their db tags.
func CopyStructs[T any](ctx context.Context, b *BatchInserter, table string, columns []string, items []T) (int64, error) {
	rows := make([][]any, len(items))
	for i := range items {
		rows[i] = RowValues(items[i], columns)
	}
	return b.CopyFromSlice(ctx, table, columns, rows)
}

// BatchExecutor sends many statements in one round trip.
type BatchExecutor struct {
	txManager *TxManager
}

// NewBatchExecutor creates a batch executor.
func NewBatchExecutor(txManager *TxManager) *BatchExecutor {
	return &BatchExecutor{txManager: txManager}
}

// BatchQuery is one queued statement.
type BatchQuery struct {
	SQL  string
	Args []any
}

// ExecuteBatch runs queries in one round trip and returns the total number
// of affected rows.
func (e *BatchExecutor) ExecuteBatch(ctx context.Context, queries []BatchQuery) (int64, error) {
	if len(queries) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, q := range queries {
		batch.Queue(q.SQL, q.Args...)
	}

	results := e.txManager.GetQuerier(ctx).SendBatch(ctx, batch)
	defer results.Close()

	var affected int64
	for i := range queries {
		tag, err := results.Exec()
		if err != nil {
			return affected, fmt.Errorf("batch statement %d: %w", i, err)
		}
		affected += tag.RowsAffected()
	}
	return affected, nil
}

// InsertStructs writes items into table. Inside a transaction, from
// CopyThreshold rows on, it uses COPY; otherwise a multi-row INSERT.
func InsertStructs[T any](ctx context.Context, txm *TxManager, table string, columns []string, items []T) error {
	if len(items) == 0 {
		return nil
	}

	if txm.InTransaction(ctx) && len(items) >= CopyThreshold {
		if _, err := CopyStructs(ctx, NewBatchInserter(txm), table, columns, items); err != nil {
			return err
		}
		return nil
	}

	q := Builder().Insert(table).Columns(columns...)
	for i := range items {
		q = q.Values(RowValues(items[i], columns)...)
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert %s: %w", table, err)
	}
	if _, err := txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}
	return nil
}
