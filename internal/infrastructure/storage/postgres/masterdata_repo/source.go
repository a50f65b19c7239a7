// Package masterdata_repo resolves master-data names from the customers,
// suppliers and products tables.
package masterdata_repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"invclose/internal/domain/masterdata"
	"invclose/internal/infrastructure/storage/postgres"
)

// tables maps the entities that have a table. Grades and classes have none
// and always resolve to the placeholder.
var tables = map[masterdata.Entity]string{
	masterdata.EntityCustomer: "customers",
	masterdata.EntitySupplier: "suppliers",
	masterdata.EntityProduct:  "products",
}

var _ masterdata.Source = (*Source)(nil)

// Source implements masterdata.Source.
type Source struct {
	txManager *postgres.TxManager
}

// NewSource creates the master-data source.
func NewSource(txManager *postgres.TxManager) *Source {
	return &Source{txManager: txManager}
}

func (s *Source) Name(ctx context.Context, entity masterdata.Entity, code string) (string, bool, error) {
	q, ok := nameQuery(entity, code)
	if !ok {
		return "", false, nil
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return "", false, fmt.Errorf("build query: %w", err)
	}

	var name string
	if err := pgxscan.Get(ctx, s.txManager.GetQuerier(ctx), &name, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("resolve %s %s: %w", entity, code, err)
	}
	if strings.TrimSpace(name) == "" {
		return "", false, nil
	}
	return name, true, nil
}

func nameQuery(entity masterdata.Entity, code string) (squirrel.SelectBuilder, bool) {
	table, ok := tables[entity]
	if !ok {
		return squirrel.SelectBuilder{}, false
	}
	return postgres.Builder().
		Select("name").
		From(table).
		Where(squirrel.Eq{"code": strings.TrimSpace(code)}), true
}

// Upsert stores or renames entries; the seed loader uses it.
func (s *Source) Upsert(ctx context.Context, entity masterdata.Entity, names map[string]string) error {
	table, ok := tables[entity]
	if !ok {
		return fmt.Errorf("no table for %s", entity)
	}
	if len(names) == 0 {
		return nil
	}

	q := postgres.Builder().Insert(table).Columns("code", "name")
	for code, name := range names {
		q = q.Values(strings.TrimSpace(code), name)
	}
	sql, args, err := q.Suffix("ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name").ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}
	if _, err := s.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("upsert %s: %w", table, err)
	}
	return nil
}
