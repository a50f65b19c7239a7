package masterdata_repo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invclose/internal/domain/masterdata"
)

func TestNameQuery(t *testing.T) {
	q, ok := nameQuery(masterdata.EntitySupplier, " S001 ")
	require.True(t, ok)

	sql, args, err := q.ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT name FROM suppliers WHERE code = $1", sql)
	assert.Equal(t, []any{"S001"}, args)
}

func TestName_EntitiesWithoutTableAreNotFound(t *testing.T) {
	s := NewSource(nil)

	for _, e := range []masterdata.Entity{masterdata.EntityGrade, masterdata.EntityClass} {
		name, found, err := s.Name(context.Background(), e, "001")
		require.NoError(t, err)
		assert.False(t, found)
		assert.Empty(t, name)
	}
}

func TestUpsert_UnknownEntity(t *testing.T) {
	err := NewSource(nil).Upsert(context.Background(), masterdata.EntityGrade, map[string]string{"1": "A"})
	assert.Error(t, err)
}
