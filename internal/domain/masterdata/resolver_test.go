package masterdata

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubSource struct {
	names map[Entity]map[string]string
	err   error
	calls int
}

func (s *stubSource) Name(_ context.Context, entity Entity, code string) (string, bool, error) {
	s.calls++
	if s.err != nil {
		return "", false, s.err
	}
	name, ok := s.names[entity][code]
	return name, ok, nil
}

func TestResolve_KeepsCurrentName(t *testing.T) {
	src := &stubSource{}
	r := NewResolver(src)

	assert.Equal(t, "Tomatoes", r.Resolve(context.Background(), EntityProduct, "10001", "Tomatoes"))
	assert.Equal(t, 0, src.calls)
}

func TestResolve_BackfillsAndCaches(t *testing.T) {
	src := &stubSource{names: map[Entity]map[string]string{
		EntityCustomer: {"C01": "Harbor Foods"},
	}}
	r := NewResolver(src)
	ctx := context.Background()

	assert.Equal(t, "Harbor Foods", r.Resolve(ctx, EntityCustomer, "C01", ""))
	assert.Equal(t, "Harbor Foods", r.Resolve(ctx, EntityCustomer, " C01 ", "  "))
	assert.Equal(t, 1, src.calls)
}

func TestResolve_PlaceholderOnMiss(t *testing.T) {
	r := NewResolver(&stubSource{})
	assert.Equal(t, "Supplier(S9)", r.Resolve(context.Background(), EntitySupplier, "S9", ""))
}

func TestResolve_PlaceholderOnError(t *testing.T) {
	r := NewResolver(&stubSource{err: errors.New("connection reset")})
	assert.Equal(t, "Product(10001)", r.Resolve(context.Background(), EntityProduct, "10001", ""))
}

func TestResolve_NilSource(t *testing.T) {
	r := NewResolver(nil)
	assert.Equal(t, "Grade(001)", r.Resolve(context.Background(), EntityGrade, "001", ""))
}
