// Package masterdata resolves display names of master-data codes for
// enrichment. Resolution is best-effort: a miss yields a deterministic
// placeholder, never a blank.
package masterdata

import (
	"context"
	"fmt"
	"strings"

	"invclose/pkg/logger"
)

// Entity is a kind of master data.
type Entity string

const (
	EntityCustomer Entity = "Customer"
	EntitySupplier Entity = "Supplier"
	EntityProduct  Entity = "Product"
	EntityGrade    Entity = "Grade"
	EntityClass    Entity = "Class"
)

// Source looks up a display name. found is false when the code is unknown.
type Source interface {
	Name(ctx context.Context, entity Entity, code string) (name string, found bool, err error)
}

// Placeholder is the name shown when a code cannot be resolved.
func Placeholder(entity Entity, code string) string {
	return fmt.Sprintf("%s(%s)", entity, code)
}

type cacheKey struct {
	entity Entity
	code   string
}

// Resolver caches lookups for the lifetime of one run. It is not safe for
// concurrent use; create one per run.
type Resolver struct {
	source Source
	cache  map[cacheKey]string
}

// NewResolver creates a resolver over source. source may be nil, in which
// case every lookup yields the placeholder.
func NewResolver(source Source) *Resolver {
	return &Resolver{
		source: source,
		cache:  make(map[cacheKey]string),
	}
}

// Resolve returns current when it is not blank, otherwise the name from the
// source, otherwise the placeholder.
func (r *Resolver) Resolve(ctx context.Context, entity Entity, code, current string) string {
	if strings.TrimSpace(current) != "" {
		return current
	}
	code = strings.TrimSpace(code)

	key := cacheKey{entity: entity, code: code}
	if name, ok := r.cache[key]; ok {
		return name
	}

	name := Placeholder(entity, code)
	if r.source != nil && code != "" {
		found, ok, err := r.source.Name(ctx, entity, code)
		switch {
		case err != nil:
			logger.Warn(ctx, "master data lookup failed",
				"entity", entity,
				"code", code,
				"error", err,
			)
		case ok && strings.TrimSpace(found) != "":
			name = found
		}
	}

	r.cache[key] = name
	return name
}
