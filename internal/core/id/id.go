// Package id issues identifiers for datasets, history entries and close
// records. Ids are UUIDv7, so dataset ids sort by issue time.
package id

import "github.com/google/uuid"

// ID is a UUID.
type ID = uuid.UUID

// New returns a UUIDv7. It falls back to a random UUID if the clock read fails.
func New() ID {
	if v, err := uuid.NewV7(); err == nil {
		return v
	}
	return uuid.New()
}

// Nil returns the zero ID, used where no dataset applies.
func Nil() ID { return uuid.Nil }

// IsNil reports whether v is the zero ID.
func IsNil(v ID) bool { return v == uuid.Nil }

// MustParse parses s and panics on error. For fixtures only.
func MustParse(s string) ID { return uuid.MustParse(s) }
