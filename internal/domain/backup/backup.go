// Package backup declares how processes snapshot the inventory master
// before they mutate it.
package backup

import (
	"context"
	"time"

	"invclose/internal/domain/dataset"
)

// Creator writes a restorable copy of the inventory master and returns its
// location.
type Creator interface {
	CreateBackup(ctx context.Context, processType dataset.ProcessType, date time.Time) (string, error)
}

// Pruner removes backups older than the retention window and reports how
// many it removed. Creators that keep files on disk implement it.
type Pruner interface {
	Prune(ctx context.Context, retentionDays int) (int, error)
}
