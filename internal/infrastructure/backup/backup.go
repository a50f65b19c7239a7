// Package backup writes zstd-compressed JSON dumps of the inventory master
// before a process mutates it and prunes them after the retention window.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"invclose/internal/core/clock"
	"invclose/internal/core/types"
	domainbackup "invclose/internal/domain/backup"
	"invclose/internal/domain/dataset"
	"invclose/internal/domain/inventory"
	"invclose/pkg/logger"
)

// Extension is appended to every backup file name.
const Extension = ".json.zst"

// MasterSource lists the master rows to back up.
type MasterSource interface {
	GetByDate(ctx context.Context, date time.Time) ([]inventory.Master, error)
}

// Dump is the decoded content of a backup file.
type Dump struct {
	ProcessType  dataset.ProcessType `json:"processType"`
	BusinessDate string              `json:"businessDate"`
	CreatedAt    time.Time           `json:"createdAt"`
	Count        int                 `json:"count"`
	Rows         []inventory.Master  `json:"rows"`
}

var (
	_ domainbackup.Creator = (*FileCreator)(nil)
	_ domainbackup.Pruner  = (*FileCreator)(nil)
)

// FileCreator writes backups into a directory.
type FileCreator struct {
	dir    string
	source MasterSource
	clock  clock.Clock
}

// NewFileCreator creates a backup writer for dir.
func NewFileCreator(dir string, source MasterSource, clk clock.Clock) *FileCreator {
	return &FileCreator{dir: dir, source: source, clock: clk}
}

const stampLayout = "20060102_150405"

// FileName returns {process}_{yyyymmdd}_{hhmmss}.json.zst for the instant at.
func FileName(processType dataset.ProcessType, at time.Time) string {
	return fmt.Sprintf("%s_%s%s", processType, at.Format(stampLayout), Extension)
}

// createdAt reads the timestamp back from a backup file name.
func createdAt(name string, loc *time.Location) (time.Time, bool) {
	base, ok := strings.CutSuffix(name, Extension)
	if !ok || len(base) < len(stampLayout)+1 {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(stampLayout, base[len(base)-len(stampLayout):], loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// CreateBackup dumps the active master rows visible on date and returns the
// file path. The file appears atomically.
func (c *FileCreator) CreateBackup(ctx context.Context, processType dataset.ProcessType, date time.Time) (string, error) {
	rows, err := c.source.GetByDate(ctx, date)
	if err != nil {
		return "", fmt.Errorf("read master for backup: %w", err)
	}

	if err := os.MkdirAll(c.dir, 0o750); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}

	now := c.clock.Now()
	path := filepath.Join(c.dir, FileName(processType, now))
	dump := Dump{
		ProcessType:  processType,
		BusinessDate: types.FormatDate(date),
		CreatedAt:    now.UTC(),
		Count:        len(rows),
		Rows:         rows,
	}
	if err := writeAtomic(path, dump); err != nil {
		return "", err
	}

	logger.Info(ctx, "master backup written", "path", path, "rows", len(rows))
	return path, nil
}

// Prune deletes backups written more than retentionDays ago, judged by the
// timestamp in the file name. Other files in the directory are left alone.
// A retention of 0 or less keeps everything.
func (c *FileCreator) Prune(ctx context.Context, retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("list backups: %w", err)
	}

	now := c.clock.Now()
	limit := now.AddDate(0, 0, -retentionDays)
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		at, ok := createdAt(e.Name(), now.Location())
		if !ok || !at.Before(limit) {
			continue
		}
		path := filepath.Join(c.dir, e.Name())
		if err := os.Remove(path); err != nil {
			logger.Warn(ctx, "failed to remove old backup", "path", path, "error", err)
			continue
		}
		removed++
	}

	if removed > 0 {
		logger.Info(ctx, "old backups removed", "count", removed, "retention_days", retentionDays)
	}
	return removed, nil
}

func writeAtomic(path string, dump Dump) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".backup-*")
	if err != nil {
		return fmt.Errorf("create backup file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	enc, err := zstd.NewWriter(tmp, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return fmt.Errorf("create zstd writer: %w", err)
	}
	if err := json.NewEncoder(enc).Encode(dump); err != nil {
		_ = enc.Close()
		return fmt.Errorf("encode backup: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("flush backup: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync backup: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close backup: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("publish backup: %w", err)
	}
	return nil
}

// Read decodes a backup file.
func Read(path string) (Dump, error) {
	f, err := os.Open(path)
	if err != nil {
		return Dump{}, fmt.Errorf("open backup: %w", err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return Dump{}, fmt.Errorf("create zstd reader: %w", err)
	}
	defer dec.Close()

	var dump Dump
	if err := json.NewDecoder(dec).Decode(&dump); err != nil {
		return Dump{}, fmt.Errorf("decode backup %s: %w", path, err)
	}
	return dump, nil
}
