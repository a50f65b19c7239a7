package backup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invclose/internal/core/clock"
	"invclose/internal/core/types"
	"invclose/internal/domain/dataset"
	"invclose/internal/domain/inventory"
)

type stubSource struct {
	rows []inventory.Master
	err  error
	date time.Time
}

func (s *stubSource) GetByDate(_ context.Context, date time.Time) ([]inventory.Master, error) {
	s.date = date
	return s.rows, s.err
}

var businessDate = time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)

func TestFileName(t *testing.T) {
	at := time.Date(2026, 10, 15, 16, 4, 5, 0, time.UTC)
	assert.Equal(t, "DAILY_CLOSE_20261015_160405.json.zst", FileName(dataset.ProcessDailyClose, at))
}

func TestCreateBackup_RoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "backups")
	src := &stubSource{rows: []inventory.Master{
		{
			Key:          inventory.NewKey("1", "1", "1", "1", "A"),
			ProductName:  "Green tea",
			CurrentStock: types.MustDecimal("15"),
			UnitPrice:    types.MustDecimal("6"),
			AsOfDate:     businessDate,
			IsActive:     true,
		},
	}}
	clk := clock.NewFixed(time.Date(2026, 10, 15, 16, 0, 0, 0, time.UTC))
	c := NewFileCreator(dir, src, clk)

	path, err := c.CreateBackup(context.Background(), dataset.ProcessDailyClose, businessDate)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "DAILY_CLOSE_20261015_160000.json.zst"), path)
	assert.Equal(t, businessDate, src.date)

	dump, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, dataset.ProcessDailyClose, dump.ProcessType)
	assert.Equal(t, "2026-10-15", dump.BusinessDate)
	assert.Equal(t, 1, dump.Count)
	require.Len(t, dump.Rows, 1)
	assert.Equal(t, "00001", dump.Rows[0].ProductCode)
	assert.True(t, dump.Rows[0].CurrentStock.Equal(types.MustDecimal("15")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file must not remain")
}

func TestCreateBackup_SourceErrorWritesNothing(t *testing.T) {
	dir := t.TempDir()
	c := NewFileCreator(dir, &stubSource{err: errors.New("db down")}, clock.System{})

	_, err := c.CreateBackup(context.Background(), dataset.ProcessDailyClose, businessDate)
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRead_RejectsPlainFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.json.zst")
	require.NoError(t, os.WriteFile(path, []byte(`{"count":1}`), 0o600))

	_, err := Read(path)
	assert.Error(t, err)
}

func TestPrune(t *testing.T) {
	dir := t.TempDir()
	clk := clock.NewFixed(time.Date(2026, 10, 15, 16, 0, 0, 0, time.UTC))
	c := NewFileCreator(dir, &stubSource{}, clk)

	names := []string{
		FileName(dataset.ProcessDailyClose, time.Date(2026, 9, 1, 16, 0, 0, 0, time.UTC)),
		FileName(dataset.ProcessDailyClose, time.Date(2026, 9, 15, 15, 59, 59, 0, time.UTC)),
		FileName(dataset.ProcessDailyClose, time.Date(2026, 9, 15, 16, 0, 0, 0, time.UTC)),
		FileName(dataset.ProcessDailyClose, time.Date(2026, 10, 14, 16, 0, 0, 0, time.UTC)),
		"notes.txt",
		"DAILY_CLOSE_garbage.json.zst",
	}
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("x"), 0o600))
	}

	removed, err := c.Prune(context.Background(), 30)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var left []string
	for _, e := range entries {
		left = append(left, e.Name())
	}
	assert.ElementsMatch(t, []string{names[2], names[3], "notes.txt", "DAILY_CLOSE_garbage.json.zst"}, left)
}

func TestPrune_KeepsEverythingWithoutRetention(t *testing.T) {
	dir := t.TempDir()
	old := FileName(dataset.ProcessDailyClose, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, os.WriteFile(filepath.Join(dir, old), []byte("x"), 0o600))
	c := NewFileCreator(dir, &stubSource{}, clock.System{})

	removed, err := c.Prune(context.Background(), 0)
	require.NoError(t, err)
	assert.Zero(t, removed)
	assert.FileExists(t, filepath.Join(dir, old))
}

func TestPrune_MissingDir(t *testing.T) {
	c := NewFileCreator(filepath.Join(t.TempDir(), "none"), &stubSource{}, clock.System{})
	removed, err := c.Prune(context.Background(), 30)
	require.NoError(t, err)
	assert.Zero(t, removed)
}
