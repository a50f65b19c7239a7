package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 15, cfg.Close.CutoffHour)
	assert.Equal(t, 30*time.Minute, cfg.Close.ReportCooldown)
	assert.Equal(t, 5*time.Minute, cfg.Close.ImportCooldown)
	assert.Equal(t, 1000, cfg.Aggregation.BatchSize)
	assert.Equal(t, "suppress", cfg.Unmatch.ZeroStockPolicy)
	assert.Equal(t, 30, cfg.Backup.RetentionDays)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := writeFile(t, "invclose.yaml", `
close:
  cutoff_hour: 17
  report_cooldown: 45m
  enforce_import_cooldown: false
  zero_stock_deactivate_days: 90
  time_zone: UTC
unmatch:
  zero_stock_policy: flag
aggregation:
  batch_size: 500
`)
	t.Setenv("DATABASE_URL", "")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 17, cfg.Close.CutoffHour)
	assert.Equal(t, 45*time.Minute, cfg.Close.ReportCooldown)
	assert.Equal(t, 5*time.Minute, cfg.Close.ImportCooldown)
	assert.False(t, cfg.Close.EnforceImportCooldown)
	assert.True(t, cfg.Close.EnforceCutoff)
	assert.Equal(t, 90, cfg.Close.ZeroStockDeactivateDays)
	assert.Equal(t, "flag", cfg.Unmatch.ZeroStockPolicy)
	assert.Equal(t, 500, cfg.Aggregation.BatchSize)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "invclose.yaml", "close:\n  cutoff_hour: 17\n")
	t.Setenv("CLOSE_CUTOFF_HOUR", "9")
	t.Setenv("DATABASE_URL", "postgres://closer@localhost/inv")
	t.Setenv("APP_ENV", "development")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://console.example.com, ,http://localhost:5173")
	t.Setenv("BACKUP_RETENTION_DAYS", "7")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"https://console.example.com", "http://localhost:5173"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 9, cfg.Close.CutoffHour)
	assert.Equal(t, "postgres://closer@localhost/inv", cfg.Database.DSN)
	assert.True(t, cfg.Log.Development)
	assert.Equal(t, 7, cfg.Backup.RetentionDays)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"cutoff hour", "close:\n  cutoff_hour: 24\n"},
		{"batch size", "aggregation:\n  batch_size: 0\n"},
		{"policy", "unmatch:\n  zero_stock_policy: ignore\n"},
		{"time zone", "close:\n  time_zone: Mars/Olympus\n"},
		{"deactivate days", "close:\n  zero_stock_deactivate_days: -1\n"},
		{"backup retention", "backup:\n  retention_days: -1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "bad.yaml", tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
