// Package config loads engine configuration from defaults, an optional YAML
// file and the environment (.env files included).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // zone database for hosts without one

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Database    DatabaseConfig    `yaml:"database"`
	Log         LogConfig         `yaml:"log"`
	Server      ServerConfig      `yaml:"server"`
	Auth        AuthConfig        `yaml:"auth"`
	Close       CloseConfig       `yaml:"close"`
	Unmatch     UnmatchConfig     `yaml:"unmatch"`
	Aggregation AggregationConfig `yaml:"aggregation"`
	Backup      BackupConfig      `yaml:"backup"`
	Report      ReportConfig      `yaml:"report"`
}

// DatabaseConfig configures the PostgreSQL pool.
type DatabaseConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"max_conns"`
	MinConns int32  `yaml:"min_conns"`
}

// LogConfig configures pkg/logger.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port string `yaml:"port"`
	// CORSOrigins lists browser origins allowed to call the API. Empty
	// disables CORS handling.
	CORSOrigins []string `yaml:"cors_origins"`
}

// AuthConfig configures operator tokens.
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	Issuer    string        `yaml:"issuer"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// CloseConfig holds daily-close policy.
type CloseConfig struct {
	// CutoffHour is the earliest local hour of the day a close may run.
	CutoffHour int `yaml:"cutoff_hour"`
	// ReportCooldown is the minimum time since the daily report completed.
	ReportCooldown time.Duration `yaml:"report_cooldown"`
	// ImportCooldown is the minimum time since the latest import completed.
	ImportCooldown time.Duration `yaml:"import_cooldown"`

	EnforceCutoff         bool `yaml:"enforce_cutoff"`
	EnforceReportCooldown bool `yaml:"enforce_report_cooldown"`
	EnforceImportCooldown bool `yaml:"enforce_import_cooldown"`

	// ZeroStockDeactivateDays deactivates master rows that stayed at zero
	// this many days. 0 disables deactivation.
	ZeroStockDeactivateDays int `yaml:"zero_stock_deactivate_days"`

	// TimeZone is the IANA zone the cutoff hour is evaluated in.
	TimeZone string `yaml:"time_zone"`
}

// UnmatchConfig configures the reconciliation detector.
type UnmatchConfig struct {
	// ZeroStockPolicy is "suppress" or "flag".
	ZeroStockPolicy string `yaml:"zero_stock_policy"`
}

// AggregationConfig configures the snapshot engine.
type AggregationConfig struct {
	BatchSize int `yaml:"batch_size"`
}

// BackupConfig configures master backups taken before a close.
type BackupConfig struct {
	Dir string `yaml:"dir"`
	// RetentionDays prunes older backups after each successful close.
	// 0 keeps every backup.
	RetentionDays int `yaml:"retention_days"`
}

// ReportConfig configures daily report preparation.
type ReportConfig struct {
	// RequireNoUnmatch refuses to prepare a report while unmatched lines exist.
	RequireNoUnmatch bool `yaml:"require_no_unmatch"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Database: DatabaseConfig{MaxConns: 10, MinConns: 1},
		Log:      LogConfig{Level: "info", Development: false},
		Server:   ServerConfig{Port: "8080"},
		Auth: AuthConfig{
			Issuer:   "invclose",
			TokenTTL: 8 * time.Hour,
		},
		Close: CloseConfig{
			CutoffHour:            15,
			ReportCooldown:        30 * time.Minute,
			ImportCooldown:        5 * time.Minute,
			EnforceCutoff:         true,
			EnforceReportCooldown: true,
			EnforceImportCooldown: true,
			TimeZone:              "Asia/Tokyo",
		},
		Unmatch:     UnmatchConfig{ZeroStockPolicy: "suppress"},
		Aggregation: AggregationConfig{BatchSize: 1000},
		Backup:      BackupConfig{Dir: "backups", RetentionDays: 30},
		Report:      ReportConfig{RequireNoUnmatch: true},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (skipped
// when path is empty), then environment overrides. A .env file in the working
// directory is loaded first when present.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overrides fields from the process environment.
func (c *Config) applyEnv() error {
	setString(&c.Database.DSN, "DATABASE_URL")
	setString(&c.Log.Level, "LOG_LEVEL")
	if env := os.Getenv("APP_ENV"); env != "" {
		c.Log.Development = env == "development"
	}
	setString(&c.Server.Port, "APP_PORT")
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		c.Server.CORSOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.Server.CORSOrigins = append(c.Server.CORSOrigins, o)
			}
		}
	}
	setString(&c.Auth.JWTSecret, "JWT_SECRET")
	setString(&c.Backup.Dir, "BACKUP_DIR")
	setString(&c.Close.TimeZone, "CLOSE_TIMEZONE")
	setString(&c.Unmatch.ZeroStockPolicy, "UNMATCH_ZERO_STOCK_POLICY")

	if v := os.Getenv("CLOSE_CUTOFF_HOUR"); v != "" {
		hour, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CLOSE_CUTOFF_HOUR: %w", err)
		}
		c.Close.CutoffHour = hour
	}
	if v := os.Getenv("BACKUP_RETENTION_DAYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("BACKUP_RETENTION_DAYS: %w", err)
		}
		c.Backup.RetentionDays = n
	}
	if v := os.Getenv("AGGREGATION_BATCH_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("AGGREGATION_BATCH_SIZE: %w", err)
		}
		c.Aggregation.BatchSize = n
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate rejects values the engine cannot run with.
func (c Config) Validate() error {
	if c.Close.CutoffHour < 0 || c.Close.CutoffHour > 23 {
		return fmt.Errorf("close.cutoff_hour must be 0-23, got %d", c.Close.CutoffHour)
	}
	if c.Close.ReportCooldown < 0 || c.Close.ImportCooldown < 0 {
		return errors.New("close cooldowns must not be negative")
	}
	if c.Close.ZeroStockDeactivateDays < 0 {
		return fmt.Errorf("close.zero_stock_deactivate_days must not be negative, got %d", c.Close.ZeroStockDeactivateDays)
	}
	if c.Backup.RetentionDays < 0 {
		return fmt.Errorf("backup.retention_days must not be negative, got %d", c.Backup.RetentionDays)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Aggregation.BatchSize <= 0 {
		return fmt.Errorf("aggregation.batch_size must be positive, got %d", c.Aggregation.BatchSize)
	}
	switch c.Unmatch.ZeroStockPolicy {
	case "suppress", "flag":
	default:
		return fmt.Errorf("unmatch.zero_stock_policy must be suppress or flag, got %q", c.Unmatch.ZeroStockPolicy)
	}
	return nil
}

// Location resolves Close.TimeZone.
func (c Config) Location() (*time.Location, error) {
	if c.Close.TimeZone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Close.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("close.time_zone: %w", err)
	}
	return loc, nil
}
