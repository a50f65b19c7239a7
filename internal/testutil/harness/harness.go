// Package harness wires the domain services over memstore for tests.
package harness

import (
	"context"
	"sync"
	"time"

	"invclose/internal/app"
	"invclose/internal/core/clock"
	"invclose/internal/core/id"
	"invclose/internal/domain/auth"
	"invclose/internal/domain/backup"
	"invclose/internal/domain/dailyclose"
	"invclose/internal/domain/dailyreport"
	"invclose/internal/domain/dataset"
	"invclose/internal/domain/history"
	"invclose/internal/domain/integrity"
	"invclose/internal/domain/inventory"
	"invclose/internal/domain/snapshot"
	"invclose/internal/domain/unmatch"
	"invclose/internal/testutil/memstore"
)

// Backup is a recording backup.Creator and backup.Pruner.
type Backup struct {
	mu    sync.Mutex
	Path  string
	Err   error
	Calls int

	// Pruned holds the retention of every Prune call.
	Pruned   []int
	PruneErr error
}

var (
	_ backup.Creator = (*Backup)(nil)
	_ backup.Pruner  = (*Backup)(nil)
)

// Prune records retentionDays and returns PruneErr.
func (b *Backup) Prune(_ context.Context, retentionDays int) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Pruned = append(b.Pruned, retentionDays)
	return 0, b.PruneErr
}

// CreateBackup returns Path or Err.
func (b *Backup) CreateBackup(_ context.Context, _ dataset.ProcessType, _ time.Time) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Calls++
	if b.Err != nil {
		return "", b.Err
	}
	return b.Path, nil
}

// Config adjusts the wiring.
type Config struct {
	Timing           integrity.TimingPolicy
	Policy           unmatch.ZeroStockPolicy
	DeactivateDays   int
	RetentionDays    int
	RequireNoUnmatch bool
	BatchSize        int
}

// Option mutates Config.
type Option func(*Config)

// WithTiming replaces the timing policy.
func WithTiming(p integrity.TimingPolicy) Option { return func(c *Config) { c.Timing = p } }

// WithPolicy sets the zero-stock policy.
func WithPolicy(p unmatch.ZeroStockPolicy) Option { return func(c *Config) { c.Policy = p } }

// WithDeactivateDays enables zero-stock deactivation after a close.
func WithDeactivateDays(n int) Option { return func(c *Config) { c.DeactivateDays = n } }

// WithBackupRetention enables backup pruning after a close.
func WithBackupRetention(days int) Option { return func(c *Config) { c.RetentionDays = days } }

// WithUnmatchGate turns the report's unmatch gate on or off.
func WithUnmatchGate(on bool) Option { return func(c *Config) { c.RequireNoUnmatch = on } }

// WithBatchSize sets the engine and mutator batch size.
func WithBatchSize(n int) Option { return func(c *Config) { c.BatchSize = n } }

// Harness holds one fully wired engine.
type Harness struct {
	Clock  *clock.Fixed
	Store  *memstore.Store
	Backup *Backup

	Authority *dataset.Authority
	Recorder  *history.Recorder
	Engine    *snapshot.Engine
	Mutator   *inventory.Mutator
	Validator *integrity.Validator
	Detector  *unmatch.Detector
	Reports   *dailyreport.Service
	Close     *dailyclose.Service
}

// New wires every service with the clock frozen at now.
func New(now time.Time, opts ...Option) *Harness {
	cfg := Config{
		Timing:           integrity.DefaultTimingPolicy(),
		Policy:           unmatch.ZeroStockSuppress,
		RequireNoUnmatch: true,
		BatchSize:        2,
	}
	for _, o := range opts {
		o(&cfg)
	}

	clk := clock.NewFixed(now)
	store := memstore.New(clk)
	h := &Harness{
		Clock:  clk,
		Store:  store,
		Backup: &Backup{Path: "backups/DAILY_CLOSE_test.json.zst"},
	}

	txm := store.TxManager()
	snapshots := store.Snapshots()
	vouchers := store.Vouchers()

	h.Authority = dataset.NewAuthority(store.Datasets(), snapshots, txm, clk)
	h.Recorder = history.NewRecorder(store.History(), clk)
	h.Engine = snapshot.NewEngine(snapshots, vouchers, txm, cfg.BatchSize)
	h.Mutator = inventory.NewMutator(snapshots, store.Masters(), store.Audit(), txm, cfg.BatchSize)
	h.Validator = integrity.NewValidator(vouchers, h.Recorder, clk, cfg.Timing)
	h.Detector = unmatch.NewDetector(h.Authority, h.Engine, snapshots, store.Masters(), vouchers, store.MasterData(), h.Recorder, cfg.Policy)
	h.Reports = dailyreport.NewService(h.Authority, h.Detector, h.Engine, snapshots, h.Validator, h.Recorder, cfg.RequireNoUnmatch)
	h.Close = dailyclose.NewService(
		store.Closes(),
		h.Authority,
		h.Engine,
		snapshots,
		vouchers,
		h.Mutator,
		h.Validator,
		h.Backup,
		h.Recorder,
		clk,
		dailyclose.ServiceConfig{
			ZeroStockDeactivateDays: cfg.DeactivateDays,
			BackupRetentionDays:     cfg.RetentionDays,
		},
	)
	return h
}

// CompleteImport records a completed IMPORT history entry at the current time.
func (h *Harness) CompleteImport(ctx context.Context, date time.Time) error {
	e, err := h.Recorder.Start(ctx, id.Nil(), date, dataset.ProcessImport, "importer")
	if err != nil {
		return err
	}
	return h.Recorder.Complete(ctx, e, "", "fixture")
}

// Stores exposes the memstore repositories as app stores.
func (h *Harness) Stores() app.Stores {
	return app.Stores{
		TxManager:  h.Store.TxManager(),
		Datasets:   h.Store.Datasets(),
		Snapshots:  h.Store.Snapshots(),
		Masters:    h.Store.Masters(),
		Vouchers:   h.Store.Vouchers(),
		History:    h.Store.History(),
		Closes:     h.Store.Closes(),
		MasterData: h.Store.MasterData(),
		Audit:      h.Store.Audit(),
		Backup:     h.Backup,
	}
}

// Services returns the harness wiring as app services.
func (h *Harness) Services(tokens *auth.JWTService) *app.Services {
	return &app.Services{
		Authority: h.Authority,
		Recorder:  h.Recorder,
		Engine:    h.Engine,
		Mutator:   h.Mutator,
		Validator: h.Validator,
		Detector:  h.Detector,
		Reports:   h.Reports,
		Close:     h.Close,
		Tokens:    tokens,
	}
}
