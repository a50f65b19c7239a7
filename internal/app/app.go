// Package app wires repositories and domain services into one engine. The
// server, the CLI and the integration tests all build through it.
package app

import (
	"fmt"

	"invclose/internal/config"
	"invclose/internal/core/clock"
	"invclose/internal/core/tx"
	"invclose/internal/domain/auth"
	"invclose/internal/domain/backup"
	"invclose/internal/domain/dailyclose"
	"invclose/internal/domain/dailyreport"
	"invclose/internal/domain/dataset"
	"invclose/internal/domain/history"
	"invclose/internal/domain/integrity"
	"invclose/internal/domain/inventory"
	"invclose/internal/domain/masterdata"
	"invclose/internal/domain/snapshot"
	"invclose/internal/domain/unmatch"
	"invclose/internal/domain/voucher"
)

// Stores are the persistence ports the services run on.
type Stores struct {
	TxManager  tx.Manager
	Datasets   dataset.Repository
	Snapshots  inventory.SnapshotRepository
	Masters    inventory.MasterRepository
	Vouchers   voucher.Set
	History    history.Repository
	Closes     dailyclose.Repository
	MasterData masterdata.Source
	Audit      inventory.AuditTrail
	Backup     backup.Creator
}

// Services is one fully wired engine.
type Services struct {
	Authority *dataset.Authority
	Recorder  *history.Recorder
	Engine    *snapshot.Engine
	Mutator   *inventory.Mutator
	Validator *integrity.Validator
	Detector  *unmatch.Detector
	Reports   *dailyreport.Service
	Close     *dailyclose.Service
	Tokens    *auth.JWTService
}

// TimingPolicy maps the close section onto the validator's timing gates.
func TimingPolicy(cfg config.Config) (integrity.TimingPolicy, error) {
	loc, err := cfg.Location()
	if err != nil {
		return integrity.TimingPolicy{}, err
	}
	return integrity.TimingPolicy{
		CutoffHour:            cfg.Close.CutoffHour,
		ReportCooldown:        cfg.Close.ReportCooldown,
		ImportCooldown:        cfg.Close.ImportCooldown,
		Location:              loc,
		EnforceCutoff:         cfg.Close.EnforceCutoff,
		EnforceReportCooldown: cfg.Close.EnforceReportCooldown,
		EnforceImportCooldown: cfg.Close.EnforceImportCooldown,
	}, nil
}

// NewServices wires every service over stores.
func NewServices(cfg config.Config, stores Stores, clk clock.Clock) (*Services, error) {
	timing, err := TimingPolicy(cfg)
	if err != nil {
		return nil, err
	}
	policy, err := unmatch.ParseZeroStockPolicy(cfg.Unmatch.ZeroStockPolicy)
	if err != nil {
		return nil, fmt.Errorf("unmatch policy: %w", err)
	}
	batch := cfg.Aggregation.BatchSize

	s := &Services{}
	s.Authority = dataset.NewAuthority(stores.Datasets, stores.Snapshots, stores.TxManager, clk)
	s.Recorder = history.NewRecorder(stores.History, clk)
	s.Engine = snapshot.NewEngine(stores.Snapshots, stores.Vouchers, stores.TxManager, batch)
	s.Mutator = inventory.NewMutator(stores.Snapshots, stores.Masters, stores.Audit, stores.TxManager, batch)
	s.Validator = integrity.NewValidator(stores.Vouchers, s.Recorder, clk, timing)
	s.Detector = unmatch.NewDetector(
		s.Authority,
		s.Engine,
		stores.Snapshots,
		stores.Masters,
		stores.Vouchers,
		stores.MasterData,
		s.Recorder,
		policy,
	)
	s.Reports = dailyreport.NewService(
		s.Authority,
		s.Detector,
		s.Engine,
		stores.Snapshots,
		s.Validator,
		s.Recorder,
		cfg.Report.RequireNoUnmatch,
	)
	s.Close = dailyclose.NewService(
		stores.Closes,
		s.Authority,
		s.Engine,
		stores.Snapshots,
		stores.Vouchers,
		s.Mutator,
		s.Validator,
		stores.Backup,
		s.Recorder,
		clk,
		dailyclose.ServiceConfig{
			ZeroStockDeactivateDays: cfg.Close.ZeroStockDeactivateDays,
			BackupRetentionDays:     cfg.Backup.RetentionDays,
		},
	)
	s.Tokens = auth.NewJWTService(auth.JWTConfigFrom(cfg.Auth), clk)
	return s, nil
}
