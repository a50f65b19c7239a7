// Command seed loads a YAML fixture of inventory master rows, vouchers and
// master-data names, and records the load as a completed import.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"invclose/internal/config"
	"invclose/internal/core/clock"
	appctx "invclose/internal/core/context"
	"invclose/internal/domain/history"
	"invclose/internal/infrastructure/storage/postgres"
	"invclose/internal/infrastructure/storage/postgres/inventory_repo"
	"invclose/internal/infrastructure/storage/postgres/masterdata_repo"
	"invclose/internal/infrastructure/storage/postgres/process_repo"
	"invclose/internal/infrastructure/storage/postgres/voucher_repo"
	"invclose/internal/seed"
	"invclose/pkg/logger"
)

func main() {
	var configPath, fixturePath, executedBy string

	cmd := &cobra.Command{
		Use:           "seed",
		Short:         "Load a fixture of masters, vouchers and names",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(*cobra.Command, []string) error {
			return run(configPath, fixturePath, executedBy)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML config file (default $CONFIG_FILE)")
	cmd.Flags().StringVarP(&fixturePath, "file", "f", "db/seed/sample.yaml", "fixture to load")
	cmd.Flags().StringVar(&executedBy, "operator", "seed", "name recorded in the import history")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, fixturePath, executedBy string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithLogger(ctx, log)
	ctx = appctx.WithTrace(ctx, appctx.NewTraceContext(ctx, "", ""))

	f, err := os.Open(fixturePath)
	if err != nil {
		return fmt.Errorf("open fixture: %w", err)
	}
	defer f.Close()

	fixture, err := seed.Parse(f)
	if err != nil {
		return err
	}
	ds, err := fixture.Build()
	if err != nil {
		return err
	}

	pool, err := postgres.NewPool(ctx, postgres.PoolConfigFrom(cfg.Database, "invclose-seed"))
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	clk := clock.System{}
	txm := postgres.NewTxManager(pool)
	loader := seed.NewLoader(
		txm,
		inventory_repo.NewMasterRepo(txm),
		voucher_repo.NewSet(txm),
		masterdata_repo.NewSource(txm),
		history.NewRecorder(process_repo.NewHistoryRepo(txm), clk),
	)

	res, err := loader.Load(ctx, ds, executedBy)
	if err != nil {
		return err
	}
	log.Infow("seed completed",
		"file", fixturePath,
		"business_date", fixture.BusinessDate,
		"masters", res.Masters,
		"vouchers", res.Vouchers,
		"names", res.Names,
	)
	return nil
}
