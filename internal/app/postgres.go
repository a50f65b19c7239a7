package app

import (
	"context"
	"fmt"

	"invclose/internal/config"
	"invclose/internal/core/clock"
	"invclose/internal/infrastructure/backup"
	"invclose/internal/infrastructure/storage/postgres"
	"invclose/internal/infrastructure/storage/postgres/inventory_repo"
	"invclose/internal/infrastructure/storage/postgres/masterdata_repo"
	"invclose/internal/infrastructure/storage/postgres/process_repo"
	"invclose/internal/infrastructure/storage/postgres/voucher_repo"
)

// PostgresStores builds the stores over one pool. Master backups are written
// under cfg.Backup.Dir.
func PostgresStores(cfg config.Config, pool *postgres.Pool, clk clock.Clock) (Stores, error) {
	txm := postgres.NewTxManager(pool)

	audit, err := postgres.NewAuditTrail(txm, clk)
	if err != nil {
		return Stores{}, err
	}
	masters := inventory_repo.NewMasterRepo(txm)

	return Stores{
		TxManager:  txm,
		Datasets:   process_repo.NewDatasetRepo(txm),
		Snapshots:  inventory_repo.NewSnapshotRepo(txm),
		Masters:    masters,
		Vouchers:   voucher_repo.NewSet(txm),
		History:    process_repo.NewHistoryRepo(txm),
		Closes:     process_repo.NewCloseRepo(txm),
		MasterData: masterdata_repo.NewSource(txm),
		Audit:      audit,
		Backup:     backup.NewFileCreator(cfg.Backup.Dir, masters, clk),
	}, nil
}

// OpenPostgres connects to the configured database and wires the engine.
// The caller closes the returned pool.
func OpenPostgres(ctx context.Context, cfg config.Config, applicationName string, clk clock.Clock) (*Services, *postgres.Pool, error) {
	pool, err := postgres.NewPool(ctx, postgres.PoolConfigFrom(cfg.Database, applicationName))
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	stores, err := PostgresStores(cfg, pool, clk)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	services, err := NewServices(cfg, stores, clk)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return services, pool, nil
}
