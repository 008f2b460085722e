package core

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	badgerstore "boardcore/internal/infra/persistence/badger"
	"boardcore/internal/infra/persistence/memory"
	"boardcore/internal/infra/persistence/postgres"
	"boardcore/internal/infra/persistence/sqlite"
	"boardcore/pkg/domain"
)

// StorageDriver identifies a concrete snapshot storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
	StorageBadger   StorageDriver = "badger"   // embedded badger directory
)

// OpenSnapshotStore selects a backend using environment variables.
// Defaults to sqlite when unset.
//
//	BOARDCORE_STORAGE_DRIVER: memory|sqlite|postgres|badger (default sqlite)
//	BOARDCORE_SQLITE_PATH: path to sqlite file (default ./boardcore.db)
//	BOARDCORE_POSTGRES_DSN: postgres DSN when driver=postgres
//	BOARDCORE_BADGER_DIR: badger directory; empty keeps badger in memory
func OpenSnapshotStore(ctx context.Context, logger *slog.Logger) (domain.SnapshotStore, error) {
	driver := os.Getenv("BOARDCORE_STORAGE_DRIVER")
	if driver == "" {
		driver = string(StorageSQLite)
	}
	switch StorageDriver(driver) {
	case StorageMemory:
		return memory.NewStore(), nil
	case StorageSQLite:
		return sqlite.NewStore(os.Getenv("BOARDCORE_SQLITE_PATH"))
	case StoragePostgres:
		return postgres.NewStore(ctx, os.Getenv("BOARDCORE_POSTGRES_DSN"))
	case StorageBadger:
		return badgerstore.NewStore(os.Getenv("BOARDCORE_BADGER_DIR"), logger)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
