package storage

import (
	"context"
	"fmt"

	"github.com/sheikh-saqib/club-membership-ledger/internal/config"
	interfaces "github.com/sheikh-saqib/club-membership-ledger/internal/interfaces"
	"github.com/sheikh-saqib/club-membership-ledger/internal/pkg/logger"
	"github.com/sheikh-saqib/club-membership-ledger/internal/storage/gormstore"
	"github.com/sheikh-saqib/club-membership-ledger/internal/storage/memory"
	"github.com/sheikh-saqib/club-membership-ledger/internal/storage/postgres"
)

// NewOpener returns the session opener for the configured driver. Every
// memory session starts empty.
func NewOpener(cfg config.StoreConfig, log *logger.Logger) (interfaces.StoreOpener, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return func(ctx context.Context) (interfaces.MembershipStore, error) {
			return memory.NewMemoryMembershipStore(), nil
		}, nil
	case config.DriverPostgres:
		return func(ctx context.Context) (interfaces.MembershipStore, error) {
			return postgres.Open(ctx, cfg.DatabaseURL)
		}, nil
	case config.DriverSQLite:
		return func(ctx context.Context) (interfaces.MembershipStore, error) {
			return gormstore.OpenSQLite(cfg.SQLitePath, log)
		}, nil
	case config.DriverGormPostgres:
		return func(ctx context.Context) (interfaces.MembershipStore, error) {
			return gormstore.OpenPostgres(cfg.DatabaseURL, log)
		}, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
