package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"go-mentorchat/internal/config"
	cacheAdapter "go-mentorchat/internal/infrastructure/cache/adapter"
	cport "go-mentorchat/internal/infrastructure/cache/port"
	"go-mentorchat/internal/infrastructure/database"
	"go-mentorchat/internal/pkg/chat/application/port"
	auditAdapter "go-mentorchat/internal/pkg/chat/persistence/audit/adapter"
	repoAdapter "go-mentorchat/internal/pkg/chat/persistence/repository/adapter"
	repository "go-mentorchat/internal/pkg/chat/persistence/repository/port"
)

const cachePrefix = "mentorchat"

// infra holds the storage side of a process: the conversation store, the audit sink and the
// optional Redis client.
type infra struct {
	repo    repository.ChatRepository
	audit   port.AuditLog
	pool    *pgxpool.Pool
	redis   *redis.Client
	closers []func()
}

// openStore picks the conversation store from database.driver. The embedded SQLite store
// migrates itself on open; Postgres expects the migrate command to have run.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*infra, error) {
	in := &infra{}
	zapAudit := auditAdapter.NewZapAuditLog(logger)

	switch cfg.Database.Driver {
	case config.DriverPostgres:
		pool, err := database.NewPool(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		in.pool = pool
		in.closers = append(in.closers, pool.Close)
		in.repo = repoAdapter.NewPgChatRepository(pool)
		in.audit = auditAdapter.MultiAuditLog{zapAudit, auditAdapter.NewPgAuditLog(pool)}

	case config.DriverSQLite:
		db, err := database.OpenSQLite(cfg.Database.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		if sqlDB, err := db.DB(); err == nil {
			in.closers = append(in.closers, func() { _ = sqlDB.Close() })
		}
		if err := repoAdapter.AutoMigrateGorm(db); err != nil {
			in.Close()
			return nil, fmt.Errorf("migrate sqlite: %w", err)
		}
		in.repo = repoAdapter.NewGormChatRepository(db)
		in.audit = zapAudit

	case config.DriverMemory:
		logger.Warn("using the in-memory store; conversations are lost on restart")
		in.repo = repoAdapter.NewMemoryChatRepository()
		in.audit = zapAudit

	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
	return in, nil
}

// connectRedis is a no-op when redis.url is empty; the caller then runs single-node.
func (in *infra) connectRedis(cfg *config.Config) error {
	if cfg.Redis.URL == "" {
		return nil
	}
	client, err := cacheAdapter.NewRedisClient(cfg.Redis.URL)
	if err != nil {
		return err
	}
	in.redis = client
	in.closers = append(in.closers, func() { _ = client.Close() })
	return nil
}

// cache returns nil without Redis, which makes unread counts read straight from the store.
func (in *infra) cache() cport.Cache {
	if in.redis == nil {
		return nil
	}
	return cacheAdapter.NewRedisAdapter(in.redis, cachePrefix)
}

// Close releases resources in reverse order of acquisition.
func (in *infra) Close() {
	for i := len(in.closers) - 1; i >= 0; i-- {
		in.closers[i]()
	}
	in.closers = nil
}
