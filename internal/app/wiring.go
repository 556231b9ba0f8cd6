package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/odyssey-erp/stocksync/internal/auditlog"
	"github.com/odyssey-erp/stocksync/internal/inventory"
	"github.com/odyssey-erp/stocksync/internal/observability"
	"github.com/odyssey-erp/stocksync/internal/platform/cache"
	"github.com/odyssey-erp/stocksync/internal/platform/db"
	"github.com/odyssey-erp/stocksync/internal/remote"
	"github.com/odyssey-erp/stocksync/internal/store"
	"github.com/odyssey-erp/stocksync/internal/syncer"
)

// Runtime holds the wired sync service and the connections behind it.
type Runtime struct {
	Service *syncer.Service
	Gateway *remote.Gateway
	Store   store.Repository
	Redis   *redis.Client
	Pool    *pgxpool.Pool

	closers []func()
}

// Close releases connections in reverse order of acquisition.
func (r *Runtime) Close() {
	if r == nil {
		return
	}
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
	r.closers = nil
}

// Build connects the configured store and wires the sync service.
func Build(ctx context.Context, cfg *Config, logger *slog.Logger, metrics *observability.Metrics) (*Runtime, error) {
	if cfg == nil {
		return nil, errors.New("app: config required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	rt := &Runtime{}

	repo, err := rt.openStore(ctx, cfg, logger)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Store = repo

	gateway, err := newGateway(cfg, logger, metrics)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Gateway = gateway

	redactor, err := inventory.NewRedactor([]byte(cfg.LedgerRedactionKey))
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("app: ledger redactor: %w", err)
	}

	var locker syncer.Locker
	switch {
	case rt.Redis != nil:
		locker = syncer.NewRedisLocker(rt.Redis, cfg.SyncLockTTL, logger)
	case rt.Pool != nil:
		locker = syncer.NewPostgresLocker(rt.Pool, logger)
	default:
		locker = syncer.NewLocalLocker()
	}

	rt.Service = syncer.NewService(repo, remote.NewClient(gateway, cfg.RemotePageSize), syncer.Options{
		Logger:      logger.With(slog.String("component", "syncer")),
		Metrics:     metrics.Sync(),
		Locker:      locker,
		Redactor:    redactor,
		Audit:       auditlog.New(repo),
		SettleDelay: cfg.SyncSettleDelay,
	})
	return rt, nil
}

func (r *Runtime) openStore(ctx context.Context, cfg *Config, logger *slog.Logger) (store.Repository, error) {
	switch cfg.StoreDriver {
	case StoreMemory:
		return store.NewMemoryRepository(), nil
	case StoreRedis:
		client, err := cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, err
		}
		r.attachRedis(client, logger)
		return store.NewRedisRepository(client), nil
	case StorePostgres:
		pool, err := db.New(ctx, cfg.PGDSN)
		if err != nil {
			return nil, err
		}
		r.Pool = pool
		r.closers = append(r.closers, pool.Close)
		repo := store.NewPostgresRepository(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("app: ensure schema: %w", err)
		}
		// Redis is optional here; without it the sync lock is an advisory lock.
		client, err := cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Warn("redis unavailable, using postgres advisory lock", slog.Any("error", err))
			return repo, nil
		}
		r.attachRedis(client, logger)
		return repo, nil
	default:
		return nil, fmt.Errorf("app: unsupported store driver %q", cfg.StoreDriver)
	}
}

func (r *Runtime) attachRedis(client *redis.Client, logger *slog.Logger) {
	r.Redis = client
	r.closers = append(r.closers, func() {
		if err := client.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	})
}

func newGateway(cfg *Config, logger *slog.Logger, metrics *observability.Metrics) (*remote.Gateway, error) {
	paths := remote.BuildPaths(cfg.RemoteRelayURLs, remote.HTTPConfig{
		BaseURL: cfg.RemoteBaseURL,
		Token:   cfg.RemoteAPIToken,
		Client:  &http.Client{Timeout: cfg.RemoteTimeout},
	})
	opts := []remote.Option{
		remote.WithRetryPolicy(remote.ExponentialBackoff{
			MaxAttempts: cfg.RemoteMaxAttempts,
			Base:        cfg.RemoteBackoffBase,
		}),
		remote.WithLogger(logger.With(slog.String("component", "gateway"))),
	}
	if cfg.RemoteRatePerSec > 0 {
		opts = append(opts, remote.WithLimiter(rate.NewLimiter(rate.Limit(cfg.RemoteRatePerSec), 1)))
	}
	if observer := metrics.Sync(); observer != nil {
		opts = append(opts, remote.WithObserver(observer))
	}
	return remote.New(paths, opts...)
}
