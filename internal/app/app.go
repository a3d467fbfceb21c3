// Package app is the shared composition root of the Accolade binaries.
//
// Each binary loads its configuration, calls Bootstrap to wire the
// infrastructure (Postgres, Redis, caches) and the engine on top of it,
// and then adds its own server or worker loop.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/rafaeljc/accolade/internal/badge"
	"github.com/rafaeljc/accolade/internal/cache"
	"github.com/rafaeljc/accolade/internal/catalog"
	"github.com/rafaeljc/accolade/internal/condition"
	"github.com/rafaeljc/accolade/internal/config"
	"github.com/rafaeljc/accolade/internal/database"
	"github.com/rafaeljc/accolade/internal/engine"
	"github.com/rafaeljc/accolade/internal/metrics"
	"github.com/rafaeljc/accolade/internal/observability"
	"github.com/rafaeljc/accolade/internal/queue"
	"github.com/rafaeljc/accolade/internal/store"
	"github.com/rafaeljc/accolade/internal/trigger"
)

// collectorInterval is how often pool, cache and queue gauges are sampled.
const collectorInterval = 10 * time.Second

// Options selects the optional parts a binary needs.
type Options struct {
	// Queue forces the Redis queue to be wired even in sync dispatch mode.
	Queue bool
}

// CatalogLister is a catalog that can also enumerate every badge.
type CatalogLister interface {
	catalog.Catalog
	List(ctx context.Context) ([]*badge.Definition, error)
}

// Runtime holds every wired component of one process.
type Runtime struct {
	Config *config.Config
	Logger *slog.Logger

	Pool  *pgxpool.Pool
	Redis *redis.Client
	Queue *queue.RedisQueue

	Catalog  catalog.Catalog
	Badges   CatalogLister
	Awards   store.AwardStore
	Snapshot metrics.Provider
	Engine   *engine.Engine

	checkers   []observability.Checker
	background []func(ctx context.Context)
	closers    []func()
}

// Bootstrap connects to the databases and wires the engine. On error every
// resource opened so far is released.
func Bootstrap(ctx context.Context, cfg *config.Config, log *slog.Logger, opts Options) (_ *Runtime, err error) {
	if cfg == nil {
		panic("app: config cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	r := &Runtime{Config: cfg, Logger: log}
	defer func() {
		if err != nil {
			r.Close()
		}
	}()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, cfg.Database.ConnectionString()); err != nil {
			return nil, err
		}
	}

	pool, err := database.NewPostgresPool(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	r.Pool = pool
	r.closers = append(r.closers, pool.Close)
	r.checkers = append(r.checkers, database.NewHealthChecker(pool))
	r.background = append(r.background, func(ctx context.Context) {
		database.RunPoolMonitor(ctx, pool, collectorInterval)
	})

	if cfg.Engine.DispatchMode == config.DispatchAsync || opts.Queue {
		if err := r.wireQueue(ctx); err != nil {
			return nil, err
		}
	}

	if err := r.wireCatalog(ctx); err != nil {
		return nil, err
	}
	if err := r.wireSnapshots(); err != nil {
		return nil, err
	}

	r.Awards = store.NewPostgresStore(pool)
	r.Engine = engine.New(log, engine.Config{OperationTimeout: cfg.Engine.OperationTimeout}, r.Catalog, r.Awards, r.Snapshot)

	return r, nil
}

func (rt *Runtime) wireQueue(ctx context.Context) error {
	client, err := cache.NewRedisClient(ctx, &rt.Config.Redis)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	rt.Redis = client
	rt.closers = append(rt.closers, func() { _ = client.Close() })

	w := rt.Config.Worker
	q := queue.NewRedisQueue(client, w.Queue, w.ProcessingQueue())
	rt.Queue = q
	rt.checkers = append(rt.checkers, cache.NewHealthChecker(client, w.Queue, w.ProcessingQueue()))
	rt.background = append(rt.background, func(ctx context.Context) {
		q.RunDepthMonitor(ctx, collectorInterval)
	})
	return nil
}

func (rt *Runtime) wireCatalog(ctx context.Context) error {
	var base CatalogLister
	switch rt.Config.Catalog.Source {
	case config.CatalogSourceFile:
		defs, err := catalog.LoadFile(rt.Config.Catalog.SeedFile)
		if err != nil {
			return fmt.Errorf("failed to load badge catalog: %w", err)
		}
		base = catalog.NewStatic(rt.Logger, defs...)
	default:
		pc := catalog.NewPostgresCatalog(rt.Logger, rt.Pool)
		if seed := rt.Config.Catalog.SeedFile; seed != "" {
			defs, err := catalog.LoadFile(seed)
			if err != nil {
				return fmt.Errorf("failed to load badge seed file: %w", err)
			}
			if err := pc.Upsert(ctx, defs); err != nil {
				return fmt.Errorf("failed to seed badge catalog: %w", err)
			}
			rt.Logger.Info("badge catalog seeded",
				slog.String("file", seed),
				slog.Int("badges", len(defs)),
			)
		}
		base = pc
	}
	rt.Badges = base
	rt.Catalog = base

	ttl := rt.Config.Engine.CatalogCacheTTL
	if ttl <= 0 {
		return nil
	}
	capacity := rt.Config.Engine.CatalogCacheCapacity
	active, err := cache.NewMemoryCache[[]*badge.Definition]("catalog_active", capacity, ttl)
	if err != nil {
		return fmt.Errorf("failed to create catalog cache: %w", err)
	}
	rt.track(active)
	byID, err := cache.NewMemoryCache[*badge.Definition]("catalog_badge", capacity, ttl)
	if err != nil {
		return fmt.Errorf("failed to create catalog cache: %w", err)
	}
	rt.track(byID)

	rt.Catalog = catalog.NewCached(base, active, byID)
	return nil
}

func (rt *Runtime) wireSnapshots() error {
	var provider metrics.Provider = metrics.NewPostgresProvider(rt.Pool, rt.Config.Database.MetricsView)

	if ttl := rt.Config.Engine.SnapshotCacheTTL; ttl > 0 {
		c, err := cache.NewMemoryCache[*condition.UserContextData]("snapshot", rt.Config.Engine.SnapshotCacheCapacity, ttl)
		if err != nil {
			return fmt.Errorf("failed to create snapshot cache: %w", err)
		}
		rt.track(c)
		provider = metrics.NewCached(provider, c)
	}
	rt.Snapshot = provider
	return nil
}

type collectable interface {
	RunMetricsCollector(ctx context.Context, interval time.Duration)
	Close()
}

func (rt *Runtime) track(c collectable) {
	rt.closers = append(rt.closers, c.Close)
	rt.background = append(rt.background, func(ctx context.Context) {
		c.RunMetricsCollector(ctx, collectorInterval)
	})
}

// Dispatcher returns the route events take from the API surfaces: straight
// into the engine in sync mode, onto the Redis queue in async mode.
func (rt *Runtime) Dispatcher() trigger.Dispatcher {
	if rt.Config.Engine.DispatchMode == config.DispatchAsync && rt.Queue != nil {
		return rt.Queue
	}
	return trigger.Direct(rt.Engine)
}

// Checkers returns the readiness checks of the wired dependencies.
func (rt *Runtime) Checkers() []observability.Checker {
	return rt.checkers
}

// StartBackground launches the metric collectors. They stop when ctx is done.
func (rt *Runtime) StartBackground(ctx context.Context) {
	for _, run := range rt.background {
		go run(ctx)
	}
}

// Close releases resources in reverse order of acquisition.
func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}
