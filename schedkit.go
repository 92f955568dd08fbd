package schedkit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/schedkit/internal/db/migrations"
	"github.com/dmitrymomot/schedkit/pkg/availability"
	"github.com/dmitrymomot/schedkit/pkg/calendar"
	"github.com/dmitrymomot/schedkit/pkg/logger"
	"github.com/dmitrymomot/schedkit/pkg/metrics"
	"github.com/dmitrymomot/schedkit/pkg/mongo"
	"github.com/dmitrymomot/schedkit/pkg/pg"
	"github.com/dmitrymomot/schedkit/pkg/queue"
	"github.com/dmitrymomot/schedkit/pkg/redis"
	"github.com/dmitrymomot/schedkit/pkg/scheduling"
)

// Service bundles the three engines and the connections behind them.
type Service struct {
	Queue        *queue.Engine
	Availability *availability.Engine
	Scheduling   *scheduling.Engine

	logger  *slog.Logger
	checks  map[string]func(context.Context) error
	closers []func(context.Context) error
	closed  atomic.Bool
}

// stores are the persistence backends of one Service.
type stores struct {
	jobs        queue.Storage
	cache       availability.CacheStore
	suggestions scheduling.Storage
}

// NewInMemory builds a Service over in-memory stores.
func NewInMemory(cfg Config, opts ...Option) (*Service, error) {
	o := newOptions(cfg, opts)
	return build(cfg, o, stores{
		jobs:        queue.NewMemoryStorage(),
		cache:       availability.NewMemoryCacheStore(),
		suggestions: scheduling.NewMemoryStorage(),
	})
}

// Open connects PostgreSQL, Redis and MongoDB concurrently, applies the queue
// schema when enabled and builds the engines on top. Connections opened before
// a failure are closed again.
func Open(ctx context.Context, cfg Config, sc StoresConfig, opts ...Option) (*Service, error) {
	if err := validateStores(sc); err != nil {
		return nil, err
	}
	o := newOptions(cfg, opts)
	log := o.logger

	var (
		mu      sync.Mutex
		closers []func(context.Context) error
		checks  = make(map[string]func(context.Context) error, 3)
		st      stores
	)
	track := func(name string, check func(context.Context) error, closer func(context.Context) error) {
		mu.Lock()
		defer mu.Unlock()
		checks[name] = check
		closers = append(closers, closer)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		pool, err := pg.Connect(gctx, sc.Postgres)
		if err != nil {
			return err
		}
		track("postgres", pg.Healthcheck(pool), func(context.Context) error { pool.Close(); return nil })

		if sc.Postgres.AutoMigrate {
			if err := pg.Migrate(gctx, pool, migrations.FS, sc.Postgres, log); err != nil {
				return err
			}
		}
		st.jobs = queue.NewPostgresStorage(pool)
		return nil
	})
	g.Go(func() error {
		client, err := redis.Connect(gctx, sc.Redis)
		if err != nil {
			return err
		}
		track("redis", redis.Healthcheck(client), func(context.Context) error { return client.Close() })
		st.cache = availability.NewRedisCacheStore(client, sc.Redis.KeyPrefix)
		return nil
	})
	g.Go(func() error {
		client, err := mongo.Connect(gctx, sc.Mongo)
		if err != nil {
			return err
		}
		track("mongo", mongo.Healthcheck(client), client.Disconnect)

		storage := scheduling.NewMongoStorage(client.Database(sc.Mongo.Database))
		if err := storage.EnsureIndexes(gctx); err != nil {
			return err
		}
		st.suggestions = storage
		return nil
	})

	if err := g.Wait(); err != nil {
		closeAll(context.WithoutCancel(ctx), closers, log)
		return nil, errors.Join(ErrFailedToOpen, err)
	}

	svc, err := build(cfg, o, st)
	if err != nil {
		closeAll(context.WithoutCancel(ctx), closers, log)
		return nil, err
	}
	svc.checks = checks
	svc.closers = closers

	log.LogAttrs(ctx, slog.LevelInfo, "schedkit service opened",
		slog.Bool("auto_migrate", sc.Postgres.AutoMigrate),
		slog.String("mongo_database", sc.Mongo.Database),
	)
	return svc, nil
}

func validateStores(sc StoresConfig) error {
	var missing []string
	if strings.TrimSpace(sc.Postgres.ConnectionString) == "" {
		missing = append(missing, "PG_CONN_URL")
	}
	if strings.TrimSpace(sc.Redis.ConnectionURL) == "" {
		missing = append(missing, "REDIS_URL")
	}
	if strings.TrimSpace(sc.Mongo.ConnectionURL) == "" {
		missing = append(missing, "MONGODB_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidConfig, strings.Join(missing, ", "))
	}
	return nil
}

func newOptions(cfg Config, opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logger.New(logger.FromConfig(cfg.Logger)...)
	}
	if o.calendar == nil {
		o.calendar = calendar.NewMemoryStore()
	}
	if o.metrics == nil && cfg.MetricsLog {
		o.metrics = metrics.NewLogSink(o.logger)
	}
	return o
}

func build(cfg Config, o *options, st stores) (*Service, error) {
	jobs, err := queue.NewEngine(st.jobs,
		queue.WithLogger(o.logger),
		queue.WithMetrics(o.metrics),
		queue.WithConfig(cfg.Queue),
	)
	if err != nil {
		return nil, errors.Join(ErrFailedToOpen, err)
	}

	avail, err := availability.NewEngine(o.calendar, st.cache,
		availability.WithLogger(o.logger),
		availability.WithMetrics(o.metrics),
		availability.WithConfig(cfg.Availability),
	)
	if err != nil {
		return nil, errors.Join(ErrFailedToOpen, err)
	}

	sched, err := scheduling.NewEngine(st.suggestions, avail, o.calendar,
		scheduling.WithQueue(jobs),
		scheduling.WithLogger(o.logger),
		scheduling.WithMetrics(o.metrics),
		scheduling.WithConfig(cfg.Scheduling),
	)
	if err != nil {
		return nil, errors.Join(ErrFailedToOpen, err)
	}

	return &Service{
		Queue:        jobs,
		Availability: avail,
		Scheduling:   sched,
		logger:       o.logger,
	}, nil
}

// Healthcheck pings every connection concurrently. It reports all failures.
func (s *Service) Healthcheck(ctx context.Context) error {
	var (
		mu   sync.Mutex
		errs []error
		g    errgroup.Group
	)
	for _, name := range slices.Sorted(maps.Keys(s.checks)) {
		check := s.checks[name]
		g.Go(func() error {
			if err := check(ctx); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(errs) > 0 {
		return errors.Join(append([]error{ErrUnhealthy}, errs...)...)
	}
	return nil
}

// Close waits for in-flight suggestion processing and closes the connections.
func (s *Service) Close(ctx context.Context) error {
	if !s.closed.CompareAndSwap(false, true) {
		return ErrAlreadyShutdown
	}

	var errs []error
	if err := s.Scheduling.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := closeAll(ctx, s.closers, s.logger); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// closeAll runs closers in reverse order and returns their joined errors.
func closeAll(ctx context.Context, closers []func(context.Context) error, log *slog.Logger) error {
	var errs []error
	for _, c := range slices.Backward(closers) {
		if err := c(ctx); err != nil {
			log.LogAttrs(ctx, slog.LevelWarn, "failed to close connection", logger.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
