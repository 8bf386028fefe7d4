package cmd

import (
	"context"
	"fmt"

	"example.com/backstage/services/fleet/api"
	"example.com/backstage/services/fleet/config"
	"example.com/backstage/services/fleet/handlers"
	"example.com/backstage/services/fleet/internal/cache"
	"example.com/backstage/services/fleet/internal/metrics"
	"example.com/backstage/services/fleet/internal/tracing"
	"example.com/backstage/services/fleet/repository"
	"example.com/backstage/services/fleet/repository/memory"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// runtime holds the collaborators shared by the server and the worker
type runtime struct {
	store    repository.Store
	db       *gorm.DB
	cache    *cache.RedisCache
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	tracer   *tracing.Tracer
	handlers api.Handlers
}

func newRuntime(cfg config.Config) (*runtime, error) {
	rt := &runtime{}

	store, db, err := openStore(cfg.DB)
	if err != nil {
		return nil, err
	}
	rt.store, rt.db = store, db

	rt.cache, err = cache.NewRedisCache(cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Redis cache, continuing without caching")
		rt.cache, _ = cache.NewRedisCache(config.RedisConfig{})
	}

	rt.tracer, err = tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		rt.tracer = nil
	}

	rt.registry = prometheus.NewRegistry()
	rt.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rt.metrics = metrics.New(rt.registry)

	opts := handlers.Options{
		Timeout: cfg.Server.OperationTimeout,
		Metrics: rt.metrics,
	}
	if rt.cache.Enabled() {
		opts.Cache = rt.cache
	}

	rt.handlers = api.Handlers{
		Deliveries: handlers.NewDeliveryHandler(store, opts),
		Containers: handlers.NewContainerHandler(store, opts),
		Customers:  handlers.NewCustomerHandler(store, opts),
		Locations:  handlers.NewLocationHandler(store, opts),
		Vehicles:   handlers.NewVehicleHandler(store, opts),
		Drivers:    handlers.NewDriverHandler(store, opts),
		Incidents:  handlers.NewIncidentHandler(store, opts),
	}

	return rt, nil
}

// openStore returns the configured store. The memory driver keeps everything
// in process and has no *gorm.DB.
func openStore(cfg config.DatabaseConfig) (repository.Store, *gorm.DB, error) {
	switch cfg.Driver {
	case "memory":
		log.Warn().Msg("Using in-memory store, data is lost on exit")
		return memory.NewStore(), nil, nil
	case "", "postgres":
		db, err := repository.Connect(cfg)
		if err != nil {
			return nil, nil, err
		}
		if cfg.EnableMigrations {
			if err := repository.AutoMigrate(db); err != nil {
				return nil, nil, err
			}
		}
		return repository.NewGormStore(db), db, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func (rt *runtime) healthChecks() map[string]api.HealthCheck {
	checks := map[string]api.HealthCheck{}
	if rt.db != nil {
		checks["database"] = func(ctx context.Context) error {
			sqlDB, err := rt.db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}
	}
	if rt.cache.Enabled() {
		checks["redis"] = rt.cache.Ping
	}
	return checks
}

func (rt *runtime) close() {
	rt.tracer.Close()
	if err := rt.cache.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close Redis cache")
	}
	if rt.db != nil {
		if err := repository.Close(rt.db); err != nil {
			log.Error().Err(err).Msg("Failed to close database")
		}
	}
}
