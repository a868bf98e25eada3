// Package app wires clover's services from configuration. The serve and scan
// commands share it so both see the same store, cache and manifest.
package app

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Ramsey-B/clover/config"
	"github.com/Ramsey-B/clover/internal/pgstore"
	"github.com/Ramsey-B/clover/pkg/cache"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/detection"
	"github.com/Ramsey-B/clover/pkg/events"
	"github.com/Ramsey-B/clover/pkg/graph"
	"github.com/Ramsey-B/clover/pkg/inject"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/logging"
	"github.com/Ramsey-B/clover/pkg/manifest"
	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/merging"
	"github.com/Ramsey-B/clover/pkg/ratelimit"
	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/routes"
	"github.com/Ramsey-B/clover/pkg/routes/health"
	"github.com/Ramsey-B/clover/pkg/startup"
	"github.com/Ramsey-B/clover/pkg/store"
	"github.com/Ramsey-B/clover/pkg/store/memstore"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const (
	depTracing  = "tracing"
	depDatabase = "database"
	depRedis    = "redis"
	depKafka    = "kafka"
	depGraph    = "graph"
)

type App struct {
	Config *config.Config
	Logger ectologger.Logger
	Health *health.Checker

	Store        store.Store
	Registry     *manifest.Registry
	Detector     *detection.Detector
	Orchestrator *merging.Orchestrator
	ScanLimiter  *ratelimit.TenantLimiter

	zap         *zap.Logger
	startup     *startup.Startup
	containerID string
	db          database.DB
	redis       *redis.Client
	producer    *kafka.Producer
	graph       *graph.Client
}

// New builds the logger and registers the external dependencies the config enables.
// Nothing is connected until Start.
func New(cfg *config.Config) (*App, error) {
	z, err := logging.NewZap(cfg.LogLevel, cfg.PrettyLogs)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	logger := logging.New(z)

	a := &App{
		Config:  cfg,
		Logger:  logger,
		Health:  health.NewChecker(cfg.Version),
		zap:     z,
		startup: startup.NewStartup(logger, cfg.StartupMaxAttempts),
	}
	a.registerDependencies()
	return a, nil
}

// NewWithStore wires the services over an existing store, skipping every external dependency.
func NewWithStore(cfg *config.Config, s store.Store, logger ectologger.Logger) (*App, error) {
	a := &App{
		Config:  cfg,
		Logger:  logger,
		Health:  health.NewChecker(cfg.Version),
		Store:   s,
		startup: startup.NewStartup(logger, 1),
	}
	if err := a.build(); err != nil {
		return nil, err
	}
	a.Health.SetReady(true)
	return a, nil
}

func (a *App) registerDependencies() {
	cfg := a.Config

	var shutdownTracing func(context.Context) error
	a.startup.AddDependency(startup.Dependency{
		Name: depTracing,
		StartFn: func(ctx context.Context) error {
			shutdown, err := tracing.Init(ctx, cfg.Tracing())
			if err != nil {
				return err
			}
			shutdownTracing = shutdown
			return nil
		},
		StopFn: func(ctx context.Context) error {
			if shutdownTracing == nil {
				return nil
			}
			return shutdownTracing(ctx)
		},
	})

	if cfg.StoreDriver == config.StoreDriverPostgres {
		a.startup.AddDependency(startup.Dependency{
			Name:    depDatabase,
			Needs:   []string{depTracing},
			StartFn: a.startDatabase,
			StopFn: func(context.Context) error {
				if a.db == nil {
					return nil
				}
				return a.db.Close()
			},
		})
		a.Health.AddCheck(depDatabase, func(ctx context.Context) error {
			if a.db == nil {
				return fmt.Errorf("database not connected")
			}
			return a.db.PingContext(ctx)
		})
	}

	if cfg.RedisEnabled {
		a.startup.AddDependency(startup.Dependency{
			Name: depRedis,
			StartFn: func(ctx context.Context) error {
				client, err := redis.NewClient(ctx, cfg.Redis(), a.Logger)
				if err != nil {
					return err
				}
				a.redis = client
				return nil
			},
			StopFn: func(context.Context) error {
				if a.redis == nil {
					return nil
				}
				return a.redis.Close()
			},
		})
		a.Health.AddCheck(depRedis, func(ctx context.Context) error {
			if a.redis == nil {
				return fmt.Errorf("redis not connected")
			}
			return a.redis.Ping(ctx)
		})
	}

	if cfg.KafkaEnabled {
		a.startup.AddDependency(startup.Dependency{
			Name: depKafka,
			StartFn: func(context.Context) error {
				a.producer = kafka.NewProducer(cfg.Kafka(), a.Logger)
				return nil
			},
			StopFn: func(context.Context) error {
				if a.producer == nil {
					return nil
				}
				return a.producer.Close()
			},
		})
	}

	if cfg.GraphEnabled {
		a.startup.AddDependency(startup.Dependency{
			Name: depGraph,
			StartFn: func(ctx context.Context) error {
				client, err := graph.NewClient(cfg.Graph(), a.Logger)
				if err != nil {
					return err
				}
				if err := client.VerifyConnectivity(ctx); err != nil {
					_ = client.Close(ctx)
					return err
				}
				a.graph = client
				return nil
			},
			StopFn: func(ctx context.Context) error {
				if a.graph == nil {
					return nil
				}
				return a.graph.Close(ctx)
			},
		})
		a.Health.AddCheck(depGraph, func(ctx context.Context) error {
			if a.graph == nil {
				return fmt.Errorf("graph not connected")
			}
			return a.graph.VerifyConnectivity(ctx)
		})
	}
}

func (a *App) startDatabase(ctx context.Context) error {
	if a.db != nil {
		return nil
	}

	db, err := database.Connect(ctx, a.Config.Database(), a.Logger)
	if err != nil {
		return err
	}

	if a.Config.DatabaseMigrateOnStart {
		if err := a.Migrate(db); err != nil {
			_ = db.Close()
			return err
		}
	}

	a.db = db
	return nil
}

// Migrate applies the configured migration folder to db.
func (a *App) Migrate(db database.DB) error {
	ms := database.NewMigrationService(a.Logger, a.Config.Migration())
	return ms.MigratePostgres(db.Unsafe().DB, a.Config.DatabaseName)
}

// ConnectDatabase opens the configured postgres pool without running startup.
func (a *App) ConnectDatabase(ctx context.Context) (database.DB, error) {
	return database.Connect(ctx, a.Config.Database(), a.Logger)
}

// Start brings up the external dependencies and then the services on top of them.
func (a *App) Start(ctx context.Context) error {
	if err := a.startup.Start(ctx); err != nil {
		return err
	}

	switch a.Config.StoreDriver {
	case config.StoreDriverPostgres:
		a.Store = pgstore.New(a.db, a.Logger)
	default:
		a.Logger.WithContext(ctx).Warn("Using the in-memory store; data will not survive a restart")
		a.Store = memstore.New()
	}

	if err := a.build(); err != nil {
		return err
	}

	a.Health.SetReady(true)
	a.Logger.WithContext(ctx).WithFields(map[string]any{
		"store_driver": a.Config.StoreDriver,
		"redis":        a.redis != nil,
		"kafka":        a.producer != nil,
		"graph":        a.graph != nil,
	}).Info("clover services started")
	return nil
}

// build constructs the domain services over a.Store.
func (a *App) build() error {
	cfg := a.Config

	registry := manifest.Default()
	if cfg.ManifestExtensionPath != "" {
		if err := registry.LoadFile(cfg.ManifestExtensionPath); err != nil {
			return fmt.Errorf("failed to load manifest extension: %w", err)
		}
	}
	a.Registry = registry

	var scanCache cache.ScanCache = cache.NewMemory(cfg.ScanCacheTTL)
	if a.redis != nil {
		scanCache = cache.NewRedis(a.redis, cfg.ScanCacheTTL)
	}

	scorer := matching.NewScorer(matching.Algorithm(cfg.MatchAlgorithm))
	a.Detector = detection.NewDetector(a.Store, scorer, scanCache, cfg.Detection(), a.Logger)

	opts := []merging.Option{merging.WithScanInvalidator(a.Detector)}
	if a.producer != nil {
		opts = append(opts, merging.WithEmitter(events.NewEmitter(a.producer, a.Logger)))
	}
	if a.graph != nil {
		opts = append(opts, merging.WithGraph(graph.NewNodeService(a.graph, a.Logger)))
	}
	a.Orchestrator = merging.NewOrchestrator(a.Store, registry, a.Logger, opts...)
	a.ScanLimiter = ratelimit.NewTenantLimiter(cfg.ScanRatePerMinute, cfg.ScanRateBurst)

	containerID, err := inject.NewContainer(inject.Services{
		Logger:       a.Logger,
		Detector:     a.Detector,
		Orchestrator: a.Orchestrator,
	})
	if err != nil {
		return err
	}
	a.containerID = containerID
	return nil
}

// Router returns the HTTP API over the started services.
func (a *App) Router() *echo.Echo {
	serviceName := ""
	if a.Config.TracingExporter != "" && a.Config.TracingExporter != "none" {
		serviceName = a.Config.AppName
	}

	return routes.NewRouter(routes.Dependencies{
		ServiceName:      serviceName,
		ContainerID:      a.containerID,
		ScanLimiter:      a.ScanLimiter,
		Health:           a.Health,
		DefaultThreshold: a.Config.DetectionDefaultThreshold,
		Logger:           a.Logger,
	})
}

// Stop releases dependencies in reverse start order and flushes the logger.
func (a *App) Stop(ctx context.Context) error {
	a.Health.SetReady(false)
	err := a.startup.Stop(ctx)
	if a.zap != nil {
		_ = a.zap.Sync()
	}
	return err
}
