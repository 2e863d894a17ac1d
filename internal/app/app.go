package app

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/coursemarket-backend/internal/data/db"
	"github.com/yungbote/coursemarket-backend/internal/http"
	"github.com/yungbote/coursemarket-backend/internal/observability"
	"github.com/yungbote/coursemarket-backend/internal/platform/envutil"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
	"github.com/yungbote/coursemarket-backend/internal/services"
)

type App struct {
	Log        *logger.Logger
	DB         *gorm.DB
	Cfg        Config
	Metrics    *observability.Metrics
	Clients    Clients
	Repos      Repos
	Aggregates Aggregates
	Services   Services
	Server     *http.Server

	pg            *db.PostgresService
	otelShutdown  func(context.Context) error
	cancelWorkers context.CancelFunc
}

func New(ctx context.Context) (*App, error) {
	log, err := logger.New(envutil.String("LOG_MODE", "development"))
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading configuration...")
	cfg, err := LoadConfig(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("load config: %w", err)
	}

	pg, err := db.NewPostgresService(log, cfg.DB)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := db.AutoMigrateAll(pg.DB()); err != nil {
		_ = pg.Close()
		log.Sync()
		return nil, fmt.Errorf("automigrate: %w", err)
	}
	if err := db.EnsureMarketplaceIndexes(pg.DB()); err != nil {
		_ = pg.Close()
		log.Sync()
		return nil, fmt.Errorf("ensure indexes: %w", err)
	}

	otelShutdown := observability.InitOTel(ctx, log, cfg.Otel)
	metrics := observability.Init(log)

	clients, err := wireClients(ctx, log, cfg)
	if err != nil {
		_ = pg.Close()
		log.Sync()
		return nil, err
	}

	a := Build(log, cfg, pg.DB(), clients, metrics, nil)
	if err := checkContracts(log, a.Aggregates); err != nil {
		clients.Close()
		_ = pg.Close()
		log.Sync()
		return nil, fmt.Errorf("aggregate contracts: %w", err)
	}
	a.pg = pg
	a.otelShutdown = otelShutdown
	return a, nil
}

// Build wires repos, aggregates, services and the HTTP server over an open
// database and already constructed clients.
func Build(log *logger.Logger, cfg Config, theDB *gorm.DB, clients Clients, metrics *observability.Metrics, clock services.Clock) *App {
	reposet := wireRepos(theDB, log)
	aggset := wireAggregates(theDB, log, cfg.Policy, metrics, reposet)
	serviceset := wireServices(log, cfg, clients, reposet, aggset, clock)
	handlerset := wireHandlers(log, serviceset)
	middleware := wireMiddleware(log, serviceset)
	server := wireServer(log, cfg, metrics, handlerset, middleware)

	return &App{
		Log:        log,
		DB:         theDB,
		Cfg:        cfg,
		Metrics:    metrics,
		Clients:    clients,
		Repos:      reposet,
		Aggregates: aggset,
		Services:   serviceset,
		Server:     server,
	}
}

// Start launches the background metric collectors.
func (a *App) Start() {
	if a == nil || a.cancelWorkers != nil || a.Metrics == nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancelWorkers = cancel
	a.Metrics.StartPostgresCollector(ctx, a.Log, a.DB)
	if a.Clients.Redis != nil {
		a.Metrics.StartRedisCollector(ctx, a.Log, a.Clients.Redis)
	}
}

func (a *App) Run() error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	a.Log.Info("HTTP server listening", "port", a.Cfg.Port)
	return a.Server.Run()
}

// Shutdown drains HTTP traffic, then releases clients and the database.
func (a *App) Shutdown(ctx context.Context) error {
	if a == nil {
		return nil
	}
	var firstErr error
	if a.Server != nil {
		if err := a.Server.Shutdown(ctx); err != nil {
			firstErr = fmt.Errorf("http shutdown: %w", err)
		}
	}
	if a.cancelWorkers != nil {
		a.cancelWorkers()
		a.cancelWorkers = nil
	}
	a.Clients.Close()
	if a.otelShutdown != nil {
		if err := a.otelShutdown(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("otel shutdown: %w", err)
		}
	}
	if a.pg != nil {
		if err := a.pg.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("db close: %w", err)
		}
	}
	a.Log.Sync()
	return firstErr
}
