// cmd/server/serve.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"plc-monitor/internal/config"
	"plc-monitor/internal/database"
	"plc-monitor/internal/handler"
	"plc-monitor/internal/repository"
	"plc-monitor/internal/routes"
	"plc-monitor/internal/service"
	"plc-monitor/internal/utils"
	"plc-monitor/pkg/mcclient"
)

// memoryEventCapacity bounds stored events when the database is disabled
const memoryEventCapacity = 10000

// Application represents the main application
type Application struct {
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
	database *database.DB
	registry *prometheus.Registry

	client         *mcclient.Client
	eventRepo      repository.TriggerEventRepository
	monitorService *service.MonitorService
	eventBus       *handler.EventBus
	wsHandler      *handler.WebSocketHandler
}

func serveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the monitor with its HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApplication(configPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return app.Run(ctx)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file (default: ./config.yaml, ./configs/config.yaml)")

	return cmd
}

// NewApplication creates a new application instance
func NewApplication(configPath string) (*Application, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	serviceLogger := utils.NewServiceLogger(logger, "plc-monitor")
	serviceLogger.LogServiceStart(cfg.App.Version, cfg)

	app := &Application{
		config: cfg,
		logger: logger,
	}

	if err := app.initializeDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	app.initializeRepositories()
	app.initializeMetrics()
	app.initializeServices()
	app.initializeServer()

	return app, nil
}

// initializeDatabase sets up database connection and runs migrations
func (app *Application) initializeDatabase() error {
	if !app.config.Database.Enabled {
		app.logger.Info("Database disabled, trigger events are kept in memory")
		return nil
	}

	db, err := database.NewConnection(&app.config.Database, app.config.GetDatabaseDSN(), app.logger)
	if err != nil {
		return fmt.Errorf("failed to create database connection: %w", err)
	}
	app.database = db

	if err := database.NewMigrator(db, app.logger).Up(); err != nil {
		db.Close()
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	app.logger.Info("Database initialized successfully")
	return nil
}

// initializeRepositories creates repository instances
func (app *Application) initializeRepositories() {
	if app.database != nil {
		app.eventRepo = repository.NewTriggerEventRepository(app.database, app.logger)
	} else {
		app.eventRepo = repository.NewMemoryTriggerEventRepository(memoryEventCapacity)
	}
}

// initializeMetrics creates the registry served on /metrics
func (app *Application) initializeMetrics() {
	if !app.config.Metrics.Enabled {
		return
	}
	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// initializeServices creates the client, monitor service and event fan-out
func (app *Application) initializeServices() {
	plc := app.config.PLC
	opts := []mcclient.Option{
		mcclient.WithPollInterval(plc.PollInterval),
		mcclient.WithRetryDelay(plc.RetryDelay),
		mcclient.WithResponseTimeoutTicks(plc.ResponseTimeoutTicks),
		mcclient.WithDialTimeout(plc.ConnectTimeout),
		mcclient.WithKeepAlive(plc.KeepAlive),
		mcclient.WithLogger(app.logger),
	}
	if app.registry != nil {
		opts = append(opts, mcclient.WithMetrics(app.registry, app.config.Metrics.Namespace))
	}
	app.client = mcclient.New(plc.Host, plc.Port, opts...)
	app.logger.Info("PLC client configured",
		zap.String("plc", app.config.GetPLCAddr()),
		zap.Duration("poll_interval", plc.PollInterval),
		zap.Duration("retry_delay", plc.RetryDelay),
	)

	app.monitorService = service.NewMonitorService(app.client, app.eventRepo, app.config, app.logger)

	app.eventBus = handler.NewEventBus(app.logger)
	app.wsHandler = handler.NewWebSocketHandler(
		app.monitorService,
		app.eventBus,
		app.config.Security.AllowedOrigins,
		app.logger,
	)
	app.monitorService.Subscribe(app.eventBus.Publish)

	app.logger.Info("Services initialized successfully")
}

// initializeServer sets up HTTP server and routes
func (app *Application) initializeServer() {
	if !app.config.Server.Enabled {
		return
	}

	routerManager := routes.NewRouter(
		app.config,
		app.logger,
		app.database,
		app.monitorService,
		app.wsHandler,
		app.registry,
	)

	app.server = &http.Server{
		Addr:         app.config.GetServerAddr(),
		Handler:      routerManager.SetupRouter(),
		ReadTimeout:  app.config.Server.ReadTimeout,
		WriteTimeout: app.config.Server.WriteTimeout,
		IdleTimeout:  app.config.Server.IdleTimeout,
	}

	app.logger.Info("HTTP server initialized",
		zap.String("address", app.config.GetServerAddr()),
	)
}

// Run starts every component and blocks until ctx is done or the HTTP
// server fails
func (app *Application) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go app.eventBus.Start(ctx)
	go app.wsHandler.Run(ctx)

	if err := app.monitorService.Start(); err != nil {
		app.shutdown()
		return err
	}

	app.startBackgroundServices(ctx)

	serverErr := make(chan error, 1)
	if app.server != nil {
		go func() {
			app.logger.Info("Starting HTTP server", zap.String("address", app.server.Addr))
			if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		app.logger.Info("Received shutdown signal")
	case err := <-serverErr:
		runErr = fmt.Errorf("HTTP server: %w", err)
	}

	cancel()
	app.shutdown()
	return runErr
}

// startBackgroundServices starts the configured sequence and event cleanup
func (app *Application) startBackgroundServices(ctx context.Context) {
	go func() {
		if err := app.monitorService.RunConfiguredSequence(ctx); err != nil {
			app.logger.Error("Target sequence failed", zap.Error(err))
		}
	}()

	go app.monitorService.RunCleanup(ctx, time.Hour)

	app.logger.Info("Background services started")
}

// shutdown performs graceful shutdown
func (app *Application) shutdown() {
	serviceLogger := utils.NewServiceLogger(app.logger, "plc-monitor")
	serviceLogger.LogServiceStop("shutdown signal received")

	if app.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := app.server.Shutdown(ctx); err != nil {
			app.logger.Error("HTTP server shutdown error", zap.Error(err))
		} else {
			app.logger.Info("HTTP server stopped")
		}
	}

	app.monitorService.Stop()

	if app.database != nil {
		if err := app.database.Close(); err != nil {
			app.logger.Error("Database close error", zap.Error(err))
		} else {
			app.logger.Info("Database connection closed")
		}
	}

	app.logger.Info("Application shutdown completed")
	utils.CloseLogger(app.logger)
}
