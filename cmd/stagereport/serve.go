package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/verustcode/stagereport/consts"
	"github.com/verustcode/stagereport/internal/api/router"
	"github.com/verustcode/stagereport/internal/check"
	"github.com/verustcode/stagereport/internal/config"
	"github.com/verustcode/stagereport/internal/contentstore"
	"github.com/verustcode/stagereport/internal/database"
	"github.com/verustcode/stagereport/internal/notification"
	"github.com/verustcode/stagereport/internal/report"
	"github.com/verustcode/stagereport/internal/report/exporter"
	"github.com/verustcode/stagereport/internal/server"
	"github.com/verustcode/stagereport/internal/store"
	"github.com/verustcode/stagereport/pkg/errors"
	"github.com/verustcode/stagereport/pkg/idgen"
	"github.com/verustcode/stagereport/pkg/logger"
	"github.com/verustcode/stagereport/pkg/telemetry"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the StageReport server",
	Long: `Start the HTTP API and the background report workers.

On first run, use --check flag to interactively set up your environment:
  stagereport serve --check

After initial setup, simply run:
  stagereport serve`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("host", "", "server host (overrides config)")
	serveCmd.Flags().Int("port", 0, "server port (overrides config)")
	serveCmd.Flags().Bool("debug", false, "enable debug mode")
	serveCmd.Flags().Bool("check", false, "run interactive environment check before starting server")
}

// app holds every long-lived component of a running server
type app struct {
	cfg       *config.BootstrapConfig
	store     store.Store
	contents  contentstore.Store
	exporters *exporter.ExportManager
	hub       *notification.Hub
	redis     *redis.Client
	broker    *notification.RedisBroker
	engine    *report.Engine
	cleanup   *store.ReportLogCleanupService
	server    *server.Server
}

// runServe starts the StageReport server
func runServe(cmd *cobra.Command, args []string) error {
	path := resolveBootstrapPath()

	if filepath.Base(path) == "bootstrap.yaml" {
		checker := check.NewCheckerWithDir(filepath.Dir(path))
		if interactive, _ := cmd.Flags().GetBool("check"); interactive {
			if err := checker.Run(commandContext(cmd)); err != nil {
				return fmt.Errorf("environment check failed: %w", err)
			}
			fmt.Println("\n✓ Environment check completed successfully")
		} else {
			result := checker.RunNonInteractive(commandContext(cmd))
			if !result.Success {
				check.PrintCheckResult(result)
				os.Exit(errors.ExitCodeConfigValidation)
			}
			for _, warn := range result.Warnings {
				fmt.Fprintf(os.Stderr, "[WARNING] %s\n", warn)
			}
		}
	}

	consts.SetStartedAt(time.Now())

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Override config with command line flags
	if host, _ := cmd.Flags().GetString("host"); host != "" {
		cfg.Server.Host = host
	}
	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		cfg.Server.Port = port
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.Server.Debug = true
		cfg.Logging.Level = "debug"
		cfg.Logging.Format = "text"
	}

	if validationErr := config.ValidateAuthConfig(&cfg.Auth); validationErr != nil {
		fmt.Fprintf(os.Stderr, "\n[ERROR] Auth configuration validation failed\n")
		fmt.Fprintf(os.Stderr, "Error Code: %s\n", validationErr.Code)
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", validationErr)
		fmt.Fprintf(os.Stderr, "Please configure the JWT secret in your config file:\n")
		fmt.Fprintf(os.Stderr, "  auth:\n")
		fmt.Fprintf(os.Stderr, "    jwt_secret: \"%s\"\n\n", idgen.NewSecureSecret(config.MinJWTSecretLength))
		os.Exit(errors.ExitCodeConfigValidation)
	}

	if err := logger.Init(cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("Starting StageReport", zap.String("version", Version))

	tel, err := telemetry.New(cfg.Telemetry, pipelineAttributes(cfg)...)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := tel.Shutdown(ctx); err != nil {
			logger.Error("Failed to shutdown telemetry", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, tel.MetricsHandler())
	if err != nil {
		return err
	}
	defer a.close()

	logger.Info("StageReport server is running", zap.String("address", cfg.Server.Address()))

	if err := a.run(ctx); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
		return err
	}

	logger.Info("StageReport stopped")
	return nil
}

// newApp opens storage and wires every component. Nothing is started yet
// except the Redis subscription, which must exist before the first publish.
// metrics may be nil.
func newApp(ctx context.Context, cfg *config.BootstrapConfig, metrics http.Handler) (a *app, err error) {
	a = &app{cfg: cfg}
	defer func() {
		if err != nil {
			a.close()
			a = nil
		}
	}()

	if err = database.InitWithPath(cfg.Database.Path); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	a.store = store.NewStore(database.Get())

	// capture every log line tagged with a report id
	logger.SetReportLogHook(a.store.ReportLog())

	if a.contents, err = contentstore.New(ctx, cfg.Report.Storage); err != nil {
		return nil, fmt.Errorf("failed to open content store: %w", err)
	}

	a.exporters = exporter.NewDefaultManager(exporterOptions(&cfg.Report))

	var pusher notification.Pusher
	if cfg.Notification.WebSocket.Enabled {
		a.hub = notification.NewHub(cfg.Notification.WebSocket)
		pusher = a.hub

		if cfg.Notification.Redis.Enabled {
			if a.redis, err = notification.NewRedisClient(ctx, cfg.Notification.Redis); err != nil {
				return nil, err
			}
			a.broker = notification.NewRedisBroker(a.redis, cfg.Notification.Redis.Channel, a.hub)
			if err = a.broker.Start(ctx); err != nil {
				return nil, fmt.Errorf("failed to subscribe to redis: %w", err)
			}
			pusher = a.broker
		}
	}
	dispatcher := notification.New(cfg.Notification, a.store, pusher)

	a.engine = report.NewEngine(cfg, a.store, a.contents, a.exporters, dispatcher)

	if cfg.Recovery.LogRetentionDays > 0 {
		a.cleanup = store.NewReportLogCleanupService(a.store.ReportLog(), cfg.Recovery.LogRetentionDays)
	}

	a.server = server.New(cfg, router.Deps{
		Config:    cfg,
		Store:     a.store,
		Reports:   a.engine,
		Exporters: a.exporters,
		Hub:       a.hub,
		Metrics:   metrics,
	})
	a.server.SetupRoutes()

	return a, nil
}

// pipelineAttributes describe this instance on every span and metric
func pipelineAttributes(cfg *config.BootstrapConfig) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int("report.workers", cfg.Report.Workers),
		attribute.Int("report.queue_size", cfg.Report.QueueSize),
		attribute.String("report.storage_backend", cfg.Report.Storage.Backend),
		attribute.Bool("notification.redis", cfg.Notification.Redis.Enabled),
	}
}

// exporterOptions maps the report configuration to rendering options
func exporterOptions(cfg *config.ReportConfig) exporter.Options {
	opts := exporter.DefaultOptions()
	opts.City = cfg.City
	opts.DateLayout = cfg.DateLayout()
	opts.Compress = cfg.CompressPDF()
	return opts
}

// run starts the workers and serves HTTP until ctx is done
func (a *app) run(ctx context.Context) error {
	if err := a.engine.Start(); err != nil {
		return fmt.Errorf("failed to start report engine: %w", err)
	}

	if a.cleanup != nil {
		if err := a.cleanup.Start(); err != nil {
			// not fatal; logs just grow until the next restart
			logger.Warn("Failed to start report log cleanup", zap.Error(err))
			a.cleanup = nil
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.server.Run(gctx)
	})
	return g.Wait()
}

// close releases everything in reverse start order. Safe on a partly built app.
func (a *app) close() {
	if a.engine != nil {
		a.engine.Stop()
	}
	if a.cleanup != nil {
		a.cleanup.Stop()
	}
	if a.broker != nil {
		if err := a.broker.Close(); err != nil {
			logger.Warn("Failed to close redis broker", zap.Error(err))
		}
	}
	if a.redis != nil {
		a.redis.Close()
	}
	if a.hub != nil {
		a.hub.Close()
	}
	logger.CloseReportLogHook()
	if err := database.Close(); err != nil {
		logger.Warn("Failed to close database", zap.Error(err))
	}
}
