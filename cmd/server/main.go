package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appaudit "github.com/assetaudit/backend/internal/application/audit"
	"github.com/assetaudit/backend/internal/infrastructure/auth"
	"github.com/assetaudit/backend/internal/infrastructure/cache"
	"github.com/assetaudit/backend/internal/infrastructure/config"
	"github.com/assetaudit/backend/internal/infrastructure/event"
	"github.com/assetaudit/backend/internal/infrastructure/logger"
	"github.com/assetaudit/backend/internal/infrastructure/persistence"
	"github.com/assetaudit/backend/internal/infrastructure/persistence/models"
	"github.com/assetaudit/backend/internal/infrastructure/storage"
	"github.com/assetaudit/backend/internal/infrastructure/telemetry"
	"github.com/assetaudit/backend/internal/interfaces/http/handler"
	"github.com/assetaudit/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync(log) }()

	if err := run(cfg, log); err != nil {
		log.Fatal("Server exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("Starting asset audit service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	providers, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
		MetricsEnabled:    cfg.Telemetry.MetricsEnabled,
		MetricsInterval:   cfg.Telemetry.MetricsInterval,
		LogsEnabled:       cfg.Telemetry.LogsEnabled,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := providers.Shutdown(context.Background()); err != nil {
			log.Error("Telemetry shutdown failed", zap.Error(err))
		}
	}()
	log = providers.BridgeLogger(log, zapcore.InfoLevel)

	profiler, err := telemetry.StartProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Telemetry.ProfilingEnabled,
		ServerAddress:   cfg.Telemetry.PyroscopeEndpoint,
		ApplicationName: cfg.Telemetry.ServiceName,
	}, log)
	if err != nil {
		return err
	}
	defer func() { _ = profiler.Stop() }()
	if profiler.Enabled() {
		providers.EnableSpanProfiles()
	}

	db, err := openDatabase(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()

	coord, err := cache.NewCoordination(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = coord.Close() }()

	attachments, err := newAttachmentStorage(ctx, cfg, log)
	if err != nil {
		return err
	}

	bus := event.NewInMemoryEventBus(log)
	bus.Subscribe(event.NewAuditActivityLogger(log))
	meter := otel.GetMeterProvider().Meter(cfg.Telemetry.ServiceName)
	auditMetrics, err := telemetry.NewAuditMetrics(meter)
	if err != nil {
		return err
	}
	bus.Subscribe(auditMetrics)
	if err := bus.Start(ctx); err != nil {
		return fmt.Errorf("failed to start event bus: %w", err)
	}
	defer func() { _ = bus.Stop(context.Background()) }()

	auditService := appaudit.NewService(appaudit.Dependencies{
		Sessions:    persistence.NewGormAuditSessionRepository(db.DB),
		Scans:       persistence.NewGormAuditScanRepository(db.DB),
		Assets:      persistence.NewGormAssetRepository(db.DB),
		Locations:   persistence.NewGormLocationRepository(db.DB),
		Kits:        persistence.NewGormKitRepository(db.DB),
		Custodians:  persistence.NewGormCustodianRepository(db.DB),
		Codes:       persistence.NewGormCodeRepository(db.DB),
		Storage:     attachments,
		Idempotency: coord.Idempotency,
		Locker:      coord.Locker,
		Events:      bus,
		Logger:      log,
	}, appaudit.ServiceConfig{
		MaxAttachments:     cfg.Audit.MaxAttachments,
		MaxAttachmentBytes: cfg.Audit.MaxAttachmentBytes,
		ScanCacheTTL:       cfg.Audit.ScanCacheTTL,
	})

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	routerCfg := router.Config{
		ServiceName: cfg.Telemetry.ServiceName,
		Logger:      log,
		HTTP:        cfg.HTTP,
		Tracing:     providers.TracingEnabled(),
		Profiling:   profiler.Enabled(),
	}
	if cfg.Telemetry.MetricsEnabled {
		routerCfg.Meter = meter
	}
	if cfg.JWT.Enabled {
		routerCfg.JWT = auth.NewJWTService(cfg.JWT)
	} else {
		log.Warn("JWT disabled; tenant and user are taken from X-Tenant-ID and X-User-ID headers")
	}

	checks := map[string]handler.Pinger{"database": db}
	if coord.Backend == "redis" {
		checks["cache"] = coord
	}
	engine, err := router.New(routerCfg, router.Handlers{
		Audit:  handler.NewAuditHandler(auditService),
		Code:   handler.NewCodeHandler(auditService),
		System: handler.NewSystemHandler(cfg.App.Name, version, checks),
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("Server exited gracefully")
	return nil
}

func openDatabase(cfg *config.Config, log *zap.Logger) (*persistence.Database, error) {
	opts := []persistence.Option{
		persistence.WithGormLogger(logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level), 200*time.Millisecond)),
	}
	if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
		opts = append(opts, persistence.WithTracing(telemetry.DBTracingConfig{
			Enabled:         true,
			LogFullSQL:      cfg.App.Env != "production",
			SlowQueryThresh: 200 * time.Millisecond,
		}, log))
	}

	db, err := persistence.NewDatabase(&cfg.Database, opts...)
	if err != nil {
		return nil, err
	}
	log.Info("Database connected", zap.String("driver", db.Driver))

	// postgres schemas are owned by cmd/migrate
	if db.Driver == "sqlite" {
		if err := db.DB.AutoMigrate(models.All()...); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to migrate sqlite schema: %w", err)
		}
	}
	return db, nil
}

func newAttachmentStorage(ctx context.Context, cfg *config.Config, log *zap.Logger) (appaudit.AttachmentStorage, error) {
	if cfg.Storage.Provider != "s3" {
		log.Warn("Using in-memory attachment storage; completion photos are lost on restart")
		return storage.NewMemoryAttachmentStorage(), nil
	}
	s3, err := storage.NewS3AttachmentStorage(&cfg.Storage, storage.WithLogger(log))
	if err != nil {
		return nil, err
	}
	if err := s3.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return s3, nil
}
