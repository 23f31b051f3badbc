package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ledgerline/backoffice/pkg/ads"
	"github.com/ledgerline/backoffice/pkg/api"
	"github.com/ledgerline/backoffice/pkg/audit"
	"github.com/ledgerline/backoffice/pkg/auth"
	"github.com/ledgerline/backoffice/pkg/authz"
	"github.com/ledgerline/backoffice/pkg/config"
	"github.com/ledgerline/backoffice/pkg/dashboard"
	"github.com/ledgerline/backoffice/pkg/exports"
	"github.com/ledgerline/backoffice/pkg/integrations"
	"github.com/ledgerline/backoffice/pkg/middleware"
	"github.com/ledgerline/backoffice/pkg/observability"
	"github.com/ledgerline/backoffice/pkg/operations"
	"github.com/ledgerline/backoffice/pkg/orders"
	"github.com/ledgerline/backoffice/pkg/pools"
	"github.com/ledgerline/backoffice/pkg/products"
	"github.com/ledgerline/backoffice/pkg/storage"
)

const auditRetention = 90 * 24 * time.Hour

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "backoffice: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.Info("starting backoffice")

	ctx := context.Background()

	otelProviders, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}

	connMgr, err := storage.NewConnectionManager(storage.ConnectionConfig{
		PrimaryURL:  cfg.Storage.PostgresURL,
		ReplicaURLs: storage.ParseReplicaURLs(cfg.Storage.PostgresReplicaURLs),
		MaxConns:    cfg.Storage.PostgresMaxConns,
		MinConns:    cfg.Storage.PostgresMinConns,
		Timeout:     cfg.Storage.PostgresTimeout,
	}, logger)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	db := connMgr.Primary()

	if err := runMigrations(ctx, db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(prometheus.NewRegistry())
	}

	var redisClient *redis.Client
	if cfg.Storage.RedisURL != "" {
		redisClient, err = storage.NewRedisClient(cfg.Storage)
		if err != nil {
			if cfg.Storage.CacheEnabled {
				return fmt.Errorf("connecting to redis: %w", err)
			}
			logger.WithError(err).Warn("redis unavailable, rate limiting disabled")
			redisClient = nil
		}
	}

	var grantStore authz.Store = authz.NewPostgresStore(db)
	if cfg.Storage.CacheEnabled && redisClient != nil {
		cached, err := authz.NewCachedStore(grantStore, redisClient, authz.CacheConfig{
			TTL:    cfg.Storage.CacheTTL,
			L1Size: cfg.Storage.L1CacheSize,
		}, logger, metrics)
		if err != nil {
			return fmt.Errorf("initializing grant cache: %w", err)
		}
		grantStore = cached
	}

	resolver := authz.NewResolver(grantStore, logger)
	guard := authz.NewGuard(resolver, grantStore, logger, metrics)

	tokenManager := auth.NewTokenManager(db)
	userStore := auth.NewUserStore(db)
	authMW := middleware.NewAuthMiddleware(tokenManager, userStore, false)

	var rateLimitMW *middleware.RateLimitMiddleware
	if redisClient != nil {
		rateLimitMW = middleware.NewRateLimitMiddleware(redisClient)
	}

	operationsSvc := operations.NewService(db, grantStore)
	guardMW := authz.NewMiddleware(guard, operationsSvc)
	orderSvc := orders.NewService(db)
	productSvc := products.NewService(db)
	adsSvc := ads.NewService(db)
	integrationSvc := integrations.NewService(db)
	poolSvc := pools.NewService(db)
	dashboardSvc := dashboard.NewService(connMgr.Replica())

	var exporter *exports.Exporter
	if cfg.Storage.S3Bucket != "" {
		s3Client, err := storage.NewS3Client(cfg.Storage)
		if err != nil {
			return fmt.Errorf("initializing object storage: %w", err)
		}
		exporter = exports.NewExporter(s3Client, orderSvc, poolSvc, logger)
	} else {
		logger.Warn("object storage not configured, export delivery disabled")
	}

	auditLog, err := audit.NewDBLogger(db)
	if err != nil {
		return fmt.Errorf("initializing audit log: %w", err)
	}
	recorder := audit.NewRecorder(auditLog, logger)

	server := api.NewServer(guardMW, authMW, rateLimitMW, api.Services{
		Tokens:       tokenManager,
		Operations:   operationsSvc,
		Orders:       orderSvc,
		Products:     productSvc,
		Ads:          adsSvc,
		Integrations: integrationSvc,
		Pools:        poolSvc,
		Dashboard:    dashboardSvc,
		Exporter:     exporter,
		Audit:        auditLog,
		Recorder:     recorder,
	}, logger, metrics)

	scheduler := cron.New()
	if _, err := scheduler.AddFunc("17 2 * * *", func() {
		defer observability.RecoverPanic(logger, "token cleanup")
		removed, err := tokenManager.CleanupExpiredTokens(context.Background())
		if err != nil {
			logger.WithError(err).Error("expired token cleanup failed")
			return
		}
		logger.WithField("removed", removed).Info("expired tokens cleaned up")
	}); err != nil {
		return fmt.Errorf("scheduling token cleanup: %w", err)
	}
	if _, err := scheduler.AddFunc("23 * * * *", func() {
		defer observability.RecoverPanic(logger, "invitation cleanup")
		removed, err := operationsSvc.CleanupExpiredInvitations(context.Background())
		if err != nil {
			logger.WithError(err).Error("expired invitation cleanup failed")
			return
		}
		logger.WithField("removed", removed).Info("expired invitations cleaned up")
	}); err != nil {
		return fmt.Errorf("scheduling invitation cleanup: %w", err)
	}
	if _, err := scheduler.AddFunc("41 3 * * *", func() {
		defer observability.RecoverPanic(logger, "audit retention")
		cutoff := time.Now().UTC().Add(-auditRetention)
		purged, err := auditLog.PurgeBefore(context.Background(), cutoff)
		if err != nil {
			logger.WithError(err).Error("audit retention sweep failed")
			return
		}
		logger.WithField("purged", purged).Info("audit retention sweep completed")
	}); err != nil {
		return fmt.Errorf("scheduling audit retention: %w", err)
	}
	scheduler.Start()

	var handler http.Handler = server
	if cfg.Observability.OTelEnabled {
		handler = otelhttp.NewHandler(handler, "backoffice.api")
	}

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthChecker := observability.NewHealthChecker(db, redisClient)
	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/healthz", healthChecker.Liveness)
	healthMux.HandleFunc("/readyz", healthChecker.Readiness)
	if metrics != nil {
		healthMux.Handle("/metrics", metrics.Handler())
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout, apiServer, healthServer)
	shutdown.RegisterShutdownFunc(func(context.Context) error {
		stopCtx := scheduler.Stop()
		<-stopCtx.Done()
		return nil
	})
	shutdown.RegisterShutdownFunc(func(context.Context) error {
		return connMgr.Close()
	})
	if redisClient != nil {
		shutdown.RegisterShutdownFunc(func(context.Context) error {
			return redisClient.Close()
		})
	}
	if otelProviders != nil {
		shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
			return observability.ShutdownOTel(ctx, otelProviders, logger)
		})
	}

	go func() {
		logger.WithField("addr", healthServer.Addr).Info("health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("health server failed")
		}
	}()

	go func() {
		logger.WithField("addr", apiServer.Addr).Info("api server listening")
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("api server failed")
		}
	}()

	return shutdown.WaitForShutdown()
}

// runMigrations applies each package's migrations. Order matters: access
// grants and invitations reference users and operations.
func runMigrations(ctx context.Context, db *sql.DB) error {
	steps := []struct {
		name string
		run  func(context.Context, *sql.DB) error
	}{
		{"auth", auth.RunMigrations},
		{"operations", operations.RunMigrations},
		{"authz", authz.RunMigrations},
		{"orders", orders.RunMigrations},
		{"products", products.RunMigrations},
		{"ads", ads.RunMigrations},
		{"integrations", integrations.RunMigrations},
		{"pools", pools.RunMigrations},
	}
	for _, step := range steps {
		if err := step.run(ctx, db); err != nil {
			return fmt.Errorf("%s migrations: %w", step.name, err)
		}
	}
	return nil
}
