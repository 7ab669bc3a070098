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

	"github.com/gin-gonic/gin"
	"github.com/possales/backend/internal/bootstrap"
	"github.com/possales/backend/internal/infrastructure/config"
	"github.com/possales/backend/internal/infrastructure/logger"
	"github.com/possales/backend/internal/infrastructure/scheduler"
	"github.com/possales/backend/internal/infrastructure/telemetry"
	"github.com/possales/backend/internal/interfaces/http/handler"
	"github.com/possales/backend/internal/interfaces/http/middleware"
	"github.com/possales/backend/internal/interfaces/http/router"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

const shutdownTimeout = 30 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := bootstrap.NewLogger(cfg.Log)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting POS backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	// Metrics registry shared by the database, report and HTTP collectors
	var registry *prometheus.Registry
	if cfg.Metrics.Enabled {
		registry = telemetry.NewRegistry()
	}

	db, err := bootstrap.OpenDatabase(cfg, log, registererOrNil(registry))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully", zap.String("driver", db.Driver))

	locker, closeLocker, err := bootstrap.NewLocker(cfg, log)
	if err != nil {
		log.Fatal("Failed to create report locker", zap.Error(err))
	}
	defer func() {
		if err := closeLocker(); err != nil {
			log.Error("Error closing report locker", zap.Error(err))
		}
	}()

	services, err := bootstrap.NewServices(cfg, db, locker, log, registererOrNil(registry))
	if err != nil {
		log.Fatal("Failed to initialize services", zap.Error(err))
	}

	// Daily regeneration
	var reportScheduler *scheduler.ReportCronScheduler
	if cfg.Scheduler.Enabled {
		reportScheduler, err = bootstrap.NewReportScheduler(cfg, db, services.Generation, log, registererOrNil(registry))
		if err != nil {
			log.Fatal("Failed to create report scheduler", zap.Error(err))
		}
		if err := reportScheduler.Start(context.Background()); err != nil {
			log.Fatal("Failed to start report scheduler", zap.Error(err))
		}
	}

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Logger - Log requests
	// 4. Security - Add security headers
	// 5. CORS - Handle cross-origin requests
	// 6. BodyLimit - Limit request body size
	// 7. RateLimit - Apply rate limiting (if enabled)
	// 8. Metrics - Count and time requests (if enabled)
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	corsConfig.AllowMethods = cfg.HTTP.CORSAllowMethods
	corsConfig.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	engine.Use(middleware.CORSWithConfig(corsConfig))

	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		defer rateLimiter.Stop()
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	if registry != nil {
		engine.Use(middleware.HTTPMetrics(telemetry.NewHTTPMetrics(registry)))
		engine.GET(cfg.Metrics.Path, gin.WrapH(telemetry.Handler(registry)))
		log.Info("Prometheus metrics enabled", zap.String("path", cfg.Metrics.Path))
	}

	// Health check endpoint
	systemHandler := handler.NewSystemHandler(cfg.App.Name, version).
		AddCheck("database", func(ctx context.Context) error {
			sqlDB, err := db.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		})
	if cfg.Report.LockBackend == config.LockBackendRedis {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		systemHandler.AddCheck("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}
	engine.GET("/health", systemHandler.Health)

	// POS clients address the report and category endpoints at the root
	salesReportHandler := handler.NewSalesReportHandler(services.Generation)
	categoryHandler := handler.NewCategoryHandler(services.Category)
	var schedulerHandler *handler.SchedulerHandler
	if reportScheduler != nil {
		schedulerHandler = handler.NewSchedulerHandler(reportScheduler)
	}

	r := router.NewRouter(engine)
	r.Register(router.SalesReportRoutes(salesReportHandler, schedulerHandler)).
		Register(router.CategoryRoutes(categoryHandler)).
		Register(router.SystemRoutes(systemHandler))
	r.Setup()

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	if reportScheduler != nil {
		if err := reportScheduler.Stop(ctx); err != nil {
			log.Error("Report scheduler did not stop cleanly", zap.Error(err))
		}
	}

	log.Info("Server exited gracefully")
}

// registererOrNil keeps a nil *prometheus.Registry from becoming a non-nil interface
func registererOrNil(reg *prometheus.Registry) prometheus.Registerer {
	if reg == nil {
		return nil
	}
	return reg
}
