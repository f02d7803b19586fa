package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"jsonbench-api/internal/config"
	"jsonbench-api/internal/handler"
	"jsonbench-api/internal/metrics"
	"jsonbench-api/internal/model"
	"jsonbench-api/internal/repository"
	"jsonbench-api/internal/router"
	"jsonbench-api/internal/service"

	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting JSON bench API...")

	// Load configuration
	cfg := config.MustLoad()
	log.Printf("Environment: %s", cfg.App.Environment)

	mode, err := cfg.Bench.Mode()
	if err != nil {
		log.Fatalf("Invalid ingest mode: %v", err)
	}

	// Initialize store based on config
	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize %s store: %v", cfg.Storage.Type, err)
	}
	defer store.Close()
	log.Printf("%s store initialized", cfg.Storage.Type)

	// Metrics
	var reg *prometheus.Registry
	var appMetrics *metrics.Metrics
	if cfg.Metrics.Enabled {
		reg = metrics.NewRegistry()
		appMetrics = metrics.New(reg)
		if sqlStore, ok := store.(repository.SQLStore); ok {
			if err := metrics.RegisterDBStats(reg, sqlStore.DB(), cfg.Storage.Type); err != nil {
				log.Printf("Warning: DB stats collector not registered: %v", err)
			}
		}
	}

	// Initialize services
	benchService := service.NewBenchService(store, service.BenchOptions{
		Ingester: model.Ingester{
			Mode:    mode,
			Options: model.ParseOptions{Strict: cfg.Bench.Strict},
		},
		Timeout: cfg.Storage.Timeout,
		Metrics: appMetrics,
	})
	log.Printf("Ingest mode: %s (strict=%t)", benchService.Mode(), cfg.Bench.Strict)

	var retention *service.RetentionScheduler
	if cfg.Retention.Enabled() {
		retention = service.NewRetentionScheduler(store, service.RetentionConfig{
			Period:       cfg.Retention.Period,
			Interval:     cfg.Retention.Interval,
			InitialDelay: time.Minute,
		}, appMetrics)
		retention.Start()
	}

	// Initialize handlers
	healthHandler := handler.New(cfg.App.Version, benchService)
	benchHandler := handler.NewBenchHandler(benchService, handler.BenchConfig{
		MaxBodyBytes:        cfg.Bench.MaxBodyBytes,
		ExposeStorageErrors: cfg.Bench.ExposeStorageErrors,
	})
	adminHandler := handler.NewAdminHandler(benchService, cfg.Storage.Type, string(benchService.Mode()))

	// Create router
	r := router.New(router.Config{
		Handler:      healthHandler,
		BenchHandler: benchHandler,
		AdminHandler: adminHandler,
		Registry:     reg,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on %s", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if retention != nil {
		retention.Stop()
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
	fmt.Println("Goodbye!")
}

func openStore(cfg *config.Config) (repository.Store, error) {
	pool := repository.DefaultPoolConfig()
	pool.MaxOpenConns = cfg.Storage.MaxOpenConns
	pool.MaxIdleConns = cfg.Storage.MaxIdleConns
	pool.ConnMaxLifetime = cfg.Storage.ConnMaxLifetime

	switch cfg.Storage.Type {
	case config.StorePostgres:
		return repository.NewPostgresStore(cfg.Postgres.DSN(), pool)
	case config.StoreMySQL:
		dsn := repository.MySQLDSN(cfg.MySQL.Host, strconv.Itoa(cfg.MySQL.Port),
			cfg.MySQL.User, cfg.MySQL.Password, cfg.MySQL.Name)
		return repository.NewMySQLStore(dsn, pool)
	case config.StoreMongoDB:
		return repository.NewMongoDBStore(cfg.MongoDB.URI, cfg.MongoDB.Database)
	case config.StoreRedis:
		return repository.NewRedisStore(repository.RedisConfig{
			Addr:      cfg.Redis.Address(),
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
	case config.StoreSQLite:
		if dir := filepath.Dir(cfg.Storage.SQLitePath); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
		return repository.NewSQLiteStore(cfg.Storage.SQLitePath)
	case config.StoreMemory:
		return repository.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store type %q", cfg.Storage.Type)
	}
}
