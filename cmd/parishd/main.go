package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/robfig/cron/v3"

	"github.com/openparish/backend/pkg/api"
	"github.com/openparish/backend/pkg/config"
	"github.com/openparish/backend/pkg/entities"
	"github.com/openparish/backend/pkg/files"
	"github.com/openparish/backend/pkg/observability"
	"github.com/openparish/backend/pkg/storage"
	"github.com/openparish/backend/pkg/youtube"
)

// sweepSchedule removes expired church service dates in the background
// so stale rows do not linger between list requests.
const sweepSchedule = "*/30 * * * *"

const fileCacheSize = 1024

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(observability.ParseLogLevel(cfg.LogLevel), os.Stdout)
	metrics := observability.NewMetrics(nil)

	db, err := storage.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.CreateSchema(ctx); err != nil {
		log.Fatalf("Failed to create schema: %v", err)
	}

	cache, err := newRecordCache(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize file record cache: %v", err)
	}

	store := &files.Store{
		DB:      db,
		DataDir: cfg.DataDir,
		Cache:   cache,
		Metrics: metrics,
		Logger:  logger,
	}
	if err := store.EnsureDirs(); err != nil {
		log.Fatalf("Failed to prepare data directories: %v", err)
	}

	server := api.NewServer(cfg, db, logger, metrics, store, youtube.NewAPIClient(cfg.YouTubeAPIKey))

	scheduler := cron.New()
	_, err = scheduler.AddFunc(sweepSchedule, func() {
		swept, err := entities.SweepExpiredServiceDates(context.Background(), db)
		if err != nil {
			logger.WithError(err).Error("service date sweep failed")
			return
		}
		if swept > 0 {
			metrics.SweptRowsTotal.WithLabelValues("church_service_dates").Add(float64(swept))
			logger.WithField("rows", swept).Info("swept expired service dates")
		}
	})
	if err != nil {
		log.Fatalf("Failed to schedule service date sweep: %v", err)
	}
	scheduler.Start()

	addr := net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.WithField("addr", addr).Info("server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logger.Info("shutting down")

	<-scheduler.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Shutdown failed: %v", err)
	}
	logger.Info("server stopped")
}

// newRecordCache returns the shared Redis cache when configured and a
// process-local LRU otherwise.
func newRecordCache(ctx context.Context, cfg *config.Config) (files.RecordCache, error) {
	if cfg.Redis.URL == "" {
		return files.NewLRUCache(fileCacheSize)
	}
	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return files.NewRedisCache(client, cfg.Redis.TTL), nil
}
