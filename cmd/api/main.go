package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/scraplinehq/scrapline-backend/api/routes"
	"github.com/scraplinehq/scrapline-backend/internal/assignments"
	"github.com/scraplinehq/scrapline-backend/internal/timeline"
	"github.com/scraplinehq/scrapline-backend/internal/workqueue"
	"github.com/scraplinehq/scrapline-backend/pkg/cache"
	"github.com/scraplinehq/scrapline-backend/pkg/config"
	"github.com/scraplinehq/scrapline-backend/pkg/db"
	"github.com/scraplinehq/scrapline-backend/pkg/logger"
	"github.com/scraplinehq/scrapline-backend/pkg/metrics"
	"github.com/scraplinehq/scrapline-backend/pkg/migrate"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	cacheClient, err := cache.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := cacheClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	lifecycleMetrics := metrics.NewLifecycleMetrics(registry)

	timelineRecorder, err := timeline.NewRecorder(timeline.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create timeline recorder", err)
		os.Exit(1)
	}

	assignmentService, err := assignments.NewService(
		assignments.NewRepository(dbClient.DB()),
		dbClient,
		timelineRecorder,
		cacheClient,
		lifecycleMetrics,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create assignment service", err)
		os.Exit(1)
	}

	workQueueService, err := workqueue.NewService(
		workqueue.NewRepository(dbClient.DB()),
		dbClient,
		timelineRecorder,
		cacheClient,
		lifecycleMetrics,
		logg,
		cfg.Queue,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create work queue service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			cacheClient,
			cacheClient,
			registry,
			workQueueService,
			assignmentService,
			timelineRecorder,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
