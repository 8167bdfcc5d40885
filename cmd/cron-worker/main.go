package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	robfigcron "github.com/robfig/cron/v3"

	"github.com/coraldesk/coraldesk-backend/internal/backups"
	"github.com/coraldesk/coraldesk-backend/internal/cron"
	"github.com/coraldesk/coraldesk-backend/internal/notifications"
	"github.com/coraldesk/coraldesk-backend/pkg/config"
	"github.com/coraldesk/coraldesk-backend/pkg/db"
	"github.com/coraldesk/coraldesk-backend/pkg/logger"
	"github.com/coraldesk/coraldesk-backend/pkg/metrics"
	"github.com/coraldesk/coraldesk-backend/pkg/migrate"
	"github.com/coraldesk/coraldesk-backend/pkg/redis"
)

const metricsAddr = ":9092"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	backupSvc, err := backups.NewService(cfg.Backup, cfg.DB, cfg.Uploads, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create backup service", err)
		os.Exit(1)
	}
	backupJob, err := cron.NewBackupJob(backupSvc, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create backup job", err)
		os.Exit(1)
	}
	backupRetentionJob, err := cron.NewBackupRetentionJob(backupSvc, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create backup retention job", err)
		os.Exit(1)
	}
	notificationRetentionJob, err := cron.NewNotificationRetentionJob(cron.NotificationRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: notifications.NewRepository(dbClient.DB()),
		Retention:  cfg.Queue.RetentionDays,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create notification retention job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redis.LockKey("cron", cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(backupJob, backupRetentionJob, notificationRetentionJob),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"schedule": cfg.Backup.Schedule,
	})

	metricsServer := &http.Server{
		Addr:              metricsAddr,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "metrics server stopped unexpectedly", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	scheduler := robfigcron.New()
	if _, err := scheduler.AddFunc(cfg.Backup.Schedule, func() {
		if err := service.RunCycle(ctx); err != nil {
			logg.Error(ctx, "cron cycle failed", err)
		}
	}); err != nil {
		logg.Error(ctx, "invalid cron schedule", err)
		os.Exit(1)
	}

	logg.Info(ctx, "starting cron worker")
	scheduler.Start()

	<-ctx.Done()
	stopCtx := scheduler.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(30 * time.Second):
		logg.Warn(context.Background(), "timed out waiting for running jobs")
	}
	logg.Info(context.Background(), "cron worker shutting down gracefully")
}
