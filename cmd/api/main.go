package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/coraldesk/coraldesk-backend/api/routes"
	authsvc "github.com/coraldesk/coraldesk-backend/internal/auth"
	"github.com/coraldesk/coraldesk-backend/internal/bulletins"
	"github.com/coraldesk/coraldesk-backend/internal/categories"
	"github.com/coraldesk/coraldesk-backend/internal/clients"
	"github.com/coraldesk/coraldesk-backend/internal/corals"
	"github.com/coraldesk/coraldesk-backend/internal/images"
	"github.com/coraldesk/coraldesk-backend/internal/invoicing"
	"github.com/coraldesk/coraldesk-backend/internal/notifications"
	"github.com/coraldesk/coraldesk-backend/internal/orders"
	"github.com/coraldesk/coraldesk-backend/pkg/config"
	"github.com/coraldesk/coraldesk-backend/pkg/db"
	"github.com/coraldesk/coraldesk-backend/pkg/logger"
	"github.com/coraldesk/coraldesk-backend/pkg/migrate"
	"github.com/coraldesk/coraldesk-backend/pkg/redis"
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
		ServiceName: cfg.Service.Kind,
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

	gormDB := dbClient.DB()

	notificationSvc, err := notifications.NewService(notifications.NewRepository(gormDB), cfg.Queue, logg)
	if err != nil {
		exitOnWiring(logg, "notifications", err)
	}
	coralSvc, err := corals.NewService(corals.NewRepository(gormDB), dbClient)
	if err != nil {
		exitOnWiring(logg, "corals", err)
	}
	categorySvc, err := categories.NewService(categories.NewRepository(gormDB))
	if err != nil {
		exitOnWiring(logg, "categories", err)
	}
	clientRepo := clients.NewRepository(gormDB)
	clientSvc, err := clients.NewService(clientRepo, notificationSvc, cfg.Password, logg)
	if err != nil {
		exitOnWiring(logg, "clients", err)
	}
	orderSvc, err := orders.NewService(orders.NewRepository(gormDB), dbClient, notificationSvc, logg)
	if err != nil {
		exitOnWiring(logg, "orders", err)
	}
	bulletinSvc, err := bulletins.NewService(bulletins.NewRepository(gormDB), notificationSvc, clientRepo, logg)
	if err != nil {
		exitOnWiring(logg, "bulletins", err)
	}
	imageSvc, err := images.NewService(cfg.Uploads, logg)
	if err != nil {
		exitOnWiring(logg, "images", err)
	}
	tokenStore, err := invoicing.NewRedisTokenStore(redisClient)
	if err != nil {
		exitOnWiring(logg, "accounting token store", err)
	}
	invoiceSvc, err := invoicing.NewService(cfg.Accounting, tokenStore, logg)
	if err != nil {
		exitOnWiring(logg, "invoicing", err)
	}
	authService, err := authsvc.NewService(authsvc.ServiceParams{
		Users:     authsvc.NewRepository(gormDB),
		Clients:   clientSvc,
		JWTConfig: cfg.JWT,
	})
	if err != nil {
		exitOnWiring(logg, "auth", err)
	}

	router := routes.NewRouter(cfg, logg, dbClient, redisClient, routes.Services{
		Auth:          authService,
		Clients:       clientSvc,
		Corals:        coralSvc,
		Categories:    categorySvc,
		Orders:        orderSvc,
		Bulletins:     bulletinSvc,
		Images:        imageSvc,
		Notifications: notificationSvc,
		Invoicing:     invoiceSvc,
	})

	addr := ":" + cfg.App.Port
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "addr": addr})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "api server shutdown failed", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server shut down gracefully")
}

func exitOnWiring(logg *logger.Logger, component string, err error) {
	logg.Error(context.Background(), "failed to wire "+component, err)
	os.Exit(1)
}
