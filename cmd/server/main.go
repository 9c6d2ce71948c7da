package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fraud-advisor/backend/internal/grpcserver"
	"fraud-advisor/backend/internal/models"
	"fraud-advisor/backend/pkg/config"
	"fraud-advisor/backend/pkg/di"
	"fraud-advisor/backend/pkg/logger"
	"fraud-advisor/backend/pkg/router"
)

func main() {
	// Loads .env when present
	cfg := config.New()

	logConfig := logger.DefaultConfig()
	logConfig.Level = cfg.Logging.Level
	logConfig.JSON = cfg.Logging.Format != "text"
	logConfig.FilePath = cfg.Logging.File

	log := logger.New(logConfig)
	logger.SetGlobal(log)
	defer log.Close()

	log.Info("Starting application", "version", os.Getenv("APP_VERSION"), "env", cfg.Server.Env)

	if err := cfg.Validate(); err != nil {
		log.LogError(err, "Invalid configuration")
		os.Exit(1)
	}

	// Initialize database
	db, err := config.NewDB(cfg)
	if err != nil {
		log.LogError(err, "Failed to initialize database")
		os.Exit(1)
	}

	if err := models.Migrate(db); err != nil {
		log.LogError(err, "Failed to migrate database")
		os.Exit(1)
	}

	container, err := di.New(cfg, db, log, nil)
	if err != nil {
		log.LogError(err, "Failed to initialize dependency container")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if container.Hub != nil {
		go container.Hub.Run(ctx)
	}

	var grpcSrv *grpcserver.Server
	if cfg.Server.GRPCPort != "" {
		grpcSrv = grpcserver.New(container.Health, log)
		if err := grpcSrv.ListenAndServe(cfg.Server.GRPCPort); err != nil {
			log.LogError(err, "Failed to start gRPC server")
			os.Exit(1)
		}
	}
	container.Health.Start(ctx)

	r := router.New(container)
	r.SetupRoutes()

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.LogError(err, "Server failed to start")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.Timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.LogError(err, "Server forced to shutdown")
	}
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}
	r.Stop()
	if err := container.Close(shutdownCtx); err != nil {
		log.LogError(err, "Failed to release resources")
	}

	log.Info("Server exited gracefully")
}
