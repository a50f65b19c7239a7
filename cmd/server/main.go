// Package main is the entry point of the close API server.
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

	"invclose/internal/app"
	"invclose/internal/config"
	"invclose/internal/core/clock"
	v1 "invclose/internal/infrastructure/http/v1"
	"invclose/pkg/logger"
)

func main() {
	// CONFIG_FILE names an optional YAML file; env overrides it
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if cfg.Auth.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	ctx := logger.WithLogger(context.Background(), log)
	log.Info("starting invclose server")

	services, pool, err := app.OpenPostgres(ctx, cfg, "invclose-server", clock.System{})
	if err != nil {
		log.Fatalw("failed to start engine", "error", err)
	}
	defer pool.Close()

	router := v1.NewRouter(v1.RouterConfig{
		DB:           pool,
		Logger:       log,
		JWTValidator: services.Tokens,
		Services:     services,
		CORSOrigins:  cfg.Server.CORSOrigins,
	})

	// a close may run for minutes, so writes get a long timeout
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}
