package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"steam-price-tracker/internal/api"
	"steam-price-tracker/internal/app"
	"steam-price-tracker/internal/config"
	"steam-price-tracker/internal/logger"
	"steam-price-tracker/internal/scheduler"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sourcegraph/conc"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	app.InitLogger(cfg)
	defer logger.Sync()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.CronSecret == "" {
		logger.Warn("CRON_SECRET is not set; cron trigger and admin routes will reject every request")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to start: %v", err)
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(a.APIDeps()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var lifecycle conc.WaitGroup
	lifecycle.Go(func() {
		logger.Info("Server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server: %v", err)
			stop()
		}
	})

	if cfg.SchedulerEnabled {
		sched := scheduler.New(a.Updater, cfg.UpdateInterval, cfg.SchedulerRunOnStart)
		lifecycle.Go(func() { sched.Start(ctx) })
	}

	<-ctx.Done()
	logger.Info("Shutdown signal received, shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	// websocket connections are hijacked and not closed by Shutdown
	a.Hub.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown: %v", err)
	}
	lifecycle.Wait()
	a.Close(shutdownCtx)
	logger.Info("Shutdown complete")
}
