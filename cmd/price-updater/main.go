package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"steam-price-tracker/internal/app"
	"steam-price-tracker/internal/config"
	"steam-price-tracker/internal/logger"
	"steam-price-tracker/internal/scheduler"

	"github.com/joho/godotenv"
)

var (
	once     = flag.Bool("once", false, "run a single batch update and exit")
	interval = flag.Duration("interval", 0, "update interval (overrides UPDATE_INTERVAL)")
)

func main() {
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	cfg := config.Load()
	if *interval > 0 {
		cfg.UpdateInterval = *interval
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	app.InitLogger(cfg)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to start: %v", err)
	}
	defer a.Close(context.Background())

	if *once {
		report, err := a.Updater.Run(ctx)
		if err != nil {
			logger.Error("✗ price update failed: %v", err)
			a.Close(context.Background())
			logger.Sync()
			os.Exit(1)
		}
		logger.Info("✓ price update done (ok:%d, failed:%d, skipped:%d)", report.Succeeded, report.Failed, report.Skipped)
		return
	}

	logger.Info("Price updater started (PID: %d), interval %v", os.Getpid(), cfg.UpdateInterval)
	scheduler.New(a.Updater, cfg.UpdateInterval, true).Start(ctx)
	logger.Info("Price updater stopped")
}
