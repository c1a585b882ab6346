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
	"steam-price-tracker/internal/seed"

	"github.com/joho/godotenv"
)

var file = flag.String("file", "seed.yaml", "YAML file listing the items to track")

func main() {
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	app.InitLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, cfg, *file)
	stop()
	if err != nil {
		logger.Error("✗ seeding stopped: %v", err)
		logger.Sync()
		os.Exit(1)
	}
	logger.Sync()
}

// run registers every item in path. Rejected and already tracked items are reported; any
// other failure is returned.
func run(ctx context.Context, cfg *config.Config, path string) error {
	doc, err := seed.Load(path)
	if err != nil {
		return err
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	res, err := seed.Apply(ctx, a.Tracker, doc)
	if err != nil {
		return err
	}
	logger.Info("✓ seeding complete (added:%d, existing:%d, rejected:%d)", res.Added, res.Existing, len(res.Rejected))
	for _, r := range res.Rejected {
		logger.Warn("  rejected %s", r)
	}
	return nil
}
