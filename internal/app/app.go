// Package app wires configuration into the services shared by the server and the CLIs.
package app

import (
	"context"
	"fmt"

	"steam-price-tracker/internal/api"
	"steam-price-tracker/internal/config"
	"steam-price-tracker/internal/database"
	"steam-price-tracker/internal/logger"
	"steam-price-tracker/internal/services/steam"
	"steam-price-tracker/internal/services/tracker"
	"steam-price-tracker/internal/services/updater"
	"steam-price-tracker/internal/services/validator"
	"steam-price-tracker/internal/store"
	"steam-price-tracker/internal/telemetry"

	"gorm.io/gorm"
)

type App struct {
	Config    *config.Config
	DB        *gorm.DB
	Telemetry *telemetry.Provider
	Steam     *steam.SteamService
	Tracker   *tracker.Service
	Recorder  *tracker.Recorder
	Updater   *updater.Updater
	Hub       *api.Hub
}

// InitLogger configures the global logger from cfg.
func InitLogger(cfg *config.Config) {
	logger.Init(logger.Config{
		Level:       cfg.LogLevel,
		File:        cfg.LogFile,
		MaxFileSize: cfg.LogMaxSizeMB,
		Console:     true,
	})
}

// New opens the database and builds every service. Close releases what it opened.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:      cfg.OTelEnabled,
		OTLPEndpoint: cfg.OTLPEndpoint,
		OTLPInsecure: cfg.OTLPInsecure,
		Environment:  cfg.Environment,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize telemetry: %w", err)
	}
	metrics := telemetry.NewMetrics(tp.Meter())

	db, err := database.Initialize(cfg.DatabaseURL)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	steamSvc := steam.NewSteamService(steam.Options{
		BaseURL:   cfg.SteamBaseURL,
		Currency:  cfg.SteamCurrency,
		UserAgent: cfg.SteamUserAgent,
		Timeout:   cfg.SteamTimeout,
		Metrics:   metrics,
	})
	svc := tracker.NewService(store.New(db), steamSvc, validator.New(steamSvc), cfg.HistoryLimit)
	rec := tracker.NewRecorder(svc, metrics)
	hub := api.NewHub()

	return &App{
		Config:    cfg,
		DB:        db,
		Telemetry: tp,
		Steam:     steamSvc,
		Tracker:   svc,
		Recorder:  rec,
		Updater: updater.New(rec, updater.Options{
			ItemInterval: cfg.UpdateItemInterval,
			Notifier:     hub,
			Metrics:      metrics,
		}),
		Hub: hub,
	}, nil
}

// APIDeps returns the services the HTTP handlers need.
func (a *App) APIDeps() api.Deps {
	return api.Deps{
		Tracker:    a.Tracker,
		Recorder:   a.Recorder,
		Updater:    a.Updater,
		Steam:      a.Steam,
		Hub:        a.Hub,
		CronSecret: a.Config.CronSecret,
	}
}

// Close disconnects websocket clients, flushes metrics and closes the database.
func (a *App) Close(ctx context.Context) {
	a.Hub.Close()
	if err := a.Telemetry.Shutdown(ctx); err != nil {
		logger.Warn("telemetry shutdown: %v", err)
	}
	if err := database.Close(a.DB); err != nil {
		logger.Warn("database close: %v", err)
	}
}
