// Package tracker registers items and reads or records their prices.
//
// Service is the read side: it can add items and fetch live quotes but never writes price
// history. Recorder is the only type that appends samples; it is handed to the batch updater
// and the authenticated admin refresh route.
package tracker

import (
	"context"
	"strings"
	"time"

	"steam-price-tracker/internal/errs"
	"steam-price-tracker/internal/logger"
	"steam-price-tracker/internal/models"
	"steam-price-tracker/internal/services/steam"
	"steam-price-tracker/internal/services/validator"
	"steam-price-tracker/internal/store"
	"steam-price-tracker/internal/telemetry"
)

// Quoter fetches live quotes.
type Quoter interface {
	GetPriceOverview(ctx context.Context, appID int, marketHashName string) (*steam.Quote, error)
}

// ItemValidator confirms an item exists on the market before it is tracked.
type ItemValidator interface {
	Validate(ctx context.Context, marketHashName string, appID int) validator.Result
}

// PriceQuote is a live price for a tracked item.
type PriceQuote struct {
	ItemID         uint64    `json:"item_id"`
	MarketHashName string    `json:"market_hash_name"`
	SteamAppID     int       `json:"steam_appid"`
	CurrentPrice   float64   `json:"current_price"`
	Volume         int64     `json:"volume"`
	FetchedAt      time.Time `json:"fetched_at"`
}

type Service struct {
	store        *store.Store
	quoter       Quoter
	validator    ItemValidator
	historyLimit int
	now          func() time.Time
}

// NewService wires the read side. historyLimit outside 1..store.DefaultHistoryLimit uses
// store.DefaultHistoryLimit.
func NewService(st *store.Store, quoter Quoter, v ItemValidator, historyLimit int) *Service {
	if historyLimit <= 0 || historyLimit > store.DefaultHistoryLimit {
		historyLimit = store.DefaultHistoryLimit
	}
	return &Service{
		store:        st,
		quoter:       quoter,
		validator:    v,
		historyLimit: historyLimit,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// AddItem validates an item against the market and starts tracking it.
func (s *Service) AddItem(ctx context.Context, marketHashName string, appID int) (*models.Item, error) {
	marketHashName = strings.TrimSpace(marketHashName)
	res := s.validator.Validate(ctx, marketHashName, appID)
	if !res.Valid {
		return nil, errs.New(errs.KindInvalid, res.Reason)
	}

	item, err := s.store.CreateItem(ctx, marketHashName, appID)
	if err != nil {
		return nil, err
	}
	logger.Info("[tracker] ✓ tracking %q (appid=%d, id=%d)", item.MarketHashName, item.SteamAppID, item.ID)
	return item, nil
}

// GetItem loads a tracked item.
func (s *Service) GetItem(ctx context.Context, itemID uint64) (*models.Item, error) {
	return s.store.GetItem(ctx, itemID)
}

// GetCurrentPrice returns a live quote for a tracked item without recording it.
func (s *Service) GetCurrentPrice(ctx context.Context, itemID uint64) (*PriceQuote, error) {
	item, err := s.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	return s.quote(ctx, item)
}

func (s *Service) quote(ctx context.Context, item *models.Item) (*PriceQuote, error) {
	q, err := s.quoter.GetPriceOverview(ctx, item.SteamAppID, item.MarketHashName)
	if err != nil {
		return nil, err
	}
	return &PriceQuote{
		ItemID:         item.ID,
		MarketHashName: item.MarketHashName,
		SteamAppID:     item.SteamAppID,
		CurrentPrice:   q.Price(),
		Volume:         q.VolumeCount(),
		FetchedAt:      s.now(),
	}, nil
}

// GetPriceHistory returns the most recent samples, newest first.
func (s *Service) GetPriceHistory(ctx context.Context, itemID uint64) ([]models.PriceSample, error) {
	if _, err := s.store.GetItem(ctx, itemID); err != nil {
		return nil, err
	}
	return s.store.History(ctx, itemID, s.historyLimit)
}

// GetTrend compares the two most recent samples of an item.
func (s *Service) GetTrend(ctx context.Context, itemID uint64) (Trend, error) {
	if _, err := s.store.GetItem(ctx, itemID); err != nil {
		return Trend{}, err
	}
	latest, err := s.store.History(ctx, itemID, 2)
	if err != nil {
		return Trend{}, err
	}
	return ComputeTrend(latest), nil
}

// Recorder appends price samples. It shares the quote computation with Service.
type Recorder struct {
	svc     *Service
	metrics *telemetry.Metrics
}

func NewRecorder(svc *Service, metrics *telemetry.Metrics) *Recorder {
	return &Recorder{svc: svc, metrics: metrics}
}

// RecordPrice fetches a live quote and appends exactly one sample for it. Nothing is written
// when the quote cannot be obtained.
func (r *Recorder) RecordPrice(ctx context.Context, itemID uint64) (*PriceQuote, error) {
	item, err := r.svc.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	pq, err := r.svc.quote(ctx, item)
	if err != nil {
		return nil, err
	}
	sample, err := r.svc.store.AppendSample(ctx, item.ID, pq.CurrentPrice)
	if err != nil {
		return nil, err
	}
	pq.FetchedAt = sample.RecordedAt
	r.metrics.RecordSample(ctx)
	return pq, nil
}

// Items lists every tracked item in creation order.
func (r *Recorder) Items(ctx context.Context) ([]models.Item, error) {
	return r.svc.store.ListItems(ctx)
}
