// Package store persists tracked items and their price history.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"steam-price-tracker/internal/errs"
	"steam-price-tracker/internal/models"

	"gorm.io/gorm"
)

// DefaultHistoryLimit caps history queries when the caller passes a non-positive limit.
const DefaultHistoryLimit = 100

// Store is the gorm-backed price store.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// New returns a store that stamps samples with the current UTC time.
func New(db *gorm.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock overrides the clock used for recorded_at, primarily for testing.
func (s *Store) WithClock(now func() time.Time) *Store {
	if now != nil {
		s.now = now
	}
	return s
}

// CreateItem inserts a new item. A duplicate market hash name yields a conflict error and
// no row is written.
func (s *Store) CreateItem(ctx context.Context, marketHashName string, appID int) (*models.Item, error) {
	item := models.Item{
		MarketHashName: marketHashName,
		SteamAppID:     appID,
		CreatedAt:      s.now(),
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Item{}).Where("market_hash_name = ?", marketHashName).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return errDuplicate
		}
		return tx.Create(&item).Error
	})
	if err != nil {
		if errors.Is(err, errDuplicate) || isDuplicateKey(err) {
			return nil, errs.New(errs.KindConflict, fmt.Sprintf("item %q is already tracked", marketHashName))
		}
		return nil, errs.Wrap(errs.KindInternal, "failed to add item", err)
	}
	return &item, nil
}

// GetItem loads an item by id.
func (s *Store) GetItem(ctx context.Context, id uint64) (*models.Item, error) {
	var item models.Item
	if err := s.db.WithContext(ctx).First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.New(errs.KindNotFoundLocal, "Item not found")
		}
		return nil, errs.Wrap(errs.KindInternal, "failed to load item", err)
	}
	return &item, nil
}

// ListItems returns every tracked item in creation order.
func (s *Store) ListItems(ctx context.Context) ([]models.Item, error) {
	var items []models.Item
	if err := s.db.WithContext(ctx).Order("id asc").Find(&items).Error; err != nil {
		return nil, errs.Wrap(errs.KindInternal, "failed to list items", err)
	}
	return items, nil
}

// DeleteItem removes an item; the database cascades the delete to its samples.
func (s *Store) DeleteItem(ctx context.Context, id uint64) error {
	res := s.db.WithContext(ctx).Delete(&models.Item{}, id)
	if res.Error != nil {
		return errs.Wrap(errs.KindInternal, "failed to delete item", res.Error)
	}
	if res.RowsAffected == 0 {
		return errs.New(errs.KindNotFoundLocal, "Item not found")
	}
	return nil
}

// AppendSample records a price for an item with recorded_at set to the store clock.
func (s *Store) AppendSample(ctx context.Context, itemID uint64, price float64) (*models.PriceSample, error) {
	if price < 0 {
		return nil, errs.New(errs.KindInvalid, fmt.Sprintf("price must not be negative, got %v", price))
	}
	sample := models.PriceSample{
		ItemID:     itemID,
		Price:      price,
		RecordedAt: s.now(),
	}
	if err := s.db.WithContext(ctx).Create(&sample).Error; err != nil {
		if errors.Is(err, gorm.ErrForeignKeyViolated) {
			return nil, errs.New(errs.KindNotFoundLocal, "Item not found")
		}
		return nil, errs.Wrap(errs.KindInternal, "failed to record price", err)
	}
	return &sample, nil
}

// History returns the newest samples for an item, newest first, capped at limit.
func (s *Store) History(ctx context.Context, itemID uint64, limit int) ([]models.PriceSample, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	var samples []models.PriceSample
	err := s.db.WithContext(ctx).
		Where("item_id = ?", itemID).
		Order("recorded_at desc").
		Order("id desc").
		Limit(limit).
		Find(&samples).Error
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "failed to fetch price history", err)
	}
	return samples, nil
}

// CountSamples returns how many samples an item has, or all samples when itemID is 0.
func (s *Store) CountSamples(ctx context.Context, itemID uint64) (int64, error) {
	q := s.db.WithContext(ctx).Model(&models.PriceSample{})
	if itemID != 0 {
		q = q.Where("item_id = ?", itemID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return 0, errs.Wrap(errs.KindInternal, "failed to count samples", err)
	}
	return n, nil
}

// CountItems returns the number of tracked items.
func (s *Store) CountItems(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Item{}).Count(&n).Error; err != nil {
		return 0, errs.Wrap(errs.KindInternal, "failed to count items", err)
	}
	return n, nil
}

var errDuplicate = errors.New("duplicate market hash name")

// isDuplicateKey catches unique violations from drivers that do not translate errors.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") ||
		strings.Contains(msg, "duplicate entry") ||
		strings.Contains(msg, "duplicate key value")
}
