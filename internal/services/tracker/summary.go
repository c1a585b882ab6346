package tracker

import (
	"context"
	"strings"

	"steam-price-tracker/internal/models"

	"github.com/sahilm/fuzzy"
)

// ItemSummary is one dashboard row: the item with its latest recorded price and trend.
type ItemSummary struct {
	models.Item
	LatestPrice *models.PriceSample `json:"latest_price,omitempty"`
	Trend       Trend               `json:"trend"`
}

type itemNames []models.Item

func (n itemNames) String(i int) string { return n[i].MarketHashName }
func (n itemNames) Len() int            { return len(n) }

// ListItems returns dashboard summaries. A non-empty query keeps only fuzzy matches on the
// market hash name, best match first; otherwise items are in creation order.
func (s *Service) ListItems(ctx context.Context, query string) ([]ItemSummary, error) {
	items, err := s.store.ListItems(ctx)
	if err != nil {
		return nil, err
	}

	if q := strings.TrimSpace(query); q != "" {
		matches := fuzzy.FindFrom(q, itemNames(items))
		ranked := make([]models.Item, 0, len(matches))
		for _, m := range matches {
			ranked = append(ranked, items[m.Index])
		}
		items = ranked
	}

	out := make([]ItemSummary, 0, len(items))
	for _, item := range items {
		sum, err := s.summarize(ctx, item)
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, nil
}

// GetItemSummary returns one item with its latest sample and trend.
func (s *Service) GetItemSummary(ctx context.Context, itemID uint64) (*ItemSummary, error) {
	item, err := s.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	sum, err := s.summarize(ctx, *item)
	if err != nil {
		return nil, err
	}
	return &sum, nil
}

func (s *Service) summarize(ctx context.Context, item models.Item) (ItemSummary, error) {
	latest, err := s.store.History(ctx, item.ID, 2)
	if err != nil {
		return ItemSummary{}, err
	}
	sum := ItemSummary{Item: item, Trend: ComputeTrend(latest)}
	if len(latest) > 0 {
		sample := latest[0]
		sum.LatestPrice = &sample
	}
	return sum, nil
}
