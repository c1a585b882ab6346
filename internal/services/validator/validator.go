// Package validator decides whether a market hash name is a real, priced Steam market item.
package validator

import (
	"context"
	"strings"

	"steam-price-tracker/internal/errs"
	"steam-price-tracker/internal/logger"
	"steam-price-tracker/internal/services/steam"
)

const (
	ReasonRequired = "market hash name and app id are required"
	ReasonNotFound = steam.ErrNotFoundMessage
	ReasonFailed   = "Failed to validate item"
)

// Market is the part of the quote client the validator needs.
type Market interface {
	GetPriceOverview(ctx context.Context, appID int, marketHashName string) (*steam.Quote, error)
	CheckListing(ctx context.Context, appID int, marketHashName string) error
}

// Result is the outcome of a validation. Reason is empty when Valid is true.
type Result struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

type Validator struct {
	market Market
}

func New(market Market) *Validator {
	return &Validator{market: market}
}

// Validate requires a usable quote and a resolvable listing page. It never returns an error:
// lookup failures make the item invalid.
func (v *Validator) Validate(ctx context.Context, marketHashName string, appID int) Result {
	if strings.TrimSpace(marketHashName) == "" || appID <= 0 {
		return Result{Reason: ReasonRequired}
	}

	if _, err := v.market.GetPriceOverview(ctx, appID, marketHashName); err != nil {
		return rejected(marketHashName, "price overview", err)
	}
	if err := v.market.CheckListing(ctx, appID, marketHashName); err != nil {
		return rejected(marketHashName, "listing", err)
	}
	return Result{Valid: true}
}

func rejected(name, step string, err error) Result {
	if errs.Is(err, errs.KindNotFoundExternal) {
		logger.Debug("[validator] %q rejected at %s: %v", name, step, err)
		return Result{Reason: ReasonNotFound}
	}
	logger.Warn("[validator] %q could not be validated (%s): %v", name, step, err)
	return Result{Reason: ReasonFailed}
}
