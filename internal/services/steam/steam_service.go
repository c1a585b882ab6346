package steam

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"steam-price-tracker/internal/errs"
	"steam-price-tracker/internal/logger"
	"steam-price-tracker/internal/telemetry"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultBaseURL  = "https://steamcommunity.com"
	DefaultCurrency = 20

	endpointPriceOverview = "priceoverview"
	endpointListing       = "listing"
)

// ErrNotFoundMessage is the text shown when the market does not know an item.
const ErrNotFoundMessage = "Item not found in Steam Market"

type Options struct {
	BaseURL   string
	Currency  int
	UserAgent string
	Timeout   time.Duration
	Metrics   *telemetry.Metrics
}

// SteamService talks to the public Steam Community Market pages.
type SteamService struct {
	baseURL  string
	currency int
	client   *resty.Client
	metrics  *telemetry.Metrics
}

func NewSteamService(opts Options) *SteamService {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Currency <= 0 {
		opts.Currency = DefaultCurrency
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	client := resty.New()
	client.SetTimeout(opts.Timeout)
	// The market answers inconsistently to requests without a browser User-Agent
	if opts.UserAgent != "" {
		client.SetHeader("User-Agent", opts.UserAgent)
	}
	client.SetHeader("Accept", "application/json, text/html;q=0.9")

	return &SteamService{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		currency: opts.Currency,
		client:   client,
		metrics:  opts.Metrics,
	}
}

// GetPriceOverview fetches the quote for an item in the configured currency.
func (s *SteamService) GetPriceOverview(ctx context.Context, appID int, marketHashName string) (*Quote, error) {
	return s.GetPriceOverviewIn(ctx, appID, marketHashName, s.currency)
}

// GetPriceOverviewIn fetches the quote for an item in an explicit currency.
//
// A non-2xx status, success=false, or a body without a usable price is reported as
// errs.KindNotFoundExternal. Transport, timeout and decoding failures are errs.KindFetchFailed.
func (s *SteamService) GetPriceOverviewIn(ctx context.Context, appID int, marketHashName string, currency int) (*Quote, error) {
	reqURL := fmt.Sprintf("%s/market/priceoverview/?appid=%d&currency=%d&market_hash_name=%s",
		s.baseURL, appID, currency, encodeComponent(marketHashName))

	start := time.Now()
	resp, err := s.client.R().SetContext(ctx).Get(reqURL)
	if err != nil {
		s.metrics.RecordQuote(ctx, endpointPriceOverview, string(errs.KindFetchFailed), time.Since(start))
		logger.Debug("[steam] priceoverview %q failed: %v", marketHashName, err)
		return nil, errs.Wrap(errs.KindFetchFailed, "Failed to fetch price from Steam Market", err)
	}

	quote, err := s.interpretPriceOverview(resp.StatusCode(), resp.IsSuccess(), resp.Body())
	outcome := "ok"
	if err != nil {
		outcome = string(errs.KindOf(err))
	}
	s.metrics.RecordQuote(ctx, endpointPriceOverview, outcome, time.Since(start))
	if err != nil {
		logger.Debug("[steam] priceoverview %q (appid=%d): %v", marketHashName, appID, err)
		return nil, err
	}
	return quote, nil
}

func (s *SteamService) interpretPriceOverview(status int, ok bool, body []byte) (*Quote, error) {
	if !ok {
		return nil, errs.New(errs.KindNotFoundExternal, fmt.Sprintf("%s (HTTP %d)", ErrNotFoundMessage, status))
	}
	quote, err := DecodeQuote(body)
	if err != nil {
		return nil, errs.Wrap(errs.KindFetchFailed, "Failed to parse Steam Market response", err)
	}
	if !quote.Success {
		return nil, errs.New(errs.KindNotFoundExternal, ErrNotFoundMessage)
	}
	if !quote.HasPrice() {
		return nil, errs.New(errs.KindNotFoundExternal, ErrNotFoundMessage)
	}
	return quote, nil
}

// CheckListing confirms the item's listing page resolves. Only the status code is consulted.
func (s *SteamService) CheckListing(ctx context.Context, appID int, marketHashName string) error {
	reqURL := ListingURL(s.baseURL, appID, marketHashName)

	start := time.Now()
	resp, err := s.client.R().SetContext(ctx).SetDoNotParseResponse(true).Get(reqURL)
	if err != nil {
		s.metrics.RecordQuote(ctx, endpointListing, string(errs.KindFetchFailed), time.Since(start))
		return errs.Wrap(errs.KindFetchFailed, "Failed to fetch listing page", err)
	}
	if raw := resp.RawBody(); raw != nil {
		_ = raw.Close()
	}
	if !resp.IsSuccess() {
		s.metrics.RecordQuote(ctx, endpointListing, string(errs.KindNotFoundExternal), time.Since(start))
		return errs.New(errs.KindNotFoundExternal, fmt.Sprintf("%s (listing HTTP %d)", ErrNotFoundMessage, resp.StatusCode()))
	}
	s.metrics.RecordQuote(ctx, endpointListing, "ok", time.Since(start))
	return nil
}

// encodeComponent percent-encodes a query value the way browsers' encodeURIComponent does,
// i.e. spaces become %20 rather than '+'.
func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// ListingURL returns the public listing page for an item.
func ListingURL(baseURL string, appID int, marketHashName string) string {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return strings.TrimRight(baseURL, "/") + "/market/listings/" + strconv.Itoa(appID) + "/" + url.PathEscape(marketHashName)
}
