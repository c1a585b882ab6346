package steam

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"steam-price-tracker/internal/errs"
	"steam-price-tracker/internal/testutil"
)

const testUA = "Mozilla/5.0 (test)"

func newService(t *testing.T, market *testutil.SteamMarket) *SteamService {
	t.Helper()
	return NewSteamService(Options{
		BaseURL:   market.URL(),
		Currency:  20,
		UserAgent: testUA,
		Timeout:   2 * time.Second,
	})
}

func TestGetPriceOverviewSuccess(t *testing.T) {
	market := testutil.NewSteamMarket(t)
	market.SetQuote("AK-47 | Redline (Field-Tested)", testutil.Quote("CDN$ 12.34", "CDN$ 12.00", "1,234"))
	svc := newService(t, market)

	q, err := svc.GetPriceOverview(context.Background(), 730, "AK-47 | Redline (Field-Tested)")
	if err != nil {
		t.Fatalf("get price overview: %v", err)
	}
	if q.Price() != 12.34 {
		t.Fatalf("expected 12.34, got %v", q.Price())
	}
	if q.VolumeCount() != 1234 {
		t.Fatalf("expected volume 1234, got %d", q.VolumeCount())
	}

	queries := market.Queries()
	if len(queries) != 1 {
		t.Fatalf("expected one request, got %d", len(queries))
	}
	if !strings.Contains(queries[0], "appid=730") || !strings.Contains(queries[0], "currency=20") {
		t.Fatalf("missing appid/currency in %q", queries[0])
	}
	if !strings.Contains(queries[0], "market_hash_name=AK-47%20%7C%20Redline%20%28Field-Tested%29") {
		t.Fatalf("expected percent-encoded name, got %q", queries[0])
	}
	if ua := market.UserAgents(); len(ua) == 0 || ua[0] != testUA {
		t.Fatalf("expected browser user agent header, got %v", ua)
	}
}

func TestGetPriceOverviewInOverridesCurrency(t *testing.T) {
	market := testutil.NewSteamMarket(t)
	market.SetQuote("Chroma 2 Case", testutil.Quote("$0.50", "", ""))
	svc := newService(t, market)

	if _, err := svc.GetPriceOverviewIn(context.Background(), 730, "Chroma 2 Case", 1); err != nil {
		t.Fatalf("get: %v", err)
	}
	if q := market.Queries(); !strings.Contains(q[0], "currency=1&") {
		t.Fatalf("expected currency=1, got %q", q[0])
	}
}

func TestGetPriceOverviewNotFoundCases(t *testing.T) {
	cases := map[string]testutil.QuoteResponse{
		"http error":    {Status: http.StatusInternalServerError, Body: `[]`},
		"too many":      {Status: http.StatusTooManyRequests, Body: `null`},
		"success false": {Status: http.StatusOK, Body: `{"success":false}`},
		"no prices":     {Status: http.StatusOK, Body: `{"success":true,"volume":"3"}`},
		"zero prices":   {Status: http.StatusOK, Body: `{"success":true,"lowest_price":"0","median_price":"0"}`},
		"no success":    {Status: http.StatusOK, Body: `{"lowest_price":"$1.00"}`},
	}
	for name, resp := range cases {
		t.Run(name, func(t *testing.T) {
			market := testutil.NewSteamMarket(t)
			market.SetQuote("Item", resp)
			_, err := newService(t, market).GetPriceOverview(context.Background(), 730, "Item")
			if !errs.Is(err, errs.KindNotFoundExternal) {
				t.Fatalf("expected not_found_external, got %v", err)
			}
		})
	}
}

func TestGetPriceOverviewFetchFailures(t *testing.T) {
	t.Run("malformed body", func(t *testing.T) {
		market := testutil.NewSteamMarket(t)
		market.SetQuote("Item", testutil.QuoteResponse{Status: http.StatusOK, Body: `<html>busy</html>`})
		_, err := newService(t, market).GetPriceOverview(context.Background(), 730, "Item")
		if !errs.Is(err, errs.KindFetchFailed) {
			t.Fatalf("expected fetch_failed, got %v", err)
		}
	})

	t.Run("connection dropped", func(t *testing.T) {
		market := testutil.NewSteamMarket(t)
		market.SetQuote("Item", testutil.QuoteResponse{Broken: true})
		_, err := newService(t, market).GetPriceOverview(context.Background(), 730, "Item")
		if !errs.Is(err, errs.KindFetchFailed) {
			t.Fatalf("expected fetch_failed, got %v", err)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		market := testutil.NewSteamMarket(t)
		market.Delay = 300 * time.Millisecond
		market.SetQuote("Item", testutil.Quote("$1.00", "", ""))
		svc := NewSteamService(Options{BaseURL: market.URL(), Timeout: 50 * time.Millisecond})
		_, err := svc.GetPriceOverview(context.Background(), 730, "Item")
		if !errs.Is(err, errs.KindFetchFailed) {
			t.Fatalf("expected timeout to be fetch_failed, got %v", err)
		}
	})

	t.Run("unreachable", func(t *testing.T) {
		svc := NewSteamService(Options{BaseURL: "http://127.0.0.1:1", Timeout: time.Second})
		_, err := svc.GetPriceOverview(context.Background(), 730, "Item")
		if !errs.Is(err, errs.KindFetchFailed) {
			t.Fatalf("expected fetch_failed, got %v", err)
		}
	})
}

func TestCheckListing(t *testing.T) {
	market := testutil.NewSteamMarket(t)
	market.SetListingStatus("Glove Case", http.StatusOK)
	market.SetListingStatus("Ghost Case", http.StatusNotFound)
	svc := newService(t, market)

	if err := svc.CheckListing(context.Background(), 730, "Glove Case"); err != nil {
		t.Fatalf("expected listing to resolve: %v", err)
	}
	if err := svc.CheckListing(context.Background(), 730, "Ghost Case"); !errs.Is(err, errs.KindNotFoundExternal) {
		t.Fatalf("expected not_found_external, got %v", err)
	}

	unreachable := NewSteamService(Options{BaseURL: "http://127.0.0.1:1", Timeout: time.Second})
	if err := unreachable.CheckListing(context.Background(), 730, "Glove Case"); !errs.Is(err, errs.KindFetchFailed) {
		t.Fatalf("expected fetch_failed, got %v", err)
	}
}

func TestListingURL(t *testing.T) {
	got := ListingURL("", 730, "Sticker | Team Liquid (Holo)")
	want := "https://steamcommunity.com/market/listings/730/Sticker%20%7C%20Team%20Liquid%20%28Holo%29"
	if got != want {
		t.Fatalf("ListingURL = %q, want %q", got, want)
	}
}
