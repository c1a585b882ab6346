package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"steam-price-tracker/internal/export"
	"steam-price-tracker/internal/models"
	"steam-price-tracker/internal/services/steam"
	"steam-price-tracker/internal/services/tracker"
	"steam-price-tracker/internal/services/updater"
	"steam-price-tracker/internal/services/validator"
	"steam-price-tracker/internal/store"
	"steam-price-tracker/internal/testutil"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"
)

const secret = "s3cret"

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type server struct {
	market  *testutil.SteamMarket
	store   *store.Store
	svc     *tracker.Service
	updater *updater.Updater
	hub     *Hub
	router  *gin.Engine
}

func newServer(t *testing.T, cronSecret string) *server {
	t.Helper()
	market := testutil.NewSteamMarket(t)
	st := store.New(testutil.NewDB(t))
	client := steam.NewSteamService(steam.Options{BaseURL: market.URL(), Timeout: 2 * time.Second})
	svc := tracker.NewService(st, client, validator.New(client), 0)
	rec := tracker.NewRecorder(svc, nil)
	hub := NewHub()
	t.Cleanup(hub.Close)
	upd := updater.New(rec, updater.Options{Notifier: hub})

	return &server{
		market:  market,
		store:   st,
		svc:     svc,
		updater: upd,
		hub:     hub,
		router: NewRouter(Deps{
			Tracker:    svc,
			Recorder:   rec,
			Updater:    upd,
			Steam:      client,
			Hub:        hub,
			CronSecret: cronSecret,
		}),
	}
}

func (s *server) do(method, path, body string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *server) addItem(t *testing.T, name, price string) *models.Item {
	t.Helper()
	s.market.SetQuote(name, testutil.Quote(price, "", "42"))
	item, err := s.svc.AddItem(context.Background(), name, 730)
	if err != nil {
		t.Fatalf("add %q: %v", name, err)
	}
	return item
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
	Run     json.RawMessage `json:"run"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return env
}

func TestHealth(t *testing.T) {
	s := newServer(t, secret)
	if w := s.do(http.MethodGet, "/health", ""); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestAddItemRoute(t *testing.T) {
	s := newServer(t, secret)
	s.market.SetQuote("Falchion Case", testutil.Quote("$0.20", "$0.19", "12"))

	w := s.do(http.MethodPost, "/api/v1/items", `{"market_hash_name":"Falchion Case","steam_appid":730}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var item models.Item
	if err := json.Unmarshal(decode(t, w).Data, &item); err != nil || item.MarketHashName != "Falchion Case" || item.ID == 0 {
		t.Fatalf("unexpected item %+v (%v)", item, err)
	}

	w = s.do(http.MethodPost, "/api/v1/items", `{"market_hash_name":"Falchion Case","steam_appid":730}`)
	if w.Code != http.StatusConflict || decode(t, w).Success {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}

	w = s.do(http.MethodPost, "/api/v1/items", `{"market_hash_name":"Unknown Case","steam_appid":730}`)
	if w.Code != http.StatusUnprocessableEntity || decode(t, w).Error != "Item not found in Steam Market" {
		t.Fatalf("expected 422 not found, got %d: %s", w.Code, w.Body.String())
	}

	w = s.do(http.MethodPost, "/api/v1/items", `{"steam_appid":730}`)
	if w.Code != http.StatusUnprocessableEntity || decode(t, w).Error != validator.ReasonRequired {
		t.Fatalf("expected 422 required, got %d: %s", w.Code, w.Body.String())
	}

	w = s.do(http.MethodPost, "/api/v1/items", `{not json`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}

	if n, _ := s.store.CountItems(context.Background()); n != 1 {
		t.Fatalf("expected one stored item, got %d", n)
	}
}

func TestCurrentPriceRouteDoesNotRecord(t *testing.T) {
	s := newServer(t, secret)
	item := s.addItem(t, "Horizon Case", "$0.55")

	w := s.do(http.MethodGet, "/api/v1/items/"+itoa(item.ID)+"/price", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var pq tracker.PriceQuote
	if err := json.Unmarshal(decode(t, w).Data, &pq); err != nil || pq.CurrentPrice != 0.55 || pq.Volume != 42 {
		t.Fatalf("unexpected quote %+v (%v)", pq, err)
	}
	if n, _ := s.store.CountSamples(context.Background(), 0); n != 0 {
		t.Fatalf("price route must not record, found %d samples", n)
	}

	if w := s.do(http.MethodGet, "/api/v1/items/999/price", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown item, got %d", w.Code)
	}
	if w := s.do(http.MethodGet, "/api/v1/items/abc/price", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", w.Code)
	}

	s.market.SetQuote("Horizon Case", testutil.QuoteResponse{Broken: true})
	if w := s.do(http.MethodGet, "/api/v1/items/"+itoa(item.ID)+"/price", ""); w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 on fetch failure, got %d", w.Code)
	}
}

func TestHistoryAndItemRoutes(t *testing.T) {
	s := newServer(t, secret)
	item := s.addItem(t, "Shadow Case", "$0.10")
	id := itoa(item.ID)

	for _, price := range []string{"$0.10", "$0.12"} {
		s.market.SetQuote("Shadow Case", testutil.Quote(price, "", ""))
		if w := s.do(http.MethodPost, "/api/v1/admin/items/"+id+"/refresh", "", "Authorization", "Bearer "+secret); w.Code != http.StatusOK {
			t.Fatalf("refresh: %d %s", w.Code, w.Body.String())
		}
	}

	w := s.do(http.MethodGet, "/api/v1/items/"+id+"/history", "")
	var history []models.PriceSample
	if err := json.Unmarshal(decode(t, w).Data, &history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(history) != 2 || history[0].Price != 0.12 || history[1].Price != 0.10 {
		t.Fatalf("expected newest-first history, got %+v", history)
	}

	w = s.do(http.MethodGet, "/api/v1/items/"+id, "")
	var sum tracker.ItemSummary
	if err := json.Unmarshal(decode(t, w).Data, &sum); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if sum.MarketHashName != "Shadow Case" || sum.LatestPrice == nil || sum.Trend.Direction != tracker.DirectionUp {
		t.Fatalf("unexpected summary %+v", sum)
	}

	w = s.do(http.MethodGet, "/api/v1/items?q=shad", "")
	var list []tracker.ItemSummary
	if err := json.Unmarshal(decode(t, w).Data, &list); err != nil || len(list) != 1 {
		t.Fatalf("expected one search hit, got %+v (%v)", list, err)
	}

	w = s.do(http.MethodGet, "/api/v1/items/"+id+"/history/export", "")
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != export.ContentType {
		t.Fatalf("expected workbook, got %d %q", w.Code, w.Header().Get("Content-Type"))
	}
	if !strings.Contains(w.Header().Get("Content-Disposition"), "Shadow_Case-history.xlsx") {
		t.Fatalf("unexpected disposition %q", w.Header().Get("Content-Disposition"))
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("PK")) {
		t.Fatalf("expected a zip container")
	}

	if w := s.do(http.MethodGet, "/api/v1/items/77/history", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestAdminRefreshRequiresSecret(t *testing.T) {
	s := newServer(t, secret)
	item := s.addItem(t, "Chroma Case", "$1.00")

	for _, header := range []string{"", "Bearer wrong", secret, "bearer " + secret} {
		w := s.do(http.MethodPost, "/api/v1/admin/items/"+itoa(item.ID)+"/refresh", "", "Authorization", header)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401, got %d", header, w.Code)
		}
	}
	if n, _ := s.store.CountSamples(context.Background(), 0); n != 0 {
		t.Fatalf("rejected refresh must not record, found %d", n)
	}
}

func TestSteamPriceProxy(t *testing.T) {
	s := newServer(t, secret)
	s.market.SetQuote("Operation Breakout Weapon Case", testutil.Quote("$2.31", "$2.25", "1,024"))

	w := s.do(http.MethodGet, "/api/v1/steam-price?appId=730&marketHashName=Operation%20Breakout%20Weapon%20Case", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		Success     bool   `json:"success"`
		LowestPrice string `json:"lowest_price"`
		Volume      string `json:"volume"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || !body.Success || body.LowestPrice != "$2.31" || body.Volume != "1,024" {
		t.Fatalf("unexpected proxy body %s (%v)", w.Body.String(), err)
	}
	if q := s.market.Queries(); !strings.Contains(q[len(q)-1], "currency=1&") {
		t.Fatalf("expected default currency 1, got %q", q[len(q)-1])
	}

	if w := s.do(http.MethodGet, "/api/v1/steam-price?appId=730", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing name, got %d", w.Code)
	}
	if w := s.do(http.MethodGet, "/api/v1/steam-price?appId=730&marketHashName=Nope", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing price data, got %d", w.Code)
	}
	s.market.SetQuote("Flaky", testutil.QuoteResponse{Broken: true})
	if w := s.do(http.MethodGet, "/api/v1/steam-price?appId=730&marketHashName=Flaky&currency=3", ""); w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 on fetch failure, got %d", w.Code)
	}
}

func TestCronTrigger(t *testing.T) {
	s := newServer(t, secret)
	a := s.addItem(t, "A", "$1.00")
	b := s.addItem(t, "B", "$2.00")
	c := s.addItem(t, "C", "$3.00")
	s.market.SetQuote("B", testutil.QuoteResponse{Status: http.StatusOK, Body: `{"success":false}`})

	if w := s.do(http.MethodGet, "/api/cron/update-prices", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without header, got %d", w.Code)
	}
	if n, _ := s.store.CountSamples(context.Background(), 0); n != 0 {
		t.Fatalf("unauthorized trigger must not do work, found %d samples", n)
	}

	w := s.do(http.MethodGet, "/api/cron/update-prices", "", "Authorization", "Bearer "+secret)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	env := decode(t, w)
	if !env.Success || env.Message != "Price update completed successfully" {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
	var report updater.RunReport
	if err := json.Unmarshal(env.Run, &report); err != nil || report.Succeeded != 2 || report.Failed != 1 {
		t.Fatalf("unexpected report %+v (%v)", report, err)
	}

	for item, want := range map[*models.Item]int64{a: 1, b: 0, c: 1} {
		if n, _ := s.store.CountSamples(context.Background(), item.ID); n != want {
			t.Fatalf("item %s: expected %d samples, got %d", item.MarketHashName, want, n)
		}
	}

	if w := s.do(http.MethodPost, "/api/cron/update-prices", "", "Authorization", "Bearer "+secret); w.Code != http.StatusOK {
		t.Fatalf("expected POST to be accepted, got %d", w.Code)
	}

	w = s.do(http.MethodGet, "/api/v1/updater/status", "")
	var stats updater.Stats
	if err := json.Unmarshal(decode(t, w).Data, &stats); err != nil || stats.Runs != 2 || stats.LastRun == nil {
		t.Fatalf("unexpected stats %+v (%v)", stats, err)
	}
}

func TestCronTriggerWithoutConfiguredSecret(t *testing.T) {
	s := newServer(t, "")
	for _, header := range []string{"", "Bearer ", "Bearer anything"} {
		w := s.do(http.MethodGet, "/api/cron/update-prices", "", "Authorization", header)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401, got %d", header, w.Code)
		}
		if env := decode(t, w); env.Success || env.Error != "Unauthorized" {
			t.Fatalf("unexpected body %s", w.Body.String())
		}
	}
}

func TestAuthorized(t *testing.T) {
	cases := []struct {
		secret, header string
		want           bool
	}{
		{"abc", "Bearer abc", true},
		{"abc", "Bearer abcd", false},
		{"abc", "Bearer ab", false},
		{"abc", "abc", false},
		{"", "Bearer ", false},
		{"", "", false},
	}
	for _, tc := range cases {
		if got := authorized(tc.secret, tc.header); got != tc.want {
			t.Fatalf("authorized(%q, %q) = %v, want %v", tc.secret, tc.header, got, tc.want)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	s := newServer(t, secret)
	w := s.do(http.MethodOptions, "/api/v1/items", "")
	if w.Code != http.StatusNoContent || w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("expected CORS preflight, got %d", w.Code)
	}
}

func itoa(id uint64) string { return strconv.FormatUint(id, 10) }
