// Package testutil holds shared fixtures for package tests: a throwaway SQLite database and
// a fake Steam market server.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"steam-price-tracker/internal/database"

	json "github.com/goccy/go-json"
	"gorm.io/gorm"
)

// NewDB opens a migrated SQLite database in a temp dir that is closed with the test.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := database.Initialize("sqlite://" + filepath.Join(t.TempDir(), "tracker.db"))
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

// QuoteResponse is what the fake market answers for one market hash name.
type QuoteResponse struct {
	Status int
	Body   string
	// Broken closes the connection without answering.
	Broken bool
}

// Quote builds a successful priceoverview body.
func Quote(lowest, median, volume string) QuoteResponse {
	body := map[string]interface{}{"success": true}
	if lowest != "" {
		body["lowest_price"] = lowest
	}
	if median != "" {
		body["median_price"] = median
	}
	if volume != "" {
		body["volume"] = volume
	}
	raw, _ := json.Marshal(body)
	return QuoteResponse{Status: http.StatusOK, Body: string(raw)}
}

// SteamMarket fakes the two Steam endpoints the tracker talks to.
type SteamMarket struct {
	Server *httptest.Server

	// Delay is applied to every priceoverview request.
	Delay time.Duration

	mu         sync.Mutex
	quotes     map[string]QuoteResponse
	listings   map[string]int
	userAgents []string
	queries    []string

	inflight    int32
	maxInflight int32
	quoteCalls  int32
}

// NewSteamMarket starts a fake market that is shut down with the test.
func NewSteamMarket(t testing.TB) *SteamMarket {
	t.Helper()
	m := &SteamMarket{
		quotes:   map[string]QuoteResponse{},
		listings: map[string]int{},
	}
	m.Server = httptest.NewServer(http.HandlerFunc(m.serve))
	t.Cleanup(m.Server.Close)
	return m
}

// URL is the base URL to configure the client with.
func (m *SteamMarket) URL() string { return m.Server.URL }

// SetQuote configures the priceoverview answer for name.
func (m *SteamMarket) SetQuote(name string, resp QuoteResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quotes[name] = resp
}

// SetListingStatus configures the listing page status for name.
func (m *SteamMarket) SetListingStatus(name string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listings[name] = status
}

// QuoteCalls returns how many priceoverview requests were served.
func (m *SteamMarket) QuoteCalls() int { return int(atomic.LoadInt32(&m.quoteCalls)) }

// MaxInflight returns the highest number of concurrent priceoverview requests observed.
func (m *SteamMarket) MaxInflight() int { return int(atomic.LoadInt32(&m.maxInflight)) }

// UserAgents returns the User-Agent headers received so far.
func (m *SteamMarket) UserAgents() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.userAgents...)
}

// Queries returns the raw query strings of priceoverview requests.
func (m *SteamMarket) Queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.queries...)
}

func (m *SteamMarket) serve(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.userAgents = append(m.userAgents, r.Header.Get("User-Agent"))
	m.mu.Unlock()

	switch {
	case strings.HasPrefix(r.URL.Path, "/market/priceoverview"):
		m.servePriceOverview(w, r)
	case strings.HasPrefix(r.URL.Path, "/market/listings/"):
		m.serveListing(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (m *SteamMarket) servePriceOverview(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&m.quoteCalls, 1)
	n := atomic.AddInt32(&m.inflight, 1)
	defer atomic.AddInt32(&m.inflight, -1)
	for {
		max := atomic.LoadInt32(&m.maxInflight)
		if n <= max || atomic.CompareAndSwapInt32(&m.maxInflight, max, n) {
			break
		}
	}
	if m.Delay > 0 {
		time.Sleep(m.Delay)
	}

	name := r.URL.Query().Get("market_hash_name")
	m.mu.Lock()
	m.queries = append(m.queries, r.URL.RawQuery)
	resp, ok := m.quotes[name]
	m.mu.Unlock()

	if !ok {
		resp = QuoteResponse{Status: http.StatusOK, Body: `{"success":false}`}
	}
	if resp.Broken {
		if hj, ok := w.(http.Hijacker); ok {
			conn, _, err := hj.Hijack()
			if err == nil {
				_ = conn.Close()
				return
			}
		}
		panic(http.ErrAbortHandler)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Status)
	_, _ = w.Write([]byte(resp.Body))
}

func (m *SteamMarket) serveListing(w http.ResponseWriter, r *http.Request) {
	// /market/listings/{appid}/{name}
	rest := strings.TrimPrefix(r.URL.Path, "/market/listings/")
	parts := strings.SplitN(rest, "/", 2)
	name := ""
	if len(parts) == 2 {
		name = parts[1]
	}
	m.mu.Lock()
	status, ok := m.listings[name]
	_, quoted := m.quotes[name]
	m.mu.Unlock()
	if !ok {
		status = http.StatusNotFound
		if quoted {
			status = http.StatusOK
		}
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte("<html></html>"))
}
