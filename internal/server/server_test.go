package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/dstanton/folio/internal/app"
	"github.com/dstanton/folio/internal/common"
	"github.com/dstanton/folio/internal/interfaces"
	"github.com/dstanton/folio/internal/models"
)

// --- In-memory test doubles ---

type memInternalStore struct {
	users map[string]*models.User
	kv    map[string]string
}

func (m *memInternalStore) GetUser(_ context.Context, userID string) (*models.User, error) {
	u, ok := m.users[userID]
	if !ok {
		return nil, fmt.Errorf("user '%s' not found", userID)
	}
	return u, nil
}

func (m *memInternalStore) SaveUser(_ context.Context, u *models.User) error {
	m.users[u.UserID] = u
	return nil
}

func (m *memInternalStore) DeleteUser(_ context.Context, userID string) error {
	delete(m.users, userID)
	return nil
}

func (m *memInternalStore) ListUsers(_ context.Context) ([]string, error) {
	ids := make([]string, 0, len(m.users))
	for id := range m.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *memInternalStore) GetSystemKV(_ context.Context, key string) (string, error) {
	v, ok := m.kv[key]
	if !ok {
		return "", fmt.Errorf("key '%s' not found", key)
	}
	return v, nil
}

func (m *memInternalStore) SetSystemKV(_ context.Context, key, value string) error {
	m.kv[key] = value
	return nil
}

func (m *memInternalStore) Close() error { return nil }

type memHoldingStore struct {
	holdings map[string]*models.Holding // keyed user|id
}

func (m *memHoldingStore) Get(_ context.Context, userID, id string) (*models.Holding, error) {
	h, ok := m.holdings[userID+"|"+id]
	if !ok {
		return nil, fmt.Errorf("holding '%s' not found for user '%s'", id, userID)
	}
	return h, nil
}

func (m *memHoldingStore) Save(_ context.Context, h *models.Holding) error {
	m.holdings[h.UserID+"|"+h.ID] = h
	return nil
}

func (m *memHoldingStore) Delete(_ context.Context, userID, id string) error {
	key := userID + "|" + id
	if _, ok := m.holdings[key]; !ok {
		return fmt.Errorf("holding '%s' not found", id)
	}
	delete(m.holdings, key)
	return nil
}

func (m *memHoldingStore) ListByUser(_ context.Context, userID string) ([]*models.Holding, error) {
	var out []*models.Holding
	for _, h := range m.holdings {
		if h.UserID == userID {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (m *memHoldingStore) ListUserIDs(_ context.Context) ([]string, error) {
	seen := map[string]bool{}
	var ids []string
	for _, h := range m.holdings {
		if !seen[h.UserID] {
			seen[h.UserID] = true
			ids = append(ids, h.UserID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

type memSnapshotStore struct {
	snapshots map[string]*models.PortfolioSnapshot // keyed user|date
}

func (m *memSnapshotStore) Upsert(_ context.Context, snap *models.PortfolioSnapshot) error {
	m.snapshots[snap.UserID+"|"+snap.Date] = snap
	return nil
}

func (m *memSnapshotStore) Get(_ context.Context, userID, date string) (*models.PortfolioSnapshot, error) {
	s, ok := m.snapshots[userID+"|"+date]
	if !ok {
		return nil, fmt.Errorf("no snapshot")
	}
	return s, nil
}

func (m *memSnapshotStore) ListByUser(_ context.Context, userID string) ([]*models.PortfolioSnapshot, error) {
	var out []*models.PortfolioSnapshot
	for _, s := range m.snapshots {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (m *memSnapshotStore) DeleteByUser(_ context.Context, userID string) (int, error) {
	n := 0
	for k, s := range m.snapshots {
		if s.UserID == userID {
			delete(m.snapshots, k)
			n++
		}
	}
	return n, nil
}

type memStorage struct {
	internal *memInternalStore
	holding  *memHoldingStore
	snapshot *memSnapshotStore
}

func newMemStorage() *memStorage {
	return &memStorage{
		internal: &memInternalStore{users: map[string]*models.User{}, kv: map[string]string{}},
		holding:  &memHoldingStore{holdings: map[string]*models.Holding{}},
		snapshot: &memSnapshotStore{snapshots: map[string]*models.PortfolioSnapshot{}},
	}
}

func (m *memStorage) InternalStore() interfaces.InternalStore { return m.internal }
func (m *memStorage) HoldingStore() interfaces.HoldingStore   { return m.holding }
func (m *memStorage) SnapshotStore() interfaces.SnapshotStore { return m.snapshot }
func (m *memStorage) Close() error                            { return nil }

// --- Stub services ---

type stubPriceService struct {
	quote  *models.Quote
	search *models.SearchResult
}

func (s *stubPriceService) GetQuote(_ context.Context, symbol string) *models.Quote {
	if s.quote != nil {
		return s.quote
	}
	return &models.Quote{Symbol: symbol, Source: models.QuoteSourceMock, Error: models.QuoteErrNoPrice}
}

func (s *stubPriceService) SearchSymbols(_ context.Context, _ string) *models.SearchResult {
	if s.search != nil {
		return s.search
	}
	return &models.SearchResult{Results: []models.SymbolMatch{}}
}

func (s *stubPriceService) GetDailySeries(_ context.Context, _ string, _ int) models.PriceSeries {
	return models.PriceSeries{}
}

type stubPortfolioService struct {
	points    []models.AggregatedPoint
	summary   *models.PortfolioSummary
	chart     []byte
	chartErr  error
	lastBase  string
	lastDays  int
	lastRes   models.Resolution
	seriesErr error
}

func (s *stubPortfolioService) ValueSeries(_ context.Context, _ string, rangeDays int, base string, res models.Resolution) ([]models.AggregatedPoint, error) {
	s.lastDays = rangeDays
	s.lastBase = base
	s.lastRes = res
	if s.seriesErr != nil {
		return nil, s.seriesErr
	}
	return s.points, nil
}

func (s *stubPortfolioService) Summary(_ context.Context, userID, base string) (*models.PortfolioSummary, error) {
	s.lastBase = base
	if s.summary != nil {
		return s.summary, nil
	}
	return &models.PortfolioSummary{UserID: userID, BaseCurrency: base}, nil
}

func (s *stubPortfolioService) RenderChart(_ context.Context, _ string, rangeDays int, base string) ([]byte, error) {
	s.lastDays = rangeDays
	s.lastBase = base
	if s.chartErr != nil {
		return nil, s.chartErr
	}
	return s.chart, nil
}

type stubSnapshotService struct {
	written int
	runs    int
}

func (s *stubSnapshotService) RunDailySnapshot(_ context.Context) (int, error) {
	s.runs++
	return s.written, nil
}

type testEnv struct {
	storage   *memStorage
	portfolio *stubPortfolioService
	price     *stubPriceService
	snapshot  *stubSnapshotService
	handler   http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		storage:   newMemStorage(),
		portfolio: &stubPortfolioService{},
		price:     &stubPriceService{},
		snapshot:  &stubSnapshotService{},
	}
	a := &app.App{
		Config:           common.NewDefaultConfig(),
		Logger:           common.NewSilentLogger(),
		Storage:          env.storage,
		PriceService:     env.price,
		PortfolioService: env.portfolio,
		SnapshotService:  env.snapshot,
	}
	env.handler = NewServer(a).Handler()
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v (body: %s)", err, rec.Body.String())
	}
}

// --- Tests ---

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	decodeBody(t, rec, &body)
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestUserLifecycle(t *testing.T) {
	env := newTestEnv(t)

	// Create
	rec := env.do(t, http.MethodPost, "/api/users", map[string]string{
		"user_id":       "alice",
		"base_currency": "usd",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}
	var created models.User
	decodeBody(t, rec, &created)
	if created.BaseCurrency != "USD" {
		t.Errorf("BaseCurrency = %q, want USD (normalized)", created.BaseCurrency)
	}

	// Get
	rec = env.do(t, http.MethodGet, "/api/users/alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	// List
	rec = env.do(t, http.MethodGet, "/api/users", nil)
	var list struct {
		Users []string `json:"users"`
	}
	decodeBody(t, rec, &list)
	if len(list.Users) != 1 || list.Users[0] != "alice" {
		t.Errorf("users = %v", list.Users)
	}

	// Delete removes the profile and snapshot history
	env.storage.snapshot.snapshots["alice|2024-03-15"] = &models.PortfolioSnapshot{UserID: "alice", Date: "2024-03-15"}
	rec = env.do(t, http.MethodDelete, "/api/users/alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if len(env.storage.snapshot.snapshots) != 0 {
		t.Error("snapshots not purged with user")
	}

	rec = env.do(t, http.MethodGet, "/api/users/alice", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", rec.Code)
	}
}

func TestCreateUserRequiresID(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/users", map[string]string{"email": "x@y.z"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHoldingLifecycle(t *testing.T) {
	env := newTestEnv(t)

	// Create assigns an ID and normalizes the symbol
	rec := env.do(t, http.MethodPost, "/api/users/alice/holdings", map[string]interface{}{
		"symbol":       "aapl",
		"quantity":     10,
		"average_cost": 150.0,
		"currency":     "usd",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}
	var created models.Holding
	decodeBody(t, rec, &created)
	if created.ID == "" {
		t.Error("ID not assigned")
	}
	if created.Symbol != "AAPL" || created.Currency != "USD" {
		t.Errorf("not normalized: %+v", created)
	}
	if created.UserID != "alice" {
		t.Errorf("UserID = %q, want alice (from path)", created.UserID)
	}

	// Get
	rec = env.do(t, http.MethodGet, "/api/users/alice/holdings/"+created.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	// Update keeps the path identity even if the body disagrees
	rec = env.do(t, http.MethodPut, "/api/users/alice/holdings/"+created.ID, map[string]interface{}{
		"id":       "spoofed",
		"user_id":  "mallory",
		"symbol":   "AAPL",
		"quantity": 12,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("put status = %d: %s", rec.Code, rec.Body.String())
	}
	var updated models.Holding
	decodeBody(t, rec, &updated)
	if updated.ID != created.ID || updated.UserID != "alice" {
		t.Errorf("identity not enforced: %+v", updated)
	}
	if updated.Quantity != 12 {
		t.Errorf("Quantity = %v, want 12", updated.Quantity)
	}

	// List
	rec = env.do(t, http.MethodGet, "/api/users/alice/holdings", nil)
	var list struct {
		UserID   string            `json:"user_id"`
		Holdings []*models.Holding `json:"holdings"`
	}
	decodeBody(t, rec, &list)
	if len(list.Holdings) != 1 {
		t.Fatalf("holdings = %d, want 1", len(list.Holdings))
	}

	// Delete
	rec = env.do(t, http.MethodDelete, "/api/users/alice/holdings/"+created.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec = env.do(t, http.MethodGet, "/api/users/alice/holdings/"+created.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", rec.Code)
	}
}

func TestCreateHoldingValidation(t *testing.T) {
	env := newTestEnv(t)

	// Missing symbol
	rec := env.do(t, http.MethodPost, "/api/users/alice/holdings", map[string]interface{}{
		"quantity": 10,
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing symbol: status = %d, want 400", rec.Code)
	}

	// Negative quantity
	rec = env.do(t, http.MethodPost, "/api/users/alice/holdings", map[string]interface{}{
		"symbol":   "AAPL",
		"quantity": -5,
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("negative quantity: status = %d, want 400", rec.Code)
	}
}

func TestPortfolioSeriesParams(t *testing.T) {
	env := newTestEnv(t)
	env.portfolio.points = []models.AggregatedPoint{{Date: "2024-03-15", Value: 1000}}

	rec := env.do(t, http.MethodGet, "/api/users/alice/portfolio/series?days=90&resolution=weekly&base=usd", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	if env.portfolio.lastDays != 90 {
		t.Errorf("days = %d, want 90", env.portfolio.lastDays)
	}
	if env.portfolio.lastRes != models.ResolutionWeekly {
		t.Errorf("resolution = %s, want weekly", env.portfolio.lastRes)
	}
	if env.portfolio.lastBase != "USD" {
		t.Errorf("base = %s, want USD", env.portfolio.lastBase)
	}

	var body struct {
		UserID string                   `json:"user_id"`
		Base   string                   `json:"base"`
		Points []models.AggregatedPoint `json:"points"`
	}
	decodeBody(t, rec, &body)
	if body.UserID != "alice" || body.Base != "USD" || len(body.Points) != 1 {
		t.Errorf("body = %+v", body)
	}
}

func TestPortfolioSeriesDefaultsAndClamps(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, http.MethodGet, "/api/users/alice/portfolio/series", nil)
	if env.portfolio.lastDays != 30 {
		t.Errorf("default days = %d, want 30", env.portfolio.lastDays)
	}
	if env.portfolio.lastRes != models.ResolutionDaily {
		t.Errorf("default resolution = %s, want daily", env.portfolio.lastRes)
	}

	env.do(t, http.MethodGet, "/api/users/alice/portfolio/series?days=999999", nil)
	if env.portfolio.lastDays != 3650 {
		t.Errorf("clamped days = %d, want 3650", env.portfolio.lastDays)
	}
}

func TestBaseCurrencyResolution(t *testing.T) {
	env := newTestEnv(t)
	env.storage.internal.users["alice"] = &models.User{UserID: "alice", BaseCurrency: "EUR"}

	// Profile preference wins over system default
	env.do(t, http.MethodGet, "/api/users/alice/portfolio/summary", nil)
	if env.portfolio.lastBase != "EUR" {
		t.Errorf("base = %s, want EUR from profile", env.portfolio.lastBase)
	}

	// Explicit query param wins over profile
	env.do(t, http.MethodGet, "/api/users/alice/portfolio/summary?base=jpy", nil)
	if env.portfolio.lastBase != "JPY" {
		t.Errorf("base = %s, want JPY from query", env.portfolio.lastBase)
	}

	// No profile: system default
	env.do(t, http.MethodGet, "/api/users/bob/portfolio/summary", nil)
	if env.portfolio.lastBase != "GBP" {
		t.Errorf("base = %s, want GBP system default", env.portfolio.lastBase)
	}
}

func TestPortfolioChart(t *testing.T) {
	env := newTestEnv(t)
	env.portfolio.chart = []byte("\x89PNG fake")

	rec := env.do(t, http.MethodGet, "/api/users/alice/portfolio/chart", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q", ct)
	}
	if env.portfolio.lastDays != 90 {
		t.Errorf("default chart days = %d, want 90", env.portfolio.lastDays)
	}
}

func TestPortfolioChartTooFewPoints(t *testing.T) {
	env := newTestEnv(t)
	env.portfolio.chartErr = fmt.Errorf("not enough points to chart")

	rec := env.do(t, http.MethodGet, "/api/users/alice/portfolio/chart", nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
}

func TestMarketQuote(t *testing.T) {
	env := newTestEnv(t)
	env.price.quote = &models.Quote{Symbol: "AAPL", Price: 190.5, Source: models.QuoteSourceLive}

	rec := env.do(t, http.MethodGet, "/api/market/quote/AAPL", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var quote models.Quote
	decodeBody(t, rec, &quote)
	if quote.Price != 190.5 || quote.Source != models.QuoteSourceLive {
		t.Errorf("quote = %+v", quote)
	}
}

func TestMarketQuoteDegradedStill200(t *testing.T) {
	env := newTestEnv(t)
	env.price.quote = &models.Quote{Symbol: "AAPL", Source: models.QuoteSourceMock, Error: models.QuoteErrRateLimited}

	rec := env.do(t, http.MethodGet, "/api/market/quote/AAPL", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("degraded quote status = %d, want 200", rec.Code)
	}
	var quote models.Quote
	decodeBody(t, rec, &quote)
	if quote.Error != models.QuoteErrRateLimited {
		t.Errorf("quote = %+v", quote)
	}
}

func TestMarketSearchRequiresQuery(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/market/search", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestSnapshotRun(t *testing.T) {
	env := newTestEnv(t)
	env.snapshot.written = 3

	rec := env.do(t, http.MethodPost, "/api/snapshots/run", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Status  string `json:"status"`
		Written int    `json:"written"`
	}
	decodeBody(t, rec, &body)
	if body.Written != 3 || env.snapshot.runs != 1 {
		t.Errorf("body = %+v, runs = %d", body, env.snapshot.runs)
	}

	// GET is rejected
	rec = env.do(t, http.MethodGet, "/api/snapshots/run", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d, want 405", rec.Code)
	}
}

func TestUserSnapshotsListAndPurge(t *testing.T) {
	env := newTestEnv(t)
	env.storage.snapshot.snapshots["alice|2024-03-14"] = &models.PortfolioSnapshot{UserID: "alice", Date: "2024-03-14", Value: 990}
	env.storage.snapshot.snapshots["alice|2024-03-15"] = &models.PortfolioSnapshot{UserID: "alice", Date: "2024-03-15", Value: 1000}

	rec := env.do(t, http.MethodGet, "/api/users/alice/snapshots", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Snapshots []*models.PortfolioSnapshot `json:"snapshots"`
	}
	decodeBody(t, rec, &body)
	if len(body.Snapshots) != 2 || body.Snapshots[0].Date != "2024-03-14" {
		t.Errorf("snapshots = %+v", body.Snapshots)
	}

	rec = env.do(t, http.MethodDelete, "/api/users/alice/snapshots", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("purge status = %d", rec.Code)
	}
	var purge struct {
		Count int `json:"count"`
	}
	decodeBody(t, rec, &purge)
	if purge.Count != 2 {
		t.Errorf("count = %d, want 2", purge.Count)
	}
}

func TestUnknownUserSubpath(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/users/alice/unknown", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestMalformedJSONBody(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/api/users", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestCorrelationIDHeader(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/health", nil)
	if rec.Header().Get("X-Correlation-ID") == "" {
		t.Error("correlation ID header missing")
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/users", nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("CORS headers missing")
	}
}

func TestShutdownForbiddenInProduction(t *testing.T) {
	env := newTestEnv(t)
	storageRef := env.storage

	a := &app.App{
		Config:           common.NewDefaultConfig(),
		Logger:           common.NewSilentLogger(),
		Storage:          storageRef,
		PriceService:     env.price,
		PortfolioService: env.portfolio,
		SnapshotService:  env.snapshot,
	}
	a.Config.Environment = "production"
	handler := NewServer(a).Handler()

	req := httptest.NewRequest(http.MethodPost, "/api/shutdown", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}
