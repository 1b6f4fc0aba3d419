package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"testing/fstest"
	"time"

	"expenses/internal/core"
	applog "expenses/internal/log"
	"expenses/internal/services"
	"expenses/internal/storage/memory"
)

func quietLogger() *applog.Logger {
	return applog.New(applog.Config{Level: applog.ParseLevel("error"), Component: "test", Output: io.Discard})
}

func newTestServer(t *testing.T, opts Options) (*Server, *services.ExpenseService) {
	t.Helper()
	svc := services.NewExpenseService(memory.NewSeeded(), nil)
	if opts.Logger == nil {
		opts.Logger = quietLogger()
	}
	s := NewServer(svc, opts)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s, svc
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return body["error"]
}

func TestListExpensesReturnsSeed(t *testing.T) {
	s, _ := newTestServer(t, Options{})

	rec := do(t, s.Handler, http.MethodGet, "/api/expenses", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}
	var items []core.Expense
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(items) != 5 {
		t.Fatalf("got %d expenses, want 5", len(items))
	}
	if items[0].ID != "1" {
		t.Errorf("first id = %q, want 1", items[0].ID)
	}
}

func TestCreateExpense(t *testing.T) {
	s, svc := newTestServer(t, Options{})

	rec := do(t, s.Handler, http.MethodPost, "/api/expenses",
		`{"amount":"42.10","category":"Food","description":"Lunch","date":"2023-05-01"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	var created core.Expense
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected assigned id")
	}
	if !created.Amount.Equal(core.MustMoney("42.1")) {
		t.Errorf("amount = %s, want 42.1", created.Amount)
	}
	if !strings.Contains(rec.Body.String(), `"amount":42.1`) {
		t.Errorf("amount not encoded as number: %s", rec.Body.String())
	}

	items, _ := svc.ListExpenses(context.Background())
	if len(items) != 6 || items[5].ID != created.ID {
		t.Errorf("created expense not appended: %+v", items)
	}
}

func TestCreateExpenseRejectsMissingFields(t *testing.T) {
	s, svc := newTestServer(t, Options{})

	tests := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"empty object", `{}`},
		{"no category", `{"amount":5,"description":"x","date":"2023-01-01"}`},
		{"zero amount", `{"amount":0,"category":"Food","description":"x","date":"2023-01-01"}`},
		{"bad amount", `{"amount":"abc","category":"Food","description":"x","date":"2023-01-01"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s.Handler, http.MethodPost, "/api/expenses", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if msg := decodeError(t, rec); msg != "Missing required fields" {
				t.Errorf("error = %q", msg)
			}
		})
	}

	items, _ := svc.ListExpenses(context.Background())
	if len(items) != 5 {
		t.Errorf("store changed: %d items", len(items))
	}
}

func TestCreateExpenseMalformedJSON(t *testing.T) {
	s, _ := newTestServer(t, Options{})

	rec := do(t, s.Handler, http.MethodPost, "/api/expenses", `{"amount":`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if msg := decodeError(t, rec); msg != "Invalid JSON body" {
		t.Errorf("error = %q", msg)
	}
}

func TestUpdateExpense(t *testing.T) {
	s, svc := newTestServer(t, Options{})

	rec := do(t, s.Handler, http.MethodPut, "/api/expenses/2",
		`{"amount":80,"category":"Transportation","description":"Gas refill","date":"2023-04-11"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	items, _ := svc.ListExpenses(context.Background())
	if items[1].ID != "2" || items[1].Description != "Gas refill" {
		t.Errorf("update not applied in place: %+v", items[1])
	}
}

func TestUpdateExpenseUnknownIDBeforeValidation(t *testing.T) {
	s, _ := newTestServer(t, Options{})

	rec := do(t, s.Handler, http.MethodPut, "/api/expenses/nope", `{}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if msg := decodeError(t, rec); msg != "Expense not found" {
		t.Errorf("error = %q", msg)
	}
}

func TestUpdateExpenseMissingFields(t *testing.T) {
	s, _ := newTestServer(t, Options{})

	rec := do(t, s.Handler, http.MethodPut, "/api/expenses/1", `{"amount":10}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestDeleteExpense(t *testing.T) {
	s, svc := newTestServer(t, Options{})

	rec := do(t, s.Handler, http.MethodDelete, "/api/expenses/3", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("expected empty body, got %q", rec.Body.String())
	}

	items, _ := svc.ListExpenses(context.Background())
	if len(items) != 4 {
		t.Fatalf("got %d items, want 4", len(items))
	}

	rec = do(t, s.Handler, http.MethodDelete, "/api/expenses/3", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}

type failingService struct {
	*services.ExpenseService
}

func (failingService) ListExpenses(context.Context) ([]core.Expense, error) {
	return nil, errors.New("disk on fire")
}

func (failingService) Ping(context.Context) error { return errors.New("disk on fire") }

func TestStoreFailureIsInternalError(t *testing.T) {
	s := NewServer(failingService{}, Options{Logger: quietLogger()})
	defer s.Shutdown(context.Background())

	rec := do(t, s.Handler, http.MethodGet, "/api/expenses", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if msg := decodeError(t, rec); msg != "Internal server error" {
		t.Errorf("error = %q", msg)
	}

	rec = do(t, s.Handler, http.MethodGet, "/readyz", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz status = %d, want 503", rec.Code)
	}
}

func TestHealthAndReady(t *testing.T) {
	s, _ := newTestServer(t, Options{})

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := do(t, s.Handler, http.MethodGet, path, "")
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, rec.Code)
		}
	}
}

func TestDashboardCachedUntilMutation(t *testing.T) {
	s, _ := newTestServer(t, Options{DashboardCacheTTL: time.Minute})

	rec := do(t, s.Handler, http.MethodGet, "/api/dashboard", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("X-Cache"); got != "MISS" {
		t.Errorf("first X-Cache = %q, want MISS", got)
	}
	var first struct {
		Count          int    `json:"count"`
		FormattedTotal string `json:"formattedTotal"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &first); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if first.Count != 5 || first.FormattedTotal != "$334.23" {
		t.Errorf("summary = %+v", first)
	}

	rec = do(t, s.Handler, http.MethodGet, "/api/dashboard", "")
	if got := rec.Header().Get("X-Cache"); got != "HIT" {
		t.Errorf("second X-Cache = %q, want HIT", got)
	}

	do(t, s.Handler, http.MethodDelete, "/api/expenses/1", "")
	rec = do(t, s.Handler, http.MethodGet, "/api/dashboard", "")
	if got := rec.Header().Get("X-Cache"); got != "MISS" {
		t.Errorf("after mutation X-Cache = %q, want MISS", got)
	}
}

// gatedService parks ListExpenses after reading the store until release
// is closed.
type gatedService struct {
	*services.ExpenseService
	listed  chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedService) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	items, err := g.ExpenseService.ListExpenses(ctx)
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.listed)
		<-g.release
	}
	return items, err
}

func TestDashboardMutationDuringLoadIsNotCached(t *testing.T) {
	svc := &gatedService{
		ExpenseService: services.NewExpenseService(memory.NewSeeded(), nil),
		listed:         make(chan struct{}),
		release:        make(chan struct{}),
	}
	s := NewServer(svc, Options{Logger: quietLogger(), DashboardCacheTTL: time.Minute})
	defer s.Shutdown(context.Background())

	done := make(chan *httptest.ResponseRecorder)
	go func() {
		req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
		rec := httptest.NewRecorder()
		s.Handler.ServeHTTP(rec, req)
		done <- rec
	}()

	<-svc.listed
	if rec := do(t, s.Handler, http.MethodDelete, "/api/expenses/4", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	close(svc.release)
	if rec := <-done; rec.Code != http.StatusOK {
		t.Fatalf("stale load status = %d", rec.Code)
	}

	rec := do(t, s.Handler, http.MethodGet, "/api/dashboard", "")
	if got := rec.Header().Get("X-Cache"); got != "MISS" {
		t.Errorf("X-Cache = %q, want MISS", got)
	}
	var summary struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if summary.Count != 4 {
		t.Errorf("count = %d, want 4", summary.Count)
	}
}

// ctxService fails ListExpenses once its context is done.
type ctxService struct {
	*services.ExpenseService
}

func (c ctxService) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.ExpenseService.ListExpenses(ctx)
}

func TestDashboardLoadOutlivesCallerContext(t *testing.T) {
	svc := ctxService{ExpenseService: services.NewExpenseService(memory.NewSeeded(), nil)}
	s := NewServer(svc, Options{Logger: quietLogger(), DashboardCacheTTL: time.Minute})
	defer s.Shutdown(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, s.Handler, http.MethodGet, "/api/dashboard", "")
	if got := rec.Header().Get("X-Cache"); got != "HIT" {
		t.Errorf("X-Cache = %q, want HIT", got)
	}
}

func TestRequestIDEchoedOrGenerated(t *testing.T) {
	s, _ := newTestServer(t, Options{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("request id = %q, want abc-123", got)
	}

	rec = do(t, s.Handler, http.MethodGet, "/healthz", "")
	if got := rec.Header().Get("X-Request-ID"); !strings.HasPrefix(got, "req_") {
		t.Errorf("generated request id = %q", got)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing security headers")
	}
}

func TestCORSPreflight(t *testing.T) {
	s, _ := newTestServer(t, Options{AllowedOrigins: []string{"http://localhost:5173"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/expenses", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("allow origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/expenses", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unexpected allow origin %q", got)
	}
}

func TestMutationsAreRateLimited(t *testing.T) {
	s, _ := newTestServer(t, Options{RateLimitPerMinute: 2})

	body := `{"amount":1,"category":"Food","description":"x","date":"2023-01-01"}`
	for i := 0; i < 2; i++ {
		if rec := do(t, s.Handler, http.MethodPost, "/api/expenses", body); rec.Code != http.StatusCreated {
			t.Fatalf("request %d status = %d", i, rec.Code)
		}
	}
	rec := do(t, s.Handler, http.MethodPost, "/api/expenses", body)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}

	if rec := do(t, s.Handler, http.MethodGet, "/api/expenses", ""); rec.Code != http.StatusOK {
		t.Errorf("reads should not be limited, got %d", rec.Code)
	}
}

func TestRateLimiterWindowResets(t *testing.T) {
	rl := newRateLimiter(1, time.Minute)
	defer rl.stop()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	if ok, _ := rl.allow("1.2.3.4"); !ok {
		t.Fatal("first request denied")
	}
	ok, wait := rl.allow("1.2.3.4")
	if ok || wait != time.Minute {
		t.Fatalf("second request = %v, %v", ok, wait)
	}
	if ok, _ := rl.allow("5.6.7.8"); !ok {
		t.Error("other client limited")
	}

	now = now.Add(time.Minute)
	if ok, _ := rl.allow("1.2.3.4"); !ok {
		t.Error("window did not reset")
	}

	now = now.Add(10 * time.Minute)
	if n := rl.cleanupStaleEntries(); n != 2 {
		t.Errorf("cleaned %d entries, want 2", n)
	}
}

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name   string
		remote string
		xff    string
		want   string
	}{
		{"direct", "203.0.113.9:5555", "", "203.0.113.9"},
		{"untrusted forwarder ignored", "203.0.113.9:5555", "1.1.1.1", "203.0.113.9"},
		{"trusted proxy", "10.0.0.2:80", "198.51.100.7, 10.0.0.2", "198.51.100.7"},
		{"trusted proxy bad header", "10.0.0.2:80", "garbage", "10.0.0.2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if got := extractClientIP(r); got != tt.want {
				t.Errorf("extractClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSPAFallback(t *testing.T) {
	static := fstest.MapFS{
		"index.html":    {Data: []byte("<html>app</html>")},
		"assets/app.js": {Data: []byte("console.log(1)")},
	}
	s, _ := newTestServer(t, Options{Static: static})

	rec := do(t, s.Handler, http.MethodGet, "/reports/2023", "")
	if rec.Code != http.StatusOK || !bytes.Contains(rec.Body.Bytes(), []byte("app")) {
		t.Errorf("client route: %d %q", rec.Code, rec.Body.String())
	}

	rec = do(t, s.Handler, http.MethodGet, "/assets/app.js", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "console.log(1)" {
		t.Errorf("asset: %d %q", rec.Code, rec.Body.String())
	}

	rec = do(t, s.Handler, http.MethodGet, "/api/unknown", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "<html>app</html>" {
		t.Errorf("unknown api path: %d %q", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("unknown api content type = %q", ct)
	}
}

func TestDashboardWithoutCacheListsEachTime(t *testing.T) {
	var calls atomic.Int32
	svc := &countingService{ExpenseService: services.NewExpenseService(memory.NewSeeded(), nil), calls: &calls}
	s := NewServer(svc, Options{Logger: quietLogger()})
	defer s.Shutdown(context.Background())

	for i := 0; i < 2; i++ {
		rec := do(t, s.Handler, http.MethodGet, "/api/dashboard", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if got := rec.Header().Get("X-Cache"); got != "MISS" {
			t.Errorf("X-Cache = %q, want MISS", got)
		}
	}
	if calls.Load() != 2 {
		t.Errorf("list called %d times, want 2", calls.Load())
	}
}

type countingService struct {
	*services.ExpenseService
	calls *atomic.Int32
}

func (c *countingService) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	c.calls.Add(1)
	return c.ExpenseService.ListExpenses(ctx)
}
