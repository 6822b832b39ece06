package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kimhsiao/photosync/internal/config"
)

func testConfig() config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled: true,
		Rules: map[string]config.RateRule{
			"auth":    {MaxRequests: 3, Window: time.Minute},
			"default": {MaxRequests: 5, Window: time.Minute},
		},
		SweepInterval: 5 * time.Minute,
		Retention:     time.Hour,
	}
}

func TestAllowWithinWindow(t *testing.T) {
	l := New(testConfig())

	for i := 0; i < 5; i++ {
		ok, _ := l.Allow("1.2.3.4", "default")
		if !ok {
			t.Fatalf("request %d unexpectedly denied", i+1)
		}
	}

	ok, retryAfter := l.Allow("1.2.3.4", "default")
	if ok {
		t.Fatal("sixth request should be denied")
	}
	if retryAfter <= 0 {
		t.Fatalf("expected positive retry hint, got %v", retryAfter)
	}
}

func TestDenialDoesNotCount(t *testing.T) {
	l := New(testConfig())
	base := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return base }

	for i := 0; i < 3; i++ {
		l.Allow("client", "auth")
	}
	// Hammer the limiter while exhausted; none of these may extend the window.
	for i := 0; i < 10; i++ {
		if ok, _ := l.Allow("client", "auth"); ok {
			t.Fatal("request admitted beyond the limit")
		}
	}

	l.now = func() time.Time { return base.Add(61 * time.Second) }
	if ok, _ := l.Allow("client", "auth"); !ok {
		t.Fatal("request denied after the window expired")
	}
}

func TestWindowSlides(t *testing.T) {
	l := New(testConfig())
	base := time.Unix(1_700_000_000, 0)
	now := base
	l.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		l.Allow("client", "auth")
	}
	if ok, _ := l.Allow("client", "auth"); ok {
		t.Fatal("fourth request inside the window should be denied")
	}

	now = base.Add(time.Minute + time.Second)
	if ok, _ := l.Allow("client", "auth"); !ok {
		t.Fatal("request after the window should be admitted")
	}
}

func TestClientsIsolated(t *testing.T) {
	l := New(testConfig())

	for i := 0; i < 3; i++ {
		l.Allow("alice", "auth")
	}
	if ok, _ := l.Allow("alice", "auth"); ok {
		t.Fatal("alice should be limited")
	}
	if ok, _ := l.Allow("bob", "auth"); !ok {
		t.Fatal("bob must not be affected by alice's usage")
	}
}

func TestCategoriesIsolated(t *testing.T) {
	l := New(testConfig())

	for i := 0; i < 3; i++ {
		l.Allow("client", "auth")
	}
	if ok, _ := l.Allow("client", "auth"); ok {
		t.Fatal("auth should be limited")
	}
	if ok, _ := l.Allow("client", "default"); !ok {
		t.Fatal("default category must have its own budget")
	}
}

func TestDisabledLimiter(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	l := New(cfg)

	for i := 0; i < 100; i++ {
		if ok, _ := l.Allow("client", "auth"); !ok {
			t.Fatal("disabled limiter must admit everything")
		}
	}
	if l.size() != 0 {
		t.Fatal("disabled limiter must not track clients")
	}
}

func TestSweepDropsStaleWindows(t *testing.T) {
	l := New(testConfig())
	base := time.Unix(1_700_000_000, 0)
	now := base
	l.now = func() time.Time { return now }

	l.Allow("stale", "auth")
	l.Allow("fresh", "auth")
	if l.size() != 2 {
		t.Fatalf("expected 2 windows, got %d", l.size())
	}

	now = base.Add(2 * time.Hour)
	l.Allow("fresh", "auth")

	removed := l.Sweep()
	// "stale" is beyond retention; "fresh" just recorded a request.
	if removed != 1 {
		t.Fatalf("expected 1 window removed, got %d", removed)
	}
	if l.size() != 1 {
		t.Fatalf("expected 1 window left, got %d", l.size())
	}
}

func TestAllowRecountsAfterSweepDrop(t *testing.T) {
	l := New(testConfig())
	base := time.Unix(1_700_000_000, 0)
	now := base
	l.now = func() time.Time { return now }

	l.Allow("client", "auth")
	stale := l.entry(windowKey{client: "client", category: "auth"})

	now = base.Add(2 * time.Hour)
	if removed := l.Sweep(); removed != 1 {
		t.Fatalf("expected sweep to drop the window, removed=%d", removed)
	}
	if !stale.dead {
		t.Fatal("swept window must be marked dead")
	}

	// A request arriving after the drop gets a fresh window; nothing is
	// recorded into the orphaned one.
	for i := 0; i < 3; i++ {
		if ok, _ := l.Allow("client", "auth"); !ok {
			t.Fatalf("request %d after sweep denied", i+1)
		}
	}
	if ok, _ := l.Allow("client", "auth"); ok {
		t.Fatal("limit must apply to the fresh window")
	}
	if len(stale.times) != 0 {
		t.Fatalf("orphaned window gained %d timestamps", len(stale.times))
	}
}

func TestMiddlewareDenies(t *testing.T) {
	cfg := testConfig()
	cfg.Rules["default"] = config.RateRule{MaxRequests: 1, Window: time.Minute}
	l := New(cfg)

	handler := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "9.9.9.9:1234"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request: got %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: got %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("429 response must carry Retry-After")
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"/api/auth/login", "auth"},
		{"/api/tasks/download", "download"},
		{"/api/upload", "upload"},
		{"/api/albums", "api"},
		{"/api/tasks", "api"},
		{"/ws", "default"},
		{"/metrics", "default"},
	}
	for _, tc := range cases {
		if got := Classify(tc.path); got != tc.want {
			t.Errorf("Classify(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"

	if got := ClientIP(req); got != "10.0.0.1" {
		t.Fatalf("remote addr fallback: got %q", got)
	}

	req.Header.Set("CF-Connecting-IP", "3.3.3.3")
	if got := ClientIP(req); got != "3.3.3.3" {
		t.Fatalf("cf header: got %q", got)
	}

	req.Header.Set("X-Real-IP", "2.2.2.2")
	if got := ClientIP(req); got != "2.2.2.2" {
		t.Fatalf("x-real-ip should win over cf: got %q", got)
	}

	req.Header.Set("X-Forwarded-For", "1.1.1.1, 8.8.8.8")
	if got := ClientIP(req); got != "1.1.1.1" {
		t.Fatalf("x-forwarded-for first hop should win: got %q", got)
	}
}
