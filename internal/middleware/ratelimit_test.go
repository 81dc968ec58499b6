package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"go.uber.org/goleak"
	"golang.org/x/time/rate"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// requestAs はユーザーIDを注入したリクエストを返す。
func requestAs(method, path, userID string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	return req.WithContext(ContextWithUserID(req.Context(), userID))
}

func testRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     1,
		GeneralBurst:    2,
		HeroRegRate:     1,
		HeroRegBurst:    1,
		CleanupInterval: time.Minute,
	}
}

func TestRateLimitMiddleware_AllowsRequestsWithinBurst(t *testing.T) {
	cfg := testRateLimiterConfig()
	cfg.GeneralBurst = 5
	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestAs(http.MethodGet, "/api/heroes", "user-1"))
		if w.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, w.Code, http.StatusOK)
		}
	}
}

func TestRateLimitMiddleware_Returns429JSONWithRetryAfter(t *testing.T) {
	cfg := testRateLimiterConfig()
	cfg.GeneralRate = rate.Limit(1.0 / 60.0)
	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	for i := 0; i < 2; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), requestAs(http.MethodGet, "/api/heroes", "user-1"))
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestAs(http.MethodGet, "/api/heroes", "user-1"))

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	retryAfter, err := strconv.Atoi(w.Header().Get("Retry-After"))
	if err != nil || retryAfter != 60 {
		t.Errorf("Retry-After = %q, want 60", w.Header().Get("Retry-After"))
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Code != "RATE_LIMIT_EXCEEDED" || body.Category != "system" {
		t.Errorf("body = %+v", body)
	}
}

func TestRateLimitMiddleware_IsolatesUsers(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	for i := 0; i < 3; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), requestAs(http.MethodGet, "/", "user-a"))
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestAs(http.MethodGet, "/", "user-b"))
	if w.Code != http.StatusOK {
		t.Errorf("user-b status = %d, want %d", w.Code, http.StatusOK)
	}
	if rl.GeneralLimiterCount() != 2 {
		t.Errorf("GeneralLimiterCount() = %d, want 2", rl.GeneralLimiterCount())
	}
}

func TestRateLimitMiddleware_NoUser_Returns401(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()

	called := false
	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/heroes", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if called {
		t.Error("handler should not be called without a user")
	}
}

func TestHeroRegistrationRateLimit_IndependentFromGeneral(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()

	heroReg := rl.HeroRegistrationMiddleware()(okHandler())
	general := rl.GeneralMiddleware()(okHandler())

	w := httptest.NewRecorder()
	heroReg.ServeHTTP(w, requestAs(http.MethodPost, "/api/heroes", "user-1"))
	if w.Code != http.StatusOK {
		t.Fatalf("first registration status = %d, want %d", w.Code, http.StatusOK)
	}

	w = httptest.NewRecorder()
	heroReg.ServeHTTP(w, requestAs(http.MethodPost, "/api/heroes", "user-1"))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("second registration status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}

	w = httptest.NewRecorder()
	general.ServeHTTP(w, requestAs(http.MethodGet, "/api/heroes", "user-1"))
	if w.Code != http.StatusOK {
		t.Errorf("general status = %d, want %d", w.Code, http.StatusOK)
	}
	if rl.HeroRegLimiterCount() != 1 {
		t.Errorf("HeroRegLimiterCount() = %d, want 1", rl.HeroRegLimiterCount())
	}
}

func TestRateLimiter_CleanupRemovesIdleEntries(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()

	now := time.Now()
	rl.general.get("idle", now.Add(-3*time.Minute))
	rl.general.get("active", now)
	rl.heroReg.get("idle", now.Add(-3*time.Minute))

	rl.cleanup(now)

	if rl.GeneralLimiterCount() != 1 {
		t.Errorf("GeneralLimiterCount() = %d, want 1", rl.GeneralLimiterCount())
	}
	if rl.HeroRegLimiterCount() != 0 {
		t.Errorf("HeroRegLimiterCount() = %d, want 0", rl.HeroRegLimiterCount())
	}
}

func TestRateLimiter_StopIsIdempotentAndLeakFree(t *testing.T) {
	defer goleak.VerifyNone(t)

	rl := NewRateLimiter(testRateLimiterConfig())
	rl.Stop()
	rl.Stop()
	// cleanupLoopの終了を待つ
	time.Sleep(10 * time.Millisecond)
}

func TestPerMinuteRateLimiterConfig(t *testing.T) {
	cfg := PerMinuteRateLimiterConfig(120, 10)

	if cfg.GeneralRate != rate.Limit(2) {
		t.Errorf("GeneralRate = %v, want 2", cfg.GeneralRate)
	}
	if cfg.GeneralBurst != 120 || cfg.HeroRegBurst != 10 {
		t.Errorf("bursts = %d/%d, want 120/10", cfg.GeneralBurst, cfg.HeroRegBurst)
	}
	if DefaultRateLimiterConfig() != cfg {
		t.Error("DefaultRateLimiterConfig() should match 120/10 per minute")
	}
}
