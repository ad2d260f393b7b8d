package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/hitoshi/photorate/internal/model"
)

func testRateLimiterConfig(generalBurst, uploadBurst int) RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     1,
		GeneralBurst:    generalBurst,
		UploadRate:      1,
		UploadBurst:     uploadBurst,
		CleanupInterval: time.Minute,
	}
}

func requestAs(userID model.ID) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/photo/rate", nil)
	return req.WithContext(ContextWithUserID(req.Context(), userID))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitMiddleware_AllowsRequestsWithinBurst(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig(5, 1))
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())
	userID := model.NewID()

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestAs(userID))
		if w.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, w.Code, http.StatusOK)
		}
	}
}

func TestRateLimitMiddleware_Returns429WithRetryAfter(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig(2, 1))
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())
	userID := model.NewID()

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestAs(userID))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want %d", i, w.Code, http.StatusOK)
		}
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestAs(userID))

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	retryAfter, err := strconv.Atoi(w.Header().Get("Retry-After"))
	if err != nil || retryAfter < 1 {
		t.Errorf("Retry-After = %q, want a positive number of seconds", w.Header().Get("Retry-After"))
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.Code != model.ErrCodeRateLimited {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeRateLimited)
	}
}

func TestRateLimitMiddleware_IsolatesUsers(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig(1, 1))
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())
	userA, userB := model.NewID(), model.NewID()

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestAs(userA))
	if w.Code != http.StatusOK {
		t.Fatalf("user A first: status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, requestAs(userA))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("user A second: status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, requestAs(userB))
	if w.Code != http.StatusOK {
		t.Errorf("user B first: status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestRateLimitMiddleware_UnauthenticatedKeyedByIP(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig(1, 1))
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	send := func(remote string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/login", nil)
		req.RemoteAddr = remote
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	if got := send("203.0.113.1:5000"); got != http.StatusOK {
		t.Errorf("first: status = %d, want %d", got, http.StatusOK)
	}
	if got := send("203.0.113.1:5001"); got != http.StatusTooManyRequests {
		t.Errorf("same IP: status = %d, want %d", got, http.StatusTooManyRequests)
	}
	if got := send("203.0.113.2:5000"); got != http.StatusOK {
		t.Errorf("other IP: status = %d, want %d", got, http.StatusOK)
	}
}

func TestRateLimitMiddleware_UploadIndependentOfGeneral(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig(10, 1))
	defer rl.Stop()

	general := rl.GeneralMiddleware()(okHandler())
	upload := rl.UploadMiddleware()(okHandler())
	userID := model.NewID()

	w := httptest.NewRecorder()
	upload.ServeHTTP(w, requestAs(userID))
	if w.Code != http.StatusOK {
		t.Fatalf("first upload: status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	upload.ServeHTTP(w, requestAs(userID))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("second upload: status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}

	w = httptest.NewRecorder()
	general.ServeHTTP(w, requestAs(userID))
	if w.Code != http.StatusOK {
		t.Errorf("general after upload limit: status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestRateLimiter_CleanupEvictsIdleEntries(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig(5, 5))
	defer rl.Stop()

	rl.GeneralMiddleware()(okHandler()).ServeHTTP(httptest.NewRecorder(), requestAs(model.NewID()))
	rl.UploadMiddleware()(okHandler()).ServeHTTP(httptest.NewRecorder(), requestAs(model.NewID()))

	if rl.GeneralLimiterCount() != 1 || rl.UploadLimiterCount() != 1 {
		t.Fatalf("counts = %d/%d, want 1/1", rl.GeneralLimiterCount(), rl.UploadLimiterCount())
	}

	rl.cleanup(time.Now())
	if rl.GeneralLimiterCount() != 1 {
		t.Error("recent entries should be kept")
	}

	rl.cleanup(time.Now().Add(3 * time.Minute))
	if rl.GeneralLimiterCount() != 0 || rl.UploadLimiterCount() != 0 {
		t.Errorf("counts = %d/%d, want 0/0", rl.GeneralLimiterCount(), rl.UploadLimiterCount())
	}
}

func TestRateLimiterConfigPerMinute(t *testing.T) {
	cfg := RateLimiterConfigPerMinute(120, 10)

	if cfg.GeneralRate != 2 {
		t.Errorf("GeneralRate = %v, want 2", cfg.GeneralRate)
	}
	if cfg.GeneralBurst != 120 || cfg.UploadBurst != 10 {
		t.Errorf("bursts = %d/%d, want 120/10", cfg.GeneralBurst, cfg.UploadBurst)
	}
	if cfg.CleanupInterval <= 0 {
		t.Error("CleanupInterval should be positive")
	}
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimiterConfig())
	rl.Stop()
	rl.Stop()
}
