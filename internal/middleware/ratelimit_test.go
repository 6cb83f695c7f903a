package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

// testConfig はテスト用の小さなバーストを持つレート制限設定を返す。
func testConfig() RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(1.0 / 60.0), // 補充はほぼ起きない
		GeneralBurst:    3,
		WriteRate:       rate.Limit(1.0 / 60.0),
		WriteBurst:      1,
		CleanupInterval: time.Hour,
	}
}

func viewerRequest(viewerID string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	if viewerID != "" {
		req.Header.Set(ViewerIDHeader, viewerID)
	}
	return req
}

func TestRateLimiter_General_AllowsWithinBurst(t *testing.T) {
	rl := NewRateLimiter(testConfig())
	defer rl.Stop()

	handler := NewViewerMiddleware()(rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, viewerRequest("viewer-1"))
		if rec.Code != http.StatusOK {
			t.Fatalf("リクエスト%d: status = %d, want 200", i+1, rec.Code)
		}
	}
}

func TestRateLimiter_General_RejectsBeyondBurst(t *testing.T) {
	rl := NewRateLimiter(testConfig())
	defer rl.Stop()

	handler := NewViewerMiddleware()(rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	for i := 0; i < 3; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), viewerRequest("viewer-1"))
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, viewerRequest("viewer-1"))
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-Afterヘッダーが設定されていない")
	}
}

func TestRateLimiter_PerViewerIsolation(t *testing.T) {
	rl := NewRateLimiter(testConfig())
	defer rl.Stop()

	handler := NewViewerMiddleware()(rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	// viewer-1のバーストを使い切る
	for i := 0; i < 4; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), viewerRequest("viewer-1"))
	}

	// viewer-2は影響を受けない
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, viewerRequest("viewer-2"))
	if rec.Code != http.StatusOK {
		t.Errorf("別の閲覧者まで制限されている: status = %d", rec.Code)
	}
}

func TestRateLimiter_AnonymousFallsBackToIP(t *testing.T) {
	rl := NewRateLimiter(testConfig())
	defer rl.Stop()

	handler := NewViewerMiddleware()(rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, viewerRequest(""))
	if rec.Code != http.StatusOK {
		t.Errorf("匿名リクエストも通過すべき: status = %d", rec.Code)
	}
	if rl.GeneralLimiterCount() != 1 {
		t.Errorf("リミッターエントリ数 = %d, want 1 (IPベース)", rl.GeneralLimiterCount())
	}
}

func TestRateLimiter_WriteLimitIndependent(t *testing.T) {
	rl := NewRateLimiter(testConfig())
	defer rl.Stop()

	general := NewViewerMiddleware()(rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))
	write := NewViewerMiddleware()(rl.WriteMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})))

	// 書き込み系のバースト(1)を使い切る
	write.ServeHTTP(httptest.NewRecorder(), viewerRequest("viewer-1"))
	rec := httptest.NewRecorder()
	write.ServeHTTP(rec, viewerRequest("viewer-1"))
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("書き込み系: status = %d, want 429", rec.Code)
	}

	// API全般の制限は独立している
	rec = httptest.NewRecorder()
	general.ServeHTTP(rec, viewerRequest("viewer-1"))
	if rec.Code != http.StatusOK {
		t.Errorf("API全般まで制限されている: status = %d", rec.Code)
	}
}

func TestRateLimiter_CleanupRemovesStaleEntries(t *testing.T) {
	cfg := testConfig()
	cfg.CleanupInterval = 10 * time.Millisecond
	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	rl.getOrCreateGeneralLimiter("viewer-old")
	if rl.GeneralLimiterCount() != 1 {
		t.Fatalf("エントリ数 = %d, want 1", rl.GeneralLimiterCount())
	}

	// TTL(CleanupInterval*2)の経過を待つ
	deadline := time.Now().Add(2 * time.Second)
	for rl.GeneralLimiterCount() > 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}

	if rl.GeneralLimiterCount() != 0 {
		t.Errorf("期限切れエントリが削除されていない: %d件", rl.GeneralLimiterCount())
	}
}
