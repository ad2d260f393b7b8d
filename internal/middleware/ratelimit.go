package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/photorate/internal/model"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	GeneralRate     rate.Limit    // API全般のレート（req/sec）。120/60 = 2 req/sec
	GeneralBurst    int           // API全般のバーストサイズ
	UploadRate      rate.Limit    // 写真アップロードのレート（req/sec）。10/60
	UploadBurst     int           // 写真アップロードのバーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// API全般 120 req/min/user、写真アップロード 10 req/min/user。
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfigPerMinute(120, 10)
}

// RateLimiterConfigPerMinute は1分あたりのリクエスト数からRateLimiterConfigを生成する。
// バーストサイズは1分あたりの上限と同じにする。
func RateLimiterConfigPerMinute(general, upload int) RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(float64(general) / 60.0),
		GeneralBurst:    general,
		UploadRate:      rate.Limit(float64(upload) / 60.0),
		UploadBurst:     upload,
		CleanupInterval: 5 * time.Minute,
	}
}

// keyedLimiter はキー（ユーザーIDまたはクライアントIP）ごとのリミッターの集合。
type keyedLimiter struct {
	name  string
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*keyEntry
}

type keyEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

func newKeyedLimiter(name string, limit rate.Limit, burst int) *keyedLimiter {
	return &keyedLimiter{
		name:     name,
		limit:    limit,
		burst:    burst,
		limiters: make(map[string]*keyEntry),
	}
}

// allow はキーのトークンを1つ消費できるかどうかを返す。
func (k *keyedLimiter) allow(key string) bool {
	k.mu.Lock()
	e, ok := k.limiters[key]
	if !ok {
		e = &keyEntry{limiter: rate.NewLimiter(k.limit, k.burst)}
		k.limiters[key] = e
	}
	e.lastAccess = time.Now()
	k.mu.Unlock()
	return e.limiter.Allow()
}

func (k *keyedLimiter) count() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.limiters)
}

// evict は最終アクセスがcutoffより前のエントリを削除する。
func (k *keyedLimiter) evict(cutoff time.Time) {
	k.mu.Lock()
	defer k.mu.Unlock()
	for key, e := range k.limiters {
		if e.lastAccess.Before(cutoff) {
			delete(k.limiters, key)
		}
	}
}

// middleware はkeyedLimiterによるレート制限ミドルウェアを返す。
func (k *keyedLimiter) middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := rateLimitKey(r)
			if !k.allow(key) {
				writeRateLimitResponse(w, k.limit)
				slog.Warn("rate limit exceeded",
					slog.String("key", key),
					slog.String("limit_type", k.name),
				)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimiter はユーザーごとのレート制限を管理する。
// API全般のレート制限と写真アップロードのレート制限の2種類を提供する。
type RateLimiter struct {
	config  RateLimiterConfig
	general *keyedLimiter
	upload  *keyedLimiter
	stopCh  chan struct{}
	once    sync.Once
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config:  config,
		general: newKeyedLimiter("general", config.GeneralRate, config.GeneralBurst),
		upload:  newKeyedLimiter("upload", config.UploadRate, config.UploadBurst),
		stopCh:  make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stopCh) })
}

// GeneralMiddleware はAPI全般のレート制限ミドルウェアを返す。
// 認証済みのリクエストはユーザーID、未認証のリクエストはクライアントIPごとに制限する。
func (rl *RateLimiter) GeneralMiddleware() func(next http.Handler) http.Handler {
	return rl.general.middleware()
}

// UploadMiddleware は写真アップロード専用のレート制限ミドルウェアを返す。
// API全般のレート制限とは独立に動作する。
func (rl *RateLimiter) UploadMiddleware() func(next http.Handler) http.Handler {
	return rl.upload.middleware()
}

// GeneralLimiterCount は現在管理されているAPI全般リミッターのエントリ数を返す。
func (rl *RateLimiter) GeneralLimiterCount() int {
	return rl.general.count()
}

// UploadLimiterCount は現在管理されているアップロードリミッターのエントリ数を返す。
func (rl *RateLimiter) UploadLimiterCount() int {
	return rl.upload.count()
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now())
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup は最終アクセス時刻がCleanupIntervalの2倍を超えたエントリを削除する。
func (rl *RateLimiter) cleanup(now time.Time) {
	cutoff := now.Add(-rl.config.CleanupInterval * 2)
	rl.general.evict(cutoff)
	rl.upload.evict(cutoff)
}

// rateLimitKey はレート制限のキーを返す。
func rateLimitKey(r *http.Request) string {
	if userID, err := UserIDFromContext(r.Context()); err == nil {
		return "user:" + userID.String()
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterヘッダーにはトークンが補充されるまでの推定秒数を設定する。
func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	retryAfterSec := 1
	if r > 0 {
		retryAfterSec = int(math.Ceil(1.0 / float64(r)))
	}
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	WriteErrorResponse(w, http.StatusTooManyRequests, model.NewRateLimitedError())
}
