package middleware

import (
	"context"
	"net/http"
	"time"
)

// NewTimeoutMiddleware はリクエストコンテキストに期限を設定するミドルウェアを返す。
// ストア呼び出しはこのコンテキストを受け取るため、期限を過ぎると中断される。
// dが0以下の場合は何もしない。
func NewTimeoutMiddleware(d time.Duration) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if d <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
