package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	// initialBackoff は接続リトライの初回遅延。
	initialBackoff = 500 * time.Millisecond
	// maxBackoff は接続リトライの最大遅延。
	maxBackoff = 10 * time.Second
)

// Pinger はDB疎通確認のインターフェース。*sql.DBが満たす。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// CalculateBackoff は失敗回数に基づいて指数バックオフ遅延を計算する。
// 初回500ms、2倍ずつ増加、最大10秒。
func CalculateBackoff(failures int) time.Duration {
	delay := initialBackoff
	for i := 0; i < failures; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// WaitReady はDBに疎通できるまで指数バックオフでPingを繰り返す。
// コンテナ起動直後などDBの準備が整っていない場合に使用する。
// attempts回失敗するか、ctxがキャンセルされた場合は最後のエラーを返す。
func WaitReady(ctx context.Context, db Pinger, attempts int) error {
	return waitReady(ctx, db, attempts, CalculateBackoff)
}

func waitReady(ctx context.Context, db Pinger, attempts int, backoff func(int) time.Duration) error {
	var lastErr error
	for i := 0; i < attempts; i++ {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		lastErr = db.PingContext(pingCtx)
		cancel()
		if lastErr == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}

		delay := backoff(i)
		slog.Warn("database not ready, retrying",
			slog.Int("attempt", i+1),
			slog.Duration("retry_in", delay),
			slog.String("error", lastErr.Error()),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("database not ready: %w", ctx.Err())
		case <-timer.C:
		}
	}
	return fmt.Errorf("database not ready after %d attempts: %w", attempts, lastErr)
}
