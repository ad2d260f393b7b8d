// Package cleanup は期限切れデータと孤立ファイルの定期削除ジョブを提供する。
// ログアウト済みトークンの記録とパスワードリセットトークンは有効期限を過ぎたものを削除し、
// 写真レコードから参照されないアップロードファイルは猶予期間の経過後に削除する。
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/photorate/internal/metrics"
)

// DefaultGracePeriod は孤立ファイルとみなすまでの既定の猶予期間。
// アップロード処理中のファイルを削除しないために設ける。
const DefaultGracePeriod = time.Hour

// RevokedTokenPurger は期限切れのログアウト済みトークン記録を削除する。
type RevokedTokenPurger interface {
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// ResetTokenPurger は期限切れのパスワードリセットトークンを消去する。
type ResetTokenPurger interface {
	ClearExpiredResetTokens(ctx context.Context) (int64, error)
}

// FileIndex は保存ファイル名のうち写真レコードから参照されているものを返す。
type FileIndex interface {
	ReferencedFileNames(ctx context.Context, fileNames []string) (map[string]bool, error)
}

// FileSweeper はアップロードディレクトリのファイルを列挙・削除する。
type FileSweeper interface {
	ListStale(cutoff time.Time) ([]string, error)
	RemoveByName(name string)
}

// CleanupJob は定期削除ジョブ。
// 冪等: 削除対象がない場合でもエラーにならない。
type CleanupJob struct {
	tokens  RevokedTokenPurger
	resets  ResetTokenPurger
	index   FileIndex
	files   FileSweeper
	metrics metrics.MetricsCollector
	logger  *slog.Logger
	now     func() time.Time

	GracePeriod time.Duration // 孤立ファイルの猶予期間（デフォルト: 1時間）
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(
	tokens RevokedTokenPurger,
	resets ResetTokenPurger,
	index FileIndex,
	files FileSweeper,
	mc metrics.MetricsCollector,
	logger *slog.Logger,
) *CleanupJob {
	if mc == nil {
		mc = metrics.NopCollector{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupJob{
		tokens:      tokens,
		resets:      resets,
		index:       index,
		files:       files,
		metrics:     mc,
		logger:      logger,
		now:         time.Now,
		GracePeriod: DefaultGracePeriod,
	}
}

// Run はトークンの削除と孤立ファイルの削除を順に行う。
// 一方が失敗しても他方は実行し、両方のエラーをまとめて返す。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := j.now()

	tokenErr := j.PurgeTokens(ctx)
	fileErr := j.SweepOrphanFiles(ctx)

	j.logger.Info("cleanup job finished",
		slog.Float64("duration_ms", float64(j.now().Sub(start).Milliseconds())),
		slog.Bool("ok", tokenErr == nil && fileErr == nil),
	)
	return errors.Join(tokenErr, fileErr)
}

// PurgeTokens は有効期限を過ぎたログアウト済みトークンとリセットトークンを削除する。
func (j *CleanupJob) PurgeTokens(ctx context.Context) error {
	revoked, err := j.tokens.DeleteExpired(ctx, j.now())
	if err != nil {
		j.logger.Error("failed to purge revoked tokens", slog.String("error", err.Error()))
		return fmt.Errorf("失効トークンの削除に失敗しました: %w", err)
	}
	j.metrics.RecordCleanup("revoked_tokens", revoked)

	resets, err := j.resets.ClearExpiredResetTokens(ctx)
	if err != nil {
		j.logger.Error("failed to clear reset tokens", slog.String("error", err.Error()))
		return fmt.Errorf("リセットトークンの削除に失敗しました: %w", err)
	}
	j.metrics.RecordCleanup("reset_tokens", resets)

	j.logger.Info("expired tokens purged",
		slog.Int64("revoked_tokens", revoked),
		slog.Int64("reset_tokens", resets),
	)
	return nil
}

// SweepOrphanFiles は猶予期間より古く、どの写真レコードからも参照されないファイルを削除する。
// 写真登録に失敗した際の削除漏れを回収する。
func (j *CleanupJob) SweepOrphanFiles(ctx context.Context) error {
	names, err := j.files.ListStale(j.now().Add(-j.GracePeriod))
	if err != nil {
		j.logger.Error("failed to list upload files", slog.String("error", err.Error()))
		return fmt.Errorf("アップロードファイルの列挙に失敗しました: %w", err)
	}
	if len(names) == 0 {
		j.metrics.RecordCleanup("orphan_files", 0)
		return nil
	}

	referenced, err := j.index.ReferencedFileNames(ctx, names)
	if err != nil {
		j.logger.Error("failed to look up referenced files", slog.String("error", err.Error()))
		return fmt.Errorf("参照ファイルの取得に失敗しました: %w", err)
	}

	var removed int64
	for _, name := range names {
		if referenced[name] {
			continue
		}
		j.files.RemoveByName(name)
		removed++
	}
	j.metrics.RecordCleanup("orphan_files", removed)

	if removed > 0 {
		j.logger.Info("orphan upload files removed",
			slog.Int64("removed", removed),
			slog.Int("scanned", len(names)),
		)
	}
	return nil
}
