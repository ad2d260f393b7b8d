package cleanup

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler はCleanupJobをcron式に従って定期実行する。
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
}

// NewScheduler はspec（例: "@hourly", "0 3 * * *"）でjobを実行するSchedulerを生成する。
// specが不正な場合はエラーを返す。
func NewScheduler(ctx context.Context, job *CleanupJob, spec string, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}

	// 前回の実行が終わっていない場合は今回の実行をスキップする
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(spec, func() {
		if err := job.Run(ctx); err != nil {
			logger.Error("cleanup job failed", slog.String("error", err.Error()))
		}
	}); err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", spec, err)
	}

	return &Scheduler{cron: c, logger: logger}, nil
}

// Start はスケジューラーを開始する。
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("cleanup scheduler started", slog.Int("jobs", len(s.cron.Entries())))
}

// Stop はスケジューラーを停止し、実行中のジョブの完了を待つ。
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("cleanup scheduler stopped")
}
