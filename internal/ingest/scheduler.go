// Package ingest はパートナーフィードからの案件取り込み処理を提供する。
// スケジューラ、フェッチャー、リトライ/バックオフ戦略、UPSERT、
// 保持期間超過案件のクリーンアップを含む。
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/veritas/cyberhub/internal/model"
	"github.com/veritas/cyberhub/internal/repository"
)

// FeedFetchService はパートナーフィードのフェッチ実行インターフェース。
type FeedFetchService interface {
	// Fetch は指定フィードをフェッチし、結果に応じてフィード状態を更新する。
	Fetch(ctx context.Context, feed *model.PartnerFeed) error
}

// cleanupCronSpec はクリーンアップジョブの実行スケジュール。
const cleanupCronSpec = "@daily"

// Scheduler は案件取り込みのスケジューリングと並列制御を行う。
// robfig/cronで取り込みサイクルとクリーンアップジョブを駆動し、
// semaphoreパターンで最大並列数を制御しながらフェッチを実行する。
type Scheduler struct {
	cron           *cron.Cron
	feedRepo       repository.PartnerFeedRepository
	fetcher        FeedFetchService
	cleanup        *CleanupJob
	logger         *slog.Logger
	spec           string // cronスペック（例: "@every 30m"）
	maxConcurrency int
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値10を使用する。
func NewScheduler(
	feedRepo repository.PartnerFeedRepository,
	fetcher FeedFetchService,
	cleanup *CleanupJob,
	logger *slog.Logger,
	spec string,
	maxConcurrency int,
) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = 10
	}
	return &Scheduler{
		cron:           cron.New(),
		feedRepo:       feedRepo,
		fetcher:        fetcher,
		cleanup:        cleanup,
		logger:         logger,
		spec:           spec,
		maxConcurrency: maxConcurrency,
	}
}

// Start はcronスケジューラを起動し、コンテキストの終了まで実行を継続する。
// 起動直後に取り込みサイクルを1回実行してから、spec間隔の定期実行に入る。
// クリーンアップジョブは日次で実行される。
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() {
		if err := s.RunOnce(ctx); err != nil {
			s.logger.Error("取り込みサイクルの実行に失敗しました",
				slog.String("error", err.Error()),
			)
		}
	}); err != nil {
		return fmt.Errorf("取り込みジョブの登録に失敗: %w", err)
	}

	if _, err := s.cron.AddFunc(cleanupCronSpec, func() {
		if err := s.cleanup.Run(ctx); err != nil {
			s.logger.Error("クリーンアップジョブの実行に失敗しました",
				slog.String("error", err.Error()),
			)
		}
	}); err != nil {
		return fmt.Errorf("クリーンアップジョブの登録に失敗: %w", err)
	}

	s.cron.Start()
	s.logger.Info("取り込みスケジューラを開始しました",
		slog.String("spec", s.spec),
		slog.Int("max_concurrency", s.maxConcurrency),
	)

	// 起動直後に1回実行
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("取り込みサイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	<-ctx.Done()

	stopCtx := s.cron.Stop()
	// 実行中のジョブの完了を待つ（最大30秒）
	select {
	case <-stopCtx.Done():
	case <-time.After(30 * time.Second):
		s.logger.Warn("取り込みジョブの完了待ちがタイムアウトしました")
	}

	s.logger.Info("取り込みスケジューラを停止しました")
	return nil
}

// RunOnce はフェッチ対象フィードを1回取得し、並列でフェッチを実行する。
// semaphoreパターンで最大並列数を制御する。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()

	// フェッチ対象フィードを取得（FOR UPDATE SKIP LOCKED）
	feeds, err := s.feedRepo.ListDueForFetch(ctx)
	if err != nil {
		return err
	}

	if len(feeds) == 0 {
		s.logger.Info("フェッチ対象のパートナーフィードはありません")
		return nil
	}

	s.logger.Info("取り込みサイクルを開始します",
		slog.Int("feed_count", len(feeds)),
	)

	// semaphoreパターンで並列数を制御
	sem := make(chan struct{}, s.maxConcurrency)
	var wg sync.WaitGroup

	for _, feed := range feeds {
		wg.Add(1)
		sem <- struct{}{} // semaphore取得（ブロック）

		go func(f *model.PartnerFeed) {
			defer wg.Done()
			defer func() { <-sem }() // semaphore解放

			if err := s.fetcher.Fetch(ctx, f); err != nil {
				s.logger.Error("パートナーフィードのフェッチに失敗しました",
					slog.String("feed_id", f.ID),
					slog.String("feed_url", f.FeedURL),
					slog.String("error", err.Error()),
				)
			}
		}(feed)
	}

	wg.Wait()

	duration := time.Since(start)
	s.logger.Info("取り込みサイクルが完了しました",
		slog.Int("feed_count", len(feeds)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
