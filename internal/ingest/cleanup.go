package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/veritas/cyberhub/internal/repository"
)

// defaultRetentionDays は取り込み案件のデフォルト保持日数。
const defaultRetentionDays = 180

// CleanupJob は保持期間を超過した案件の自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	listingRepo   repository.ListingRepository
	logger        *slog.Logger
	RetentionDays int
}

// NewCleanupJob は新しいCleanupJobを生成する。
// デフォルトの保持日数は180日。
func NewCleanupJob(listingRepo repository.ListingRepository, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		listingRepo:   listingRepo,
		logger:        logger,
		RetentionDays: defaultRetentionDays,
	}
}

// Run は掲載日時が保持期間を超過した案件を削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	cutoff := time.Now().AddDate(0, 0, -j.RetentionDays)
	deleted, err := j.listingRepo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		j.logger.Error("案件クリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("案件クリーンアップの実行に失敗: %w", err)
	}

	duration := time.Since(start)
	j.logger.Info("案件クリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deleted),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
