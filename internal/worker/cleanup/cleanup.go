// Package cleanup は期限切れデータの自動削除ジョブを提供する。
// 期限切れセッションと、TTL（デフォルト30日）を超過した削除済みゲームの
// 墓標レコードを定期バッチで削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brainsta/reels/internal/repository"
)

// defaultTombstoneTTL は墓標レコードの保持期間。クライアントの
// キャッシュ破棄に十分な期間を残す。
const defaultTombstoneTTL = 30 * 24 * time.Hour

// CleanupJob は期限切れデータの自動削除ジョブ。
// 定期実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	sessionRepo  repository.SessionRepository
	removedRepo  repository.RemovedGameRepository
	logger       *slog.Logger
	TombstoneTTL time.Duration // 墓標レコードの保持期間
}

// NewCleanupJob は新しいCleanupJobを生成する。
// デフォルトの墓標保持期間は30日。
func NewCleanupJob(sessionRepo repository.SessionRepository, removedRepo repository.RemovedGameRepository, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		sessionRepo:  sessionRepo,
		removedRepo:  removedRepo,
		logger:       logger,
		TombstoneTTL: defaultTombstoneTTL,
	}
}

// Run は期限切れセッションと保持期間超過の墓標を削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	sessions, err := j.sessionRepo.DeleteExpired(ctx)
	if err != nil {
		j.logger.Error("期限切れセッションの削除に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("期限切れセッションの削除に失敗: %w", err)
	}

	cutoff := time.Now().Add(-j.TombstoneTTL)
	tombstones, err := j.removedRepo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		j.logger.Error("墓標レコードの削除に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("墓標レコードの削除に失敗: %w", err)
	}

	duration := time.Since(start)
	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int64("deleted_sessions", sessions),
		slog.Int64("deleted_tombstones", tombstones),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// Start は指定間隔のティッカーでジョブを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("クリーンアップジョブを開始しました",
		slog.Duration("interval", interval),
	)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("クリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("クリーンアップジョブの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
