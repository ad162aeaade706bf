// Package reconcile は楽観更新で生じた集計カウンタのずれを
// 定期的に実数へ補正するバックグラウンドジョブを提供する。
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brainsta/reels/internal/metrics"
)

// CounterReconciler はカウンタ再計算の永続化側インターフェース。
type CounterReconciler interface {
	ReconcileCounters(ctx context.Context) (int64, error)
}

// ReconcileJob はlike_count/comment_countの補正を行うジョブ。
type ReconcileJob struct {
	gameRepo  CounterReconciler
	collector metrics.MetricsCollector
	logger    *slog.Logger
}

// NewReconcileJob は新しいReconcileJobを生成する。
func NewReconcileJob(gameRepo CounterReconciler, collector metrics.MetricsCollector, logger *slog.Logger) *ReconcileJob {
	return &ReconcileJob{
		gameRepo:  gameRepo,
		collector: collector,
		logger:    logger,
	}
}

// Run はカウンタの補正を1回実行する。
func (j *ReconcileJob) Run(ctx context.Context) error {
	start := time.Now()

	fixed, err := j.gameRepo.ReconcileCounters(ctx)
	if err != nil {
		j.logger.Error("カウンタの補正に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("カウンタの補正に失敗: %w", err)
	}

	j.collector.RecordReconciledCounters(fixed)

	j.logger.Info("カウンタ補正ジョブが完了しました",
		slog.Int64("reconciled_rows", fixed),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}

// Start は指定間隔のティッカーでジョブを起動する。
// コンテキストのキャンセルで停止する。
func (j *ReconcileJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("カウンタ補正ジョブを開始しました",
		slog.Duration("interval", interval),
	)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("カウンタ補正ジョブを停止しました")
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("カウンタ補正ジョブの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
