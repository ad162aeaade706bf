package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/brainsta/reels/internal/model"
)

// PostgresRemovedGameRepo はPostgreSQLを使用した削除済みゲーム墓標リポジトリ。
type PostgresRemovedGameRepo struct {
	db *sql.DB
}

// NewPostgresRemovedGameRepo はPostgresRemovedGameRepoを生成する。
func NewPostgresRemovedGameRepo(db *sql.DB) *PostgresRemovedGameRepo {
	return &PostgresRemovedGameRepo{db: db}
}

// Create は墓標レコードを作成する。
func (r *PostgresRemovedGameRepo) Create(ctx context.Context, removed *model.RemovedGame) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO removed_games (id, title) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET removed_at = now()
		 RETURNING removed_at`,
		removed.ID, removed.Title,
	).Scan(&removed.RemovedAt)
	if err != nil {
		return fmt.Errorf("削除済みゲーム墓標の作成に失敗しました: %w", err)
	}
	return nil
}

// ListSince は指定日時以降に削除されたゲームの墓標を返す。
func (r *PostgresRemovedGameRepo) ListSince(ctx context.Context, since time.Time) ([]*model.RemovedGame, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, removed_at FROM removed_games
		 WHERE removed_at >= $1 ORDER BY removed_at DESC`,
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("削除済みゲーム一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var removed []*model.RemovedGame
	for rows.Next() {
		rg := &model.RemovedGame{}
		if err := rows.Scan(&rg.ID, &rg.Title, &rg.RemovedAt); err != nil {
			return nil, fmt.Errorf("削除済みゲーム行の読み取りに失敗しました: %w", err)
		}
		removed = append(removed, rg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("削除済みゲーム一覧の走査に失敗しました: %w", err)
	}

	return removed, nil
}

// DeleteOlderThan は指定日時より古い墓標を削除し、削除件数を返す。
func (r *PostgresRemovedGameRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM removed_games WHERE removed_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("古い墓標の削除に失敗しました: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("墓標削除件数の確認に失敗しました: %w", err)
	}

	return affected, nil
}

// compile-time interface check
var _ RemovedGameRepository = (*PostgresRemovedGameRepo)(nil)
