package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/brainsta/reels/internal/model"
	"github.com/lib/pq"
)

// PostgresLedgerRepo はPostgreSQLを使用したインタラクション台帳リポジトリ。
// 台帳はユーザーにつき1行で、favoritesは配列、playCounts/likeCountsは
// JSONBに保持する。全ての更新はフィールド単位のマージ書き込みで行い、
// 兄弟フィールドを巻き込む全体上書きは行わない。
type PostgresLedgerRepo struct {
	db *sql.DB
}

// NewPostgresLedgerRepo はPostgresLedgerRepoを生成する。
func NewPostgresLedgerRepo(db *sql.DB) *PostgresLedgerRepo {
	return &PostgresLedgerRepo{db: db}
}

// FindByUserID は指定ユーザーの台帳を取得する。見つからない場合はnilを返す。
func (r *PostgresLedgerRepo) FindByUserID(ctx context.Context, userID string) (*model.Ledger, error) {
	ledger := &model.Ledger{UserID: userID}
	var playCountsRaw, likeCountsRaw []byte

	err := r.db.QueryRowContext(ctx,
		`SELECT favorites, play_counts, like_counts, created_at, updated_at
		 FROM ledgers WHERE user_id = $1`,
		userID,
	).Scan(
		pq.Array(&ledger.Favorites),
		&playCountsRaw, &likeCountsRaw,
		&ledger.CreatedAt, &ledger.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("台帳の取得に失敗しました: %w", err)
	}

	if err := json.Unmarshal(playCountsRaw, &ledger.PlayCounts); err != nil {
		return nil, fmt.Errorf("再生回数の読み取りに失敗しました: %w", err)
	}
	if err := json.Unmarshal(likeCountsRaw, &ledger.LikeCounts); err != nil {
		return nil, fmt.Errorf("いいね状態の読み取りに失敗しました: %w", err)
	}

	return ledger, nil
}

// SetFavorite はお気に入り集合へのゲームIDの追加・削除をマージ書き込みする。
// 台帳が未作成の場合は初回書き込みで作成される。
func (r *PostgresLedgerRepo) SetFavorite(ctx context.Context, userID, gameID string, favorite bool) error {
	var err error
	if favorite {
		_, err = r.db.ExecContext(ctx,
			`INSERT INTO ledgers (user_id, favorites) VALUES ($1, ARRAY[$2])
			 ON CONFLICT (user_id) DO UPDATE SET
			     favorites = CASE
			         WHEN $2 = ANY(ledgers.favorites) THEN ledgers.favorites
			         ELSE array_append(ledgers.favorites, $2)
			     END,
			     updated_at = now()`,
			userID, gameID,
		)
	} else {
		_, err = r.db.ExecContext(ctx,
			`UPDATE ledgers SET favorites = array_remove(favorites, $2), updated_at = now()
			 WHERE user_id = $1`,
			userID, gameID,
		)
	}
	if err != nil {
		return fmt.Errorf("お気に入りの更新に失敗しました: %w", err)
	}
	return nil
}

// IncrementPlayCount は再生回数を1加算するマージ書き込み。
func (r *PostgresLedgerRepo) IncrementPlayCount(ctx context.Context, userID, gameID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO ledgers (user_id, play_counts) VALUES ($1, jsonb_build_object($2::text, 1))
		 ON CONFLICT (user_id) DO UPDATE SET
		     play_counts = jsonb_set(
		         ledgers.play_counts,
		         ARRAY[$2],
		         to_jsonb(COALESCE((ledgers.play_counts ->> $2)::int, 0) + 1)
		     ),
		     updated_at = now()`,
		userID, gameID,
	)
	if err != nil {
		return fmt.Errorf("再生回数の加算に失敗しました: %w", err)
	}
	return nil
}

// ToggleLike はいいね状態を反転する。台帳のいいね寄与とゲーム側の
// 集計カウンタを単一トランザクションでFOR UPDATEロックして読み取り、
// 新しい値を計算して両方を更新する。2つの無条件書き込みに分解すると
// 同一ゲームへの同時いいねで更新が失われるため必ずこの経路を使うこと。
// 集計カウンタは台帳とずれていても0未満にクランプされる。
func (r *PostgresLedgerRepo) ToggleLike(ctx context.Context, userID, gameID string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("いいねトランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	// 台帳行を確保してからロック付きで現在の寄与を読む
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO ledgers (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`,
		userID,
	); err != nil {
		return false, fmt.Errorf("台帳行の確保に失敗しました: %w", err)
	}

	var contribution int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE((like_counts ->> $2)::int, 0) FROM ledgers
		 WHERE user_id = $1 FOR UPDATE`,
		userID, gameID,
	).Scan(&contribution); err != nil {
		return false, fmt.Errorf("いいね状態の読み取りに失敗しました: %w", err)
	}

	var likeCount int
	err = tx.QueryRowContext(ctx,
		`SELECT like_count FROM games WHERE id = $1 FOR UPDATE`,
		gameID,
	).Scan(&likeCount)
	if err == sql.ErrNoRows {
		return false, model.NewGameNotFoundError(gameID)
	}
	if err != nil {
		return false, fmt.Errorf("いいね集計の読み取りに失敗しました: %w", err)
	}

	liked := contribution > 0
	var newContribution, newLikeCount int
	if liked {
		newContribution = 0
		newLikeCount = likeCount - 1
		if newLikeCount < 0 {
			newLikeCount = 0
		}
	} else {
		newContribution = 1
		newLikeCount = likeCount + 1
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE ledgers SET
		     like_counts = jsonb_set(like_counts, ARRAY[$2], to_jsonb($3::int)),
		     updated_at = now()
		 WHERE user_id = $1`,
		userID, gameID, newContribution,
	); err != nil {
		return false, fmt.Errorf("いいね寄与の更新に失敗しました: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE games SET like_count = $2, updated_at = now() WHERE id = $1`,
		gameID, newLikeCount,
	); err != nil {
		return false, fmt.Errorf("いいね集計の更新に失敗しました: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("いいねトランザクションのコミットに失敗しました: %w", err)
	}

	return !liked, nil
}

// DeleteByUserID は指定ユーザーの台帳を削除する。
func (r *PostgresLedgerRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM ledgers WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("台帳の削除に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ LedgerRepository = (*PostgresLedgerRepo)(nil)
