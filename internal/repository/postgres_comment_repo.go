package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/brainsta/reels/internal/model"
)

// PostgresCommentRepo はPostgreSQLを使用したコメントリポジトリ。
type PostgresCommentRepo struct {
	db *sql.DB
}

// NewPostgresCommentRepo はPostgresCommentRepoを生成する。
func NewPostgresCommentRepo(db *sql.DB) *PostgresCommentRepo {
	return &PostgresCommentRepo{db: db}
}

// FindByID は指定IDのコメントを取得する。見つからない場合はnilを返す。
func (r *PostgresCommentRepo) FindByID(ctx context.Context, id string) (*model.Comment, error) {
	comment := &model.Comment{}
	var parentID sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT id, game_id, user_id, user_name, parent_id, body, created_at
		 FROM comments WHERE id = $1`,
		id,
	).Scan(
		&comment.ID, &comment.GameID, &comment.UserID, &comment.UserName,
		&parentID, &comment.Body, &comment.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("コメントの取得に失敗しました: %w", err)
	}

	if parentID.Valid {
		comment.ParentID = &parentID.String
	}

	return comment, nil
}

// ListByGame はゲームのコメント一覧を作成日時昇順で返す。返信を含む。
func (r *PostgresCommentRepo) ListByGame(ctx context.Context, gameID string) ([]*model.Comment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, game_id, user_id, user_name, parent_id, body, created_at
		 FROM comments WHERE game_id = $1 ORDER BY created_at ASC`,
		gameID,
	)
	if err != nil {
		return nil, fmt.Errorf("コメント一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var comments []*model.Comment
	for rows.Next() {
		comment := &model.Comment{}
		var parentID sql.NullString

		if err := rows.Scan(
			&comment.ID, &comment.GameID, &comment.UserID, &comment.UserName,
			&parentID, &comment.Body, &comment.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("コメント行の読み取りに失敗しました: %w", err)
		}

		if parentID.Valid {
			comment.ParentID = &parentID.String
		}

		comments = append(comments, comment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("コメント一覧の走査に失敗しました: %w", err)
	}

	return comments, nil
}

// Create はコメントを作成する。created_atはサーバー時刻が割り当てられ、
// 引数のCommentに書き戻される。
func (r *PostgresCommentRepo) Create(ctx context.Context, comment *model.Comment) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO comments (id, game_id, user_id, user_name, parent_id, body)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		comment.ID, comment.GameID, comment.UserID, comment.UserName,
		comment.ParentID, comment.Body,
	).Scan(&comment.CreatedAt)
	if err != nil {
		return fmt.Errorf("コメントの作成に失敗しました: %w", err)
	}
	return nil
}

// Delete は指定IDのコメントを削除する。返信はCASCADE削除される。
func (r *PostgresCommentRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM comments WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("コメントの削除に失敗しました: %w", err)
	}
	return nil
}

// CountByUser はユーザーがコメントしたゲームごとの件数を返す。
func (r *PostgresCommentRepo) CountByUser(ctx context.Context, userID string) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT game_id, count(*) FROM comments
		 WHERE user_id = $1 GROUP BY game_id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("コメント件数の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var gameID string
		var count int
		if err := rows.Scan(&gameID, &count); err != nil {
			return nil, fmt.Errorf("コメント件数行の読み取りに失敗しました: %w", err)
		}
		counts[gameID] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("コメント件数の走査に失敗しました: %w", err)
	}

	return counts, nil
}

// DeleteByUserID はユーザーの全コメントを削除する。
func (r *PostgresCommentRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM comments WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("ユーザーのコメント削除に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ CommentRepository = (*PostgresCommentRepo)(nil)
