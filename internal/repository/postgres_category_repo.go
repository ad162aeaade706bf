package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/brainsta/reels/internal/model"
)

// PostgresCategoryRepo はPostgreSQLを使用したカテゴリリポジトリ。
type PostgresCategoryRepo struct {
	db *sql.DB
}

// NewPostgresCategoryRepo はPostgresCategoryRepoを生成する。
func NewPostgresCategoryRepo(db *sql.DB) *PostgresCategoryRepo {
	return &PostgresCategoryRepo{db: db}
}

// FindByID は指定IDのカテゴリを取得する。見つからない場合はnilを返す。
func (r *PostgresCategoryRepo) FindByID(ctx context.Context, id string) (*model.Category, error) {
	category := &model.Category{}

	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, created_by, created_at, updated_at
		 FROM categories WHERE id = $1`,
		id,
	).Scan(
		&category.ID, &category.Name, &category.CreatedBy,
		&category.CreatedAt, &category.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("カテゴリの取得に失敗しました: %w", err)
	}

	return category, nil
}

// FindByName は名前でカテゴリを検索する。見つからない場合はnilを返す。
// 比較は大文字小文字を無視する。
func (r *PostgresCategoryRepo) FindByName(ctx context.Context, name string) (*model.Category, error) {
	category := &model.Category{}

	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, created_by, created_at, updated_at
		 FROM categories WHERE lower(name) = lower($1)`,
		name,
	).Scan(
		&category.ID, &category.Name, &category.CreatedBy,
		&category.CreatedAt, &category.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("カテゴリ名による検索に失敗しました: %w", err)
	}

	return category, nil
}

// ListAll は全カテゴリを作成日時昇順で返す。
func (r *PostgresCategoryRepo) ListAll(ctx context.Context) ([]*model.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, created_by, created_at, updated_at
		 FROM categories ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("カテゴリ一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var categories []*model.Category
	for rows.Next() {
		category := &model.Category{}
		if err := rows.Scan(
			&category.ID, &category.Name, &category.CreatedBy,
			&category.CreatedAt, &category.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("カテゴリ行の読み取りに失敗しました: %w", err)
		}
		categories = append(categories, category)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("カテゴリ一覧の走査に失敗しました: %w", err)
	}

	return categories, nil
}

// Create はカテゴリを作成する。
func (r *PostgresCategoryRepo) Create(ctx context.Context, category *model.Category) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO categories (id, name, created_by)
		 VALUES ($1, $2, $3)
		 RETURNING created_at, updated_at`,
		category.ID, category.Name, category.CreatedBy,
	).Scan(&category.CreatedAt, &category.UpdatedAt)
	if err != nil {
		return fmt.Errorf("カテゴリの作成に失敗しました: %w", err)
	}
	return nil
}

// UpdateName はカテゴリ名を変更する。
func (r *PostgresCategoryRepo) UpdateName(ctx context.Context, id, name string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE categories SET name = $2, updated_at = now() WHERE id = $1`,
		id, name,
	)
	if err != nil {
		return fmt.Errorf("カテゴリ名の変更に失敗しました: %w", err)
	}
	return nil
}

// Delete は指定IDのカテゴリを削除する。参照しているゲームのcategory_idは
// 外部キーのON DELETE SET NULLによりNULLになる。ゲーム側へのカスケード
// 削除は行わない。
func (r *PostgresCategoryRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM categories WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("カテゴリの削除に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ CategoryRepository = (*PostgresCategoryRepo)(nil)
