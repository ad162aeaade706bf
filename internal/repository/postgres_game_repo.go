package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/brainsta/reels/internal/model"
)

// PostgresGameRepo はPostgreSQLを使用したゲームリポジトリ。
type PostgresGameRepo struct {
	db *sql.DB
}

// NewPostgresGameRepo はPostgresGameRepoを生成する。
func NewPostgresGameRepo(db *sql.DB) *PostgresGameRepo {
	return &PostgresGameRepo{db: db}
}

const gameColumns = `g.id, g.title, g.title_normalized, g.description, g.url, g.folder,
       g.category_id, g.like_count, g.comment_count, g.play_time_seconds,
       g.published, g.created_by, g.created_at, g.updated_at`

// FindByID は指定IDのゲームを取得する。見つからない場合はnilを返す。
func (r *PostgresGameRepo) FindByID(ctx context.Context, id string) (*model.Game, error) {
	game := &model.Game{}
	var categoryID sql.NullString
	var createdAt sql.NullTime

	err := r.db.QueryRowContext(ctx,
		`SELECT `+gameColumns+` FROM games g WHERE g.id = $1`,
		id,
	).Scan(
		&game.ID, &game.Title, &game.TitleNormalized, &game.Description,
		&game.URL, &game.Folder, &categoryID,
		&game.LikeCount, &game.CommentCount, &game.PlayTimeSeconds,
		&game.Published, &game.CreatedBy, &createdAt, &game.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ゲームの取得に失敗しました: %w", err)
	}

	if categoryID.Valid {
		game.CategoryID = &categoryID.String
	}
	if createdAt.Valid {
		game.CreatedAt = &createdAt.Time
	}

	return game, nil
}

// ListAll はフィード組み立て用の全件スナップショットをカテゴリ名付きで返す。
// filterがGameFilterPublishedの場合は公開済みのみ。created_at降順。
// 削除済みカテゴリへの参照はLEFT JOINによりCategoryNameが空のまま返る。
func (r *PostgresGameRepo) ListAll(ctx context.Context, filter model.GameFilter) ([]model.GameWithCategory, error) {
	query := `SELECT ` + gameColumns + `, COALESCE(c.name, '') AS category_name
	 FROM games g
	 LEFT JOIN categories c ON g.category_id = c.id`
	if filter == model.GameFilterPublished {
		query += ` WHERE g.published = true`
	}
	query += ` ORDER BY g.created_at DESC NULLS LAST, g.id DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ゲーム一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return scanGamesWithCategory(rows)
}

// ListPage は(created_at, id)降順のキーセットページネーションで1ページ取得する。
// cursorがゼロ値の場合は先頭から取得する。created_atがNULLの行は末尾に
// id降順で並び、ページを跨いでも取りこぼさない。
func (r *PostgresGameRepo) ListPage(
	ctx context.Context,
	filter model.GameFilter,
	cursor model.GameCursor,
	limit int,
) ([]model.GameWithCategory, error) {
	query := `SELECT ` + gameColumns + `, COALESCE(c.name, '') AS category_name
	 FROM games g
	 LEFT JOIN categories c ON g.category_id = c.id
	 WHERE 1 = 1`

	args := []interface{}{}
	argIndex := 1

	if filter == model.GameFilterPublished {
		query += ` AND g.published = true`
	}

	// created_atがNULLの行はNULLS LASTで末尾に並ぶため、行比較だけでは
	// 2ページ目以降で到達できない。カーソル位置に応じて述語を分ける。
	if !cursor.IsZero() {
		if cursor.CreatedAt.IsZero() {
			// カーソルがNULL群の中にいる: 残りのNULL行をid降順で進める
			query += fmt.Sprintf(" AND g.created_at IS NULL AND g.id < $%d", argIndex)
			args = append(args, cursor.ID)
			argIndex++
		} else {
			query += fmt.Sprintf(" AND ((g.created_at, g.id) < ($%d, $%d) OR g.created_at IS NULL)", argIndex, argIndex+1)
			args = append(args, cursor.CreatedAt, cursor.ID)
			argIndex += 2
		}
	}

	query += fmt.Sprintf(" ORDER BY g.created_at DESC NULLS LAST, g.id DESC LIMIT $%d", argIndex)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ゲームページの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return scanGamesWithCategory(rows)
}

// ListNormalizedTitles は全ゲームの正規化済みタイトル一覧を返す。
func (r *PostgresGameRepo) ListNormalizedTitles(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT title_normalized FROM games`,
	)
	if err != nil {
		return nil, fmt.Errorf("タイトル一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var titles []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("タイトル行の読み取りに失敗しました: %w", err)
		}
		titles = append(titles, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("タイトル一覧の走査に失敗しました: %w", err)
	}

	return titles, nil
}

// Create はゲームを作成する。created_at/updated_atはサーバー時刻が
// 割り当てられ、引数のGameに書き戻される。
func (r *PostgresGameRepo) Create(ctx context.Context, game *model.Game) error {
	var createdAt sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO games (id, title, title_normalized, description, url, folder,
		                    category_id, like_count, comment_count, play_time_seconds,
		                    published, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING created_at, updated_at`,
		game.ID, game.Title, game.TitleNormalized, game.Description,
		game.URL, game.Folder, game.CategoryID,
		game.LikeCount, game.CommentCount, game.PlayTimeSeconds,
		game.Published, game.CreatedBy,
	).Scan(&createdAt, &game.UpdatedAt)
	if err != nil {
		return fmt.Errorf("ゲームの作成に失敗しました: %w", err)
	}

	if createdAt.Valid {
		game.CreatedAt = &createdAt.Time
	}

	return nil
}

// Delete は指定IDのゲームを削除する。関連するコメントはCASCADE削除される。
func (r *PostgresGameRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM games WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("ゲームの削除に失敗しました: %w", err)
	}
	return nil
}

// SetPublished は公開フラグを更新する。対象が存在しない場合はfalseを返す。
func (r *PostgresGameRepo) SetPublished(ctx context.Context, id string, published bool) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE games SET published = $2, updated_at = now() WHERE id = $1`,
		id, published,
	)
	if err != nil {
		return false, fmt.Errorf("公開フラグの更新に失敗しました: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("公開フラグ更新の結果確認に失敗しました: %w", err)
	}

	return affected > 0, nil
}

// UpdateCategory はゲームのカテゴリ参照を更新する。nilで無カテゴリにする。
func (r *PostgresGameRepo) UpdateCategory(ctx context.Context, id string, categoryID *string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE games SET category_id = $2, updated_at = now() WHERE id = $1`,
		id, categoryID,
	)
	if err != nil {
		return fmt.Errorf("カテゴリ参照の更新に失敗しました: %w", err)
	}
	return nil
}

// AddPlayTime は累計プレイ時間に秒数を加算するマージ書き込み。
// 他のフィールドには触れない。
func (r *PostgresGameRepo) AddPlayTime(ctx context.Context, id string, seconds int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE games SET play_time_seconds = play_time_seconds + $2, updated_at = now()
		 WHERE id = $1`,
		id, seconds,
	)
	if err != nil {
		return fmt.Errorf("プレイ時間の加算に失敗しました: %w", err)
	}
	return nil
}

// AddCommentCount はコメント数集計にdeltaを加算する。台帳側と集計側が
// 一時的にずれても0未満にはならないようクランプする。
func (r *PostgresGameRepo) AddCommentCount(ctx context.Context, id string, delta int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE games SET comment_count = GREATEST(0, comment_count + $2), updated_at = now()
		 WHERE id = $1`,
		id, delta,
	)
	if err != nil {
		return fmt.Errorf("コメント数の更新に失敗しました: %w", err)
	}
	return nil
}

// Search はタイトルまたはカテゴリ名の部分一致で公開済みゲームを検索する。
func (r *PostgresGameRepo) Search(ctx context.Context, query string, limit int) ([]model.GameWithCategory, error) {
	pattern := "%" + query + "%"
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+gameColumns+`, COALESCE(c.name, '') AS category_name
		 FROM games g
		 LEFT JOIN categories c ON g.category_id = c.id
		 WHERE g.published = true
		   AND (g.title ILIKE $1 OR c.name ILIKE $1)
		 ORDER BY g.created_at DESC NULLS LAST, g.id DESC
		 LIMIT $2`,
		pattern, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("ゲームの検索に失敗しました: %w", err)
	}
	defer rows.Close()

	return scanGamesWithCategory(rows)
}

// ReconcileCounters はlike_count/comment_countを台帳とコメントの実数から
// 再計算して修正し、更新行数を返す。楽観更新のずれを定期的に直す。
func (r *PostgresGameRepo) ReconcileCounters(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE games g SET
		    like_count = actual.likes,
		    comment_count = actual.comments,
		    updated_at = now()
		 FROM (
		    SELECT g2.id,
		           COALESCE((
		               SELECT count(*) FROM ledgers l
		               WHERE (l.like_counts ->> g2.id)::int > 0
		           ), 0) AS likes,
		           COALESCE((
		               SELECT count(*) FROM comments cm WHERE cm.game_id = g2.id
		           ), 0) AS comments
		    FROM games g2
		 ) actual
		 WHERE g.id = actual.id
		   AND (g.like_count <> actual.likes OR g.comment_count <> actual.comments)`,
	)
	if err != nil {
		return 0, fmt.Errorf("集計カウンタの再計算に失敗しました: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("再計算結果の確認に失敗しました: %w", err)
	}

	return affected, nil
}

// scanGamesWithCategory はゲーム行+カテゴリ名の結果セットを読み取る。
func scanGamesWithCategory(rows *sql.Rows) ([]model.GameWithCategory, error) {
	var games []model.GameWithCategory
	for rows.Next() {
		var gwc model.GameWithCategory
		var categoryID sql.NullString
		var createdAt sql.NullTime

		if err := rows.Scan(
			&gwc.ID, &gwc.Title, &gwc.TitleNormalized, &gwc.Description,
			&gwc.URL, &gwc.Folder, &categoryID,
			&gwc.LikeCount, &gwc.CommentCount, &gwc.PlayTimeSeconds,
			&gwc.Published, &gwc.CreatedBy, &createdAt, &gwc.UpdatedAt,
			&gwc.CategoryName,
		); err != nil {
			return nil, fmt.Errorf("ゲーム行の読み取りに失敗しました: %w", err)
		}

		if categoryID.Valid {
			gwc.CategoryID = &categoryID.String
		}
		if createdAt.Valid {
			gwc.CreatedAt = &createdAt.Time
		}

		games = append(games, gwc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ゲーム一覧の走査に失敗しました: %w", err)
	}

	return games, nil
}

// compile-time interface check
var _ GameRepository = (*PostgresGameRepo)(nil)
