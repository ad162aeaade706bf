// Package model はドメインモデルを定義する。
package model

import "time"

// Game はフィードに表示される埋め込みゲームを表す。
// コンテンツ本体は外部アセットストアに置かれ、URLで参照する。
type Game struct {
	ID              string
	Title           string
	TitleNormalized string
	Description     string // サニタイズ済み
	URL             string // index.htmlへの絶対URL
	Folder          string // アセットストア上のフォルダ名
	CategoryID      *string
	LikeCount       int
	CommentCount    int
	PlayTimeSeconds int64
	Published       bool
	CreatedBy       string
	CreatedAt       *time.Time
	UpdatedAt       time.Time
}

// GameWithCategory はゲームとカテゴリ名を結合したモデル。
// categoriesテーブルとLEFT JOINして取得される。カテゴリが削除済みの
// 場合はCategoryNameが空のまま返る。
type GameWithCategory struct {
	Game
	CategoryName string
}

// GameFilter はゲーム一覧のフィルタ種別を表す。
type GameFilter string

const (
	// GameFilterPublished は公開済みゲームのみを表示するフィルタ。
	GameFilterPublished GameFilter = "published"
	// GameFilterAll は非公開を含む全ゲームを表示するフィルタ（管理者用）。
	GameFilterAll GameFilter = "all"
)

// GameCursor は一覧ページングのカーソルを表す。
// 直前ページ最終行の(created_at, id)を指す。ゼロ値は先頭からの取得を意味する。
type GameCursor struct {
	CreatedAt time.Time
	ID        string
}

// IsZero はカーソルが未設定かどうかを返す。
func (c GameCursor) IsZero() bool {
	return c.ID == "" && c.CreatedAt.IsZero()
}

// RemovedGame は削除済みゲームの墓標レコードを表す。
// クライアントがキャッシュ済みエントリを破棄するために参照する。
type RemovedGame struct {
	ID        string
	Title     string
	RemovedAt time.Time
}
