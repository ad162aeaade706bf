// Package model はドメインモデルを定義する。
package model

import "time"

// Category はゲームの分類カテゴリを表す。
// カテゴリの削除はゲーム側へカスケードしない。ゲームのCategoryIDが
// 削除済みカテゴリを指したまま残ることは許容され、参照側で無カテゴリ
// として扱う。
type Category struct {
	ID        string
	Name      string
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Comment はゲームに対するコメントを表す。ParentIDが設定されている
// 場合は返信（1段まで）。本文はサニタイズ済み。
type Comment struct {
	ID        string
	GameID    string
	UserID    string
	UserName  string
	ParentID  *string
	Body      string
	CreatedAt time.Time
}

// AppConfig はクライアント共通設定のシングルトンドキュメントを表す。
type AppConfig struct {
	AssetBaseURL string
	ShareHostURL string
	Maintenance  bool
	UpdatedAt    time.Time
}
