// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
type User struct {
	ID        string
	Email     string
	Name      string
	Role      Role
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Role はユーザーの権限種別を表す。
type Role string

const (
	// RoleViewer は一般ユーザー。フィード閲覧とインタラクションのみ。
	RoleViewer Role = "viewer"
	// RoleAdmin は管理者。ゲームの登録・削除・公開切替、カテゴリ管理が可能。
	RoleAdmin Role = "admin"
)

// IsAdmin は管理者権限を持つかを返す。
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Identity は外部IdPとの紐付け情報を表す。
// 将来的に複数のIdP（Google, GitHub等）に対応可能な構造。
type Identity struct {
	ID             string
	UserID         string
	Provider       string
	ProviderUserID string
	CreatedAt      time.Time
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
