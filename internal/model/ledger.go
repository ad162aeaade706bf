// Package model はドメインモデルを定義する。
package model

import "time"

// Ledger はユーザーごとのインタラクション台帳を表す。
// ユーザーにつき1件のみ存在し、全ての更新はフィールド単位のマージ書き込みで
// 行われる。兄弟フィールドを巻き込む全体上書きは行わない。
type Ledger struct {
	UserID     string
	Favorites  []string       // お気に入りゲームIDの集合
	PlayCounts map[string]int // ゲームID → 再生回数
	LikeCounts map[string]int // ゲームID → いいね寄与（>0 でいいね中）
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewLedger は空の台帳を生成する。初回書き込み前のユーザーに対する
// 読み出しはこのゼロ台帳で代替される。
func NewLedger(userID string) *Ledger {
	return &Ledger{
		UserID:     userID,
		Favorites:  []string{},
		PlayCounts: map[string]int{},
		LikeCounts: map[string]int{},
	}
}

// IsFavorite はゲームがお気に入り集合に含まれるかを返す。
func (l *Ledger) IsFavorite(gameID string) bool {
	for _, id := range l.Favorites {
		if id == gameID {
			return true
		}
	}
	return false
}

// IsLiked はゲームが現在いいね中かを返す。寄与が正の場合のみ真。
func (l *Ledger) IsLiked(gameID string) bool {
	return l.LikeCounts[gameID] > 0
}

// PlayCount はゲームの再生回数を返す。未記録は0。
func (l *Ledger) PlayCount(gameID string) int {
	return l.PlayCounts[gameID]
}
