package repository

import (
	"testing"
	"time"

	"github.com/brainsta/reels/internal/model"
)

// TestPostgresGameRepo_ImplementsInterface はPostgresGameRepoがGameRepositoryを実装することを検証する。
func TestPostgresGameRepo_ImplementsInterface(t *testing.T) {
	// コンパイル時チェック：PostgresGameRepoがGameRepositoryを満たすことを検証
	var _ GameRepository = (*PostgresGameRepo)(nil)
}

// TestPostgresLedgerRepo_ImplementsInterface はPostgresLedgerRepoがLedgerRepositoryを実装することを検証する。
func TestPostgresLedgerRepo_ImplementsInterface(t *testing.T) {
	// コンパイル時チェック：PostgresLedgerRepoがLedgerRepositoryを満たすことを検証
	var _ LedgerRepository = (*PostgresLedgerRepo)(nil)
}

// TestGameFilterValues はGameFilterの定数値が正しいことを検証する。
func TestGameFilterValues(t *testing.T) {
	if model.GameFilterPublished != "published" {
		t.Errorf("GameFilterPublished = %q, want %q", model.GameFilterPublished, "published")
	}
	if model.GameFilterAll != "all" {
		t.Errorf("GameFilterAll = %q, want %q", model.GameFilterAll, "all")
	}
}

// TestGameCursor_IsZero はカーソルのゼロ値判定を検証する。
func TestGameCursor_IsZero(t *testing.T) {
	var zero model.GameCursor
	if !zero.IsZero() {
		t.Error("ゼロ値のカーソルはIsZero()=trueであるべき")
	}

	cursor := model.GameCursor{CreatedAt: time.Now(), ID: "game-1"}
	if cursor.IsZero() {
		t.Error("値が設定されたカーソルはIsZero()=falseであるべき")
	}
}
