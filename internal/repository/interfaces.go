// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/brainsta/reels/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error

	// UpdateRole はユーザーの権限種別を更新する。
	UpdateRole(ctx context.Context, id string, role model.Role) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するidentities、sessions、ledgers、commentsはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// GameRepository はゲームデータの永続化インターフェース。
type GameRepository interface {
	// FindByID は指定IDのゲームを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Game, error)

	// ListAll はフィード組み立て用の全件スナップショットをカテゴリ名付きで返す。
	// filterがGameFilterPublishedの場合は公開済みのみ。created_at降順。
	// 削除済みカテゴリへの参照はCategoryNameが空のまま返る。
	ListAll(ctx context.Context, filter model.GameFilter) ([]model.GameWithCategory, error)

	// ListPage は(created_at, id)降順のキーセットページネーションで1ページ取得する。
	// cursorがゼロ値の場合は先頭から取得する。
	ListPage(ctx context.Context, filter model.GameFilter, cursor model.GameCursor, limit int) ([]model.GameWithCategory, error)

	// ListNormalizedTitles は全ゲームの正規化済みタイトル一覧を返す。
	// アップロード時の重複タイトル走査に使用する。
	ListNormalizedTitles(ctx context.Context) ([]string, error)

	// Create はゲームを作成する。created_at/updated_atはサーバー時刻が
	// 割り当てられ、引数のGameに書き戻される。
	Create(ctx context.Context, game *model.Game) error

	// Delete は指定IDのゲームを削除する。関連するコメントはCASCADE削除される。
	Delete(ctx context.Context, id string) error

	// SetPublished は公開フラグを更新する。対象が存在しない場合はfalseを返す。
	SetPublished(ctx context.Context, id string, published bool) (bool, error)

	// UpdateCategory はゲームのカテゴリ参照を更新する。nilで無カテゴリにする。
	UpdateCategory(ctx context.Context, id string, categoryID *string) error

	// AddPlayTime は累計プレイ時間に秒数を加算するマージ書き込み。
	AddPlayTime(ctx context.Context, id string, seconds int64) error

	// AddCommentCount はコメント数集計にdeltaを加算する。0未満にはならない。
	AddCommentCount(ctx context.Context, id string, delta int) error

	// Search はタイトルまたはカテゴリ名の部分一致で公開済みゲームを検索する。
	Search(ctx context.Context, query string, limit int) ([]model.GameWithCategory, error)

	// ReconcileCounters はlike_count/comment_countを台帳とコメントの実数から
	// 再計算して修正し、更新行数を返す。楽観更新のずれを定期的に直す。
	ReconcileCounters(ctx context.Context) (int64, error)
}

// LedgerRepository はユーザーごとのインタラクション台帳の永続化インターフェース。
// 全ての更新はフィールド単位のマージ書き込みで行い、兄弟フィールドを
// 上書きしない。
type LedgerRepository interface {
	// FindByUserID は指定ユーザーの台帳を取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.Ledger, error)

	// SetFavorite はお気に入り集合へのゲームIDの追加・削除をマージ書き込みする。
	SetFavorite(ctx context.Context, userID, gameID string, favorite bool) error

	// IncrementPlayCount は再生回数を1加算するマージ書き込み。
	IncrementPlayCount(ctx context.Context, userID, gameID string) error

	// ToggleLike はいいね状態を反転する。台帳のいいね寄与とゲーム側の
	// 集計カウンタを単一トランザクションで読み取り・更新する。
	// 集計カウンタは0未満にクランプされる。反転後の状態を返す。
	ToggleLike(ctx context.Context, userID, gameID string) (bool, error)

	// DeleteByUserID は指定ユーザーの台帳を削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// CategoryRepository はカテゴリデータの永続化インターフェース。
type CategoryRepository interface {
	// FindByID は指定IDのカテゴリを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Category, error)

	// FindByName は名前でカテゴリを検索する。見つからない場合はnilを返す。
	FindByName(ctx context.Context, name string) (*model.Category, error)

	// ListAll は全カテゴリを作成日時昇順で返す。
	ListAll(ctx context.Context) ([]*model.Category, error)

	// Create はカテゴリを作成する。
	Create(ctx context.Context, category *model.Category) error

	// UpdateName はカテゴリ名を変更する。
	UpdateName(ctx context.Context, id, name string) error

	// Delete は指定IDのカテゴリを削除する。参照しているゲームのcategory_idは
	// NULLになる（カスケード削除はしない）。
	Delete(ctx context.Context, id string) error
}

// CommentRepository はコメントデータの永続化インターフェース。
type CommentRepository interface {
	// FindByID は指定IDのコメントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Comment, error)

	// ListByGame はゲームのコメント一覧を作成日時昇順で返す。返信を含む。
	ListByGame(ctx context.Context, gameID string) ([]*model.Comment, error)

	// Create はコメントを作成する。created_atはサーバー時刻が割り当てられ、
	// 引数のCommentに書き戻される。
	Create(ctx context.Context, comment *model.Comment) error

	// Delete は指定IDのコメントを削除する。返信はCASCADE削除される。
	Delete(ctx context.Context, id string) error

	// CountByUser はユーザーがコメントしたゲームごとの件数を返す。
	// スコアラーのhasUserCommented判定に使用する。
	CountByUser(ctx context.Context, userID string) (map[string]int, error)

	// DeleteByUserID はユーザーの全コメントを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// RemovedGameRepository は削除済みゲーム墓標の永続化インターフェース。
type RemovedGameRepository interface {
	// Create は墓標レコードを作成する。
	Create(ctx context.Context, removed *model.RemovedGame) error

	// ListSince は指定日時以降に削除されたゲームの墓標を返す。
	ListSince(ctx context.Context, since time.Time) ([]*model.RemovedGame, error)

	// DeleteOlderThan は指定日時より古い墓標を削除し、削除件数を返す。
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// AppConfigRepository はアプリ共通設定シングルトンの永続化インターフェース。
type AppConfigRepository interface {
	// Get は設定ドキュメントを取得する。
	Get(ctx context.Context) (*model.AppConfig, error)

	// Update は非nilのフィールドのみをマージ書き込みする。
	Update(ctx context.Context, assetBaseURL, shareHostURL *string, maintenance *bool) error
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
