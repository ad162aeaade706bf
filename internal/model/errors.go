// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, game, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeGameNotFound      = "GAME_NOT_FOUND"
	ErrCodeInvalidFilter     = "INVALID_FILTER"
	ErrCodeInvalidBundle     = "INVALID_BUNDLE"
	ErrCodeDuplicateTitle    = "DUPLICATE_TITLE"
	ErrCodeCategoryNotFound  = "CATEGORY_NOT_FOUND"
	ErrCodeDuplicateCategory = "DUPLICATE_CATEGORY"
	ErrCodeInvalidCategory   = "INVALID_CATEGORY"
	ErrCodeCommentNotFound   = "COMMENT_NOT_FOUND"
	ErrCodeInvalidComment    = "INVALID_COMMENT"
	ErrCodeAssetUploadFailed = "ASSET_UPLOAD_FAILED"
	ErrCodeInvalidURL        = "INVALID_URL"
	ErrCodeSSRFBlocked       = "SSRF_BLOCKED"
	ErrCodeForbidden         = "FORBIDDEN"
	ErrCodeUserNotFound      = "USER_NOT_FOUND"
)

// NewGameNotFoundError はゲーム未検出エラーを生成する。
func NewGameNotFoundError(gameID string) *APIError {
	return &APIError{
		Code:     ErrCodeGameNotFound,
		Message:  fmt.Sprintf("指定されたゲームが見つかりません: %s", gameID),
		Category: "game",
		Action:   "ゲームIDを確認してください。",
	}
}

// NewInvalidFilterError は無効なフィルタエラーを生成する。
func NewInvalidFilterError(filter string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidFilter,
		Message:  fmt.Sprintf("無効なフィルタです: %s", filter),
		Category: "validation",
		Action:   "フィルタには published、all のいずれかを指定してください。",
	}
}

// NewInvalidBundleError はアップロードされたZIPが不正な場合のエラーを生成する。
func NewInvalidBundleError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidBundle,
		Message:  fmt.Sprintf("ゲームバンドルが不正です: %s", reason),
		Category: "validation",
		Action:   "index.htmlを含むZIPファイルをアップロードしてください。",
	}
}

// NewDuplicateTitleError は同名タイトルのゲームが既に存在する場合のエラーを生成する。
func NewDuplicateTitleError(title string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateTitle,
		Message:  fmt.Sprintf("同じタイトルのゲームが既に存在します: %s", title),
		Category: "validation",
		Action:   "別のタイトルを指定するか、既存のゲームを削除してください。",
	}
}

// NewCategoryNotFoundError はカテゴリが見つからない場合のエラーを生成する。
func NewCategoryNotFoundError(categoryID string) *APIError {
	return &APIError{
		Code:     ErrCodeCategoryNotFound,
		Message:  fmt.Sprintf("指定されたカテゴリが見つかりません: %s", categoryID),
		Category: "game",
		Action:   "カテゴリIDを確認してください。",
	}
}

// NewDuplicateCategoryError は同名カテゴリが既に存在する場合のエラーを生成する。
func NewDuplicateCategoryError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateCategory,
		Message:  fmt.Sprintf("同じ名前のカテゴリが既に存在します: %s", name),
		Category: "validation",
		Action:   "別のカテゴリ名を指定してください。",
	}
}

// NewInvalidCategoryError は無効なカテゴリ名エラーを生成する。
func NewInvalidCategoryError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCategory,
		Message:  fmt.Sprintf("カテゴリ名が不正です: %s", reason),
		Category: "validation",
		Action:   "カテゴリ名を確認してください。",
	}
}

// NewCommentNotFoundError はコメントが見つからない場合のエラーを生成する。
func NewCommentNotFoundError(commentID string) *APIError {
	return &APIError{
		Code:     ErrCodeCommentNotFound,
		Message:  fmt.Sprintf("指定されたコメントが見つかりません: %s", commentID),
		Category: "game",
		Action:   "コメントIDを確認してください。",
	}
}

// NewInvalidCommentError は無効なコメント投稿エラーを生成する。
func NewInvalidCommentError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidComment,
		Message:  fmt.Sprintf("コメントを投稿できません: %s", reason),
		Category: "validation",
		Action:   "コメントの内容を確認してください。",
	}
}

// NewAssetUploadFailedError はアセットストアへのアップロード失敗エラーを生成する。
func NewAssetUploadFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeAssetUploadFailed,
		Message:  fmt.Sprintf("アセットのアップロードに失敗しました: %s", reason),
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効なURLです: %s", reason),
		Category: "validation",
		Action:   "正しいURL形式（http:// または https:// で始まるURL）を入力してください。",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "公開されているWebサイトのURLを入力してください。ローカルネットワークやプライベートIPへのアクセスは許可されていません。",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "この操作を行う権限がありません。",
		Category: "auth",
		Action:   "管理者アカウントでログインしてください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
