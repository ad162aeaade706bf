package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/brainsta/reels/internal/interaction"
	"github.com/brainsta/reels/internal/middleware"
	"github.com/brainsta/reels/internal/model"
)

// InteractionServiceInterface はインタラクションハンドラーが必要とする
// サービスインターフェース。
type InteractionServiceInterface interface {
	ToggleLike(ctx context.Context, userID, gameID string) (bool, error)
	SetFavorite(ctx context.Context, userID, gameID string, favorite bool) error
	RecordPlay(ctx context.Context, userID, gameID string) error
	AddPlayTime(ctx context.Context, gameID string, seconds int64) error
	AddComment(ctx context.Context, input interaction.CommentInput) (*model.Comment, error)
	ListComments(ctx context.Context, gameID string) ([]*model.Comment, error)
	DeleteComment(ctx context.Context, commentID, requesterID string, admin bool) error
}

// UserGetterInterface はコメント投稿時の表示名解決に使うインターフェース。
type UserGetterInterface interface {
	Get(ctx context.Context, userID string) (*model.User, error)
}

// InteractionHandler はいいね・お気に入り・再生・コメントのHTTPハンドラー。
type InteractionHandler struct {
	service InteractionServiceInterface
	users   UserGetterInterface
}

// NewInteractionHandler はInteractionHandlerを生成する。
func NewInteractionHandler(service InteractionServiceInterface, users UserGetterInterface) *InteractionHandler {
	return &InteractionHandler{
		service: service,
		users:   users,
	}
}

// setFavoriteRequest はお気に入り切替リクエストのボディ。
type setFavoriteRequest struct {
	Favorite bool `json:"favorite"`
}

// addPlayTimeRequest はプレイ時間加算リクエストのボディ。
type addPlayTimeRequest struct {
	Seconds int64 `json:"seconds"`
}

// addCommentRequest はコメント投稿リクエストのボディ。
type addCommentRequest struct {
	Body     string  `json:"body"`
	ParentID *string `json:"parent_id"`
}

// commentResponse はコメントのAPIレスポンス。
type commentResponse struct {
	ID        string    `json:"id"`
	GameID    string    `json:"game_id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	ParentID  *string   `json:"parent_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// ToggleLike はいいねをトグルし、切替後の状態を返す。
// POST /api/games/:id/like
func (h *InteractionHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	liked, err := h.service.ToggleLike(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"liked": liked})
}

// SetFavorite はお気に入り状態を設定する。
// PUT /api/games/:id/favorite
func (h *InteractionHandler) SetFavorite(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req setFavoriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w)
		return
	}

	if err := h.service.SetFavorite(r.Context(), userID, chi.URLParam(r, "id"), req.Favorite); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RecordPlay はゲームの再生開始を記録する。
// POST /api/games/:id/play
func (h *InteractionHandler) RecordPlay(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	if err := h.service.RecordPlay(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddPlayTime はゲームの累計プレイ時間に秒数を加算する。
// POST /api/games/:id/playtime
func (h *InteractionHandler) AddPlayTime(w http.ResponseWriter, r *http.Request) {
	if _, err := middleware.UserIDFromContext(r.Context()); err != nil {
		writeUnauthorized(w)
		return
	}

	var req addPlayTimeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w)
		return
	}

	if err := h.service.AddPlayTime(r.Context(), chi.URLParam(r, "id"), req.Seconds); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListComments はゲームのコメント一覧を返す。
// GET /api/games/:id/comments
func (h *InteractionHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.service.ListComments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]commentResponse, len(comments))
	for i, c := range comments {
		resp[i] = toCommentResponse(c)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string][]commentResponse{"comments": resp})
}

// AddComment はコメントを投稿する。
// POST /api/games/:id/comments
func (h *InteractionHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req addCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w)
		return
	}

	user, err := h.users.Get(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	comment, err := h.service.AddComment(r.Context(), interaction.CommentInput{
		GameID:   chi.URLParam(r, "id"),
		UserID:   userID,
		UserName: user.Name,
		ParentID: req.ParentID,
		Body:     req.Body,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toCommentResponse(comment))
}

// DeleteComment はコメントを削除する。投稿者本人または管理者のみ。
// DELETE /api/comments/:id
func (h *InteractionHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}
	admin := middleware.IsAdminFromContext(r.Context())

	if err := h.service.DeleteComment(r.Context(), chi.URLParam(r, "id"), userID, admin); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// toCommentResponse はmodel.CommentからAPIレスポンスに変換する。
func toCommentResponse(c *model.Comment) commentResponse {
	return commentResponse{
		ID:        c.ID,
		GameID:    c.GameID,
		UserID:    c.UserID,
		UserName:  c.UserName,
		ParentID:  c.ParentID,
		Body:      c.Body,
		CreatedAt: c.CreatedAt,
	}
}
