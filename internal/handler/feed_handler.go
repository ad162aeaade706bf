package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/brainsta/reels/internal/feed"
	"github.com/brainsta/reels/internal/middleware"
	"github.com/brainsta/reels/internal/model"
)

// FeedServiceInterface はフィードハンドラーが必要とするサービスインターフェース。
type FeedServiceInterface interface {
	// ViewFor はユーザーのフィードビューを返す。
	ViewFor(ctx context.Context, userID string, admin bool) (*feed.View, error)
	// MarkSeen はゲームの表示をセッションカウンタに記録する。
	MarkSeen(userID, gameID string)
	// MarkImmersive は没入ビューでの表示を記録する。
	MarkImmersive(userID, gameID string)
	// Subscribe はフィードの再計算通知チャネルと解除関数を返す。
	Subscribe(userID string) (<-chan struct{}, func())
}

// GameSearcherInterface は検索語からフィードの許可IDリストを作る
// インターフェース。
type GameSearcherInterface interface {
	SearchIDs(ctx context.Context, query string, limit int) (map[string]bool, error)
}

// FeedHandler はランキングフィード配信のHTTPハンドラー。
type FeedHandler struct {
	service  FeedServiceInterface
	searcher GameSearcherInterface
}

// NewFeedHandler はFeedHandlerを生成する。
func NewFeedHandler(service FeedServiceInterface, searcher GameSearcherInterface) *FeedHandler {
	return &FeedHandler{
		service:  service,
		searcher: searcher,
	}
}

// rankedGameResponse はフィード1件のAPIレスポンス。
type rankedGameResponse struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	URL          string   `json:"url"`
	CategoryID   *string  `json:"category_id"`
	CategoryName string   `json:"category_name"`
	LikeCount    int      `json:"like_count"`
	CommentCount int      `json:"comment_count"`
	Published    bool     `json:"published"`
	Score        float64  `json:"score"`
	IsFavorite   bool     `json:"is_favorite"`
	IsLiked      bool     `json:"is_liked"`
	PlayCount    int      `json:"play_count"`
}

// feedResponse はフィード全体のAPIレスポンス。
type feedResponse struct {
	Games []rankedGameResponse `json:"games"`
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// GetFeed はランキング済みフィードを返す。
// GET /api/feed?favoritesOnly=true&q=racing
func (h *FeedHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}
	admin := middleware.IsAdminFromContext(r.Context())

	filters := feed.Filters{
		FavoritesOnly: r.URL.Query().Get("favoritesOnly") == "true",
	}
	if q := r.URL.Query().Get("q"); q != "" {
		ids, err := h.searcher.SearchIDs(r.Context(), q, 50)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		filters.AllowedIDs = ids
	}

	view, err := h.service.ViewFor(r.Context(), userID, admin)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	view.SetFilters(filters)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toFeedResponse(view.Current()))
}

// StreamFeed はフィードの再計算をSSEで配信する。
// GET /api/feed/stream
func (h *FeedHandler) StreamFeed(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}
	admin := middleware.IsAdminFromContext(r.Context())

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	view, err := h.service.ViewFor(r.Context(), userID, admin)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	updates, cancel := h.service.Subscribe(userID)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// 初回スナップショットを即時送信し、以降は再計算ごとに送る
	if err := writeSSEEvent(w, view.Current()); err != nil {
		return
	}
	flusher.Flush()

	// プロキシのアイドル切断を防ぐキープアライブ
	keepalive := time.NewTicker(30 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-updates:
			if err := writeSSEEvent(w, view.Current()); err != nil {
				return
			}
			flusher.Flush()
		case <-keepalive.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// MarkSeen はフィード上でのゲーム表示を記録する。
// POST /api/feed/seen/:id
func (h *FeedHandler) MarkSeen(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	h.service.MarkSeen(userID, chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

// MarkImmersive は没入ビューでのゲーム表示を記録する。
// POST /api/feed/immersive/:id
func (h *FeedHandler) MarkImmersive(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	h.service.MarkImmersive(userID, chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

// --- ヘルパー関数 ---

// toFeedResponse はランキング結果をAPIレスポンスに変換する。
func toFeedResponse(games []feed.RankedGame) feedResponse {
	out := feedResponse{Games: make([]rankedGameResponse, len(games))}
	for i, g := range games {
		out.Games[i] = rankedGameResponse{
			ID:           g.ID,
			Title:        g.Title,
			Description:  g.Description,
			URL:          g.URL,
			CategoryID:   g.CategoryID,
			CategoryName: g.CategoryName,
			LikeCount:    g.LikeCount,
			CommentCount: g.CommentCount,
			Published:    g.Published,
			Score:        g.Score,
			IsFavorite:   g.IsFavorite,
			IsLiked:      g.IsLiked,
			PlayCount:    g.PlayCount,
		}
	}
	return out
}

// writeSSEEvent はフィードスナップショットを1つのSSEイベントとして書き込む。
func writeSSEEvent(w http.ResponseWriter, games []feed.RankedGame) error {
	payload, err := json.Marshal(toFeedResponse(games))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: feed\ndata: %s\n\n", payload)
	return err
}

// writeUnauthorized は未認証エラーレスポンスを書き込む。
func writeUnauthorized(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusUnauthorized, &model.APIError{
		Code:     "UNAUTHORIZED",
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	})
}

// writeInvalidRequest はリクエストボディ解析失敗のレスポンスを書き込む。
func writeInvalidRequest(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	})
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeGameNotFound, model.ErrCodeCategoryNotFound,
		model.ErrCodeCommentNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeInvalidFilter, model.ErrCodeInvalidComment,
		model.ErrCodeInvalidCategory, model.ErrCodeInvalidURL:
		return http.StatusBadRequest
	case model.ErrCodeInvalidBundle:
		return http.StatusUnprocessableEntity
	case model.ErrCodeDuplicateTitle, model.ErrCodeDuplicateCategory:
		return http.StatusConflict
	case model.ErrCodeSSRFBlocked, model.ErrCodeForbidden:
		return http.StatusForbidden
	case model.ErrCodeAssetUploadFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
