package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/brainsta/reels/internal/game"
	"github.com/brainsta/reels/internal/middleware"
	"github.com/brainsta/reels/internal/model"
)

// maxUploadBytes はアップロードリクエスト全体のサイズ上限。
const maxUploadBytes = 64 << 20 // 64MB

// GameServiceInterface はゲームハンドラーが必要とするサービスインターフェース。
type GameServiceInterface interface {
	Get(ctx context.Context, id string) (*model.Game, error)
	Upload(ctx context.Context, input game.UploadInput) (*model.Game, error)
	CreateExternal(ctx context.Context, title, description, rawURL string, categoryID *string, createdBy string) (*model.Game, error)
	Delete(ctx context.Context, id string) error
	SetPublished(ctx context.Context, id string, published bool) error
	UpdateCategory(ctx context.Context, id string, categoryID *string) error
	Search(ctx context.Context, query string, limit int) ([]model.GameWithCategory, error)
	ListRemoved(ctx context.Context, since time.Time) ([]*model.RemovedGame, error)
	PagerFor(userID string, filter model.GameFilter) *game.Pager
}

// GameHandler はゲームカタログ管理のHTTPハンドラー。
type GameHandler struct {
	service GameServiceInterface
}

// NewGameHandler はGameHandlerを生成する。
func NewGameHandler(service GameServiceInterface) *GameHandler {
	return &GameHandler{service: service}
}

// gameResponse はゲーム情報のAPIレスポンス。
type gameResponse struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	URL          string  `json:"url"`
	CategoryID   *string `json:"category_id"`
	CategoryName string  `json:"category_name,omitempty"`
	LikeCount    int     `json:"like_count"`
	CommentCount int     `json:"comment_count"`
	Published    bool    `json:"published"`
	CreatedAt    *string `json:"created_at"`
}

// gamePageResponse はカーソルページング1ページ分のAPIレスポンス。
type gamePageResponse struct {
	Games   []gameResponse `json:"games"`
	HasMore bool           `json:"has_more"`
}

// createExternalRequest は外部ホスト型ゲーム登録リクエストのボディ。
type createExternalRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	URL         string  `json:"url"`
	CategoryID  *string `json:"category_id"`
}

// setPublishedRequest は公開状態切替リクエストのボディ。
type setPublishedRequest struct {
	Published bool `json:"published"`
}

// updateCategoryRequest はカテゴリ割当リクエストのボディ。
type updateCategoryRequest struct {
	CategoryID *string `json:"category_id"`
}

// removedGameResponse は削除済みゲームの墓標のAPIレスポンス。
type removedGameResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	RemovedAt time.Time `json:"removed_at"`
}

// ListPage はカーソルページングでゲーム一覧を1ページ返す。
// ページング状態はユーザー・フィルタごとにサーバー側で保持され、
// 取得中の多重リクエストや最終ページ到達後のリクエストは空を返す。
// GET /api/games?filter=published
func (h *GameHandler) ListPage(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}
	admin := middleware.IsAdminFromContext(r.Context())

	filter, err := game.ParseFilter(r.URL.Query().Get("filter"), admin)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	pager := h.service.PagerFor(userID, filter)
	if r.URL.Query().Get("reset") == "true" {
		pager.Reset()
	}

	page, err := pager.NextPage(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := gamePageResponse{
		Games:   make([]gameResponse, len(page)),
		HasMore: pager.HasMore(),
	}
	for i, g := range page {
		resp.Games[i] = toGameResponse(&g.Game, g.CategoryName)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// GetGame はゲーム詳細を返す。
// GET /api/games/:id
func (h *GameHandler) GetGame(w http.ResponseWriter, r *http.Request) {
	g, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toGameResponse(g, ""))
}

// Upload はZIPバンドルからゲームを登録する。管理者専用。
// POST /api/games (multipart/form-data: bundle, title, description, category_id)
func (h *GameHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidBundleError("multipart形式の解析に失敗しました"))
		return
	}

	file, _, err := r.FormFile("bundle")
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidBundleError("bundleフィールドがありません"))
		return
	}
	defer file.Close()

	zipData, err := io.ReadAll(file)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidBundleError("ファイルの読み込みに失敗しました"))
		return
	}

	var categoryID *string
	if v := r.FormValue("category_id"); v != "" {
		categoryID = &v
	}

	g, err := h.service.Upload(r.Context(), game.UploadInput{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		CategoryID:  categoryID,
		CreatedBy:   userID,
		ZipData:     zipData,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toGameResponse(g, ""))
}

// CreateExternal は外部ホスト型ゲームを登録する。管理者専用。
// POST /api/games/external
func (h *GameHandler) CreateExternal(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req createExternalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w)
		return
	}
	if req.URL == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidURLError("URLが空です"))
		return
	}

	g, err := h.service.CreateExternal(r.Context(), req.Title, req.Description, req.URL, req.CategoryID, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toGameResponse(g, ""))
}

// DeleteGame はゲームとそのアセットを削除する。管理者専用。
// DELETE /api/games/:id
func (h *GameHandler) DeleteGame(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetPublished はゲームの公開状態を切り替える。管理者専用。
// PUT /api/games/:id/publish
func (h *GameHandler) SetPublished(w http.ResponseWriter, r *http.Request) {
	var req setPublishedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w)
		return
	}

	if err := h.service.SetPublished(r.Context(), chi.URLParam(r, "id"), req.Published); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateCategory はゲームのカテゴリ割当を変更する。管理者専用。
// PUT /api/games/:id/category
func (h *GameHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req updateCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w)
		return
	}

	if err := h.service.UpdateCategory(r.Context(), chi.URLParam(r, "id"), req.CategoryID); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search はタイトル・カテゴリ名の部分一致でゲームを検索する。
// GET /api/games/search?q=racing
func (h *GameHandler) Search(w http.ResponseWriter, r *http.Request) {
	games, err := h.service.Search(r.Context(), r.URL.Query().Get("q"), 50)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]gameResponse, len(games))
	for i, g := range games {
		resp[i] = toGameResponse(&g.Game, g.CategoryName)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string][]gameResponse{"games": resp})
}

// ListRemoved は指定日時以降に削除されたゲームの墓標一覧を返す。
// クライアントはこれを使ってキャッシュ済みエントリを破棄する。
// GET /api/games/removed?since=2026-08-01T00:00:00Z
func (h *GameHandler) ListRemoved(w http.ResponseWriter, r *http.Request) {
	since := time.Time{}
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
				Code:     "INVALID_REQUEST",
				Message:  "sinceの形式が不正です。",
				Category: "validation",
				Action:   "RFC3339形式の日時を指定してください。",
			})
			return
		}
		since = parsed
	}

	removed, err := h.service.ListRemoved(r.Context(), since)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]removedGameResponse, len(removed))
	for i, rg := range removed {
		resp[i] = removedGameResponse{ID: rg.ID, Title: rg.Title, RemovedAt: rg.RemovedAt}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string][]removedGameResponse{"removed": resp})
}

// toGameResponse はmodel.GameからAPIレスポンスに変換する。
func toGameResponse(g *model.Game, categoryName string) gameResponse {
	var createdAt *string
	if g.CreatedAt != nil {
		s := g.CreatedAt.Format(time.RFC3339)
		createdAt = &s
	}
	return gameResponse{
		ID:           g.ID,
		Title:        g.Title,
		Description:  g.Description,
		URL:          g.URL,
		CategoryID:   g.CategoryID,
		CategoryName: categoryName,
		LikeCount:    g.LikeCount,
		CommentCount: g.CommentCount,
		Published:    g.Published,
		CreatedAt:    createdAt,
	}
}
