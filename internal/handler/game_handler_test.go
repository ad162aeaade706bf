package handler

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/brainsta/reels/internal/game"
	"github.com/brainsta/reels/internal/model"
)

// --- モック定義 ---

type mockGameService struct {
	getFn            func(ctx context.Context, id string) (*model.Game, error)
	uploadFn         func(ctx context.Context, input game.UploadInput) (*model.Game, error)
	createExternalFn func(ctx context.Context, title, description, rawURL string, categoryID *string, createdBy string) (*model.Game, error)
	deleteFn         func(ctx context.Context, id string) error
	setPublishedFn   func(ctx context.Context, id string, published bool) error
	updateCategoryFn func(ctx context.Context, id string, categoryID *string) error
	searchFn         func(ctx context.Context, query string, limit int) ([]model.GameWithCategory, error)
	listRemovedFn    func(ctx context.Context, since time.Time) ([]*model.RemovedGame, error)
	pagerForFn       func(userID string, filter model.GameFilter) *game.Pager
}

func (m *mockGameService) Get(ctx context.Context, id string) (*model.Game, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return &model.Game{ID: id}, nil
}

func (m *mockGameService) Upload(ctx context.Context, input game.UploadInput) (*model.Game, error) {
	if m.uploadFn != nil {
		return m.uploadFn(ctx, input)
	}
	return &model.Game{ID: "new-game", Title: input.Title}, nil
}

func (m *mockGameService) CreateExternal(ctx context.Context, title, description, rawURL string, categoryID *string, createdBy string) (*model.Game, error) {
	if m.createExternalFn != nil {
		return m.createExternalFn(ctx, title, description, rawURL, categoryID, createdBy)
	}
	return &model.Game{ID: "ext-game", Title: title, URL: rawURL}, nil
}

func (m *mockGameService) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockGameService) SetPublished(ctx context.Context, id string, published bool) error {
	if m.setPublishedFn != nil {
		return m.setPublishedFn(ctx, id, published)
	}
	return nil
}

func (m *mockGameService) UpdateCategory(ctx context.Context, id string, categoryID *string) error {
	if m.updateCategoryFn != nil {
		return m.updateCategoryFn(ctx, id, categoryID)
	}
	return nil
}

func (m *mockGameService) Search(ctx context.Context, query string, limit int) ([]model.GameWithCategory, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, query, limit)
	}
	return nil, nil
}

func (m *mockGameService) ListRemoved(ctx context.Context, since time.Time) ([]*model.RemovedGame, error) {
	if m.listRemovedFn != nil {
		return m.listRemovedFn(ctx, since)
	}
	return nil, nil
}

func (m *mockGameService) PagerFor(userID string, filter model.GameFilter) *game.Pager {
	if m.pagerForFn != nil {
		return m.pagerForFn(userID, filter)
	}
	return game.NewPager(func(ctx context.Context, cursor model.GameCursor, limit int) ([]model.GameWithCategory, error) {
		return nil, nil
	}, 10)
}

// buildBundleForm はbundleフィールドにZIPを載せたmultipartボディを作る。
func buildBundleForm(t *testing.T, fields map[string]string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	var zipBuf bytes.Buffer
	zw := zip.NewWriter(&zipBuf)
	for name, content := range files {
		f, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zipエントリの作成に失敗: %v", err)
		}
		f.Write([]byte(content))
	}
	zw.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	fw, err := mw.CreateFormFile("bundle", "game.zip")
	if err != nil {
		t.Fatalf("multipartの作成に失敗: %v", err)
	}
	fw.Write(zipBuf.Bytes())
	mw.Close()

	return &body, mw.FormDataContentType()
}

// --- テスト ---

func TestListPage_ReturnsPageWithHasMore(t *testing.T) {
	games := make([]model.GameWithCategory, 10)
	for i := range games {
		created := time.Now().Add(-time.Duration(i) * time.Hour)
		games[i] = model.GameWithCategory{Game: model.Game{ID: string(rune('a' + i)), CreatedAt: &created}}
	}

	svc := &mockGameService{
		pagerForFn: func(userID string, filter model.GameFilter) *game.Pager {
			return game.NewPager(func(ctx context.Context, cursor model.GameCursor, limit int) ([]model.GameWithCategory, error) {
				if cursor.IsZero() {
					return games, nil
				}
				return nil, nil
			}, 10)
		},
	}
	h := NewGameHandler(svc)

	req := authedRequest(http.MethodGet, "/api/games", "user-1", false)
	w := httptest.NewRecorder()

	h.ListPage(w, req)

	var body gamePageResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(body.Games) != 10 {
		t.Errorf("len(games) = %d, want 10", len(body.Games))
	}
	if !body.HasMore {
		t.Error("満ページの後は has_more = true であるべき")
	}
}

func TestListPage_AllFilterWithoutAdmin_Returns403(t *testing.T) {
	h := NewGameHandler(&mockGameService{})

	req := authedRequest(http.MethodGet, "/api/games?filter=all", "user-1", false)
	w := httptest.NewRecorder()

	h.ListPage(w, req)

	if w.Result().StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusForbidden)
	}
}

func TestListPage_InvalidFilter_Returns400(t *testing.T) {
	h := NewGameHandler(&mockGameService{})

	req := authedRequest(http.MethodGet, "/api/games?filter=bogus", "user-1", false)
	w := httptest.NewRecorder()

	h.ListPage(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}

	var body apiErrorResponse
	json.NewDecoder(resp.Body).Decode(&body)
	if body.Code != model.ErrCodeInvalidFilter {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeInvalidFilter)
	}
}

func TestUpload_CreatesGameFromBundle(t *testing.T) {
	var captured game.UploadInput
	svc := &mockGameService{
		uploadFn: func(ctx context.Context, input game.UploadInput) (*model.Game, error) {
			captured = input
			return &model.Game{ID: "g-1", Title: input.Title, Published: false}, nil
		},
	}
	h := NewGameHandler(svc)

	body, contentType := buildBundleForm(t,
		map[string]string{"title": "Neon Racer", "description": "説明文"},
		map[string]string{"index.html": "<html><title>Neon Racer</title></html>"},
	)

	req := httptest.NewRequest(http.MethodPost, "/api/games", body).
		WithContext(authedRequest(http.MethodPost, "/", "admin-1", true).Context())
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	h.Upload(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", resp.StatusCode, http.StatusCreated, w.Body.String())
	}
	if captured.Title != "Neon Racer" {
		t.Errorf("title = %q, want %q", captured.Title, "Neon Racer")
	}
	if captured.CreatedBy != "admin-1" {
		t.Errorf("created_by = %q, want %q", captured.CreatedBy, "admin-1")
	}
	if len(captured.ZipData) == 0 {
		t.Error("ZIPデータがサービスに渡されるべき")
	}

	var created gameResponse
	json.NewDecoder(resp.Body).Decode(&created)
	if created.Published {
		t.Error("アップロード直後は非公開であるべき")
	}
}

func TestUpload_MissingBundleField_Returns400(t *testing.T) {
	h := NewGameHandler(&mockGameService{})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	mw.WriteField("title", "No Bundle")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/games", &body).
		WithContext(authedRequest(http.MethodPost, "/", "admin-1", true).Context())
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()

	h.Upload(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}

	var errBody apiErrorResponse
	json.NewDecoder(resp.Body).Decode(&errBody)
	if errBody.Code != model.ErrCodeInvalidBundle {
		t.Errorf("code = %q, want %q", errBody.Code, model.ErrCodeInvalidBundle)
	}
}

func TestCreateExternal_BlockedURL_Returns403(t *testing.T) {
	svc := &mockGameService{
		createExternalFn: func(ctx context.Context, title, description, rawURL string, categoryID *string, createdBy string) (*model.Game, error) {
			return nil, model.NewSSRFBlockedError()
		},
	}
	h := NewGameHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/games/external",
		strings.NewReader(`{"title":"内部ツール","url":"http://192.168.1.1/game"}`)).
		WithContext(authedRequest(http.MethodPost, "/", "admin-1", true).Context())
	w := httptest.NewRecorder()

	h.CreateExternal(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusForbidden)
	}

	var body apiErrorResponse
	json.NewDecoder(resp.Body).Decode(&body)
	if body.Code != model.ErrCodeSSRFBlocked {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeSSRFBlocked)
	}
}

func TestDeleteGame_NotFound_Returns404(t *testing.T) {
	svc := &mockGameService{
		deleteFn: func(ctx context.Context, id string) error {
			return model.NewGameNotFoundError(id)
		},
	}
	h := NewGameHandler(svc)

	r := chi.NewRouter()
	r.Delete("/api/games/{id}", h.DeleteGame)

	req := authedRequest(http.MethodDelete, "/api/games/missing", "admin-1", true)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNotFound)
	}
}

func TestSetPublished_PassesFlag(t *testing.T) {
	var gotID string
	var gotPublished bool
	svc := &mockGameService{
		setPublishedFn: func(ctx context.Context, id string, published bool) error {
			gotID, gotPublished = id, published
			return nil
		},
	}
	h := NewGameHandler(svc)

	r := chi.NewRouter()
	r.Put("/api/games/{id}/publish", h.SetPublished)

	req := httptest.NewRequest(http.MethodPut, "/api/games/g-1/publish",
		strings.NewReader(`{"published":true}`)).
		WithContext(authedRequest(http.MethodPut, "/", "admin-1", true).Context())
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNoContent)
	}
	if gotID != "g-1" || !gotPublished {
		t.Errorf("SetPublished(%q, %v), want (g-1, true)", gotID, gotPublished)
	}
}

func TestSearch_ReturnsMatches(t *testing.T) {
	svc := &mockGameService{
		searchFn: func(ctx context.Context, query string, limit int) ([]model.GameWithCategory, error) {
			return []model.GameWithCategory{
				{Game: model.Game{ID: "g-1", Title: "Neon Racer"}, CategoryName: "レース"},
			}, nil
		},
	}
	h := NewGameHandler(svc)

	req := authedRequest(http.MethodGet, "/api/games/search?q=neon", "user-1", false)
	w := httptest.NewRecorder()

	h.Search(w, req)

	var body map[string][]gameResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(body["games"]) != 1 {
		t.Fatalf("len(games) = %d, want 1", len(body["games"]))
	}
	if body["games"][0].CategoryName != "レース" {
		t.Errorf("category_name = %q, want レース", body["games"][0].CategoryName)
	}
}

func TestListRemoved_ParsesSince(t *testing.T) {
	var gotSince time.Time
	svc := &mockGameService{
		listRemovedFn: func(ctx context.Context, since time.Time) ([]*model.RemovedGame, error) {
			gotSince = since
			return []*model.RemovedGame{{ID: "g-9", Title: "消えたゲーム", RemovedAt: time.Now()}}, nil
		},
	}
	h := NewGameHandler(svc)

	req := authedRequest(http.MethodGet, "/api/games/removed?since=2026-08-01T00:00:00Z", "user-1", false)
	w := httptest.NewRecorder()

	h.ListRemoved(w, req)

	want := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	if !gotSince.Equal(want) {
		t.Errorf("since = %v, want %v", gotSince, want)
	}

	var body map[string][]removedGameResponse
	json.NewDecoder(w.Result().Body).Decode(&body)
	if len(body["removed"]) != 1 {
		t.Errorf("len(removed) = %d, want 1", len(body["removed"]))
	}
}

func TestListRemoved_InvalidSince_Returns400(t *testing.T) {
	h := NewGameHandler(&mockGameService{})

	req := authedRequest(http.MethodGet, "/api/games/removed?since=yesterday", "user-1", false)
	w := httptest.NewRecorder()

	h.ListRemoved(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}
