package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/brainsta/reels/internal/appconfig"
	"github.com/brainsta/reels/internal/model"
)

// AppConfigServiceInterface はアプリ設定ハンドラーが必要とするサービスインターフェース。
type AppConfigServiceInterface interface {
	Get(ctx context.Context) (*model.AppConfig, error)
	Update(ctx context.Context, input appconfig.UpdateInput) (*model.AppConfig, error)
}

// AppConfigHandler はクライアント共通設定のHTTPハンドラー。
type AppConfigHandler struct {
	service AppConfigServiceInterface
}

// NewAppConfigHandler はAppConfigHandlerを生成する。
func NewAppConfigHandler(service AppConfigServiceInterface) *AppConfigHandler {
	return &AppConfigHandler{service: service}
}

// appConfigResponse は共通設定のAPIレスポンス。
type appConfigResponse struct {
	AssetBaseURL string    `json:"asset_base_url"`
	ShareHostURL string    `json:"share_host_url"`
	Maintenance  bool      `json:"maintenance"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// updateAppConfigRequest は設定更新リクエストのボディ。
// nilのフィールドは変更しない。
type updateAppConfigRequest struct {
	AssetBaseURL *string `json:"asset_base_url"`
	ShareHostURL *string `json:"share_host_url"`
	Maintenance  *bool   `json:"maintenance"`
}

// Get は現在の共通設定を返す。
// GET /api/config
func (h *AppConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.service.Get(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toAppConfigResponse(cfg))
}

// Update は共通設定をマージ更新する。管理者専用。
// PATCH /api/config
func (h *AppConfigHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateAppConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w)
		return
	}

	cfg, err := h.service.Update(r.Context(), appconfig.UpdateInput{
		AssetBaseURL: req.AssetBaseURL,
		ShareHostURL: req.ShareHostURL,
		Maintenance:  req.Maintenance,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toAppConfigResponse(cfg))
}

// toAppConfigResponse はmodel.AppConfigからAPIレスポンスに変換する。
func toAppConfigResponse(cfg *model.AppConfig) appConfigResponse {
	return appConfigResponse{
		AssetBaseURL: cfg.AssetBaseURL,
		ShareHostURL: cfg.ShareHostURL,
		Maintenance:  cfg.Maintenance,
		UpdatedAt:    cfg.UpdatedAt,
	}
}
