// Package appconfig はクライアント共通設定シングルトンの
// 取得とマージ更新を提供する。
package appconfig

import (
	"context"
	"fmt"

	"github.com/brainsta/reels/internal/model"
	"github.com/brainsta/reels/internal/repository"
)

// Service はアプリ共通設定のビジネスロジックを提供する。
type Service struct {
	configRepo repository.AppConfigRepository
}

// NewService はServiceを生成する。
func NewService(configRepo repository.AppConfigRepository) *Service {
	return &Service{configRepo: configRepo}
}

// Get は現在の設定を返す。
func (s *Service) Get(ctx context.Context) (*model.AppConfig, error) {
	cfg, err := s.configRepo.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("共通設定の取得に失敗しました: %w", err)
	}
	return cfg, nil
}

// UpdateInput は設定更新の入力。nilのフィールドは変更しない。
type UpdateInput struct {
	AssetBaseURL *string
	ShareHostURL *string
	Maintenance  *bool
}

// Update は非nilのフィールドのみマージ書き込みし、更新後の設定を返す。
// 全フィールドがnilの場合は何も書き込まない。
func (s *Service) Update(ctx context.Context, input UpdateInput) (*model.AppConfig, error) {
	if input.AssetBaseURL != nil || input.ShareHostURL != nil || input.Maintenance != nil {
		if err := s.configRepo.Update(ctx, input.AssetBaseURL, input.ShareHostURL, input.Maintenance); err != nil {
			return nil, fmt.Errorf("共通設定の更新に失敗しました: %w", err)
		}
	}
	return s.Get(ctx)
}
