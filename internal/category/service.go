// Package category はゲームカテゴリの管理を提供する。
package category

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/brainsta/reels/internal/model"
	"github.com/brainsta/reels/internal/repository"
)

// maxNameLength はカテゴリ名の最大文字数。
const maxNameLength = 50

// Service はカテゴリ管理のサービス。
type Service struct {
	categoryRepo repository.CategoryRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(categoryRepo repository.CategoryRepository) *Service {
	return &Service{categoryRepo: categoryRepo}
}

// List は全カテゴリを作成日時昇順で返す。
func (s *Service) List(ctx context.Context) ([]*model.Category, error) {
	categories, err := s.categoryRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("カテゴリ一覧の取得に失敗しました: %w", err)
	}
	return categories, nil
}

// Get は指定IDのカテゴリを取得する。
func (s *Service) Get(ctx context.Context, id string) (*model.Category, error) {
	category, err := s.categoryRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("カテゴリの取得に失敗しました: %w", err)
	}
	if category == nil {
		return nil, model.NewCategoryNotFoundError(id)
	}
	return category, nil
}

// Create はカテゴリを作成する。名前の大文字小文字を無視した重複は拒否される。
func (s *Service) Create(ctx context.Context, name string) (*model.Category, error) {
	name, err := s.validateName(ctx, name, "")
	if err != nil {
		return nil, err
	}

	category := &model.Category{
		ID:   uuid.New().String(),
		Name: name,
	}
	if err := s.categoryRepo.Create(ctx, category); err != nil {
		return nil, fmt.Errorf("カテゴリの作成に失敗しました: %w", err)
	}
	return category, nil
}

// Rename はカテゴリ名を変更する。
func (s *Service) Rename(ctx context.Context, id, name string) (*model.Category, error) {
	category, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	name, err = s.validateName(ctx, name, id)
	if err != nil {
		return nil, err
	}

	if err := s.categoryRepo.UpdateName(ctx, id, name); err != nil {
		return nil, fmt.Errorf("カテゴリ名の変更に失敗しました: %w", err)
	}
	category.Name = name
	return category, nil
}

// Delete はカテゴリを削除する。参照しているゲームは削除されず、
// 無カテゴリ状態になる。
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	if err := s.categoryRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("カテゴリの削除に失敗しました: %w", err)
	}
	return nil
}

// validateName は名前を整形して重複を検査する。selfIDが一致する既存
// カテゴリは重複とみなさない（変更なしのRename用）。
func (s *Service) validateName(ctx context.Context, name, selfID string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", model.NewInvalidCategoryError("名前が空です")
	}
	if len([]rune(name)) > maxNameLength {
		return "", model.NewInvalidCategoryError(fmt.Sprintf("名前が%d文字を超えています", maxNameLength))
	}

	existing, err := s.categoryRepo.FindByName(ctx, name)
	if err != nil {
		return "", fmt.Errorf("カテゴリの重複検査に失敗しました: %w", err)
	}
	if existing != nil && existing.ID != selfID {
		return "", model.NewDuplicateCategoryError(name)
	}
	return name, nil
}
