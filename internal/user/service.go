// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/brainsta/reels/internal/model"
	"github.com/brainsta/reels/internal/repository"
)

// ViewDropper はメモリ上に保持されたユーザー状態の破棄インターフェース。
// フィードビューとページング状態が対象になる。
type ViewDropper interface {
	DropView(userID string)
}

// Service はユーザー管理のサービス層。
// 退会処理のビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	ledgerRepo  repository.LedgerRepository
	commentRepo repository.CommentRepository
	viewDropper ViewDropper
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	ledgerRepo repository.LedgerRepository,
	commentRepo repository.CommentRepository,
	viewDropper ViewDropper,
) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		ledgerRepo:  ledgerRepo,
		commentRepo: commentRepo,
		viewDropper: viewDropper,
	}
}

// Get は指定IDのユーザーを取得する。
func (s *Service) Get(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// Withdraw はユーザーの退会処理を実行する。
// 削除順序: コメント → 台帳 → セッション → user（+ CASCADE: identities）
// ゲームとその集計カウンタは共有データとして残し、ずれは整合ワーカーが修正する。
func (s *Service) Withdraw(ctx context.Context, userID string) error {
	// ユーザー存在確認
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	slog.Info("退会処理を開始します",
		slog.String("user_id", userID),
	)

	// 1. コメントを削除（返信はCASCADE削除）
	if s.commentRepo != nil {
		if err := s.commentRepo.DeleteByUserID(ctx, userID); err != nil {
			return fmt.Errorf("コメントの削除に失敗しました: %w", err)
		}
	}

	// 2. インタラクション台帳を削除
	if s.ledgerRepo != nil {
		if err := s.ledgerRepo.DeleteByUserID(ctx, userID); err != nil {
			return fmt.Errorf("台帳の削除に失敗しました: %w", err)
		}
	}

	// 3. セッションを削除
	if s.sessionRepo != nil {
		if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
			return fmt.Errorf("セッションの削除に失敗しました: %w", err)
		}
	}

	// 4. ユーザーを削除（identitiesはCASCADE削除）
	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	// 5. メモリ上のフィードビューとセッション表示カウンタを破棄
	if s.viewDropper != nil {
		s.viewDropper.DropView(userID)
	}

	slog.Info("退会処理が完了しました",
		slog.String("user_id", userID),
	)

	return nil
}
