// Package interaction はユーザーとゲームの間のインタラクションを扱う。
// いいね、お気に入り、再生記録、コメントの投稿・削除を提供する。
package interaction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/brainsta/reels/internal/metrics"
	"github.com/brainsta/reels/internal/model"
	"github.com/brainsta/reels/internal/repository"
	"github.com/brainsta/reels/internal/security"
)

// maxLikeToggleAttempts はいいねトランザクションの最大試行回数。
const maxLikeToggleAttempts = 3

// maxCommentLength はコメント本文の最大文字数。
const maxCommentLength = 2000

// FeedUpdater はフィードビューへの楽観更新のインターフェース。
type FeedUpdater interface {
	OptimisticFavorite(userID, gameID string, favorite bool)
}

// Service はインタラクション管理のサービス。
type Service struct {
	ledgerRepo  repository.LedgerRepository
	gameRepo    repository.GameRepository
	commentRepo repository.CommentRepository
	feed        FeedUpdater
	sanitizer   security.ContentSanitizerService
	collector   metrics.MetricsCollector
	logger      *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	ledgerRepo repository.LedgerRepository,
	gameRepo repository.GameRepository,
	commentRepo repository.CommentRepository,
	feed FeedUpdater,
	sanitizer security.ContentSanitizerService,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Service {
	return &Service{
		ledgerRepo:  ledgerRepo,
		gameRepo:    gameRepo,
		commentRepo: commentRepo,
		feed:        feed,
		sanitizer:   sanitizer,
		collector:   collector,
		logger:      logger,
	}
}

// ToggleLike はいいね状態を反転する。台帳のいいね寄与とゲーム側の集計は
// 単一トランザクションで更新され、直列化競合の場合は限られた回数だけ
// リトライする。反転後の状態を返す。
func (s *Service) ToggleLike(ctx context.Context, userID, gameID string) (bool, error) {
	var liked bool
	var err error
	for attempt := 1; attempt <= maxLikeToggleAttempts; attempt++ {
		liked, err = s.ledgerRepo.ToggleLike(ctx, userID, gameID)
		if err == nil || !isSerializationError(err) {
			break
		}
		s.collector.RecordLikeToggleRetry()
		s.logger.Warn("いいねトランザクションが競合しました。リトライします",
			slog.String("user_id", userID),
			slog.String("game_id", gameID),
			slog.Int("attempt", attempt),
		)
	}
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			return false, err
		}
		return false, fmt.Errorf("いいねの更新に失敗しました: %w", err)
	}
	return liked, nil
}

// isSerializationError はPostgreSQLの直列化競合・デッドロックかを判定する。
func isSerializationError(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == "40001" || pqErr.Code == "40P01"
}

// SetFavorite はお気に入り状態を設定する。フィードビューには即座に
// 楽観反映し、永続化の一時的な失敗は警告ログに留めて握りつぶす。
// ビューは最後に成功したスナップショットで動き続け、次の変更通知で
// 実際の状態に収束する。
func (s *Service) SetFavorite(ctx context.Context, userID, gameID string, favorite bool) error {
	g, err := s.gameRepo.FindByID(ctx, gameID)
	if err != nil {
		return fmt.Errorf("ゲームの取得に失敗しました: %w", err)
	}
	if g == nil {
		return model.NewGameNotFoundError(gameID)
	}

	s.feed.OptimisticFavorite(userID, gameID, favorite)

	if err := s.ledgerRepo.SetFavorite(ctx, userID, gameID, favorite); err != nil {
		s.logger.Warn("お気に入りの永続化に失敗しました",
			slog.String("user_id", userID),
			slog.String("game_id", gameID),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// RecordPlay は再生を台帳に記録する。一時的な失敗は警告ログに留めて
// 握りつぶす。
func (s *Service) RecordPlay(ctx context.Context, userID, gameID string) error {
	if err := s.ledgerRepo.IncrementPlayCount(ctx, userID, gameID); err != nil {
		s.logger.Warn("再生回数の記録に失敗しました",
			slog.String("user_id", userID),
			slog.String("game_id", gameID),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// AddPlayTime はゲームの累計プレイ時間に秒数を加算する。
func (s *Service) AddPlayTime(ctx context.Context, gameID string, seconds int64) error {
	if seconds <= 0 {
		return nil
	}
	if err := s.gameRepo.AddPlayTime(ctx, gameID, seconds); err != nil {
		return fmt.Errorf("プレイ時間の加算に失敗しました: %w", err)
	}
	return nil
}

// CommentInput はコメント投稿の入力。
type CommentInput struct {
	GameID   string
	UserID   string
	UserName string
	ParentID *string // 返信先コメントID。トップレベルの場合はnil
	Body     string
}

// AddComment はコメントを投稿する。本文はサニタイズされ、ゲーム側の
// コメント数集計が楽観的に加算される。
func (s *Service) AddComment(ctx context.Context, input CommentInput) (*model.Comment, error) {
	g, err := s.gameRepo.FindByID(ctx, input.GameID)
	if err != nil {
		return nil, fmt.Errorf("ゲームの取得に失敗しました: %w", err)
	}
	if g == nil {
		return nil, model.NewGameNotFoundError(input.GameID)
	}

	if input.ParentID != nil {
		parent, err := s.commentRepo.FindByID(ctx, *input.ParentID)
		if err != nil {
			return nil, fmt.Errorf("返信先コメントの取得に失敗しました: %w", err)
		}
		if parent == nil {
			return nil, model.NewCommentNotFoundError(*input.ParentID)
		}
		if parent.GameID != input.GameID {
			return nil, model.NewInvalidCommentError("返信先コメントが別のゲームに属しています")
		}
		if parent.ParentID != nil {
			// 返信への返信は許可しない（スレッドは1段まで）
			return nil, model.NewInvalidCommentError("返信に対してさらに返信することはできません")
		}
	}

	body := strings.TrimSpace(s.sanitizer.Sanitize(input.Body))
	if body == "" {
		return nil, model.NewInvalidCommentError("本文が空です")
	}
	if len([]rune(body)) > maxCommentLength {
		return nil, model.NewInvalidCommentError(fmt.Sprintf("本文が%d文字を超えています", maxCommentLength))
	}

	comment := &model.Comment{
		ID:       uuid.New().String(),
		GameID:   input.GameID,
		UserID:   input.UserID,
		UserName: input.UserName,
		ParentID: input.ParentID,
		Body:     body,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, fmt.Errorf("コメントの作成に失敗しました: %w", err)
	}

	if err := s.gameRepo.AddCommentCount(ctx, input.GameID, 1); err != nil {
		// 集計のずれは整合ワーカーが修正する
		s.logger.Warn("コメント数集計の加算に失敗しました",
			slog.String("game_id", input.GameID),
			slog.String("error", err.Error()),
		)
	}
	return comment, nil
}

// ListComments はゲームのコメント一覧を作成日時昇順で返す。返信を含む。
func (s *Service) ListComments(ctx context.Context, gameID string) ([]*model.Comment, error) {
	comments, err := s.commentRepo.ListByGame(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("コメント一覧の取得に失敗しました: %w", err)
	}
	return comments, nil
}

// DeleteComment はコメントを削除する。投稿者本人または管理者のみが
// 削除できる。返信は連鎖して削除される。
func (s *Service) DeleteComment(ctx context.Context, commentID, requesterID string, admin bool) error {
	comment, err := s.commentRepo.FindByID(ctx, commentID)
	if err != nil {
		return fmt.Errorf("コメントの取得に失敗しました: %w", err)
	}
	if comment == nil {
		return model.NewCommentNotFoundError(commentID)
	}
	if comment.UserID != requesterID && !admin {
		return model.NewForbiddenError()
	}

	if err := s.commentRepo.Delete(ctx, commentID); err != nil {
		return fmt.Errorf("コメントの削除に失敗しました: %w", err)
	}

	if err := s.gameRepo.AddCommentCount(ctx, comment.GameID, -1); err != nil {
		s.logger.Warn("コメント数集計の減算に失敗しました",
			slog.String("game_id", comment.GameID),
			slog.String("error", err.Error()),
		)
	}
	return nil
}
