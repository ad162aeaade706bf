package feed

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/brainsta/reels/internal/metrics"
	"github.com/brainsta/reels/internal/model"
	"github.com/brainsta/reels/internal/repository"
)

// 変更通知のチャネル名。マイグレーションのトリガー定義と対応する。
const (
	ChannelGames    = "games_changed"
	ChannelLedgers  = "ledgers_changed"
	ChannelComments = "comments_changed"
)

// Service はユーザーごとのフィードビューを管理するサービス。
// ログイン中のユーザーごとにViewを1つ保持し、データベースの変更通知を
// 受けて該当する入力チャネルの最新値を読み直す。読み直しに失敗した
// 場合はログに残して握りつぶし、ビューは最後に成功したスナップショット
// で動き続ける。
type Service struct {
	gameRepo    repository.GameRepository
	ledgerRepo  repository.LedgerRepository
	commentRepo repository.CommentRepository
	collector   metrics.MetricsCollector

	mu    sync.Mutex
	views map[string]*viewEntry
}

type viewEntry struct {
	view  *View
	admin bool
	subs  map[chan struct{}]bool
}

// NewService はServiceを生成する。collectorはnil可。
func NewService(
	gameRepo repository.GameRepository,
	ledgerRepo repository.LedgerRepository,
	commentRepo repository.CommentRepository,
	collector metrics.MetricsCollector,
) *Service {
	return &Service{
		gameRepo:    gameRepo,
		ledgerRepo:  ledgerRepo,
		commentRepo: commentRepo,
		collector:   collector,
		views:       map[string]*viewEntry{},
	}
}

// ViewFor はユーザーのフィードビューを返す。存在しない場合は
// スナップショットを読み込んで新規作成する。管理者のビューは
// 非公開ゲームも含む。
func (s *Service) ViewFor(ctx context.Context, userID string, admin bool) (*View, error) {
	s.mu.Lock()
	if entry, ok := s.views[userID]; ok {
		s.mu.Unlock()
		return entry.view, nil
	}
	s.mu.Unlock()

	view := NewView(
		NewAssembler(rand.New(rand.NewSource(time.Now().UnixNano()))),
		NewSession(),
		s.recordRebuild,
	)
	if err := s.loadAll(ctx, view, userID, admin); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.views[userID]; ok {
		// 同時生成された場合は先勝ち
		return entry.view, nil
	}
	s.views[userID] = &viewEntry{
		view:  view,
		admin: admin,
		subs:  map[chan struct{}]bool{},
	}
	return view, nil
}

// DropView はユーザーのビューを破棄する。ログアウト時に呼ばれ、
// セッション表示カウンタもここで寿命を終える。
func (s *Service) DropView(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.views, userID)
}

// OptimisticFavorite はお気に入り切替の楽観更新をユーザーのビューに
// 適用する。ビューが存在しない場合は何もしない。
func (s *Service) OptimisticFavorite(userID, gameID string, favorite bool) {
	s.mu.Lock()
	entry, ok := s.views[userID]
	s.mu.Unlock()
	if !ok {
		return
	}
	entry.view.ToggleFavorite(gameID, favorite)
	s.notify(entry)
}

// MarkSeen はゲームの表示をセッションカウンタに記録して再計算する。
func (s *Service) MarkSeen(userID, gameID string) {
	s.markSeen(userID, gameID, false)
}

// MarkImmersive は没入ビューでの表示を記録して再計算する。
func (s *Service) MarkImmersive(userID, gameID string) {
	s.markSeen(userID, gameID, true)
}

func (s *Service) markSeen(userID, gameID string, immersive bool) {
	s.mu.Lock()
	entry, ok := s.views[userID]
	s.mu.Unlock()
	if !ok {
		return
	}
	if immersive {
		entry.view.Session().MarkImmersive(gameID)
	} else {
		entry.view.Session().MarkSeen(gameID)
	}
	entry.view.Rebuild()
	s.notify(entry)
}

// Subscribe はユーザーのフィードが再計算されるたびに通知を受ける
// チャネルを返す。2つ目の戻り値で購読を解除する。
func (s *Service) Subscribe(userID string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	s.mu.Lock()
	entry, ok := s.views[userID]
	if ok {
		entry.subs[ch] = true
	}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if entry, ok := s.views[userID]; ok {
			delete(entry.subs, ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// HandleChange はデータベースの変更通知を処理する。
// チャネルに対応する入力だけを読み直す。channelが空の場合は
// リスナーの再接続を意味し、全入力を読み直す。
// 読み直しの失敗は一時的なI/O障害として握りつぶし、各ビューは
// 最後に成功したスナップショットのまま動き続ける。
func (s *Service) HandleChange(ctx context.Context, channel, id string) {
	switch channel {
	case ChannelGames:
		s.reloadGames(ctx)
	case ChannelLedgers:
		s.reloadLedger(ctx, id)
	case ChannelComments:
		// コメントの増減はゲーム側の集計とユーザー別件数の両方に効く
		s.reloadGames(ctx)
		s.reloadCommentCounts(ctx)
	default:
		s.reloadGames(ctx)
		s.reloadCommentCounts(ctx)
		s.reloadAllLedgers(ctx)
	}
}

func (s *Service) reloadGames(ctx context.Context) {
	s.mu.Lock()
	entries := s.entriesLocked()
	s.mu.Unlock()

	// 公開済みのみ/全件のスナップショットはそれぞれ1回だけ読む
	var published, all []model.GameWithCategory
	var publishedLoaded, allLoaded bool

	for _, e := range entries {
		if e.admin {
			if !allLoaded {
				games, err := s.gameRepo.ListAll(ctx, model.GameFilterAll)
				if err != nil {
					slog.Warn("ゲーム一覧の再読込に失敗。前回のスナップショットを維持します",
						slog.String("error", err.Error()))
					return
				}
				all = games
				allLoaded = true
			}
			e.view.ApplyGames(all)
		} else {
			if !publishedLoaded {
				games, err := s.gameRepo.ListAll(ctx, model.GameFilterPublished)
				if err != nil {
					slog.Warn("ゲーム一覧の再読込に失敗。前回のスナップショットを維持します",
						slog.String("error", err.Error()))
					return
				}
				published = games
				publishedLoaded = true
			}
			e.view.ApplyGames(published)
		}
		s.notify(e)
	}
}

func (s *Service) reloadLedger(ctx context.Context, userID string) {
	s.mu.Lock()
	entry, ok := s.views[userID]
	s.mu.Unlock()
	if !ok {
		return
	}

	ledger, err := s.ledgerRepo.FindByUserID(ctx, userID)
	if err != nil {
		slog.Warn("台帳の再読込に失敗。前回のスナップショットを維持します",
			slog.String("user_id", userID),
			slog.String("error", err.Error()))
		return
	}
	if ledger == nil {
		ledger = model.NewLedger(userID)
	}
	entry.view.ApplyLedger(ledger)
	s.notify(entry)
}

func (s *Service) reloadAllLedgers(ctx context.Context) {
	s.mu.Lock()
	userIDs := make([]string, 0, len(s.views))
	for userID := range s.views {
		userIDs = append(userIDs, userID)
	}
	s.mu.Unlock()

	for _, userID := range userIDs {
		s.reloadLedger(ctx, userID)
	}
}

func (s *Service) reloadCommentCounts(ctx context.Context) {
	s.mu.Lock()
	byUser := map[string]*viewEntry{}
	for userID, entry := range s.views {
		byUser[userID] = entry
	}
	s.mu.Unlock()

	for userID, entry := range byUser {
		counts, err := s.commentRepo.CountByUser(ctx, userID)
		if err != nil {
			slog.Warn("コメント件数の再読込に失敗。前回のスナップショットを維持します",
				slog.String("user_id", userID),
				slog.String("error", err.Error()))
			continue
		}
		entry.view.ApplyCommentCounts(counts)
		s.notify(entry)
	}
}

func (s *Service) loadAll(ctx context.Context, view *View, userID string, admin bool) error {
	filter := model.GameFilterPublished
	if admin {
		filter = model.GameFilterAll
	}

	games, err := s.gameRepo.ListAll(ctx, filter)
	if err != nil {
		return err
	}

	ledger, err := s.ledgerRepo.FindByUserID(ctx, userID)
	if err != nil {
		return err
	}
	if ledger == nil {
		ledger = model.NewLedger(userID)
	}

	counts, err := s.commentRepo.CountByUser(ctx, userID)
	if err != nil {
		return err
	}

	view.ApplyGames(games)
	view.ApplyLedger(ledger)
	view.ApplyCommentCounts(counts)
	return nil
}

func (s *Service) entriesLocked() []*viewEntry {
	entries := make([]*viewEntry, 0, len(s.views))
	for _, e := range s.views {
		entries = append(entries, e)
	}
	return entries
}

// notify は購読者へ再計算を非ブロッキングで伝える。
func (s *Service) notify(entry *viewEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range entry.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (s *Service) recordRebuild(d time.Duration) {
	if s.collector != nil {
		s.collector.RecordFeedRebuild(d)
	}
}
