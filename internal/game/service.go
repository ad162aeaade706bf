// Package game はゲームカタログの管理を提供する。
// バンドルのアップロード、公開管理、一覧ページング、検索、削除を扱う。
package game

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/brainsta/reels/internal/metrics"
	"github.com/brainsta/reels/internal/model"
	"github.com/brainsta/reels/internal/repository"
)

// assetFolderPrefix はアセットストア上のゲーム配置先のプレフィックス。
const assetFolderPrefix = "games"

// defaultPageSize は一覧ページングの既定ページサイズ。
const defaultPageSize = 10

// AssetStore はゲームバンドルの配置先ストアのインターフェース。
type AssetStore interface {
	// Upload はファイルを作成または更新する。
	Upload(ctx context.Context, path string, content []byte) error
	// DeleteTree はディレクトリ配下の全ファイルを削除し、件数を返す。
	DeleteTree(ctx context.Context, dir string) (int, error)
}

// URLValidator は外部ホスト型ゲームのURL検証インターフェース。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// Config はServiceの動作設定。
type Config struct {
	// AssetBaseURL はアセットストアの公開配信URL。
	AssetBaseURL string
	// MaxFiles はバンドル内ファイル数の上限。
	MaxFiles int
	// MaxFileSize はバンドル内1ファイルのサイズ上限（バイト）。
	MaxFileSize int64
	// PageSize は一覧ページングのページサイズ。0の場合は既定値。
	PageSize int
}

// Service はゲームカタログ管理のサービス。
type Service struct {
	gameRepo     repository.GameRepository
	categoryRepo repository.CategoryRepository
	removedRepo  repository.RemovedGameRepository
	store        AssetStore
	urlValidator URLValidator
	collector    metrics.MetricsCollector
	logger       *slog.Logger
	config       Config

	mu     sync.Mutex
	pagers map[string]*Pager // key: userID + ":" + filter
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	gameRepo repository.GameRepository,
	categoryRepo repository.CategoryRepository,
	removedRepo repository.RemovedGameRepository,
	store AssetStore,
	urlValidator URLValidator,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	config Config,
) *Service {
	if config.PageSize <= 0 {
		config.PageSize = defaultPageSize
	}
	return &Service{
		gameRepo:     gameRepo,
		categoryRepo: categoryRepo,
		removedRepo:  removedRepo,
		store:        store,
		urlValidator: urlValidator,
		collector:    collector,
		logger:       logger,
		config:       config,
		pagers:       make(map[string]*Pager),
	}
}

// ParseFilter はクエリ文字列のフィルタ指定を検証して返す。
// 空文字列は公開済みフィルタとして扱う。管理者以外が all を指定した
// 場合は権限エラーになる。
func ParseFilter(raw string, admin bool) (model.GameFilter, error) {
	switch raw {
	case "", string(model.GameFilterPublished):
		return model.GameFilterPublished, nil
	case string(model.GameFilterAll):
		if !admin {
			return "", model.NewForbiddenError()
		}
		return model.GameFilterAll, nil
	default:
		return "", model.NewInvalidFilterError(raw)
	}
}

// Get は指定IDのゲームを取得する。
func (s *Service) Get(ctx context.Context, id string) (*model.Game, error) {
	g, err := s.gameRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ゲームの取得に失敗しました: %w", err)
	}
	if g == nil {
		return nil, model.NewGameNotFoundError(id)
	}
	return g, nil
}

// List は全件一覧をカテゴリ名付きで返す。
func (s *Service) List(ctx context.Context, filter model.GameFilter) ([]model.GameWithCategory, error) {
	games, err := s.gameRepo.ListAll(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("ゲーム一覧の取得に失敗しました: %w", err)
	}
	return games, nil
}

// ListPage は指定カーソルから1ページ取得する。
// 返却件数がページサイズちょうどの場合のみ続きありと判定する。
func (s *Service) ListPage(ctx context.Context, filter model.GameFilter, cursor model.GameCursor, limit int) ([]model.GameWithCategory, bool, error) {
	if limit <= 0 {
		limit = s.config.PageSize
	}
	page, err := s.gameRepo.ListPage(ctx, filter, cursor, limit)
	if err != nil {
		return nil, false, fmt.Errorf("ゲーム一覧ページの取得に失敗しました: %w", err)
	}
	return page, len(page) == limit, nil
}

// PagerFor はユーザーごとの順次ページングのPagerを取得する。
// 未作成の場合は先頭からのPagerを作成する。
func (s *Service) PagerFor(userID string, filter model.GameFilter) *Pager {
	key := userID + ":" + string(filter)

	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.pagers[key]; ok {
		return p
	}
	p := NewPager(func(ctx context.Context, cursor model.GameCursor, limit int) ([]model.GameWithCategory, error) {
		return s.gameRepo.ListPage(ctx, filter, cursor, limit)
	}, s.config.PageSize)
	s.pagers[key] = p
	return p
}

// DropPagers はユーザーのページング状態を破棄する。ログアウト・退会時に呼ぶ。
func (s *Service) DropPagers(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, filter := range []model.GameFilter{model.GameFilterPublished, model.GameFilterAll} {
		delete(s.pagers, userID+":"+string(filter))
	}
}

// UploadInput はバンドルアップロードの入力。
type UploadInput struct {
	Title       string // 空の場合はindex.htmlの<title>を使用
	Description string
	CategoryID  *string
	CreatedBy   string
	ZipData     []byte
}

// Upload はゲームバンドルを検証してアセットストアに配置し、
// 非公開状態のゲームレコードを作成する。
func (s *Service) Upload(ctx context.Context, input UploadInput) (*model.Game, error) {
	bundle, err := ParseBundle(input.ZipData, s.config.MaxFiles, s.config.MaxFileSize)
	if err != nil {
		return nil, err
	}

	title := input.Title
	if title == "" {
		title = bundle.Title
	}
	if title == "" {
		return nil, model.NewInvalidBundleError("タイトルが指定されておらず、index.htmlにも<title>がありません")
	}

	normalized := NormalizeTitle(title)
	if err := s.checkDuplicateTitle(ctx, title, normalized); err != nil {
		return nil, err
	}

	if input.CategoryID != nil {
		category, err := s.categoryRepo.FindByID(ctx, *input.CategoryID)
		if err != nil {
			return nil, fmt.Errorf("カテゴリの取得に失敗しました: %w", err)
		}
		if category == nil {
			return nil, model.NewCategoryNotFoundError(*input.CategoryID)
		}
	}

	folder := uuid.New().String()
	if err := s.uploadFiles(ctx, folder, bundle.Files); err != nil {
		return nil, err
	}

	g := &model.Game{
		ID:              uuid.New().String(),
		Title:           title,
		TitleNormalized: normalized,
		Description:     input.Description,
		URL:             fmt.Sprintf("%s/%s/%s/%s", s.config.AssetBaseURL, assetFolderPrefix, folder, entryPointFile),
		Folder:          folder,
		CategoryID:      input.CategoryID,
		Published:       false,
		CreatedBy:       input.CreatedBy,
	}
	if err := s.gameRepo.Create(ctx, g); err != nil {
		// レコード作成に失敗した場合は配置済みアセットを回収する
		if _, cleanupErr := s.store.DeleteTree(ctx, assetFolderPrefix+"/"+folder); cleanupErr != nil {
			s.logger.Warn("孤立アセットの回収に失敗しました",
				slog.String("folder", folder),
				slog.String("error", cleanupErr.Error()),
			)
		}
		return nil, fmt.Errorf("ゲームの作成に失敗しました: %w", err)
	}

	s.logger.Info("ゲームをアップロードしました",
		slog.String("game_id", g.ID),
		slog.String("title", g.Title),
		slog.Int("files", len(bundle.Files)),
	)
	return g, nil
}

// CreateExternal は外部ホスト型ゲームをURL指定で登録する。
// URLはSSRF防止の検証を通過する必要がある。
func (s *Service) CreateExternal(ctx context.Context, title, description, rawURL string, categoryID *string, createdBy string) (*model.Game, error) {
	if title == "" {
		return nil, model.NewInvalidBundleError("タイトルが指定されていません")
	}
	if err := s.urlValidator.ValidateURL(rawURL); err != nil {
		return nil, model.NewSSRFBlockedError()
	}

	normalized := NormalizeTitle(title)
	if err := s.checkDuplicateTitle(ctx, title, normalized); err != nil {
		return nil, err
	}

	if categoryID != nil {
		category, err := s.categoryRepo.FindByID(ctx, *categoryID)
		if err != nil {
			return nil, fmt.Errorf("カテゴリの取得に失敗しました: %w", err)
		}
		if category == nil {
			return nil, model.NewCategoryNotFoundError(*categoryID)
		}
	}

	g := &model.Game{
		ID:              uuid.New().String(),
		Title:           title,
		TitleNormalized: normalized,
		Description:     description,
		URL:             rawURL,
		CategoryID:      categoryID,
		Published:       false,
		CreatedBy:       createdBy,
	}
	if err := s.gameRepo.Create(ctx, g); err != nil {
		return nil, fmt.Errorf("ゲームの作成に失敗しました: %w", err)
	}
	return g, nil
}

// checkDuplicateTitle は正規化済みタイトルの線形走査で重複を検出する。
func (s *Service) checkDuplicateTitle(ctx context.Context, title, normalized string) error {
	titles, err := s.gameRepo.ListNormalizedTitles(ctx)
	if err != nil {
		return fmt.Errorf("タイトル一覧の取得に失敗しました: %w", err)
	}
	for _, t := range titles {
		if t == normalized {
			return model.NewDuplicateTitleError(title)
		}
	}
	return nil
}

// uploadFiles はバンドルの全ファイルをアセットストアに配置する。
// 途中で失敗した場合は配置済みファイルを回収してエラーを返す。
func (s *Service) uploadFiles(ctx context.Context, folder string, files []BundleFile) error {
	dir := assetFolderPrefix + "/" + folder
	for _, f := range files {
		if err := s.store.Upload(ctx, dir+"/"+f.Path, f.Content); err != nil {
			s.collector.RecordAssetUpload(false)
			s.logger.Error("アセットのアップロードに失敗しました",
				slog.String("path", f.Path),
				slog.String("error", err.Error()),
			)
			if _, cleanupErr := s.store.DeleteTree(ctx, dir); cleanupErr != nil {
				s.logger.Warn("孤立アセットの回収に失敗しました",
					slog.String("folder", folder),
					slog.String("error", cleanupErr.Error()),
				)
			}
			return model.NewAssetUploadFailedError(f.Path)
		}
	}
	s.collector.RecordAssetUpload(true)
	return nil
}

// Delete はゲームを削除する。アセットストア上のファイルを回収した後に
// レコードを削除し、クライアントキャッシュ破棄用の墓標を残す。
// アセット回収の失敗は警告ログに留め、レコード削除は続行する。
func (s *Service) Delete(ctx context.Context, id string) error {
	g, err := s.gameRepo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("ゲームの取得に失敗しました: %w", err)
	}
	if g == nil {
		return model.NewGameNotFoundError(id)
	}

	if g.Folder != "" {
		if _, err := s.store.DeleteTree(ctx, assetFolderPrefix+"/"+g.Folder); err != nil {
			s.collector.RecordAssetDelete(false)
			s.logger.Warn("アセットの削除に失敗しました",
				slog.String("game_id", id),
				slog.String("folder", g.Folder),
				slog.String("error", err.Error()),
			)
		} else {
			s.collector.RecordAssetDelete(true)
		}
	}

	if err := s.gameRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("ゲームの削除に失敗しました: %w", err)
	}

	tombstone := &model.RemovedGame{
		ID:        g.ID,
		Title:     g.Title,
		RemovedAt: time.Now(),
	}
	if err := s.removedRepo.Create(ctx, tombstone); err != nil {
		s.logger.Warn("削除墓標の作成に失敗しました",
			slog.String("game_id", id),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("ゲームを削除しました", slog.String("game_id", id))
	return nil
}

// SetPublished は公開フラグを更新する。
func (s *Service) SetPublished(ctx context.Context, id string, published bool) error {
	updated, err := s.gameRepo.SetPublished(ctx, id, published)
	if err != nil {
		return fmt.Errorf("公開フラグの更新に失敗しました: %w", err)
	}
	if !updated {
		return model.NewGameNotFoundError(id)
	}
	return nil
}

// UpdateCategory はゲームのカテゴリ参照を変更する。nilで無カテゴリにする。
func (s *Service) UpdateCategory(ctx context.Context, id string, categoryID *string) error {
	g, err := s.gameRepo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("ゲームの取得に失敗しました: %w", err)
	}
	if g == nil {
		return model.NewGameNotFoundError(id)
	}
	if categoryID != nil {
		category, err := s.categoryRepo.FindByID(ctx, *categoryID)
		if err != nil {
			return fmt.Errorf("カテゴリの取得に失敗しました: %w", err)
		}
		if category == nil {
			return model.NewCategoryNotFoundError(*categoryID)
		}
	}
	if err := s.gameRepo.UpdateCategory(ctx, id, categoryID); err != nil {
		return fmt.Errorf("カテゴリの更新に失敗しました: %w", err)
	}
	return nil
}

// Search はタイトルまたはカテゴリ名の部分一致で公開済みゲームを検索する。
func (s *Service) Search(ctx context.Context, query string, limit int) ([]model.GameWithCategory, error) {
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = s.config.PageSize
	}
	games, err := s.gameRepo.Search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("ゲームの検索に失敗しました: %w", err)
	}
	return games, nil
}

// SearchIDs は検索結果のゲームID集合を返す。フィードの絞り込みに使用する。
func (s *Service) SearchIDs(ctx context.Context, query string, limit int) (map[string]bool, error) {
	games, err := s.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]bool, len(games))
	for _, g := range games {
		ids[g.ID] = true
	}
	return ids, nil
}

// ListRemoved は指定日時以降に削除されたゲームの墓標一覧を返す。
func (s *Service) ListRemoved(ctx context.Context, since time.Time) ([]*model.RemovedGame, error) {
	removed, err := s.removedRepo.ListSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("削除済みゲーム一覧の取得に失敗しました: %w", err)
	}
	return removed, nil
}
