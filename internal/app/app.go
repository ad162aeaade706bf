package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/brainsta/reels/internal/appconfig"
	"github.com/brainsta/reels/internal/assets"
	"github.com/brainsta/reels/internal/auth"
	"github.com/brainsta/reels/internal/category"
	"github.com/brainsta/reels/internal/config"
	"github.com/brainsta/reels/internal/database"
	"github.com/brainsta/reels/internal/feed"
	"github.com/brainsta/reels/internal/game"
	"github.com/brainsta/reels/internal/handler"
	"github.com/brainsta/reels/internal/interaction"
	"github.com/brainsta/reels/internal/logger"
	"github.com/brainsta/reels/internal/metrics"
	"github.com/brainsta/reels/internal/middleware"
	"github.com/brainsta/reels/internal/repository"
	"github.com/brainsta/reels/internal/security"
	"github.com/brainsta/reels/internal/user"
	"github.com/brainsta/reels/internal/worker/cleanup"
	"github.com/brainsta/reels/internal/worker/reconcile"
)

// assetMaxResponseSize はアセットストアからの応答の上限サイズ。
// base64エンコードで約4/3に膨らむため、アップロード上限よりひと回り大きくとる。
const assetMaxResponseSize = 128 * 1024 * 1024

// newAssetHTTPClient はアセットストア向けのHTTPクライアントを生成する。
// アセットストアへのリクエストが唯一の外部HTTPエグレスなので、
// SSRF防止付きクライアントを経由させる。
func newAssetHTTPClient(guard security.SSRFGuardService, timeout time.Duration) *http.Client {
	return guard.NewSafeClient(timeout, assetMaxResponseSize)
}

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// memoryStateDropper はログアウト・退会時にメモリ上のユーザー状態を
// まとめて破棄するアダプタ。
type memoryStateDropper struct {
	feeds *feed.Service
	games *game.Service
}

func (d *memoryStateDropper) DropView(userID string) {
	d.feeds.DropView(userID)
	d.games.DropPagers(userID)
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// LISTEN/NOTIFYの変更通知はフィードサービスに転送される。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	identRepo := repository.NewPostgresIdentityRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	gameRepo := repository.NewPostgresGameRepo(db)
	ledgerRepo := repository.NewPostgresLedgerRepo(db)
	commentRepo := repository.NewPostgresCommentRepo(db)
	categoryRepo := repository.NewPostgresCategoryRepo(db)
	removedRepo := repository.NewPostgresRemovedGameRepo(db)
	appConfigRepo := repository.NewPostgresAppConfigRepo(db)

	// 3. メトリクスとセキュリティサービスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewContentSanitizer()

	// 4. アセットストアクライアントの初期化
	assetClient := assets.NewClient(
		newAssetHTTPClient(ssrfGuard, cfg.AssetTimeout),
		slog.Default(),
		assets.Config{
			Token:    cfg.GitHubToken,
			Owner:    cfg.GitHubOwner,
			Repo:     cfg.GitHubRepo,
			Branch:   cfg.GitHubBranch,
			Endpoint: cfg.GitHubEndpoint,
			MaxRetry: cfg.AssetMaxRetry,
		},
	)

	// 5. ドメインサービスの初期化
	feedService := feed.NewService(gameRepo, ledgerRepo, commentRepo, collector)

	gameService := game.NewService(
		gameRepo, categoryRepo, removedRepo,
		assetClient, ssrfGuard, collector, slog.Default(),
		game.Config{
			AssetBaseURL: cfg.AssetBaseURL,
			MaxFiles:     cfg.UploadMaxFiles,
			MaxFileSize:  cfg.UploadMaxSize,
		},
	)

	interactionService := interaction.NewService(
		ledgerRepo, gameRepo, commentRepo,
		feedService, sanitizer, collector, slog.Default(),
	)

	categoryService := category.NewService(categoryRepo)
	appConfigService := appconfig.NewService(appConfigRepo)

	dropper := &memoryStateDropper{feeds: feedService, games: gameService}

	oauthProvider := auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
	})
	authService := auth.NewService(
		oauthProvider, userRepo, identRepo, sessionRepo,
		auth.ServiceConfig{
			SessionMaxAge: cfg.SessionMaxAge,
			IsAdminEmail:  cfg.IsAdminEmail,
			OnLogout:      dropper.DropView,
		},
	)

	userService := user.NewService(userRepo, sessionRepo, ledgerRepo, commentRepo, dropper)

	// 6. 変更通知の購読。通知はフィードの部分再読込の契機になる。
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changeFeed, err := database.NewChangeFeed(
		cfg.DatabaseURL,
		[]string{feed.ChannelGames, feed.ChannelLedgers, feed.ChannelComments},
		slog.Default(),
	)
	if err != nil {
		return fmt.Errorf("failed to start change feed: %w", err)
	}
	go changeFeed.Run(ctx)
	go func() {
		for change := range changeFeed.Changes() {
			feedService.HandleChange(ctx, change.Channel, change.ID)
		}
	}()

	// 7. ルーターの構築
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	// configのレート設定はreq/min単位なのでreq/secに変換する
	if cfg.RateLimitGeneral > 0 {
		rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
		rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	}
	if cfg.RateLimitUpload > 0 {
		rateLimiterCfg.UploadRate = rate.Limit(float64(cfg.RateLimitUpload) / 60.0)
		rateLimiterCfg.UploadBurst = cfg.RateLimitUpload
	}

	deps := &handler.RouterDeps{
		HealthChecker:     db,
		SessionFinder:     sessionRepo,
		UserFinder:        userRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       middleware.NewRateLimiter(rateLimiterCfg),
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		StatusRecorder: collector,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL:       cfg.BaseURL,
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		FeedService:  feedService,
		GameService:  gameService,
		GameSearcher: gameService,

		InteractionService: interactionService,
		CategoryService:    categoryService,
		AppConfigService:   appConfigService,

		UserService: userService,
		UserGetter:  userService,
	}

	router := handler.NewRouter(deps)

	// Prometheusスクレイプ用エンドポイントはAPIルーターの外に置く
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(registry))
	mux.Handle("/", router)

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // SSEストリーミングのため書き込みタイムアウトは設けない
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、クリーンアップジョブとカウンタ整合ジョブを定期実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. リポジトリの初期化
	sessionRepo := repository.NewPostgresSessionRepo(db)
	gameRepo := repository.NewPostgresGameRepo(db)
	removedRepo := repository.NewPostgresRemovedGameRepo(db)

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. ジョブの初期化
	cleanupJob := cleanup.NewCleanupJob(sessionRepo, removedRepo, slog.Default())
	if cfg.TombstoneTTL > 0 {
		cleanupJob.TombstoneTTL = cfg.TombstoneTTL
	}
	reconcileJob := reconcile.NewReconcileJob(gameRepo, collector, slog.Default())

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", cfg.CleanupInterval),
		slog.Duration("reconcile_interval", cfg.ReconcileInterval),
	)

	// 起動直後に1回ずつ実行し、取りこぼしを防ぐ
	if err := cleanupJob.Run(ctx); err != nil {
		slog.Error("cleanup job failed", slog.String("error", err.Error()))
	}
	if err := reconcileJob.Run(ctx); err != nil {
		slog.Error("reconcile job failed", slog.String("error", err.Error()))
	}

	// カウンタ整合ジョブをバックグラウンドで起動
	go reconcileJob.Start(ctx, cfg.ReconcileInterval)

	// クリーンアップジョブをメインgoroutineで実行（ブロッキング）
	cleanupJob.Start(ctx, cfg.CleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
