package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/brainsta/reels/internal/middleware"
)

// HealthChecker はヘルスチェックエンドポイントが必要とするインターフェース。
// *sql.DBがそのまま満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	UserFinder        middleware.UserFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig
	// StatusRecorder はnil可。指定時はレスポンスコードをメトリクスに記録する。
	StatusRecorder middleware.HTTPStatusRecorder

	// ヘルスチェック（nil可）
	HealthChecker HealthChecker

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// フィード
	FeedService FeedServiceInterface

	// ゲームカタログ
	GameService GameServiceInterface
	// フィードの検索絞り込みに使う
	GameSearcher GameSearcherInterface

	// インタラクション・コメント
	InteractionService InteractionServiceInterface

	// カテゴリ
	CategoryService CategoryServiceInterface

	// アプリ共通設定
	AppConfigService AppConfigServiceInterface

	// ユーザー
	UserService UserServiceInterface
	UserGetter  UserGetterInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORSMiddleware → SessionMiddleware → CSRFMiddleware → RateLimitMiddleware(GeneralMiddleware)
//
// 認証ルート（/auth/*）と公開設定（GET /api/config）はミドルウェアチェーンの外に配置する。
// 管理者専用ルートには RequireAdmin を追加する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// 全ルート共通のミドルウェア
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(slog.Default()))
	r.Use(middleware.NewMetricsMiddleware(deps.StatusRecorder))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	feedHandler := NewFeedHandler(deps.FeedService, deps.GameSearcher)
	gameHandler := NewGameHandler(deps.GameService)
	interactionHandler := NewInteractionHandler(deps.InteractionService, deps.UserGetter)
	categoryHandler := NewCategoryHandler(deps.CategoryService)
	configHandler := NewAppConfigHandler(deps.AppConfigService)
	userHandler := NewUserHandler(deps.UserService)

	// --- 認証不要のルート ---

	// ヘルスチェック（Dockerヘルスチェック・監視用）
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if deps.HealthChecker != nil {
			if err := deps.HealthChecker.PingContext(req.Context()); err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	// 認証ルート（OAuthフロー）
	r.Route("/auth", func(r chi.Router) {
		r.Get("/google/login", authHandler.Login)
		r.Get("/google/callback", authHandler.Callback)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	// CSRFトークン取得
	r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)

	// クライアント共通設定は未ログインでも読める
	r.Get("/api/config", configHandler.Get)

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → CSRF → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder, deps.UserFinder))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// フィード配信
		r.Route("/api/feed", func(r chi.Router) {
			r.Get("/", feedHandler.GetFeed)
			r.Get("/stream", feedHandler.StreamFeed)
			r.Post("/seen/{id}", feedHandler.MarkSeen)
			r.Post("/immersive/{id}", feedHandler.MarkImmersive)
		})

		// ゲームカタログ
		r.Route("/api/games", func(r chi.Router) {
			r.Get("/", gameHandler.ListPage)
			r.Get("/search", gameHandler.Search)
			r.Get("/removed", gameHandler.ListRemoved)

			// POST /api/games - バンドルアップロード（管理者専用 + アップロード専用レート制限）
			r.With(middleware.RequireAdmin(), deps.RateLimiter.UploadMiddleware()).
				Post("/", gameHandler.Upload)
			r.With(middleware.RequireAdmin()).Post("/external", gameHandler.CreateExternal)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", gameHandler.GetGame)

				// 管理者専用の操作
				r.With(middleware.RequireAdmin()).Delete("/", gameHandler.DeleteGame)
				r.With(middleware.RequireAdmin()).Put("/publish", gameHandler.SetPublished)
				r.With(middleware.RequireAdmin()).Put("/category", gameHandler.UpdateCategory)

				// インタラクション
				r.Post("/like", interactionHandler.ToggleLike)
				r.Put("/favorite", interactionHandler.SetFavorite)
				r.Post("/play", interactionHandler.RecordPlay)
				r.Post("/playtime", interactionHandler.AddPlayTime)

				// コメント
				r.Get("/comments", interactionHandler.ListComments)
				r.Post("/comments", interactionHandler.AddComment)
			})
		})

		// コメント削除
		r.Delete("/api/comments/{id}", interactionHandler.DeleteComment)

		// カテゴリ管理
		r.Route("/api/categories", func(r chi.Router) {
			r.Get("/", categoryHandler.List)
			r.With(middleware.RequireAdmin()).Post("/", categoryHandler.Create)
			r.With(middleware.RequireAdmin()).Put("/{id}", categoryHandler.Rename)
			r.With(middleware.RequireAdmin()).Delete("/{id}", categoryHandler.Delete)
		})

		// アプリ共通設定の更新
		r.With(middleware.RequireAdmin()).Patch("/api/config", configHandler.Update)

		// ユーザー管理
		r.Route("/api/users", func(r chi.Router) {
			r.Delete("/me", userHandler.Withdraw)
		})
	})

	return r
}
