package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// OAuth
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// Session
	SessionSecret string
	SessionMaxAge int

	// Admin
	AdminEmails []string

	// Asset store (GitHub contents API)
	GitHubToken    string
	GitHubOwner    string
	GitHubRepo     string
	GitHubBranch   string
	GitHubEndpoint string
	AssetBaseURL   string
	ShareHostURL   string
	AssetTimeout   time.Duration
	AssetMaxRetry  int

	// Upload
	UploadMaxSize  int64
	UploadMaxFiles int

	// Rate Limit
	RateLimitGeneral int
	RateLimitUpload  int

	// Worker
	ReconcileInterval time.Duration
	CleanupInterval   time.Duration
	TombstoneTTL      time.Duration

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.GoogleClientID = os.Getenv("GOOGLE_CLIENT_ID")
	if cfg.GoogleClientID == "" {
		missing = append(missing, "GOOGLE_CLIENT_ID")
	}

	cfg.GoogleClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	if cfg.GoogleClientSecret == "" {
		missing = append(missing, "GOOGLE_CLIENT_SECRET")
	}

	cfg.GoogleRedirectURL = os.Getenv("GOOGLE_REDIRECT_URL")
	if cfg.GoogleRedirectURL == "" {
		missing = append(missing, "GOOGLE_REDIRECT_URL")
	}

	cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	if cfg.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	cfg.GitHubToken = os.Getenv("GITHUB_TOKEN")
	if cfg.GitHubToken == "" {
		missing = append(missing, "GITHUB_TOKEN")
	}

	cfg.GitHubOwner = os.Getenv("GITHUB_OWNER")
	if cfg.GitHubOwner == "" {
		missing = append(missing, "GITHUB_OWNER")
	}

	cfg.GitHubRepo = os.Getenv("GITHUB_REPO")
	if cfg.GitHubRepo == "" {
		missing = append(missing, "GITHUB_REPO")
	}

	cfg.AssetBaseURL = os.Getenv("ASSET_BASE_URL")
	if cfg.AssetBaseURL == "" {
		missing = append(missing, "ASSET_BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.AdminEmails = getEnvList("ADMIN_EMAILS")
	cfg.GitHubBranch = getEnvString("GITHUB_BRANCH", "main")
	cfg.GitHubEndpoint = getEnvString("GITHUB_ENDPOINT", "https://api.github.com")
	cfg.ShareHostURL = getEnvString("SHARE_HOST_URL", cfg.AssetBaseURL)
	cfg.AssetTimeout = getEnvDuration("ASSET_TIMEOUT", 30*time.Second)
	cfg.AssetMaxRetry = getEnvInt("ASSET_MAX_RETRY", 3)
	cfg.UploadMaxSize = getEnvInt64("UPLOAD_MAX_SIZE", 52428800)
	cfg.UploadMaxFiles = getEnvInt("UPLOAD_MAX_FILES", 200)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitUpload = getEnvInt("RATE_LIMIT_UPLOAD", 10)
	cfg.ReconcileInterval = getEnvDuration("RECONCILE_INTERVAL", 1*time.Hour)
	cfg.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", 24*time.Hour)
	cfg.TombstoneTTL = getEnvDuration("TOMBSTONE_TTL", 30*24*time.Hour)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

// IsAdminEmail はメールアドレスが管理者リストに含まれるかを返す。
// 比較は大文字小文字を無視する。
func (c *Config) IsAdminEmail(email string) bool {
	for _, admin := range c.AdminEmails {
		if strings.EqualFold(admin, email) {
			return true
		}
	}
	return false
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
