package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/brainsta/reels/internal/model"
)

// PostgresAppConfigRepo はPostgreSQLを使用したアプリ共通設定リポジトリ。
// app_configテーブルはマイグレーションで1行だけ作成されるシングルトン。
type PostgresAppConfigRepo struct {
	db *sql.DB
}

// NewPostgresAppConfigRepo はPostgresAppConfigRepoを生成する。
func NewPostgresAppConfigRepo(db *sql.DB) *PostgresAppConfigRepo {
	return &PostgresAppConfigRepo{db: db}
}

// Get は設定ドキュメントを取得する。
func (r *PostgresAppConfigRepo) Get(ctx context.Context) (*model.AppConfig, error) {
	cfg := &model.AppConfig{}

	err := r.db.QueryRowContext(ctx,
		`SELECT asset_base_url, share_host_url, maintenance, updated_at
		 FROM app_config WHERE singleton = TRUE`,
	).Scan(&cfg.AssetBaseURL, &cfg.ShareHostURL, &cfg.Maintenance, &cfg.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("アプリ設定の取得に失敗しました: %w", err)
	}

	return cfg, nil
}

// Update は非nilのフィールドのみをマージ書き込みする。
// nilのフィールドはCOALESCEにより既存値を維持する。
func (r *PostgresAppConfigRepo) Update(ctx context.Context, assetBaseURL, shareHostURL *string, maintenance *bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE app_config SET
		    asset_base_url = COALESCE($1, asset_base_url),
		    share_host_url = COALESCE($2, share_host_url),
		    maintenance = COALESCE($3, maintenance),
		    updated_at = now()
		 WHERE singleton = TRUE`,
		assetBaseURL, shareHostURL, maintenance,
	)
	if err != nil {
		return fmt.Errorf("アプリ設定の更新に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ AppConfigRepository = (*PostgresAppConfigRepo)(nil)
