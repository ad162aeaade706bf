// Package assets は外部コードホスティングAPIを静的アセットストアとして
// 使うためのクライアントを提供する。ファイルのアップロード・削除は
// SHAトークンによる楽観的並行性制御で行う。
package assets

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const (
	// defaultEndpoint はGitHub REST APIのエンドポイント。
	defaultEndpoint = "https://api.github.com"
	// initialBackoff はリトライの初回遅延。
	initialBackoff = 500 * time.Millisecond
	// maxBackoff はリトライの最大遅延。
	maxBackoff = 8 * time.Second
)

// Config はアセットストアの接続設定。
type Config struct {
	Token    string
	Owner    string
	Repo     string
	Branch   string
	Endpoint string // テスト用にエンドポイントを差し替え可能
	MaxRetry int
}

// Client はGitHubコンテンツAPIのクライアント。
// 429/5xxは指数バックオフ付きでリトライする。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	config     Config
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, config Config) *Client {
	if config.Endpoint == "" {
		config.Endpoint = defaultEndpoint
	}
	if config.Branch == "" {
		config.Branch = "main"
	}
	if config.MaxRetry <= 0 {
		config.MaxRetry = 3
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		config:     config,
	}
}

// RemoteFile はリポジトリ上のファイル・ディレクトリのエントリ。
type RemoteFile struct {
	Path string `json:"path"`
	SHA  string `json:"sha"`
	Type string `json:"type"` // "file" または "dir"
	Size int64  `json:"size"`
}

// GetSHA はファイルの現在のSHAトークンを取得する。
// ファイルが存在しない場合は空文字列を返す（エラーではない）。
func (c *Client) GetSHA(ctx context.Context, path string) (string, error) {
	resp, err := c.doWithRetry(ctx, http.MethodGet, c.contentsURL(path, true), nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("アセットストアがステータス %d を返しました", resp.StatusCode)
	}

	var file RemoteFile
	if err := json.NewDecoder(resp.Body).Decode(&file); err != nil {
		return "", fmt.Errorf("SHAレスポンスのパースに失敗しました: %w", err)
	}
	return file.SHA, nil
}

// Upload はファイルを作成または更新する。既存ファイルの場合は現在の
// SHAを取得して更新リクエストに添付する（楽観的並行性制御）。
func (c *Client) Upload(ctx context.Context, path string, content []byte) error {
	sha, err := c.GetSHA(ctx, path)
	if err != nil {
		return fmt.Errorf("既存SHAの取得に失敗しました: %w", err)
	}

	body := map[string]string{
		"message": fmt.Sprintf("upload %s", path),
		"content": base64.StdEncoding.EncodeToString(content),
		"branch":  c.config.Branch,
	}
	if sha != "" {
		body["sha"] = sha
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("アップロードリクエストの生成に失敗しました: %w", err)
	}

	resp, err := c.doWithRetry(ctx, http.MethodPut, c.contentsURL(path, false), payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		c.logger.Error("アセットのアップロードに失敗しました",
			slog.String("path", path),
			slog.Int("http_status", resp.StatusCode),
		)
		return fmt.Errorf("アセットストアがステータス %d を返しました", resp.StatusCode)
	}
	return nil
}

// Delete はファイルを削除する。shaが空の場合は現在のSHAを取得する。
// ファイルが既に存在しない場合はエラーにしない。
func (c *Client) Delete(ctx context.Context, path, sha string) error {
	if sha == "" {
		var err error
		sha, err = c.GetSHA(ctx, path)
		if err != nil {
			return fmt.Errorf("削除対象SHAの取得に失敗しました: %w", err)
		}
		if sha == "" {
			return nil
		}
	}

	body := map[string]string{
		"message": fmt.Sprintf("delete %s", path),
		"sha":     sha,
		"branch":  c.config.Branch,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("削除リクエストの生成に失敗しました: %w", err)
	}

	resp, err := c.doWithRetry(ctx, http.MethodDelete, c.contentsURL(path, false), payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Error("アセットの削除に失敗しました",
			slog.String("path", path),
			slog.Int("http_status", resp.StatusCode),
		)
		return fmt.Errorf("アセットストアがステータス %d を返しました", resp.StatusCode)
	}
	return nil
}

// ListDir はディレクトリ直下のエントリ一覧を返す。
// ディレクトリが存在しない場合は空のリストを返す。
func (c *Client) ListDir(ctx context.Context, dir string) ([]RemoteFile, error) {
	resp, err := c.doWithRetry(ctx, http.MethodGet, c.contentsURL(dir, true), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("アセットストアがステータス %d を返しました", resp.StatusCode)
	}

	var files []RemoteFile
	if err := json.NewDecoder(resp.Body).Decode(&files); err != nil {
		return nil, fmt.Errorf("ディレクトリ一覧のパースに失敗しました: %w", err)
	}
	return files, nil
}

// DeleteTree はディレクトリ配下の全ファイルを再帰的に削除し、
// 削除したファイル数を返す。
func (c *Client) DeleteTree(ctx context.Context, dir string) (int, error) {
	files, err := c.ListDir(ctx, dir)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, file := range files {
		switch file.Type {
		case "dir":
			n, err := c.DeleteTree(ctx, file.Path)
			deleted += n
			if err != nil {
				return deleted, err
			}
		default:
			if err := c.Delete(ctx, file.Path, file.SHA); err != nil {
				return deleted, err
			}
			deleted++
		}
	}
	return deleted, nil
}

// contentsURL はコンテンツAPIのURLを構築する。
func (c *Client) contentsURL(path string, withRef bool) string {
	u := fmt.Sprintf("%s/repos/%s/%s/contents/%s",
		c.config.Endpoint, c.config.Owner, c.config.Repo, path)
	if withRef {
		u += "?ref=" + url.QueryEscape(c.config.Branch)
	}
	return u
}

// doWithRetry はリクエストを実行する。429/5xxは指数バックオフ付きで
// 最大MaxRetry回までリトライする。
func (c *Client) doWithRetry(ctx context.Context, method, reqURL string, payload []byte) (*http.Response, error) {
	backoff := initialBackoff

	for attempt := 0; ; attempt++ {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
		if err != nil {
			return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
		req.Header.Set("Accept", "application/vnd.github+json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err == nil && !shouldRetry(resp.StatusCode) {
			return resp, nil
		}

		if resp != nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}

		if attempt >= c.config.MaxRetry {
			if err != nil {
				return nil, fmt.Errorf("アセットストアへのリクエストに失敗しました: %w", err)
			}
			return nil, fmt.Errorf("アセットストアへのリクエストが%d回失敗しました", attempt+1)
		}

		c.logger.Warn("アセットストアへのリクエストをリトライします",
			slog.String("url", reqURL),
			slog.Int("attempt", attempt+1),
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// shouldRetry はステータスコードがリトライ対象かを返す。
func shouldRetry(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || statusCode >= 500
}
