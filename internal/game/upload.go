package game

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"

	"golang.org/x/net/html"

	"github.com/brainsta/reels/internal/model"
)

// entryPointFile はバンドルに必須のエントリポイント。
const entryPointFile = "index.html"

// BundleFile はバンドル内の1ファイルを表す。Pathはフォルダ内相対パス。
type BundleFile struct {
	Path    string
	Content []byte
}

// Bundle は展開・検証済みのゲームバンドルを表す。
type Bundle struct {
	Files []BundleFile
	// Title はindex.htmlの<title>要素から抽出したタイトル。
	// <title>がない場合は空文字列。
	Title string
}

// ParseBundle はZIPデータを展開してバンドルとして検証する。
//   - index.htmlがルートに存在すること（単一のトップレベルフォルダに
//     包まれている場合はそのフォルダを剥がす）
//   - パストラバーサルを含むエントリがないこと
//   - ファイル数・ファイルサイズが上限以下であること
func ParseBundle(data []byte, maxFiles int, maxFileSize int64) (*Bundle, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, model.NewInvalidBundleError("ZIPファイルとして読み込めません")
	}

	var files []BundleFile
	for _, entry := range reader.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		name := path.Clean(strings.ReplaceAll(entry.Name, "\\", "/"))
		if name == "." || strings.HasPrefix(name, "/") || strings.HasPrefix(name, "..") {
			return nil, model.NewInvalidBundleError(fmt.Sprintf("不正なファイルパスが含まれています: %s", entry.Name))
		}
		// macOSのメタデータは黙って捨てる
		if strings.HasPrefix(name, "__MACOSX/") || path.Base(name) == ".DS_Store" {
			continue
		}
		if entry.UncompressedSize64 > uint64(maxFileSize) {
			return nil, model.NewInvalidBundleError(fmt.Sprintf("ファイルサイズが上限を超えています: %s", name))
		}

		rc, err := entry.Open()
		if err != nil {
			return nil, model.NewInvalidBundleError(fmt.Sprintf("ファイルの展開に失敗しました: %s", name))
		}
		content, err := io.ReadAll(io.LimitReader(rc, maxFileSize+1))
		rc.Close()
		if err != nil {
			return nil, model.NewInvalidBundleError(fmt.Sprintf("ファイルの読み込みに失敗しました: %s", name))
		}
		if int64(len(content)) > maxFileSize {
			return nil, model.NewInvalidBundleError(fmt.Sprintf("ファイルサイズが上限を超えています: %s", name))
		}

		files = append(files, BundleFile{Path: name, Content: content})
		if len(files) > maxFiles {
			return nil, model.NewInvalidBundleError(fmt.Sprintf("ファイル数が上限(%d)を超えています", maxFiles))
		}
	}

	if len(files) == 0 {
		return nil, model.NewInvalidBundleError("ZIPファイルが空です")
	}

	files = stripCommonRoot(files)

	var indexHTML []byte
	for _, f := range files {
		if f.Path == entryPointFile {
			indexHTML = f.Content
			break
		}
	}
	if indexHTML == nil {
		return nil, model.NewInvalidBundleError("index.htmlがルートに見つかりません")
	}

	title, err := extractTitle(indexHTML)
	if err != nil {
		return nil, model.NewInvalidBundleError("index.htmlをHTMLとしてパースできません")
	}

	return &Bundle{Files: files, Title: title}, nil
}

// stripCommonRoot は全ファイルが単一のトップレベルフォルダに包まれている
// 場合にそのフォルダを剥がす。ZIP作成ツールがフォルダごと圧縮した
// バンドルを受け入れるため。
func stripCommonRoot(files []BundleFile) []BundleFile {
	var root string
	for _, f := range files {
		dir, _, found := strings.Cut(f.Path, "/")
		if !found {
			return files
		}
		if root == "" {
			root = dir
		} else if dir != root {
			return files
		}
	}
	stripped := make([]BundleFile, len(files))
	for i, f := range files {
		stripped[i] = BundleFile{
			Path:    strings.TrimPrefix(f.Path, root+"/"),
			Content: f.Content,
		}
	}
	return stripped
}

// extractTitle はHTMLドキュメントから<title>要素のテキストを抽出する。
func extractTitle(data []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", err
	}

	var title string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if title != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "title" {
			var sb strings.Builder
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.TextNode {
					sb.WriteString(c.Data)
				}
			}
			title = strings.TrimSpace(sb.String())
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return title, nil
}

// NormalizeTitle はタイトルを重複判定用に正規化する。
// 小文字化して空白を単一スペースに畳み込む。
func NormalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}
