package game

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"
)

const (
	testMaxFiles    = 100
	testMaxFileSize = 1 << 20
)

// buildZip はテスト用のZIPバイト列を生成する。
func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("ZIPエントリの作成に失敗: %v", err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatalf("ZIPエントリの書き込みに失敗: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("ZIPのクローズに失敗: %v", err)
	}
	return buf.Bytes()
}

func TestParseBundle_ValidBundle(t *testing.T) {
	data := buildZip(t, map[string]string{
		"index.html": "<html><head><title>Neon Racer</title></head><body></body></html>",
		"main.js":    "console.log('hi')",
		"style.css":  "body{}",
	})

	bundle, err := ParseBundle(data, testMaxFiles, testMaxFileSize)
	if err != nil {
		t.Fatalf("ParseBundle がエラーを返した: %v", err)
	}
	if len(bundle.Files) != 3 {
		t.Errorf("ファイル数 = %d, want 3", len(bundle.Files))
	}
	if bundle.Title != "Neon Racer" {
		t.Errorf("タイトル = %q, want Neon Racer", bundle.Title)
	}
}

func TestParseBundle_MissingIndexHTML(t *testing.T) {
	data := buildZip(t, map[string]string{
		"main.js": "console.log('hi')",
	})

	_, err := ParseBundle(data, testMaxFiles, testMaxFileSize)
	if err == nil {
		t.Fatal("index.htmlのないバンドルは拒否されるべき")
	}
	if !strings.Contains(err.Error(), "index.html") {
		t.Errorf("エラーメッセージにindex.htmlが含まれるべき: %v", err)
	}
}

func TestParseBundle_StripsSingleTopLevelFolder(t *testing.T) {
	// フォルダごと圧縮されたバンドルはフォルダを剥がして受け入れる
	data := buildZip(t, map[string]string{
		"my-game/index.html":       "<html><head><title>Wrapped</title></head></html>",
		"my-game/assets/sprite.js": "export {}",
	})

	bundle, err := ParseBundle(data, testMaxFiles, testMaxFileSize)
	if err != nil {
		t.Fatalf("ParseBundle がエラーを返した: %v", err)
	}

	paths := make(map[string]bool)
	for _, f := range bundle.Files {
		paths[f.Path] = true
	}
	if !paths["index.html"] {
		t.Errorf("トップレベルフォルダが剥がされるべき: %v", paths)
	}
	if !paths["assets/sprite.js"] {
		t.Errorf("配下の相対構造は保たれるべき: %v", paths)
	}
}

func TestParseBundle_RejectsPathTraversal(t *testing.T) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, _ := w.Create("../evil.sh")
	f.Write([]byte("rm -rf /"))
	f2, _ := w.Create("index.html")
	f2.Write([]byte("<html></html>"))
	w.Close()

	_, err := ParseBundle(buf.Bytes(), testMaxFiles, testMaxFileSize)
	if err == nil {
		t.Fatal("パストラバーサルを含むバンドルは拒否されるべき")
	}
}

func TestParseBundle_RejectsTooManyFiles(t *testing.T) {
	files := map[string]string{"index.html": "<html></html>"}
	for i := 0; i < 5; i++ {
		files["f"+string(rune('a'+i))+".js"] = "x"
	}
	data := buildZip(t, files)

	_, err := ParseBundle(data, 3, testMaxFileSize)
	if err == nil {
		t.Fatal("ファイル数超過のバンドルは拒否されるべき")
	}
}

func TestParseBundle_RejectsOversizedFile(t *testing.T) {
	data := buildZip(t, map[string]string{
		"index.html": "<html></html>",
		"big.bin":    strings.Repeat("x", 2048),
	})

	_, err := ParseBundle(data, testMaxFiles, 1024)
	if err == nil {
		t.Fatal("サイズ超過ファイルを含むバンドルは拒否されるべき")
	}
}

func TestParseBundle_NotAZip(t *testing.T) {
	_, err := ParseBundle([]byte("this is not a zip"), testMaxFiles, testMaxFileSize)
	if err == nil {
		t.Fatal("ZIPでないデータは拒否されるべき")
	}
}

func TestParseBundle_IgnoresMacMetadata(t *testing.T) {
	data := buildZip(t, map[string]string{
		"index.html":             "<html></html>",
		"__MACOSX/._index.html":  "junk",
		".DS_Store":              "junk",
		"assets/.DS_Store":       "junk",
		"assets/player.js":       "export {}",
	})

	bundle, err := ParseBundle(data, testMaxFiles, testMaxFileSize)
	if err != nil {
		t.Fatalf("ParseBundle がエラーを返した: %v", err)
	}
	for _, f := range bundle.Files {
		if strings.Contains(f.Path, "DS_Store") || strings.HasPrefix(f.Path, "__MACOSX") {
			t.Errorf("メタデータファイルは除外されるべき: %s", f.Path)
		}
	}
	if len(bundle.Files) != 2 {
		t.Errorf("ファイル数 = %d, want 2", len(bundle.Files))
	}
}

func TestParseBundle_NoTitleElement(t *testing.T) {
	data := buildZip(t, map[string]string{
		"index.html": "<html><body>no title</body></html>",
	})

	bundle, err := ParseBundle(data, testMaxFiles, testMaxFileSize)
	if err != nil {
		t.Fatalf("ParseBundle がエラーを返した: %v", err)
	}
	if bundle.Title != "" {
		t.Errorf("タイトル = %q, want 空文字列", bundle.Title)
	}
}

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Neon Racer", "neon racer"},
		{"  Neon   Racer  ", "neon racer"},
		{"NEON RACER", "neon racer"},
		{"ネオンレーサー", "ネオンレーサー"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeTitle(tt.in); got != tt.want {
			t.Errorf("NormalizeTitle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
