package security

import (
	"strings"
	"testing"
)

// assertContains はgotにwantの各部分文字列が含まれることを検証する。
func assertContains(t *testing.T, got string, want []string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(got, w) {
			t.Errorf("result %q expected to contain %q", got, w)
		}
	}
}

// assertAbsent はgotにabsentの各部分文字列が含まれないことを検証する。
func assertAbsent(t *testing.T, got string, absent []string) {
	t.Helper()
	for _, a := range absent {
		if strings.Contains(got, a) {
			t.Errorf("result %q should NOT contain %q", got, a)
		}
	}
}

// TestSanitize_AllowedTags はゲーム説明文・コメントで許可しているタグが通過することを検証する。
func TestSanitize_AllowedTags(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name         string
		input        string
		wantContains []string
	}{
		{
			name:         "pタグ",
			input:        "<p>矢印キーで移動、スペースでジャンプ。</p>",
			wantContains: []string{"<p>矢印キーで移動、スペースでジャンプ。</p>"},
		},
		{
			name:         "brタグ",
			input:        "操作方法<br>矢印キー",
			wantContains: []string{"<br>", "操作方法", "矢印キー"},
		},
		{
			name:         "brタグ（自己閉じ）",
			input:        "操作方法<br/>矢印キー",
			wantContains: []string{"操作方法", "矢印キー"},
		},
		{
			name:         "aタグ",
			input:        `<a href="https://example.com/manual">遊び方</a>`,
			wantContains: []string{"<a", "href", "https://example.com/manual", "遊び方", "</a>"},
		},
		{
			name:         "ul/liタグ",
			input:        "<ul><li>ステージ1</li><li>ステージ2</li></ul>",
			wantContains: []string{"<ul>", "<li>", "ステージ1", "ステージ2", "</li>", "</ul>"},
		},
		{
			name:         "ol/liタグ",
			input:        "<ol><li>初級</li><li>上級</li></ol>",
			wantContains: []string{"<ol>", "<li>", "初級", "上級", "</li>", "</ol>"},
		},
		{
			name:         "blockquoteタグ",
			input:        "<blockquote>作者コメント</blockquote>",
			wantContains: []string{"<blockquote>作者コメント</blockquote>"},
		},
		{
			name:         "pre/codeタグ",
			input:        "<pre><code>cheat_mode=off</code></pre>",
			wantContains: []string{"<pre>", "<code>", "cheat_mode=off", "</code>", "</pre>"},
		},
		{
			name:         "strongタグ",
			input:        "<strong>最高スコア</strong>",
			wantContains: []string{"<strong>最高スコア</strong>"},
		},
		{
			name:         "emタグ",
			input:        "<em>期間限定</em>",
			wantContains: []string{"<em>期間限定</em>"},
		},
		{
			name:         "imgタグ（https src）",
			input:        `<img src="https://example.com/screenshot.png" alt="スクリーンショット">`,
			wantContains: []string{"<img", "src", "https://example.com/screenshot.png"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertContains(t, sanitizer.Sanitize(tt.input), tt.wantContains)
		})
	}
}

// TestSanitize_ForbiddenTags は危険なタグや許可外タグが除去されることを検証する。
// ゲーム本体はアセットホスト側のiframeで動かすため、説明文やコメント内の
// iframe/script/embed類はすべて落とす。
func TestSanitize_ForbiddenTags(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name         string
		input        string
		wantAbsent   []string
		wantContains []string
	}{
		{
			name:         "scriptタグ",
			input:        `<p>面白い</p><script>alert('xss')</script><p>おすすめ</p>`,
			wantAbsent:   []string{"<script", "</script>", "alert"},
			wantContains: []string{"面白い", "おすすめ"},
		},
		{
			name:         "iframeタグ",
			input:        `<p>遊んでみて</p><iframe src="https://evil.com"></iframe>`,
			wantAbsent:   []string{"<iframe", "</iframe>", "evil.com"},
			wantContains: []string{"遊んでみて"},
		},
		{
			name:         "styleタグ",
			input:        `<p>攻略メモ</p><style>body{display:none}</style>`,
			wantAbsent:   []string{"<style", "</style>", "display:none"},
			wantContains: []string{"攻略メモ"},
		},
		{
			name:         "divタグ",
			input:        `<div><p>説明文</p></div>`,
			wantAbsent:   []string{"<div", "</div>"},
			wantContains: []string{"<p>説明文</p>"},
		},
		{
			name:         "spanタグ",
			input:        `<span>コンボ数</span>`,
			wantAbsent:   []string{"<span", "</span>"},
			wantContains: []string{"コンボ数"},
		},
		{
			name:       "formタグ",
			input:      `<form action="https://evil.com"><input type="text"></form>`,
			wantAbsent: []string{"<form", "</form>", "<input"},
		},
		{
			name:       "objectタグ",
			input:      `<object data="https://evil.com/flash.swf"></object>`,
			wantAbsent: []string{"<object", "</object>", "flash.swf"},
		},
		{
			name:       "embedタグ",
			input:      `<embed src="https://evil.com/plugin">`,
			wantAbsent: []string{"<embed", "plugin"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Sanitize(tt.input)
			assertAbsent(t, got, tt.wantAbsent)
			assertContains(t, got, tt.wantContains)
		})
	}
}

// TestSanitize_OnEventAttributes はon*イベントハンドラ属性が除去されることを検証する。
func TestSanitize_OnEventAttributes(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name       string
		input      string
		wantAbsent []string
	}{
		{
			name:       "onclick",
			input:      `<p onclick="alert('xss')">クリア条件</p>`,
			wantAbsent: []string{"onclick", "alert"},
		},
		{
			name:       "onload",
			input:      `<img src="https://example.com/thumb.png" onload="alert('xss')">`,
			wantAbsent: []string{"onload", "alert"},
		},
		{
			name:       "onerror",
			input:      `<img src="https://example.com/thumb.png" onerror="alert('xss')">`,
			wantAbsent: []string{"onerror", "alert"},
		},
		{
			name:       "onmouseover",
			input:      `<a href="https://example.com" onmouseover="alert('xss')">ランキング</a>`,
			wantAbsent: []string{"onmouseover", "alert"},
		},
		{
			name:       "onfocus",
			input:      `<a href="https://example.com" onfocus="alert('xss')">ランキング</a>`,
			wantAbsent: []string{"onfocus", "alert"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertAbsent(t, sanitizer.Sanitize(tt.input), tt.wantAbsent)
		})
	}
}

// TestSanitize_ImgHTTPSOnly はimgのsrcがhttpsスキームのみ許可されることを検証する。
func TestSanitize_ImgHTTPSOnly(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name         string
		input        string
		wantContains []string
		wantAbsent   []string
	}{
		{
			name:         "httpsは許可",
			input:        `<img src="https://example.com/shot.png" alt="プレイ画面">`,
			wantContains: []string{"<img", "https://example.com/shot.png"},
		},
		{
			name:       "httpは拒否",
			input:      `<img src="http://example.com/shot.png" alt="プレイ画面">`,
			wantAbsent: []string{"http://example.com/shot.png"},
		},
		{
			name:       "javascriptスキームは拒否",
			input:      `<img src="javascript:alert('xss')" alt="XSS">`,
			wantAbsent: []string{"javascript:", "alert"},
		},
		{
			name:       "data URIは拒否",
			input:      `<img src="data:image/png;base64,abc" alt="データ">`,
			wantAbsent: []string{"data:image"},
		},
		{
			name:       "ftpスキームは拒否",
			input:      `<img src="ftp://example.com/shot.png" alt="FTP">`,
			wantAbsent: []string{"ftp://"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Sanitize(tt.input)
			assertContains(t, got, tt.wantContains)
			assertAbsent(t, got, tt.wantAbsent)
		})
	}
}

// TestSanitize_AnchorAttributes は外部リンクにtarget="_blank"と
// rel="noopener noreferrer"が強制付与されることを検証する。
func TestSanitize_AnchorAttributes(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name         string
		input        string
		wantContains []string
	}{
		{
			name:         "target=_blankが付与される",
			input:        `<a href="https://example.com/wiki">攻略wiki</a>`,
			wantContains: []string{`target="_blank"`, "https://example.com/wiki", "攻略wiki"},
		},
		{
			name:         "rel=noopener noreferrerが付与される",
			input:        `<a href="https://example.com/wiki">攻略wiki</a>`,
			wantContains: []string{"noopener", "noreferrer"},
		},
		{
			name:         "既存のtargetは上書きされる",
			input:        `<a href="https://example.com" target="_self">リンク</a>`,
			wantContains: []string{`target="_blank"`},
		},
		{
			name:         "既存のrelは上書きされる",
			input:        `<a href="https://example.com" rel="nofollow">リンク</a>`,
			wantContains: []string{"noopener", "noreferrer"},
		},
		{
			name:         "hrefのないaタグも安全に処理される",
			input:        `<a>テキストリンク</a>`,
			wantContains: []string{"テキストリンク"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertContains(t, sanitizer.Sanitize(tt.input), tt.wantContains)
		})
	}
}

// TestSanitize_AnchorNoTargetSelf はtarget="_self"が残らないことを検証する。
func TestSanitize_AnchorNoTargetSelf(t *testing.T) {
	sanitizer := NewContentSanitizer()

	got := sanitizer.Sanitize(`<a href="https://example.com" target="_self">リンク</a>`)
	assertAbsent(t, got, []string{`target="_self"`})
}

// TestSanitize_EmptyInput は空文字列を安全に処理できることを検証する。
func TestSanitize_EmptyInput(t *testing.T) {
	sanitizer := NewContentSanitizer()

	if got := sanitizer.Sanitize(""); got != "" {
		t.Errorf("Sanitize(\"\") = %q, expected empty string", got)
	}
}

// TestSanitize_PlainText はプレーンテキストのコメントがそのまま通過することを検証する。
func TestSanitize_PlainText(t *testing.T) {
	sanitizer := NewContentSanitizer()

	input := "ステージ3が難しすぎる。誰かクリアした人いますか。"
	if got := sanitizer.Sanitize(input); got != input {
		t.Errorf("Sanitize(%q) = %q, expected unchanged", input, got)
	}
}

// TestSanitize_Idempotent は二重サニタイズで結果が変わらないことを検証する。
// 保存時と表示時の両方でサニタイズしても安全であることの裏付け。
func TestSanitize_Idempotent(t *testing.T) {
	sanitizer := NewContentSanitizer()

	input := `<p>神ゲー<strong>確定</strong></p><a href="https://example.com">作者ページ</a><img src="https://example.com/shot.png" alt="プレイ画面">`

	result1 := sanitizer.Sanitize(input)
	result2 := sanitizer.Sanitize(input)
	result3 := sanitizer.Sanitize(result1)

	if result1 != result2 {
		t.Errorf("冪等性違反: 1回目=%q, 2回目=%q", result1, result2)
	}
	if result1 != result3 {
		t.Errorf("二重サニタイズで結果が変わった: 1回目=%q, 二重=%q", result1, result3)
	}
}

// TestSanitize_GameDescription はゲーム説明文を想定した複合HTMLのサニタイズを検証する。
func TestSanitize_GameDescription(t *testing.T) {
	sanitizer := NewContentSanitizer()

	input := `<div class="description">
<h1>ネオンレーサー</h1>
<p>これは<strong>面白い</strong>ゲームです。</p>
<script>document.cookie</script>
<ul>
<li>矢印キーで操作</li>
<li>全12ステージ</li>
</ul>
<img src="https://example.com/screenshot.jpg" alt="プレイ画面" onerror="alert('xss')">
<a href="https://example.com" onclick="steal()">公式サイト</a>
<iframe src="https://evil.com"></iframe>
<style>.hidden{display:none}</style>
<blockquote>作者コメント</blockquote>
<pre><code>hiscore=99999</code></pre>
</div>`

	got := sanitizer.Sanitize(input)

	assertContains(t, got, []string{
		"<p>", "</p>",
		"<strong>", "</strong>",
		"<ul>", "</ul>",
		"<li>", "</li>",
		"<blockquote>", "</blockquote>",
		"<pre>", "</pre>",
		"<code>", "</code>",
		"https://example.com/screenshot.jpg",
		"公式サイト",
		"作者コメント",
		"hiscore=99999",
	})

	assertAbsent(t, got, []string{
		"<script", "</script>",
		"<iframe", "</iframe>",
		"<style", "</style>",
		"<div", "</div>",
		"<h1", "</h1>",
		"onclick",
		"onerror",
		"document.cookie",
		"steal()",
		"display:none",
		"evil.com",
	})

	assertContains(t, got, []string{`target="_blank"`, "noopener", "noreferrer"})
}

// TestSanitize_XSSPayloads は典型的なXSSペイロードが無害化されることを検証する。
func TestSanitize_XSSPayloads(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name       string
		input      string
		wantAbsent []string
	}{
		{
			name:       "SVG onload",
			input:      `<svg onload="alert('xss')">`,
			wantAbsent: []string{"<svg", "onload", "alert"},
		},
		{
			name:       "img onerror",
			input:      `<img src="x" onerror="alert('xss')">`,
			wantAbsent: []string{"onerror", "alert"},
		},
		{
			name:       "javascript URI",
			input:      `<a href="javascript:alert('xss')">クリック</a>`,
			wantAbsent: []string{"javascript:"},
		},
		{
			name:       "data URIスクリプト",
			input:      `<a href="data:text/html,<script>alert('xss')</script>">データ</a>`,
			wantAbsent: []string{"data:text/html"},
		},
		{
			name:       "style属性",
			input:      `<p style="background:url(javascript:alert('xss'))">テスト</p>`,
			wantAbsent: []string{"style=", "background:", "javascript:"},
		},
		{
			name:       "イベントハンドラの大文字混在",
			input:      `<p OnClick="alert('xss')">テスト</p>`,
			wantAbsent: []string{"OnClick", "onclick", "alert"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := strings.ToLower(sanitizer.Sanitize(tt.input))
			for _, absent := range tt.wantAbsent {
				if strings.Contains(got, strings.ToLower(absent)) {
					t.Errorf("Sanitize(%q) = %q, should NOT contain %q (case-insensitive)", tt.input, got, absent)
				}
			}
		})
	}
}

// TestSanitize_ImgAltAttribute はimgのalt属性が保持されることを検証する。
func TestSanitize_ImgAltAttribute(t *testing.T) {
	sanitizer := NewContentSanitizer()

	got := sanitizer.Sanitize(`<img src="https://example.com/shot.jpg" alt="ボス戦の画面">`)
	assertContains(t, got, []string{`alt="ボス戦の画面"`})
}

func TestContentSanitizerInterface(t *testing.T) {
	var _ ContentSanitizerService = NewContentSanitizer()
}
