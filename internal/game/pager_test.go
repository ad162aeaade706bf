package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/brainsta/reels/internal/model"
)

// makeGames は作成日時降順のテスト用ゲーム一覧を生成する。
func makeGames(n int) []model.GameWithCategory {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	games := make([]model.GameWithCategory, n)
	for i := range games {
		created := base.Add(-time.Duration(i) * time.Hour)
		games[i] = model.GameWithCategory{
			Game: model.Game{
				ID:        fmt.Sprintf("game-%03d", i),
				Title:     fmt.Sprintf("Game %d", i),
				CreatedAt: &created,
			},
		}
	}
	return games
}

// sliceFetcher はメモリ上の一覧をキーセットページングで返すPageFetcher。
func sliceFetcher(games []model.GameWithCategory) PageFetcher {
	return func(_ context.Context, cursor model.GameCursor, limit int) ([]model.GameWithCategory, error) {
		start := 0
		if !cursor.IsZero() {
			for i, g := range games {
				if g.ID == cursor.ID {
					start = i + 1
					break
				}
			}
		}
		end := start + limit
		if end > len(games) {
			end = len(games)
		}
		return games[start:end], nil
	}
}

func TestPager_PartialLastPage(t *testing.T) {
	// 25件をページサイズ10で取得: 10, 10, 5 と返り、
	// 続きあり判定は true, true, false になる
	p := NewPager(sliceFetcher(makeGames(25)), 10)
	ctx := context.Background()

	page1, err := p.NextPage(ctx)
	if err != nil {
		t.Fatalf("1ページ目の取得がエラーを返した: %v", err)
	}
	if len(page1) != 10 {
		t.Errorf("1ページ目の件数 = %d, want 10", len(page1))
	}
	if !p.HasMore() {
		t.Error("1ページ目の後は続きありのはず")
	}

	page2, err := p.NextPage(ctx)
	if err != nil {
		t.Fatalf("2ページ目の取得がエラーを返した: %v", err)
	}
	if len(page2) != 10 {
		t.Errorf("2ページ目の件数 = %d, want 10", len(page2))
	}
	if page2[0].ID != "game-010" {
		t.Errorf("2ページ目の先頭 = %s, want game-010", page2[0].ID)
	}
	if !p.HasMore() {
		t.Error("2ページ目の後は続きありのはず")
	}

	page3, err := p.NextPage(ctx)
	if err != nil {
		t.Fatalf("3ページ目の取得がエラーを返した: %v", err)
	}
	if len(page3) != 5 {
		t.Errorf("3ページ目の件数 = %d, want 5", len(page3))
	}
	if p.HasMore() {
		t.Error("端数ページの後は続きなしのはず")
	}
}

func TestPager_ExactMultipleNeedsEmptyPage(t *testing.T) {
	// ちょうど10件をページサイズ10で取得: 満杯ページの後は続きありと
	// 判定され、次の空ページで初めて続きなしになる
	p := NewPager(sliceFetcher(makeGames(10)), 10)
	ctx := context.Background()

	page1, err := p.NextPage(ctx)
	if err != nil {
		t.Fatalf("1ページ目の取得がエラーを返した: %v", err)
	}
	if len(page1) != 10 {
		t.Errorf("1ページ目の件数 = %d, want 10", len(page1))
	}
	if !p.HasMore() {
		t.Error("満杯ページの後は続きありと判定されるべき")
	}

	page2, err := p.NextPage(ctx)
	if err != nil {
		t.Fatalf("2ページ目の取得がエラーを返した: %v", err)
	}
	if len(page2) != 0 {
		t.Errorf("2ページ目の件数 = %d, want 0", len(page2))
	}
	if p.HasMore() {
		t.Error("空ページの後は続きなしになるべき")
	}
}

func TestPager_ExhaustedIsNoOp(t *testing.T) {
	calls := 0
	fetch := func(_ context.Context, cursor model.GameCursor, limit int) ([]model.GameWithCategory, error) {
		calls++
		return makeGames(3), nil
	}
	p := NewPager(fetch, 10)
	ctx := context.Background()

	if _, err := p.NextPage(ctx); err != nil {
		t.Fatalf("1ページ目の取得がエラーを返した: %v", err)
	}
	if p.HasMore() {
		t.Fatal("端数ページの後は続きなしのはず")
	}

	// 取得し尽くした後の呼び出しは取得関数を呼ばない
	page, err := p.NextPage(ctx)
	if err != nil {
		t.Fatalf("取得済み後の呼び出しがエラーを返した: %v", err)
	}
	if page != nil {
		t.Errorf("取得済み後の呼び出しは空を返すべき: got %d件", len(page))
	}
	if calls != 1 {
		t.Errorf("取得関数の呼び出し回数 = %d, want 1", calls)
	}
}

func TestPager_SingleInFlight(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	calls := 0
	fetch := func(_ context.Context, cursor model.GameCursor, limit int) ([]model.GameWithCategory, error) {
		calls++
		close(started)
		<-release
		return makeGames(5), nil
	}
	p := NewPager(fetch, 10)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.NextPage(ctx)
	}()

	<-started
	// 取得中の2回目の呼び出しは何もせず空を返す
	page, err := p.NextPage(ctx)
	if err != nil {
		t.Fatalf("取得中の呼び出しがエラーを返した: %v", err)
	}
	if page != nil {
		t.Errorf("取得中の呼び出しは空を返すべき: got %d件", len(page))
	}

	close(release)
	wg.Wait()

	if calls != 1 {
		t.Errorf("取得関数の呼び出し回数 = %d, want 1", calls)
	}
}

func TestPager_FetchErrorKeepsState(t *testing.T) {
	fail := true
	fetch := func(_ context.Context, cursor model.GameCursor, limit int) ([]model.GameWithCategory, error) {
		if fail {
			return nil, errors.New("connection reset")
		}
		return makeGames(3), nil
	}
	p := NewPager(fetch, 10)
	ctx := context.Background()

	if _, err := p.NextPage(ctx); err == nil {
		t.Fatal("取得失敗時にエラーが返されるべき")
	}
	if !p.HasMore() {
		t.Error("取得失敗は続きあり判定を変えないべき")
	}

	// 失敗後もリトライできる
	fail = false
	page, err := p.NextPage(ctx)
	if err != nil {
		t.Fatalf("リトライがエラーを返した: %v", err)
	}
	if len(page) != 3 {
		t.Errorf("リトライ後の件数 = %d, want 3", len(page))
	}
}

func TestPager_Reset(t *testing.T) {
	p := NewPager(sliceFetcher(makeGames(5)), 10)
	ctx := context.Background()

	if _, err := p.NextPage(ctx); err != nil {
		t.Fatalf("NextPage がエラーを返した: %v", err)
	}
	if p.HasMore() {
		t.Fatal("全件取得後は続きなしのはず")
	}

	p.Reset()
	if !p.HasMore() {
		t.Error("リセット後は続きありに戻るべき")
	}
	page, err := p.NextPage(ctx)
	if err != nil {
		t.Fatalf("リセット後の取得がエラーを返した: %v", err)
	}
	if len(page) != 5 {
		t.Errorf("リセット後の件数 = %d, want 5", len(page))
	}
	if page[0].ID != "game-000" {
		t.Errorf("リセット後は先頭から取得すべき: got %s", page[0].ID)
	}
}
