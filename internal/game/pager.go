package game

import (
	"context"
	"sync"

	"github.com/brainsta/reels/internal/model"
)

// PageFetcher は1ページ分のゲームを取得する関数。
type PageFetcher func(ctx context.Context, cursor model.GameCursor, limit int) ([]model.GameWithCategory, error)

// Pager は一覧の順次ページングの状態を保持する。
// 同時に実行できる取得は1つだけで、取得中・取得し尽くした後の
// NextPage呼び出しは何もせずに空を返す。
type Pager struct {
	mu       sync.Mutex
	fetch    PageFetcher
	pageSize int
	cursor   model.GameCursor
	hasMore  bool
	inFlight bool
}

// NewPager はPagerの新しいインスタンスを生成する。
func NewPager(fetch PageFetcher, pageSize int) *Pager {
	return &Pager{
		fetch:    fetch,
		pageSize: pageSize,
		hasMore:  true,
	}
}

// NextPage は次の1ページを取得してカーソルを進める。
// 取得中または全件取得済みの場合は何もせずnilを返す。
// 返却件数がページサイズちょうどの場合のみ続きがあると判定する。
func (p *Pager) NextPage(ctx context.Context) ([]model.GameWithCategory, error) {
	p.mu.Lock()
	if p.inFlight || !p.hasMore {
		p.mu.Unlock()
		return nil, nil
	}
	p.inFlight = true
	cursor := p.cursor
	p.mu.Unlock()

	page, err := p.fetch(ctx, cursor, p.pageSize)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.inFlight = false
	if err != nil {
		return nil, err
	}

	p.hasMore = len(page) == p.pageSize
	if len(page) > 0 {
		last := page[len(page)-1]
		p.cursor = model.GameCursor{ID: last.ID}
		if last.CreatedAt != nil {
			p.cursor.CreatedAt = *last.CreatedAt
		}
	}
	return page, nil
}

// HasMore は未取得のページが残っているかを返す。
func (p *Pager) HasMore() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hasMore
}

// Reset はページング状態を先頭に戻す。取得中の場合は完了後の
// 書き戻しよりこちらが優先されるわけではないため、取得中の
// リセットは呼び出し側で避けること。
func (p *Pager) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cursor = model.GameCursor{}
	p.hasMore = true
}
