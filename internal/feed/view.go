package feed

import (
	"sync"
	"time"

	"github.com/brainsta/reels/internal/model"
)

// View はユーザー1人分のフィードの最新値キャッシュ。
// 入力チャネル（ゲーム一覧、台帳、コメント件数、フィルタ）ごとに
// 最後に確認した値を1つずつ保持し、いずれかの更新で同期的に
// フィード全体を再計算する。チャネル間の到着順序に保証はなく、
// その時点で保持している最新値の組み合わせから計算する。
// いいねの集計が台帳より先に見える等の短い不整合は自己修復する
// 前提で許容される。
type View struct {
	mu        sync.Mutex
	assembler *Assembler
	session   *Session

	games             []model.GameWithCategory
	ledger            *model.Ledger
	userCommentCounts map[string]int
	filters           Filters

	current []RankedGame

	// onRebuild は再計算のたびに所要時間とともに呼ばれる。nil可。
	onRebuild func(time.Duration)
}

// NewView はViewを生成する。
func NewView(assembler *Assembler, session *Session, onRebuild func(time.Duration)) *View {
	return &View{
		assembler: assembler,
		session:   session,
		onRebuild: onRebuild,
	}
}

// Session はこのビューに紐づくセッションカウンタを返す。
func (v *View) Session() *Session {
	return v.session
}

// ApplyGames はゲーム一覧の確定スナップショットを反映して再計算する。
// 楽観更新の上書き分も含めてスナップショットで完全に置き換える。
func (v *View) ApplyGames(games []model.GameWithCategory) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.games = games
	v.rebuildLocked()
}

// ApplyLedger は台帳の確定スナップショットを反映して再計算する。
func (v *View) ApplyLedger(ledger *model.Ledger) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.ledger = ledger
	v.rebuildLocked()
}

// ApplyCommentCounts はユーザーのコメント件数を反映して再計算する。
func (v *View) ApplyCommentCounts(counts map[string]int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.userCommentCounts = counts
	v.rebuildLocked()
}

// SetFilters は絞り込み条件を変更して再計算する。
func (v *View) SetFilters(filters Filters) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.filters = filters
	v.rebuildLocked()
}

// Rebuild はセッションカウンタの変化等を反映するため明示的に再計算する。
func (v *View) Rebuild() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rebuildLocked()
}

// ToggleFavorite はお気に入り切替の楽観更新を適用する。
// 次の全体再計算を待たずに該当ゲームのキャッシュ済みスコアを
// ちょうど±10だけ同期的に調整し、ランキングのちらつきを防ぐ。
// 並べ替えは行わない。次に届く確定スナップショットがこの上書きを
// まるごと置き換えるため、ロールバック処理は不要。
func (v *View) ToggleFavorite(gameID string, favorite bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.ledger == nil {
		v.ledger = model.NewLedger("")
	}
	if favorite {
		if !v.ledger.IsFavorite(gameID) {
			v.ledger.Favorites = append(v.ledger.Favorites, gameID)
		}
	} else {
		kept := v.ledger.Favorites[:0]
		for _, id := range v.ledger.Favorites {
			if id != gameID {
				kept = append(kept, id)
			}
		}
		v.ledger.Favorites = kept
	}

	for i := range v.current {
		if v.current[i].ID != gameID {
			continue
		}
		if favorite && !v.current[i].IsFavorite {
			v.current[i].Score += favoriteBonus
			v.current[i].IsFavorite = true
		} else if !favorite && v.current[i].IsFavorite {
			v.current[i].Score -= favoriteBonus
			v.current[i].IsFavorite = false
		}
		break
	}
}

// Current は現在のフィードのコピーを返す。
func (v *View) Current() []RankedGame {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]RankedGame, len(v.current))
	copy(out, v.current)
	return out
}

func (v *View) rebuildLocked() {
	start := time.Now()
	v.current = v.assembler.Assemble(v.games, v.ledger, v.userCommentCounts, v.session, v.filters)
	if v.onRebuild != nil {
		v.onRebuild(time.Since(start))
	}
}
