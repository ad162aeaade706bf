package feed

import (
	"math/rand"
	"sort"
	"time"

	"github.com/brainsta/reels/internal/model"
)

// RankedGame はスコア付きのフィード項目。
type RankedGame struct {
	model.GameWithCategory
	Score      float64
	IsFavorite bool
	IsLiked    bool
	PlayCount  int
}

// Filters はフィード組み立て時の絞り込み条件。
type Filters struct {
	// FavoritesOnly は台帳のお気に入り集合に含まれるゲームのみを残す。
	FavoritesOnly bool
	// AllowedIDs が非nilの場合、このID集合に含まれるゲームのみを残す。
	// 検索結果でフィードを駆動する場合に使う。
	AllowedIDs map[string]bool
}

// Assembler はフィルタ→スコア→安定ソート→探索混入の一連の組み立てを行う。
// 増分更新は持たず、入力が変わるたびに全件を再計算する。想定する
// ゲーム数は高々数百件で、これを超える規模ではこの方式が限界になる。
type Assembler struct {
	rng *rand.Rand
	now func() time.Time
}

// NewAssembler はAssemblerを生成する。rngがnilの場合は現在時刻で
// シードした乱数源を使う。テストで順序を再現したい場合は種付きの
// 乱数源を渡す。
func NewAssembler(rng *rand.Rand) *Assembler {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Assembler{
		rng: rng,
		now: time.Now,
	}
}

// Assemble はゲーム一覧からフィード順序を組み立てる。
// 公開状態による絞り込みはデータソース側のクエリ境界で行われている
// 前提で、ここでは受け取った一覧をそのまま扱う。
// 入力が空の場合は空のフィードを返す。これはエラーではなく
// 「コンテンツなし」を意味する。
func (a *Assembler) Assemble(
	games []model.GameWithCategory,
	ledger *model.Ledger,
	userCommentCounts map[string]int,
	session *Session,
	filters Filters,
) []RankedGame {
	if ledger == nil {
		ledger = model.NewLedger("")
	}

	seen := map[string]int{}
	if session != nil {
		seen = session.Snapshot()
	}
	now := a.now()

	ranked := make([]RankedGame, 0, len(games))
	for i := range games {
		game := games[i]

		if filters.FavoritesOnly && !ledger.IsFavorite(game.ID) {
			continue
		}
		if filters.AllowedIDs != nil && !filters.AllowedIDs[game.ID] {
			continue
		}

		ranked = append(ranked, RankedGame{
			GameWithCategory: game,
			Score:            Score(&game.Game, ledger, userCommentCounts, seen[game.ID], now),
			IsFavorite:       ledger.IsFavorite(game.ID),
			IsLiked:          ledger.IsLiked(game.ID),
			PlayCount:        ledger.PlayCount(game.ID),
		})
	}

	if len(ranked) == 0 {
		return ranked
	}

	// スコア降順。同点は元の相対順を維持する必要があるため安定ソート。
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	return inject(ranked, a.rng)
}
