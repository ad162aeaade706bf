// Package feed はおすすめフィードの組み立てを提供する。
// スコアリング、探索混入、フィルタリング、最新値キャッシュによる
// 変更時再計算を担う。
package feed

import (
	"time"

	"github.com/brainsta/reels/internal/model"
)

// スコア重み。設計定数であり実行時には変更しない。
const (
	playCountWeight     = 1.0
	likedBonus          = 5.0
	favoriteBonus       = 10.0
	commentedBonus      = 7.0
	globalLikeWeight    = 0.3
	globalCommentWeight = 0.5
	recencyWindowHours  = 10.0
	seenPenaltyWeight   = 5.0
)

// Score はゲーム1件のおすすめスコアを計算する純粋関数。
// 副作用・I/Oを持たず、同じ入力に対して常に同じ値を返す。
// フィード内の非決定性は探索混入のみが持ち、スコアラーは持たない。
//
// userCommentCountsはユーザーがコメントしたゲームごとの件数。
// sessionSeenはセッション内表示回数で、没入ビュー調整により負に
// なり得る。負の場合はスコアを下げるのではなく押し上げる。
func Score(
	game *model.Game,
	ledger *model.Ledger,
	userCommentCounts map[string]int,
	sessionSeen int,
	now time.Time,
) float64 {
	score := float64(ledger.PlayCount(game.ID)) * playCountWeight

	if ledger.IsLiked(game.ID) {
		score += likedBonus
	}
	if ledger.IsFavorite(game.ID) {
		score += favoriteBonus
	}
	if userCommentCounts[game.ID] > 0 {
		score += commentedBonus
	}

	score += float64(game.LikeCount) * globalLikeWeight
	score += float64(game.CommentCount) * globalCommentWeight
	score += recencyBoost(game.CreatedAt, now)
	score -= float64(sessionSeen) * seenPenaltyWeight

	return score
}

// recencyBoost は新規ゲームへの時間減衰ボーナスを返す。
// 作成から10時間かけて10から0へ線形に減衰し、以降は0。
// 作成日時が未設定のゲームは0。負にはならない。
func recencyBoost(createdAt *time.Time, now time.Time) float64 {
	if createdAt == nil {
		return 0
	}
	ageHours := now.Sub(*createdAt).Hours()
	boost := recencyWindowHours - ageHours
	if boost < 0 {
		return 0
	}
	return boost
}
