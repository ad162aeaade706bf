package feed

import "math/rand"

// 探索混入の周期。0始まりで4, 9, 14, ...の位置が混入対象になる。
const injectionInterval = 5

// inject はスコア降順の列に探索混入を適用する。
// 列全体のシャッフル済みコピーを1回だけ作り、5の倍数-1の位置ごとに
// シャッフル側の候補で置き換える。候補が既に出力済みの場合は元の
// スコア順の未使用アイテムを据える。位置ごとの再抽選はしない。
//
// 出力は常に入力の並べ替えになる。長さ・ID集合は変わらず、重複も
// 欠落も生じない。シャッフルは再計算のたびに引き直されるため、
// 入力が同じでも出力順は再現されない。テストでシードを固定する
// 場合はrngに種付きの乱数源を渡す。
func inject(ranked []RankedGame, rng *rand.Rand) []RankedGame {
	if len(ranked) == 0 {
		return ranked
	}

	shuffled := make([]RankedGame, len(ranked))
	copy(shuffled, ranked)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	out := make([]RankedGame, 0, len(ranked))
	used := make(map[string]bool, len(ranked))
	next := 0 // スコア順列の中で未使用の先頭位置

	for len(out) < len(ranked) {
		pos := len(out)
		if pos%injectionInterval == injectionInterval-1 {
			candidate := shuffled[pos]
			if !used[candidate.ID] {
				out = append(out, candidate)
				used[candidate.ID] = true
				continue
			}
		}

		for used[ranked[next].ID] {
			next++
		}
		out = append(out, ranked[next])
		used[ranked[next].ID] = true
	}

	return out
}
