package feed

import "sync"

// 没入ビューで開いた場合の調整値。通常表示より強い消費済みシグナル
// として扱い、ランキングを早く押し下げる。
const immersiveAdjust = -2

// Session はログインセッション1つ分の表示履歴カウンタを保持する。
// プロセス内のみで永続化されず、セッション終了とともに破棄される。
// 没入ビュー調整により値は負になり得る。負の値は有効で、その分
// スコアを押し上げる。
type Session struct {
	mu   sync.Mutex
	seen map[string]int
}

// NewSession は空のSessionを生成する。
func NewSession() *Session {
	return &Session{seen: map[string]int{}}
}

// MarkSeen はゲームがフィードに表示されたことを記録する。
func (s *Session) MarkSeen(gameID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[gameID]++
}

// MarkImmersive はゲームが没入ビューで開かれたことを記録する。
func (s *Session) MarkImmersive(gameID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[gameID] += immersiveAdjust
}

// SeenCount はゲームのセッション内表示回数を返す。未記録は0。
func (s *Session) SeenCount(gameID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen[gameID]
}

// Snapshot は全ゲームの表示回数のコピーを返す。
func (s *Session) Snapshot() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.seen))
	for id, n := range s.seen {
		out[id] = n
	}
	return out
}
