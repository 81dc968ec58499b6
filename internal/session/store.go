package session

import (
	"context"
	"sync"
	"time"

	"github.com/hitoshi/clanhub/internal/model"
)

// subscriberBuffer は購読チャネルのバッファ数。
// 溢れた場合は最も古い未受信の状態を捨てる。
const subscriberBuffer = 16

// Store は1つのブラウザセッションに対応する監視可能なセッション状態。
// 書き込みはIdPのみが行う（Begin/Settle/Clear）。
type Store struct {
	mu     sync.Mutex
	state  State
	subs   map[int]chan State
	nextID int
}

// NewStore は初期状態を指定してStoreを生成する。
func NewStore(initial State) *Store {
	return &Store{
		state: initial,
		subs:  make(map[int]chan State),
	}
}

// Snapshot は現在の状態を返す。
func (s *Store) Snapshot(_ context.Context) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Begin は認証試行の開始を記録し、状態を未確定に戻す。
func (s *Store) Begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set(State{User: s.state.User, Loading: true})
}

// Settle は認証結果を確定させる。userがnilの場合は未ログインとして確定する。
func (s *Store) Settle(user *model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set(State{User: user})
}

// Clear は未ログインとして確定させる。
func (s *Store) Clear() {
	s.Settle(nil)
}

// Subscribe は状態の変化を受け取るチャネルを返す。
// 最初に現在の状態が1件届き、以降は発行順に届く。
// 返り値の関数で購読を解除するとチャネルはcloseされる。
func (s *Store) Subscribe() (<-chan State, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan State, subscriberBuffer)
	ch <- s.state

	id := s.nextID
	s.nextID++
	s.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

// set はロック保持中に呼び出す。
func (s *Store) set(next State) {
	s.state = next
	for _, ch := range s.subs {
		select {
		case ch <- next:
		default:
			// 受信が追いつかない購読者は最古の状態を捨てて最新を積む
			select {
			case <-ch:
			default:
			}
			ch <- next
		}
	}
}

// Hub はセッションIDごとのStoreを参照カウント付きで管理する。
// Storeは監視者がいる間だけ存在し、IdPからの通知はそこへ届く。
type Hub struct {
	mu     sync.Mutex
	stores map[string]*hubEntry
}

type hubEntry struct {
	store  *Store
	refs   int
	expiry *time.Timer
}

// NewHub はHubを生成する。
func NewHub() *Hub {
	return &Hub{stores: make(map[string]*hubEntry)}
}

// Acquire はsessionIDのStoreを取得する。存在しない場合はinitialで生成する。
// 返り値の関数で参照を解放し、最後の参照が解放されるとStoreはHubから外れる。
func (h *Hub) Acquire(sessionID string, initial State) (*Store, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	entry, ok := h.stores[sessionID]
	if !ok {
		entry = &hubEntry{store: NewStore(initial)}
		h.stores[sessionID] = entry
	}
	entry.refs++

	var once sync.Once
	release := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			entry.refs--
			if entry.refs <= 0 && h.stores[sessionID] == entry {
				delete(h.stores, sessionID)
				if entry.expiry != nil {
					entry.expiry.Stop()
				}
			}
		})
	}
	return entry.store, release
}

// ExpireAt は監視中のStoreを期限atで未ログインとして確定させるタイマーを設定する。
// 既に設定済みのタイマーは置き換える。期限を過ぎていれば直ちに確定させる。
// タイマーは最後の参照が解放されたときに止まる。
func (h *Hub) ExpireAt(sessionID string, at time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()

	entry, ok := h.stores[sessionID]
	if !ok {
		return
	}
	if entry.expiry != nil {
		entry.expiry.Stop()
	}
	store := entry.store
	entry.expiry = time.AfterFunc(time.Until(at), store.Clear)
}

// Settle は監視中のStoreがあれば認証結果を確定させる。
func (h *Hub) Settle(sessionID string, user *model.User) {
	if store := h.lookup(sessionID); store != nil {
		store.Settle(user)
	}
}

// Clear は監視中のStoreがあれば未ログインとして確定させる。
func (h *Hub) Clear(sessionID string) {
	if store := h.lookup(sessionID); store != nil {
		store.Clear()
	}
}

// SettleUser は指定ユーザーでログイン中の全Storeを新しいユーザー情報で確定させ直す。
func (h *Hub) SettleUser(user *model.User) {
	if user == nil {
		return
	}
	for _, store := range h.storesOf(user.ID) {
		store.Settle(user)
	}
}

// ClearUser は指定ユーザーでログイン中の全Storeを未ログインとして確定させる。
func (h *Hub) ClearUser(userID string) {
	for _, store := range h.storesOf(userID) {
		store.Clear()
	}
}

func (h *Hub) lookup(sessionID string) *Store {
	h.mu.Lock()
	defer h.mu.Unlock()
	if entry, ok := h.stores[sessionID]; ok {
		return entry.store
	}
	return nil
}

func (h *Hub) storesOf(userID string) []*Store {
	h.mu.Lock()
	defer h.mu.Unlock()

	var stores []*Store
	for _, entry := range h.stores {
		st := entry.store.Snapshot(context.Background())
		if id, ok := st.UserID(); ok && id == userID {
			stores = append(stores, entry.store)
		}
	}
	return stores
}
