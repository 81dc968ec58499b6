// Package session はログイン状態（セッション）の読み取り口を提供する。
//
// セッション状態はIdP（authパッケージ）だけが書き換え、
// ゲートやクラン解決はSourceを通じて読み取るだけである。
package session

import (
	"context"
	"sync"

	"github.com/hitoshi/clanhub/internal/model"
)

// State は観測時点のセッション状態。
// Loadingがtrueの間はUserの値に意味はない。
type State struct {
	User    *model.User
	Loading bool
}

// Unresolved はまだ確定していないセッション状態。
var Unresolved = State{Loading: true}

// Anonymous は確定済みで未ログインのセッション状態。
var Anonymous = State{}

// Authenticated は確定済みのログインユーザーを表すStateを返す。
func Authenticated(user *model.User) State {
	return State{User: user}
}

// Resolved はセッションが確定しているかどうかを返す。
func (s State) Resolved() bool {
	return !s.Loading
}

// UserID は確定済みのログインユーザーIDを返す。
func (s State) UserID() (string, bool) {
	if s.Loading || s.User == nil || s.User.ID == "" {
		return "", false
	}
	return s.User.ID, true
}

// Source はセッション状態をいつでも問い合わせられる読み取り口。
type Source interface {
	Snapshot(ctx context.Context) State
}

// SourceFunc は関数をSourceとして扱うアダプタ。
type SourceFunc func(ctx context.Context) State

// Snapshot はf(ctx)を返す。
func (f SourceFunc) Snapshot(ctx context.Context) State {
	return f(ctx)
}

// Static は常に同じ状態を返すSourceを生成する。
func Static(s State) Source {
	return SourceFunc(func(context.Context) State { return s })
}

// Resolver はセッションIDからセッション状態を解決する。
// auth.Serviceが実装する。
type Resolver interface {
	Resolve(ctx context.Context, sessionID string) State
}

// Lazy はリクエスト単位のSource。
// 最初のSnapshot呼び出し時に1回だけResolverへ問い合わせ、以降は結果を再利用する。
type Lazy struct {
	resolver  Resolver
	sessionID string

	once  sync.Once
	state State
}

// NewLazy はLazyを生成する。sessionIDが空の場合は未ログインとして確定する。
func NewLazy(resolver Resolver, sessionID string) *Lazy {
	return &Lazy{resolver: resolver, sessionID: sessionID}
}

// Snapshot はセッション状態を返す。
func (l *Lazy) Snapshot(ctx context.Context) State {
	l.once.Do(func() {
		switch {
		case l.sessionID == "":
			l.state = Anonymous
		case l.resolver == nil:
			l.state = Unresolved
		default:
			l.state = l.resolver.Resolve(ctx, l.sessionID)
		}
	})
	return l.state
}

type sourceContextKey struct{}

// WithSource はコンテキストにSourceを注入する。
func WithSource(ctx context.Context, src Source) context.Context {
	return context.WithValue(ctx, sourceContextKey{}, src)
}

// SourceFromContext はコンテキストからSourceを取り出す。
// 注入されていない場合は未確定状態を返すSourceとfalseを返す。
func SourceFromContext(ctx context.Context) (Source, bool) {
	if src, ok := ctx.Value(sourceContextKey{}).(Source); ok && src != nil {
		return src, true
	}
	return Static(Unresolved), false
}
