// Package gate は保護されたコンテンツの表示可否を決める認証ゲートを提供する。
//
// ゲートはセッション状態だけから Checking / Denied / Admitted のいずれかを決める。
// Deniedへ遷移した時点でログイン画面へのリダイレクトを1回だけ発行する。
package gate

import (
	"context"
	"sync"

	"github.com/hitoshi/clanhub/internal/session"
)

// DefaultLoginPath はリダイレクト先のデフォルトのログイン画面パス。
const DefaultLoginPath = "/login"

// Phase はゲートの状態を表す。
type Phase int

const (
	// Checking はセッション確定待ち。保護コンテンツは表示せず、ローディング表示を出す。
	Checking Phase = iota
	// Denied は未ログインで確定した状態。何も表示しない。
	Denied
	// Admitted はログイン済みで確定した状態。保護コンテンツをそのまま表示する。
	Admitted
)

// String はログやメトリクスのラベルに使う名前を返す。
func (p Phase) String() string {
	switch p {
	case Checking:
		return "checking"
	case Denied:
		return "denied"
	case Admitted:
		return "admitted"
	default:
		return "unknown"
	}
}

// Evaluate はセッション状態からゲートの状態を決める純粋関数。
func Evaluate(s session.State) Phase {
	switch {
	case s.Loading:
		return Checking
	case s.User == nil:
		return Denied
	default:
		return Admitted
	}
}

// Redirector はナビゲーションの担当。ゲートはリダイレクトの完了を待たない。
type Redirector interface {
	Redirect(path string)
}

// RedirectFunc は関数をRedirectorとして扱うアダプタ。
type RedirectFunc func(path string)

// Redirect はf(path)を呼び出す。
func (f RedirectFunc) Redirect(path string) {
	f(path)
}

// Observer はゲートの状態遷移を受け取る。メトリクスやログに使う。
type Observer func(from, to Phase)

// Option はGateの設定を変更する。
type Option func(*Gate)

// WithLoginPath はリダイレクト先のパスを指定する。
func WithLoginPath(path string) Option {
	return func(g *Gate) {
		if path != "" {
			g.loginPath = path
		}
	}
}

// WithObserver は状態遷移の通知先を追加する。
func WithObserver(obs Observer) Option {
	return func(g *Gate) {
		if obs != nil {
			g.observers = append(g.observers, obs)
		}
	}
}

// Gate は認証ゲートの状態機械。
// 保持する状態は直前のPhaseのみで、Deniedへの遷移検出にだけ使う。
type Gate struct {
	redirect  Redirector
	loginPath string
	observers []Observer

	mu     sync.Mutex
	phase  Phase
	closed bool
}

// New はCheckingから始まるGateを生成する。
func New(redirect Redirector, opts ...Option) *Gate {
	g := &Gate{
		redirect:  redirect,
		loginPath: DefaultLoginPath,
		phase:     Checking,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// LoginPath はリダイレクト先のパスを返す。
func (g *Gate) LoginPath() string {
	return g.loginPath
}

// Phase は現在の状態を返す。
func (g *Gate) Phase() Phase {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.phase
}

// Observe はセッション状態を反映して新しい状態を返す。
// Denied以外の状態からDeniedへ入ったときだけリダイレクトを発行する。
// Deniedに留まる間は何も発行しない。Close後は状態だけを更新する。
func (g *Gate) Observe(s session.State) Phase {
	next := Evaluate(s)

	g.mu.Lock()
	prev := g.phase
	g.phase = next
	fire := next == Denied && prev != Denied && !g.closed
	g.mu.Unlock()

	if prev != next {
		for _, obs := range g.observers {
			obs(prev, next)
		}
	}
	if fire && g.redirect != nil {
		g.redirect.Redirect(g.loginPath)
	}
	return next
}

// Close はゲートのアンマウントを表す。以降のObserveはリダイレクトを発行しない。
func (g *Gate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
}

// Watch はupdatesから届くセッション状態を発行順にObserveする。
// ctxのキャンセルまたはupdatesのcloseで終了し、終了前にゲートをCloseする。
// 最後に観測した状態を返す。
func (g *Gate) Watch(ctx context.Context, updates <-chan session.State) Phase {
	defer g.Close()

	for {
		select {
		case <-ctx.Done():
			return g.Phase()
		case st, ok := <-updates:
			if !ok {
				return g.Phase()
			}
			// selectは準備済みのケースを無作為に選ぶため、キャンセル済みなら反映しない
			if ctx.Err() != nil {
				return g.Phase()
			}
			g.Observe(st)
		}
	}
}
