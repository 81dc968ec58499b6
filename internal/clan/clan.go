// Package clan は「閲覧者がどのクランとして操作しているか」を解決する。
//
// プロバイダ（WithProvider）が注入した値を優先し、注入されていなければ
// セッションから同じ射影（user.ClanID）で導出する。どちらの経路も
// Deriveだけを通るため、プロバイダの有無で結果が食い違うことはない。
package clan

import (
	"context"

	"github.com/hitoshi/clanhub/internal/session"
)

// Value は解決されたクランID。Presentがfalseの場合は「クランなし」。
type Value struct {
	ID      string
	Present bool
}

// Absent はクランなしを表す。
var Absent = Value{}

// Of はクランIDをValueに変換する。空文字はAbsentになる。
func Of(id string) Value {
	if id == "" {
		return Absent
	}
	return Value{ID: id, Present: true}
}

// Derive はセッション状態からクランIDを導出する唯一の射影。
// 未確定のセッションやユーザーなしの場合はAbsentを返す。
func Derive(s session.State) Value {
	if s.Loading || s.User == nil {
		return Absent
	}
	return Of(s.User.ClanID)
}

type providedContextKey struct{}

// WithProvider はセッション状態から導出したクランIDをプロバイダとして注入する。
// Absentも「注入済みの値」として区別して保持する。
func WithProvider(ctx context.Context, s session.State) context.Context {
	return context.WithValue(ctx, providedContextKey{}, Derive(s))
}

// Provided は最も近いプロバイダの値と、プロバイダが存在するかどうかを返す。
func Provided(ctx context.Context) (Value, bool) {
	v, ok := ctx.Value(providedContextKey{}).(Value)
	return v, ok
}

// Resolve は明示的に注入された値があればそれを返し、なければsrcから導出する。
// srcがnilの場合はAbsentを返す。
func Resolve(ctx context.Context, override *Value, src session.Source) Value {
	if override != nil {
		return *override
	}
	if src == nil {
		return Absent
	}
	return Derive(src.Snapshot(ctx))
}

// Current はプロバイダの値を優先し、なければsrcから導出したクランIDを返す。
// プロバイダなし・セッションなしでも呼び出せる。その場合はAbsentを返す。
func Current(ctx context.Context, src session.Source) Value {
	if v, ok := Provided(ctx); ok {
		return Resolve(ctx, &v, src)
	}
	return Resolve(ctx, nil, src)
}
