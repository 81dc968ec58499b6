// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hitoshi/clanhub/internal/model"
	"github.com/hitoshi/clanhub/internal/session"
)

// SessionCookieName はセッションIDを保持するCookieの名前。
const SessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var sessionIDContextKey = contextKey("session_id")

// NewSessionMiddleware はCookieのセッションIDからリクエスト単位のSourceを作り、
// コンテキストに注入するミドルウェアを返す。
// セッションの解決は最初に参照されたときに1回だけ行われる。
// このミドルウェア自体はリクエストを拒否しない。判定は認証ゲートが行う。
func NewSessionMiddleware(resolver session.Resolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var sessionID string
			if cookie, err := r.Cookie(SessionCookieName); err == nil {
				sessionID = cookie.Value
			}

			ctx := context.WithValue(r.Context(), sessionIDContextKey, sessionID)
			ctx = session.WithSource(ctx, session.NewLazy(resolver, sessionID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionIDFromContext はCookieから読み取ったセッションIDを返す。
func SessionIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionIDContextKey).(string)
	return id, ok && id != ""
}

// CurrentUser は確定済みのログインユーザーを返す。
func CurrentUser(ctx context.Context) (*model.User, bool) {
	src, _ := session.SourceFromContext(ctx)
	st := src.Snapshot(ctx)
	if _, ok := st.UserID(); !ok {
		return nil, false
	}
	return st.User, true
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// セッションが未確定、または未ログインの場合はエラーを返す。
func UserIDFromContext(ctx context.Context) (string, error) {
	user, ok := CurrentUser(ctx)
	if !ok {
		return "", fmt.Errorf("user ID not found in context")
	}
	return user.ID, nil
}

// ContextWithUserID はログイン済みとして確定したセッションをコンテキストに注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return ContextWithUser(ctx, &model.User{ID: userID})
}

// ContextWithUser はユーザー付きの確定済みセッションをコンテキストに注入する。
func ContextWithUser(ctx context.Context, user *model.User) context.Context {
	return session.WithSource(ctx, session.Static(session.Authenticated(user)))
}
