package middleware

import (
	"net/http"

	"github.com/hitoshi/clanhub/internal/clan"
	"github.com/hitoshi/clanhub/internal/session"
)

// NewClanProviderMiddleware はセッションから導出した現在のクランを
// リクエストコンテキストに注入するミドルウェアを返す。
// セッションミドルウェアの後に配置する。
func NewClanProviderMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			src, _ := session.SourceFromContext(r.Context())
			ctx := clan.WithProvider(r.Context(), src.Snapshot(r.Context()))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
