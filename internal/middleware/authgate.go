package middleware

import (
	"html/template"
	"log/slog"
	"net/http"

	"github.com/hitoshi/clanhub/internal/gate"
	"github.com/hitoshi/clanhub/internal/model"
	"github.com/hitoshi/clanhub/internal/session"
)

// AuthGateConfig は認証ゲートミドルウェアの設定。
type AuthGateConfig struct {
	// LoginPath はリダイレクト先。空の場合は gate.DefaultLoginPath。
	LoginPath string
	// API がtrueの場合はJSONで応答する。リダイレクトは401とLocationヘッダーで表す。
	API bool
	// Observer はフェーズ遷移の通知先。nil可。
	Observer gate.Observer
	// RenderLoading はCheckingのときのHTMLを書き込む。nilの場合は組み込みの表示を使う。
	// ステータスとRetry-Afterはミドルウェアが設定済み。
	RenderLoading func(w http.ResponseWriter, r *http.Request)
	// Logger は組み込みのローディング表示の描画失敗を記録する。nilの場合はslog.Default()。
	Logger *slog.Logger
}

var defaultLoadingPage = template.Must(template.New("loading").Parse(`<!DOCTYPE html>
<html lang="ja">
<head><meta charset="utf-8"><title>読み込み中</title><meta http-equiv="refresh" content="1"></head>
<body><main aria-busy="true"><p role="status">ログイン状態を確認しています…</p></main></body>
</html>
`))

// NewAuthGateMiddleware は保護されたルートの前に置く認証ゲートを返す。
// リクエストごとにgate.Gateを1つ作り、応答を書き終えたらCloseする。
//   - Checking: 503とRetry-Afterでローディング表示を返す
//   - Denied: ログイン画面へのリダイレクトだけを書き、本文は出さない
//   - Admitted: 後続のハンドラーをそのまま呼ぶ
func NewAuthGateMiddleware(cfg AuthGateConfig) func(next http.Handler) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			redirect := gate.RedirectFunc(func(path string) {
				if cfg.API {
					w.Header().Set("Location", path)
					WriteAPIError(w, model.NewUnauthenticatedError())
					return
				}
				w.Header().Set("Location", path)
				w.WriteHeader(http.StatusFound)
			})

			g := gate.New(redirect, gate.WithLoginPath(cfg.LoginPath), gate.WithObserver(cfg.Observer))
			defer g.Close()

			src, _ := session.SourceFromContext(r.Context())
			switch g.Observe(src.Snapshot(r.Context())) {
			case gate.Checking:
				writeLoading(w, r, cfg)
			case gate.Denied:
				// リダイレクトはObserve内で書き込み済み
			case gate.Admitted:
				next.ServeHTTP(w, r)
			}
		})
	}
}

func writeLoading(w http.ResponseWriter, r *http.Request, cfg AuthGateConfig) {
	w.Header().Set("Retry-After", "1")

	if cfg.API {
		WriteAPIError(w, model.NewSessionLoadingError())
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusServiceUnavailable)
	if cfg.RenderLoading != nil {
		cfg.RenderLoading(w, r)
		return
	}
	if err := defaultLoadingPage.Execute(w, nil); err != nil {
		cfg.Logger.Error("failed to render loading page",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
}
