package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/clanhub/internal/clan"
	"github.com/hitoshi/clanhub/internal/session"
)

// statusRecorder はhttp.ResponseWriterをラップし、ステータスコードを記録する。
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

// WriteHeader はステータスコードを記録してから委譲する。
func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.written {
		sr.statusCode = code
		sr.written = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

// Write はデータを書き込む。WriteHeaderが未呼び出しの場合は200を記録する。
func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.written {
		sr.statusCode = http.StatusOK
		sr.written = true
	}
	return sr.ResponseWriter.Write(b)
}

// Flush はSSEのストリームを下位のWriterへ流す。
func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap はhttp.ResponseControllerから元のWriterを参照するために使う。
func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

// NewLoggingMiddleware はリクエストのJSON構造化ログを出力するミドルウェアを返す。
// ログにはmethod、path、status、duration_msと、確定済みのセッションがあれば
// user_id、clan_idを含む。セッションミドルウェアの後に配置する。
func NewLoggingMiddleware(logger *slog.Logger) func(next http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rec := &statusRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rec, r)

			durationMs := float64(time.Since(start).Nanoseconds()) / float64(time.Millisecond)

			args := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.statusCode),
				slog.Float64("duration_ms", durationMs),
			}
			args = append(args, sessionAttrs(r)...)

			level := slog.LevelInfo
			if rec.statusCode >= 500 {
				level = slog.LevelError
			} else if rec.statusCode >= 400 {
				level = slog.LevelWarn
			}

			logger.Log(r.Context(), level, "http_request", args...)
		})
	}
}

// sessionAttrs は確定済みのセッションからログ属性を作る。
// 未確定のセッションを解決しに行かないよう、注入済みのSourceがある場合だけ参照する。
func sessionAttrs(r *http.Request) []any {
	src, ok := session.SourceFromContext(r.Context())
	if !ok {
		return nil
	}
	st := src.Snapshot(r.Context())
	userID, ok := st.UserID()
	if !ok {
		return nil
	}
	attrs := []any{slog.String("user_id", userID)}
	if c := clan.Derive(st); c.Present {
		attrs = append(attrs, slog.String("clan_id", c.ID))
	}
	return attrs
}
