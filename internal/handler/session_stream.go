package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/clanhub/internal/gate"
	"github.com/hitoshi/clanhub/internal/middleware"
	"github.com/hitoshi/clanhub/internal/session"
)

// StreamMetrics はストリーム接続数の計測先。
type StreamMetrics interface {
	StreamOpened()
	StreamClosed()
}

// SessionExpiry はセッションの有効期限を返す。auth.Serviceが実装する。
type SessionExpiry interface {
	ExpiresAt(ctx context.Context, sessionID string) (time.Time, bool)
}

// SessionStreamHandler はセッション状態の変化をServer-Sent Eventsで配信する。
// 接続ごとにゲートを1つ持ち、phaseイベントで状態遷移を、
// Deniedへ入ったときにredirectイベントを1回だけ送る。
type SessionStreamHandler struct {
	hub       *session.Hub
	loginPath string
	observer  gate.Observer
	metrics   StreamMetrics
	expiry    SessionExpiry
}

// NewSessionStreamHandler はSessionStreamHandlerを生成する。observerとmetricsはnilでもよい。
func NewSessionStreamHandler(hub *session.Hub, loginPath string, observer gate.Observer, metrics StreamMetrics) *SessionStreamHandler {
	return &SessionStreamHandler{
		hub:       hub,
		loginPath: loginPath,
		observer:  observer,
		metrics:   metrics,
	}
}

// WithExpiry はセッション期限の参照先を設定する。
// 設定すると、期限を迎えたストリームはDeniedへ遷移しredirectイベントを送る。
func (h *SessionStreamHandler) WithExpiry(e SessionExpiry) *SessionStreamHandler {
	h.expiry = e
	return h
}

// Stream はセッション状態のイベントストリームを返す。
// redirectイベントを送った時点、またはクライアントの切断でストリームを終了する。
// GET /api/session/stream
func (h *SessionStreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	// 長時間の接続になるためサーバーの書き込みタイムアウトを外す
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		slog.Warn("failed to clear write deadline for session stream", slog.String("error", err.Error()))
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if h.metrics != nil {
		h.metrics.StreamOpened()
		defer h.metrics.StreamClosed()
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// 書き込みに失敗したらクライアントは切断済みなので監視を終える
	send := func(event, data string) {
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
			cancel()
			return
		}
		if err := rc.Flush(); err != nil {
			cancel()
		}
	}

	g := gate.New(
		gate.RedirectFunc(func(path string) {
			send("redirect", path)
			cancel()
		}),
		gate.WithLoginPath(h.loginPath),
		gate.WithObserver(func(_, to gate.Phase) { send("phase", to.String()) }),
		gate.WithObserver(h.observer),
	)
	send("phase", g.Phase().String())

	sessionID, ok := middleware.SessionIDFromContext(ctx)
	if !ok {
		g.Observe(session.Anonymous)
		g.Close()
		return
	}

	src, _ := session.SourceFromContext(ctx)
	store, release := h.hub.Acquire(sessionID, src.Snapshot(ctx))
	defer release()

	if h.expiry != nil {
		if at, ok := h.expiry.ExpiresAt(ctx, sessionID); ok {
			h.hub.ExpireAt(sessionID, at)
		}
	}

	updates, unsubscribe := store.Subscribe()
	defer unsubscribe()

	g.Watch(ctx, updates)
}
