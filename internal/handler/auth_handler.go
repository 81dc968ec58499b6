// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/hitoshi/clanhub/internal/gate"
	"github.com/hitoshi/clanhub/internal/middleware"
	"github.com/hitoshi/clanhub/internal/model"
)

const oauthStateCookie = "oauth_state"

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	GetLoginURL(state string) string
	HandleCallback(ctx context.Context, code string) (*model.Session, error)
	Logout(ctx context.Context, sessionID string) error
	GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL       string
	LoginPath     string
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

func (c AuthHandlerConfig) loginPath() string {
	if c.LoginPath == "" {
		return gate.DefaultLoginPath
	}
	return c.LoginPath
}

// AuthHandler はOAuth認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

// Login はGoogle OAuthフローを開始する。
// GET /auth/google/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	// stateをCookieに保存（CSRF対策）
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.service.GetLoginURL(state), http.StatusTemporaryRedirect)
}

// Callback はOAuthコールバックを処理する。
// 失敗時はエラー理由を付けてログイン画面へ戻す。
// GET /auth/google/callback?code=xxx&state=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || state == "" || stateCookie.Value != state {
		slog.Warn("oauth state mismatch", slog.String("query_state", state))
		h.redirectToLogin(w, r, "invalid_state")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	code := r.URL.Query().Get("code")
	if code == "" {
		h.redirectToLogin(w, r, "missing_code")
		return
	}

	sess, err := h.service.HandleCallback(r.Context(), code)
	if err != nil {
		slog.Error("oauth callback failed", slog.String("error", err.Error()))
		h.redirectToLogin(w, r, "auth_failed")
		return
	}

	writeSessionCookie(w, h.config, sess.ID, h.config.SessionMaxAge)
	http.Redirect(w, r, h.config.BaseURL+"/", http.StatusSeeOther)
}

// Logout はセッションを破棄し、ログイン画面へ戻す。
// 監視中のストリームには匿名確定が通知される。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if sessionID, ok := middleware.SessionIDFromContext(r.Context()); ok {
		// 失敗してもCookieはクリアする
		if err := h.service.Logout(r.Context(), sessionID); err != nil {
			slog.Error("failed to logout", slog.String("error", err.Error()))
		}
	}

	writeSessionCookie(w, h.config, "", -1)
	http.Redirect(w, r, h.config.loginPath(), http.StatusSeeOther)
}

// meResponse はログインユーザー情報のAPIレスポンス。
type meResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	BattleTag string `json:"battle_tag"`
	ClanID    string `json:"clan_id,omitempty"`
}

// Me は現在のログインユーザー情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := middleware.SessionIDFromContext(r.Context())
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return
	}

	user, err := h.service.GetCurrentUser(r.Context(), sessionID)
	if err != nil {
		slog.Warn("failed to get current user", slog.String("error", err.Error()))
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return
	}

	writeJSON(w, http.StatusOK, meResponse{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		BattleTag: user.BattleTag,
		ClanID:    user.ClanID,
	})
}

// writeSessionCookie はセッションCookieを設定する。maxAgeが負の場合は削除になる。
func writeSessionCookie(w http.ResponseWriter, cfg AuthHandlerConfig, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    value,
		Path:     "/",
		Domain:   cfg.CookieDomain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) redirectToLogin(w http.ResponseWriter, r *http.Request, reason string) {
	target := h.config.loginPath() + "?" + url.Values{"error": {reason}}.Encode()
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
