package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/clanhub/internal/model"
)

const (
	// csrfCookieName はCSRFトークンを保持するCookieの名前。
	// フロントエンドからJavaScriptで読み取れるよう、HttpOnlyではない。
	csrfCookieName = "csrf_token"

	// csrfHeaderName はリクエストヘッダーからCSRFトークンを読み取る際のヘッダー名。
	csrfHeaderName = "X-CSRF-Token"

	csrfCookieMaxAge = 86400
)

// CSRFConfig はCSRFミドルウェアの設定。
type CSRFConfig struct {
	CookieSecure bool
	CookieDomain string
}

// NewCSRFMiddleware はDouble Submit CookieによるCSRF対策ミドルウェアを返す。
// 安全なメソッド（GET, HEAD, OPTIONS）は検証せず、トークンCookieがなければ発行する。
// それ以外のメソッドはCookieとX-CSRF-Tokenヘッダーの一致を必須とする。
func NewCSRFMiddleware(config CSRFConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) {
				if _, err := r.Cookie(csrfCookieName); err != nil {
					if _, err := issueCSRFToken(w, config); err != nil {
						slog.Error("failed to generate CSRF token", slog.String("error", err.Error()))
					}
				}
				next.ServeHTTP(w, r)
				return
			}

			if reason := validateCSRF(r); reason != "" {
				slog.Warn("CSRF validation failed",
					slog.String("reason", reason),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				WriteErrorResponse(w, http.StatusForbidden, &model.APIError{
					Code:     "CSRF_TOKEN_INVALID",
					Message:  "CSRFトークンの検証に失敗しました。",
					Category: "auth",
					Action:   "ページを再読み込みしてから再度お試しください。",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// validateCSRF は検証に失敗した理由を返す。成功時は空文字。
func validateCSRF(r *http.Request) string {
	cookie, err := r.Cookie(csrfCookieName)
	if err != nil || cookie.Value == "" {
		return "missing cookie token"
	}
	header := r.Header.Get(csrfHeaderName)
	if header == "" {
		return "missing header token"
	}
	if subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(header)) != 1 {
		return "token mismatch"
	}
	return ""
}

// NewCSRFTokenHandler はCSRFトークン取得エンドポイントのハンドラーを返す。
// GET /api/csrf-token
// 既存のCSRFトークンCookieがある場合はそれを返し、なければ新規発行する。
func NewCSRFTokenHandler(config CSRFConfig) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var token string
		if cookie, err := r.Cookie(csrfCookieName); err == nil && cookie.Value != "" {
			token = cookie.Value
		} else {
			token, err = issueCSRFToken(w, config)
			if err != nil {
				slog.Error("failed to generate CSRF token", slog.String("error", err.Error()))
				WriteInternalServerError(w)
				return
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"token": token,
		})
	})
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}

// issueCSRFToken は新しいトークンを生成し、Cookieに設定する。
func issueCSRFToken(w http.ResponseWriter, config CSRFConfig) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	token := hex.EncodeToString(b)

	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		Domain:   config.CookieDomain,
		MaxAge:   csrfCookieMaxAge,
		HttpOnly: false,
		Secure:   config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return token, nil
}
