package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/clanhub/internal/middleware"
	"github.com/hitoshi/clanhub/internal/model"
)

// --- モック定義 ---

type mockAuthService struct {
	getLoginURLFn    func(state string) string
	handleCallbackFn func(ctx context.Context, code string) (*model.Session, error)
	logoutFn         func(ctx context.Context, sessionID string) error
	getCurrentUserFn func(ctx context.Context, sessionID string) (*model.User, error)
}

func (m *mockAuthService) GetLoginURL(state string) string {
	if m.getLoginURLFn != nil {
		return m.getLoginURLFn(state)
	}
	return ""
}

func (m *mockAuthService) HandleCallback(ctx context.Context, code string) (*model.Session, error) {
	if m.handleCallbackFn != nil {
		return m.handleCallbackFn(ctx, code)
	}
	return nil, nil
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID)
	}
	return nil
}

func (m *mockAuthService) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if m.getCurrentUserFn != nil {
		return m.getCurrentUserFn(ctx, sessionID)
	}
	return nil, errors.New("not found")
}

func testAuthConfig() AuthHandlerConfig {
	return AuthHandlerConfig{
		BaseURL:       "http://localhost:8080",
		SessionMaxAge: 86400,
	}
}

// withSessionCookie はCookieのセッションIDをコンテキストへ読み込むハンドラーを返す。
func withSessionCookie(h http.HandlerFunc) http.Handler {
	return middleware.NewSessionMiddleware(nil)(h)
}

func cookieNamed(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// --- テスト ---

func TestAuthHandler_Login_RedirectsWithStateCookie(t *testing.T) {
	svc := &mockAuthService{
		getLoginURLFn: func(state string) string {
			return "https://accounts.google.com/o/oauth2/auth?state=" + state
		},
	}
	h := NewAuthHandler(svc, testAuthConfig())

	w := httptest.NewRecorder()
	h.Login(w, httptest.NewRequest(http.MethodGet, "/auth/google/login", nil))

	resp := w.Result()
	if resp.StatusCode != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusTemporaryRedirect)
	}

	state := cookieNamed(resp, oauthStateCookie)
	if state == nil || state.Value == "" {
		t.Fatal("expected oauth_state cookie")
	}
	if !state.HttpOnly {
		t.Error("oauth_state cookie should be HttpOnly")
	}
	if loc := resp.Header.Get("Location"); !strings.HasSuffix(loc, "state="+state.Value) {
		t.Errorf("Location = %q, should carry state %q", loc, state.Value)
	}
}

func TestAuthHandler_Callback_Success_SetsSessionCookie(t *testing.T) {
	svc := &mockAuthService{
		handleCallbackFn: func(_ context.Context, code string) (*model.Session, error) {
			if code != "auth-code" {
				t.Errorf("code = %q, want auth-code", code)
			}
			return &model.Session{ID: "new-session", UserID: "user-1", ExpiresAt: time.Now().Add(time.Hour)}, nil
		},
	}
	h := NewAuthHandler(svc, testAuthConfig())

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?code=auth-code&state=s1", nil)
	req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: "s1"})
	w := httptest.NewRecorder()
	h.Callback(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusSeeOther)
	}
	if loc := resp.Header.Get("Location"); loc != "http://localhost:8080/" {
		t.Errorf("Location = %q, want home", loc)
	}

	c := cookieNamed(resp, middleware.SessionCookieName)
	if c == nil || c.Value != "new-session" {
		t.Fatalf("session cookie = %v, want new-session", c)
	}
	if !c.HttpOnly || c.MaxAge != 86400 || c.SameSite != http.SameSiteLaxMode {
		t.Errorf("session cookie attributes = %+v", c)
	}
	if st := cookieNamed(resp, oauthStateCookie); st == nil || st.MaxAge >= 0 {
		t.Error("oauth_state cookie should be cleared")
	}
}

func TestAuthHandler_Callback_FailuresReturnToLogin(t *testing.T) {
	failing := &mockAuthService{
		handleCallbackFn: func(context.Context, string) (*model.Session, error) {
			return nil, errors.New("token exchange failed")
		},
	}

	tests := []struct {
		name        string
		query       string
		stateCookie string
		wantReason  string
	}{
		{"state mismatch", "code=c&state=a", "b", "invalid_state"},
		{"missing state cookie", "code=c&state=a", "", "invalid_state"},
		{"missing code", "state=a", "a", "missing_code"},
		{"service error", "code=c&state=a", "a", "auth_failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewAuthHandler(failing, AuthHandlerConfig{LoginPath: "/signin"})

			req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?"+tt.query, nil)
			if tt.stateCookie != "" {
				req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: tt.stateCookie})
			}
			w := httptest.NewRecorder()
			h.Callback(w, req)

			if w.Code != http.StatusSeeOther {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusSeeOther)
			}
			loc, err := url.Parse(w.Header().Get("Location"))
			if err != nil {
				t.Fatalf("invalid Location: %v", err)
			}
			if loc.Path != "/signin" || loc.Query().Get("error") != tt.wantReason {
				t.Errorf("Location = %q, want /signin?error=%s", loc, tt.wantReason)
			}
			if cookieNamed(w.Result(), middleware.SessionCookieName) != nil {
				t.Error("session cookie must not be set on failure")
			}
		})
	}
}

func TestAuthHandler_Logout_DeletesSessionAndClearsCookie(t *testing.T) {
	var loggedOut string
	svc := &mockAuthService{
		logoutFn: func(_ context.Context, sessionID string) error {
			loggedOut = sessionID
			return nil
		},
	}
	h := NewAuthHandler(svc, testAuthConfig())

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "sess-1"})
	w := httptest.NewRecorder()
	withSessionCookie(h.Logout).ServeHTTP(w, req)

	if loggedOut != "sess-1" {
		t.Errorf("Logout called with %q, want sess-1", loggedOut)
	}
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/login" {
		t.Errorf("status = %d, Location = %q; want 303 to /login", w.Code, w.Header().Get("Location"))
	}
	if c := cookieNamed(w.Result(), middleware.SessionCookieName); c == nil || c.MaxAge >= 0 {
		t.Error("session cookie should be cleared")
	}
}

func TestAuthHandler_Logout_NoSessionOrError_StillClearsCookie(t *testing.T) {
	calls := 0
	svc := &mockAuthService{
		logoutFn: func(context.Context, string) error {
			calls++
			return errors.New("db down")
		},
	}
	h := NewAuthHandler(svc, testAuthConfig())

	w := httptest.NewRecorder()
	withSessionCookie(h.Logout).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))
	if calls != 0 {
		t.Errorf("Logout calls = %d, want 0 without a cookie", calls)
	}

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "sess-1"})
	w = httptest.NewRecorder()
	withSessionCookie(h.Logout).ServeHTTP(w, req)

	if w.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want %d", w.Code, http.StatusSeeOther)
	}
	if c := cookieNamed(w.Result(), middleware.SessionCookieName); c == nil || c.MaxAge >= 0 {
		t.Error("session cookie should be cleared even when logout fails")
	}
}

func TestAuthHandler_Me(t *testing.T) {
	svc := &mockAuthService{
		getCurrentUserFn: func(_ context.Context, sessionID string) (*model.User, error) {
			if sessionID != "sess-1" {
				return nil, errors.New("session not found or expired")
			}
			return &model.User{ID: "user-1", Email: "a@example.com", Name: "Ana", BattleTag: "Ana#1234", ClanID: "clan-7"}, nil
		},
	}
	h := NewAuthHandler(svc, testAuthConfig())

	t.Run("authenticated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "sess-1"})
		w := httptest.NewRecorder()
		withSessionCookie(h.Me).ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
		}
		var body meResponse
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode body: %v", err)
		}
		want := meResponse{ID: "user-1", Email: "a@example.com", Name: "Ana", BattleTag: "Ana#1234", ClanID: "clan-7"}
		if body != want {
			t.Errorf("body = %+v, want %+v", body, want)
		}
	})

	for _, cookie := range []string{"", "expired"} {
		t.Run("unauthenticated "+cookie, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
			if cookie != "" {
				req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: cookie})
			}
			w := httptest.NewRecorder()
			withSessionCookie(h.Me).ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
		})
	}
}
