package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func csrfHandler(called *bool) http.Handler {
	return NewCSRFMiddleware(CSRFConfig{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	}))
}

func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestCSRFMiddleware_SafeMethodsPassWithoutToken(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodOptions} {
		t.Run(method, func(t *testing.T) {
			called := false
			w := httptest.NewRecorder()
			csrfHandler(&called).ServeHTTP(w, httptest.NewRequest(method, "/api/heroes", nil))

			if w.Code != http.StatusOK || !called {
				t.Errorf("status = %d, called = %v; want 200 and called", w.Code, called)
			}
		})
	}
}

func TestCSRFMiddleware_StateChangingMethodsRequireToken(t *testing.T) {
	tests := []struct {
		name   string
		cookie string
		header string
	}{
		{"no cookie", "", "token"},
		{"no header", "token", ""},
		{"mismatch", "token-a", "token-b"},
	}

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		for _, tt := range tests {
			t.Run(method+" "+tt.name, func(t *testing.T) {
				req := httptest.NewRequest(method, "/api/heroes", nil)
				if tt.cookie != "" {
					req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: tt.cookie})
				}
				if tt.header != "" {
					req.Header.Set(csrfHeaderName, tt.header)
				}

				called := false
				w := httptest.NewRecorder()
				csrfHandler(&called).ServeHTTP(w, req)

				if w.Code != http.StatusForbidden {
					t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
				}
				if called {
					t.Error("next handler should not be called")
				}
				var body ErrorResponseBody
				if err := json.NewDecoder(w.Body).Decode(&body); err != nil || body.Code != "CSRF_TOKEN_INVALID" {
					t.Errorf("body = %+v, err = %v", body, err)
				}
			})
		}
	}
}

func TestCSRFMiddleware_ValidTokenPasses(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/api/heroes/me/status", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "valid-token"})
	req.Header.Set(csrfHeaderName, "valid-token")

	called := false
	w := httptest.NewRecorder()
	csrfHandler(&called).ServeHTTP(w, req)

	if w.Code != http.StatusOK || !called {
		t.Errorf("status = %d, called = %v; want 200 and called", w.Code, called)
	}
}

func TestCSRFMiddleware_GETIssuesCookieOnlyWhenMissing(t *testing.T) {
	called := false
	w := httptest.NewRecorder()
	csrfHandler(&called).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	c := findCookie(w.Result(), csrfCookieName)
	if c == nil {
		t.Fatal("expected csrf_token cookie to be set")
	}
	if len(c.Value) != 64 {
		t.Errorf("token length = %d, want 64", len(c.Value))
	}
	if c.HttpOnly {
		t.Error("csrf_token cookie must be readable from JavaScript")
	}
	if c.SameSite != http.SameSiteLaxMode {
		t.Errorf("SameSite = %v, want Lax", c.SameSite)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "existing"})
	w = httptest.NewRecorder()
	csrfHandler(&called).ServeHTTP(w, req)

	if findCookie(w.Result(), csrfCookieName) != nil {
		t.Error("existing csrf_token cookie should not be replaced")
	}
}

func TestCSRFTokenHandler(t *testing.T) {
	handler := NewCSRFTokenHandler(CSRFConfig{CookieSecure: true, CookieDomain: "example.com"})

	t.Run("issues new token", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil))

		var body struct {
			Token string `json:"token"`
		}
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode body: %v", err)
		}
		c := findCookie(w.Result(), csrfCookieName)
		if c == nil || c.Value != body.Token {
			t.Fatalf("cookie = %v, token = %q; should match", c, body.Token)
		}
		if !c.Secure || c.Domain != "example.com" {
			t.Errorf("cookie Secure = %v, Domain = %q", c.Secure, c.Domain)
		}
	})

	t.Run("returns existing token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
		req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "existing-token"})
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		var body struct {
			Token string `json:"token"`
		}
		json.NewDecoder(w.Body).Decode(&body)
		if body.Token != "existing-token" {
			t.Errorf("token = %q, want %q", body.Token, "existing-token")
		}
	})
}
