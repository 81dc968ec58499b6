package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/clanhub/internal/middleware"
	"github.com/hitoshi/clanhub/internal/model"
)

// --- モック定義 ---

type mockUserService struct {
	withdrawFn func(ctx context.Context, userID string) error
}

func (m *mockUserService) Withdraw(ctx context.Context, userID string) error {
	if m.withdrawFn != nil {
		return m.withdrawFn(ctx, userID)
	}
	return nil
}

// withUser はログイン済みとして確定したセッションをリクエストに注入する。
func withUser(req *http.Request, user *model.User) *http.Request {
	return req.WithContext(middleware.ContextWithUser(req.Context(), user))
}

func decodeErrorBody(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorResponseBody {
	t.Helper()
	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body
}

// --- DELETE /api/users/me ---

func TestUserHandler_Withdraw_Success_ClearsCookie(t *testing.T) {
	var withdrawn string
	svc := &mockUserService{
		withdrawFn: func(_ context.Context, userID string) error {
			withdrawn = userID
			return nil
		},
	}
	h := NewUserHandler(svc, testAuthConfig())

	req := withUser(httptest.NewRequest(http.MethodDelete, "/api/users/me", nil), &model.User{ID: "user-123"})
	w := httptest.NewRecorder()
	h.Withdraw(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if withdrawn != "user-123" {
		t.Errorf("Withdraw called with %q, want user-123", withdrawn)
	}
	if c := cookieNamed(w.Result(), middleware.SessionCookieName); c == nil || c.MaxAge >= 0 {
		t.Error("session cookie should be cleared")
	}
}

func TestUserHandler_Withdraw_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"user not found", model.NewUserNotFoundError(), http.StatusNotFound, model.ErrCodeUserNotFound},
		{"internal", errors.New("db down"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockUserService{
				withdrawFn: func(context.Context, string) error { return tt.err },
			}
			h := NewUserHandler(svc, testAuthConfig())

			req := withUser(httptest.NewRequest(http.MethodDelete, "/api/users/me", nil), &model.User{ID: "user-1"})
			w := httptest.NewRecorder()
			h.Withdraw(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if body := decodeErrorBody(t, w); body.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
			}
		})
	}
}

func TestUserHandler_Withdraw_NoUser_ReturnsUnauthorized(t *testing.T) {
	called := false
	h := NewUserHandler(&mockUserService{
		withdrawFn: func(context.Context, string) error {
			called = true
			return nil
		},
	}, testAuthConfig())

	w := httptest.NewRecorder()
	h.Withdraw(w, httptest.NewRequest(http.MethodDelete, "/api/users/me", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if called {
		t.Error("Withdraw should not be called")
	}
}
