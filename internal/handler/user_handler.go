package handler

import (
	"context"
	"net/http"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// Withdraw はユーザーの退会処理を実行する。
	// プロフィール、セッション、ユーザー（identitiesはCASCADE）を削除する。
	Withdraw(ctx context.Context, userID string) error
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
	auth    AuthHandlerConfig
}

// NewUserHandler はUserHandlerを生成する。
// 退会後のセッションCookie削除にauthの設定を使う。
func NewUserHandler(service UserServiceInterface, auth AuthHandlerConfig) *UserHandler {
	return &UserHandler{
		service: service,
		auth:    auth,
	}
}

// Withdraw はユーザーの退会処理を実行する。
// DELETE /api/users/me
func (h *UserHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := h.service.Withdraw(r.Context(), user.ID); err != nil {
		handleServiceError(w, err)
		return
	}

	writeSessionCookie(w, h.auth, "", -1)
	w.WriteHeader(http.StatusNoContent)
}
