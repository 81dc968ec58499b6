package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/clanhub/internal/middleware"
	"github.com/hitoshi/clanhub/internal/model"
)

// maxRequestBodySize はJSONリクエストボディの上限。
const maxRequestBodySize = 64 << 10

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// decodeJSON はリクエストボディをdstへ読み込む。
// 失敗した場合はINVALID_REQUESTを書き込み、falseを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return false
	}
	return true
}

// requireUser は確定済みのログインユーザーを返す。
// ゲートの内側で呼ぶため通常は失敗しないが、失敗時は401を書き込む。
func requireUser(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	user, ok := middleware.CurrentUser(r.Context())
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return nil, false
	}
	return user, true
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteAPIError(w, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}
