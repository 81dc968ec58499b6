package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/clanhub/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// 原因カテゴリと対処方法を含む。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// エラー応答はセッション状態に依存するため、キャッシュさせない。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// WriteAPIError はエラーコードに対応するステータスで統一エラーを書き込む。
func WriteAPIError(w http.ResponseWriter, apiErr *model.APIError) {
	WriteErrorResponse(w, StatusForAPIError(apiErr), apiErr)
}

// StatusForAPIError はAPIErrorコードからHTTPステータスコードにマッピングする。
// 未知のコードは500として扱う。
func StatusForAPIError(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnauthenticated:
		return http.StatusUnauthorized
	case model.ErrCodeSessionLoading:
		return http.StatusServiceUnavailable
	case model.ErrCodeClanNotSet:
		return http.StatusConflict
	case model.ErrCodeUserNotFound, model.ErrCodeClanNotFound, model.ErrCodeHeroNotFound:
		return http.StatusNotFound
	case model.ErrCodeInvalidHero, model.ErrCodeInvalidStatus:
		return http.StatusBadRequest
	case model.ErrCodeInvalidPhotoURL:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}
