// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, clan, hero, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthenticated = "UNAUTHENTICATED"
	ErrCodeSessionLoading  = "SESSION_LOADING"
	ErrCodeUserNotFound    = "USER_NOT_FOUND"
	ErrCodeClanNotSet      = "CLAN_NOT_SET"
	ErrCodeClanNotFound    = "CLAN_NOT_FOUND"
	ErrCodeHeroNotFound    = "HERO_NOT_FOUND"
	ErrCodeInvalidHero     = "INVALID_HERO"
	ErrCodeInvalidStatus   = "INVALID_STATUS"
	ErrCodeInvalidPhotoURL = "INVALID_PHOTO_URL"
)

// NewUnauthenticatedError は未ログインエラーを生成する。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewSessionLoadingError はセッションが未確定の間に返すエラーを生成する。
func NewSessionLoadingError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionLoading,
		Message:  "ログイン状態を確認しています。",
		Category: "auth",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewClanNotSetError は所属クランが未設定の場合のエラーを生成する。
func NewClanNotSetError() *APIError {
	return &APIError{
		Code:     ErrCodeClanNotSet,
		Message:  "所属クランが設定されていません。",
		Category: "clan",
		Action:   "クラン一覧から所属するクランを選択してください。",
	}
}

// NewClanNotFoundError はクランが見つからない場合のエラーを生成する。
func NewClanNotFoundError(clanID string) *APIError {
	return &APIError{
		Code:     ErrCodeClanNotFound,
		Message:  fmt.Sprintf("指定されたクランが見つかりません: %s", clanID),
		Category: "clan",
		Action:   "クランIDを確認してください。",
	}
}

// NewHeroNotFoundError はヒーロープロフィールが見つからない場合のエラーを生成する。
func NewHeroNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeHeroNotFound,
		Message:  "ヒーロープロフィールが登録されていません。",
		Category: "hero",
		Action:   "先にプロフィールを登録してください。",
	}
}

// NewInvalidHeroError はプロフィール入力値が不正な場合のエラーを生成する。
func NewInvalidHeroError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidHero,
		Message:  fmt.Sprintf("プロフィールの入力内容が不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewInvalidStatusError は無効なステータスエラーを生成する。
func NewInvalidStatusError(status string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidStatus,
		Message:  fmt.Sprintf("無効なステータスです: %s", status),
		Category: "validation",
		Action:   "ステータスには available、talking、taken のいずれかを指定してください。",
	}
}

// NewInvalidPhotoURLError は写真URLが許可されない場合のエラーを生成する。
func NewInvalidPhotoURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPhotoURL,
		Message:  fmt.Sprintf("写真URLが使用できません: %s", reason),
		Category: "validation",
		Action:   "公開されている https:// の画像URLを入力してください。",
	}
}
