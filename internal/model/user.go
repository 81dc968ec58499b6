package model

import "time"

// User はクランメンバーを表す。
// ClanIDが空文字の場合はどのクランにも所属していない。
type User struct {
	ID        string
	Email     string
	Name      string
	BattleTag string
	ClanID    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Identity は外部IdPとの紐付け情報を表す。
type Identity struct {
	ID             string
	UserID         string
	Provider       string
	ProviderUserID string
	CreatedAt      time.Time
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Clan はクラン（メンバーの所属グループ）を表す。
type Clan struct {
	ID        string
	Name      string
	Tag       string
	CreatedAt time.Time
}
