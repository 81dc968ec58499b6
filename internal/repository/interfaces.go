// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/clanhub/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error

	// UpdateClan はユーザーの所属クランを更新する。clanIDが空の場合は脱退扱い。
	// 所属が変わる場合、旧クランのヒーロープロフィールも削除する。
	UpdateClan(ctx context.Context, userID, clanID string) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するidentities、heroesはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// ClanRepository はクランデータの永続化インターフェース。
type ClanRepository interface {
	// List は全クランを名前順で取得する。
	List(ctx context.Context) ([]model.Clan, error)
	// FindByID は指定IDのクランを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Clan, error)
}

// HeroRepository はヒーロープロフィールの永続化インターフェース。
type HeroRepository interface {
	// FindByUserID は指定ユーザーのプロフィールを取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.Hero, error)

	// ListByClan はクラン内のプロフィールを更新日時の降順で取得する。
	// statusが空の場合は全ステータスを返す。
	ListByClan(ctx context.Context, clanID string, status model.HeroStatus) ([]model.Hero, error)

	// Upsert はユーザー単位でプロフィールを作成または置き換える。
	Upsert(ctx context.Context, hero *model.Hero) error

	// UpdateStatus は指定ユーザーのプロフィールのステータスを更新する。
	// 対象が存在しない場合はfalseを返す。
	UpdateStatus(ctx context.Context, userID string, status model.HeroStatus) (bool, error)

	// DeleteByUserID は指定ユーザーのプロフィールを削除する。
	// 対象が存在しない場合はfalseを返す。
	DeleteByUserID(ctx context.Context, userID string) (bool, error)
}
