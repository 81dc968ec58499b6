package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/clanhub/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
// clan_idがNULLの場合、ClanIDは空文字になる。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user := &model.User{}
	var clanID sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, name, battle_tag, clan_id, created_at, updated_at
		 FROM users WHERE id = $1`,
		id,
	).Scan(&user.ID, &user.Email, &user.Name, &user.BattleTag, &clanID, &user.CreatedAt, &user.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}

	user.ClanID = clanID.String
	return user, nil
}

// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
func (r *PostgresUserRepo) CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (id, email, name, battle_tag, clan_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		user.ID, user.Email, user.Name, user.BattleTag, nullableString(user.ClanID), user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO identities (id, user_id, provider, provider_user_id, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		identity.ID, identity.UserID, identity.Provider, identity.ProviderUserID, identity.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert identity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// UpdateClan はユーザーの所属クランを更新する。
// 所属が変わる場合、旧クランで公開していたヒーロープロフィールを同じトランザクションで削除する。
func (r *PostgresUserRepo) UpdateClan(ctx context.Context, userID, clanID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE users SET clan_id = $2, updated_at = now() WHERE id = $1`,
		userID, nullableString(clanID),
	)
	if err != nil {
		return fmt.Errorf("failed to update user clan: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user not found: %s", userID)
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM heroes WHERE user_id = $1 AND clan_id IS DISTINCT FROM $2`,
		userID, nullableString(clanID),
	)
	if err != nil {
		return fmt.Errorf("failed to delete hero of previous clan: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// DeleteByID は指定IDのユーザーを削除する。
// 関連するidentities、heroesはCASCADE削除される。
func (r *PostgresUserRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM users WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user not found: %s", id)
	}
	return nil
}

// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
// identityはユーザーと同じトランザクションで作られるため、同じリポジトリで扱う。
// 見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error) {
	identity := &model.Identity{}
	err := r.db.QueryRowContext(ctx,
		`SELECT i.id, i.user_id, i.provider, i.provider_user_id, i.created_at
		 FROM identities i
		 JOIN users u ON u.id = i.user_id
		 WHERE i.provider = $1 AND i.provider_user_id = $2`,
		provider, providerUserID,
	).Scan(&identity.ID, &identity.UserID, &identity.Provider, &identity.ProviderUserID, &identity.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}

	return identity, nil
}

// nullableString は空文字をSQLのNULLとして扱う。
func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// compile-time interface check
var (
	_ UserRepository     = (*PostgresUserRepo)(nil)
	_ IdentityRepository = (*PostgresUserRepo)(nil)
)
