package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/clanhub/internal/model"
)

// PostgresSessionRepo はPostgreSQLを使用したセッションリポジトリ。
// セッションの行は認証サービスだけが書き込む。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

// Create はセッションを作成する。dataはスキーマの既定値に任せる。
func (r *PostgresSessionRepo) Create(ctx context.Context, session *model.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, expires_at, created_at)
		 VALUES ($1, $2, $3, $4)`,
		session.ID, session.UserID, session.ExpiresAt, session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FindByID は有効なセッションを取得する。
// 期限切れ、または未知のIDの場合はnilを返し、呼び出し側は匿名として確定させる。
func (r *PostgresSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	var session model.Session
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, expires_at, created_at
		 FROM sessions
		 WHERE id = $1 AND expires_at > now()`,
		id,
	).Scan(&session.ID, &session.UserID, &session.ExpiresAt, &session.CreatedAt)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	return &session, nil
}

// DeleteByID は指定IDのセッションを削除する。存在しなくてもエラーにしない。
func (r *PostgresSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	return nil
}

// DeleteByUserID は指定ユーザーの全セッションを削除する。退会時に使う。
func (r *PostgresSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete sessions of user %s: %w", userID, err)
	}
	return nil
}

// compile-time interface check
var _ SessionRepository = (*PostgresSessionRepo)(nil)
