package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/clanhub/internal/model"
)

// PostgresClanRepo はPostgreSQLを使用したクランリポジトリ。
type PostgresClanRepo struct {
	db *sql.DB
}

// NewPostgresClanRepo はPostgresClanRepoを生成する。
func NewPostgresClanRepo(db *sql.DB) *PostgresClanRepo {
	return &PostgresClanRepo{db: db}
}

// List は全クランを名前順で取得する。
func (r *PostgresClanRepo) List(ctx context.Context) ([]model.Clan, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, tag, created_at FROM clans ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list clans: %w", err)
	}
	defer rows.Close()

	clans := []model.Clan{}
	for rows.Next() {
		var c model.Clan
		if err := rows.Scan(&c.ID, &c.Name, &c.Tag, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan clan: %w", err)
		}
		clans = append(clans, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate clans: %w", err)
	}
	return clans, nil
}

// FindByID は指定IDのクランを取得する。見つからない場合はnilを返す。
func (r *PostgresClanRepo) FindByID(ctx context.Context, id string) (*model.Clan, error) {
	c := &model.Clan{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, tag, created_at FROM clans WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.Name, &c.Tag, &c.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find clan: %w", err)
	}
	return c, nil
}

// compile-time interface check
var _ ClanRepository = (*PostgresClanRepo)(nil)
