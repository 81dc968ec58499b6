package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/clanhub/internal/model"
)

// PostgresHeroRepo はPostgreSQLを使用したヒーロープロフィールリポジトリ。
type PostgresHeroRepo struct {
	db *sql.DB
}

// NewPostgresHeroRepo はPostgresHeroRepoを生成する。
func NewPostgresHeroRepo(db *sql.DB) *PostgresHeroRepo {
	return &PostgresHeroRepo{db: db}
}

const heroColumns = `id, clan_id, user_id, nickname, gender, birth_year, education, intro, photo_url, status,
	pref_min_age, pref_max_age, pref_min_education, pref_gender, created_at, updated_at`

// rowScanner は*sql.Rowと*sql.Rowsの共通部分。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanHero(s rowScanner) (*model.Hero, error) {
	h := &model.Hero{}
	err := s.Scan(
		&h.ID, &h.ClanID, &h.UserID, &h.Nickname, &h.Gender, &h.BirthYear, &h.Education,
		&h.Intro, &h.PhotoURL, &h.Status,
		&h.Preference.MinAge, &h.Preference.MaxAge, &h.Preference.MinEducation, &h.Preference.Gender,
		&h.CreatedAt, &h.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// FindByUserID は指定ユーザーのプロフィールを取得する。見つからない場合はnilを返す。
func (r *PostgresHeroRepo) FindByUserID(ctx context.Context, userID string) (*model.Hero, error) {
	h, err := scanHero(r.db.QueryRowContext(ctx,
		`SELECT `+heroColumns+` FROM heroes WHERE user_id = $1`,
		userID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find hero: %w", err)
	}
	return h, nil
}

// ListByClan はクラン内のプロフィールを更新日時の降順で取得する。
// statusが空の場合は全ステータスを返す。
func (r *PostgresHeroRepo) ListByClan(ctx context.Context, clanID string, status model.HeroStatus) ([]model.Hero, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+heroColumns+` FROM heroes
		 WHERE clan_id = $1 AND ($2::text = '' OR status = $2)
		 ORDER BY updated_at DESC, id`,
		clanID, string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list heroes: %w", err)
	}
	defer rows.Close()

	heroes := []model.Hero{}
	for rows.Next() {
		h, err := scanHero(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan hero: %w", err)
		}
		heroes = append(heroes, *h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate heroes: %w", err)
	}
	return heroes, nil
}

// Upsert はユーザー単位でプロフィールを作成または置き換える。
// 既存行がある場合はIDとcreated_atを保持する。
func (r *PostgresHeroRepo) Upsert(ctx context.Context, h *model.Hero) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO heroes (`+heroColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		 ON CONFLICT (user_id) DO UPDATE SET
			clan_id = EXCLUDED.clan_id,
			nickname = EXCLUDED.nickname,
			gender = EXCLUDED.gender,
			birth_year = EXCLUDED.birth_year,
			education = EXCLUDED.education,
			intro = EXCLUDED.intro,
			photo_url = EXCLUDED.photo_url,
			status = EXCLUDED.status,
			pref_min_age = EXCLUDED.pref_min_age,
			pref_max_age = EXCLUDED.pref_max_age,
			pref_min_education = EXCLUDED.pref_min_education,
			pref_gender = EXCLUDED.pref_gender,
			updated_at = EXCLUDED.updated_at
		 RETURNING id, created_at`,
		h.ID, h.ClanID, h.UserID, h.Nickname, h.Gender, h.BirthYear, h.Education,
		h.Intro, h.PhotoURL, h.Status,
		h.Preference.MinAge, h.Preference.MaxAge, h.Preference.MinEducation, h.Preference.Gender,
		h.CreatedAt, h.UpdatedAt,
	).Scan(&h.ID, &h.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert hero: %w", err)
	}
	return nil
}

// UpdateStatus は指定ユーザーのプロフィールのステータスを更新する。
func (r *PostgresHeroRepo) UpdateStatus(ctx context.Context, userID string, status model.HeroStatus) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE heroes SET status = $2, updated_at = now() WHERE user_id = $1`,
		userID, status,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update hero status: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// DeleteByUserID は指定ユーザーのプロフィールを削除する。
func (r *PostgresHeroRepo) DeleteByUserID(ctx context.Context, userID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM heroes WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete hero: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// compile-time interface check
var _ HeroRepository = (*PostgresHeroRepo)(nil)
