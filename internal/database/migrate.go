// Package database はデータベース接続とマイグレーション管理を提供する。
package database

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// migrationsFS はclans, users, identities, sessions, heroesのスキーマ定義。
//
//go:embed migrations/*.sql
var migrationsFS embed.FS

// NewMigrator はマイグレーション実行用のmigrateインスタンスを生成する。
// databaseURLはPostgreSQLの接続URLを指定する。
func NewMigrator(databaseURL string) (*migrate.Migrate, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}

	return m, nil
}

// RunMigrations はすべてのマイグレーションを適用する。
// すでに最新の場合はエラーなしで返る。
// 前回の適用が途中で失敗していた（dirty）場合は適用せずにエラーを返す。
func RunMigrations(databaseURL string) error {
	m, err := NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	from, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		from = 0
	case err != nil:
		return fmt.Errorf("failed to read migration version: %w", err)
	case dirty:
		return fmt.Errorf("database is dirty at migration version %d", from)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			slog.Info("database schema is up to date", slog.Uint64("version", uint64(from)))
			return nil
		}
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	to, _, err := m.Version()
	if err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	slog.Info("database migrations applied",
		slog.Uint64("from_version", uint64(from)),
		slog.Uint64("to_version", uint64(to)),
	)
	return nil
}
