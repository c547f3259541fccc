package db

import (
	"embed"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"LIBRA-backend/internal/platform/config"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrateURL は golang-migrate の mysql ドライバ向け URL を返す。
func MigrateURL(c config.DatabaseConfig) (string, error) {
	mc, err := mysql.ParseDSN(DSN(c))
	if err != nil {
		return "", err
	}
	mc.MultiStatements = true
	return "mysql://" + mc.FormatDSN(), nil
}

// NewMigrator はマイグレーション実行用のmigrateインスタンスを生成する。
func NewMigrator(c config.DatabaseConfig) (*migrate.Migrate, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}
	url, err := MigrateURL(c)
	if err != nil {
		return nil, fmt.Errorf("failed to build migration url: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, url)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	return m, nil
}

// RunMigrations はすべてのマイグレーションを適用する。
// すでに最新の場合はエラーなしで返る。
func RunMigrations(c config.DatabaseConfig) error {
	m, err := NewMigrator(c)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
