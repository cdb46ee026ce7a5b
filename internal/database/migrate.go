// Package database はデータベース接続とマイグレーション管理を提供する。
package database

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrationStatus はマイグレーション実行後のスキーマの状態。
type MigrationStatus struct {
	Version uint // 適用済みの最新バージョン。未適用なら0
	Latest  uint // 埋め込まれたマイグレーションの最新バージョン
	Dirty   bool
	Applied int // 今回の実行で適用した件数
}

func newSource() (source.Driver, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}
	return src, nil
}

// NewMigrator は埋め込みマイグレーションを読み込むmigrateインスタンスを生成する。
func NewMigrator(databaseURL string) (*migrate.Migrate, error) {
	src, err := newSource()
	if err != nil {
		return nil, err
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}

	return m, nil
}

// EmbeddedVersions は埋め込まれたマイグレーションのバージョンを昇順で返す。
func EmbeddedVersions() ([]uint, error) {
	src, err := newSource()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	v, err := src.First()
	if err != nil {
		return nil, fmt.Errorf("failed to read first migration: %w", err)
	}
	versions := []uint{v}
	for {
		v, err = src.Next(v)
		if errors.Is(err, fs.ErrNotExist) {
			return versions, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read migration after %d: %w", v, err)
		}
		versions = append(versions, v)
	}
}

// RunMigrations は未適用のマイグレーションを適用し、適用後の状態を返す。
// すでに最新の場合はApplied=0でエラーなしで返る。
// 前回の失敗でdirtyになっている場合は適用せず、そのバージョンをエラーに含める。
func RunMigrations(databaseURL string) (MigrationStatus, error) {
	versions, err := EmbeddedVersions()
	if err != nil {
		return MigrationStatus{}, err
	}

	m, err := NewMigrator(databaseURL)
	if err != nil {
		return MigrationStatus{}, err
	}
	defer m.Close()

	before, dirty, err := currentVersion(m)
	if err != nil {
		return MigrationStatus{}, err
	}
	status := MigrationStatus{Version: before, Latest: versions[len(versions)-1], Dirty: dirty}
	if dirty {
		return status, fmt.Errorf("database is dirty at version %d, resolve the failed migration before retrying", before)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		status.Version, status.Dirty, _ = currentVersion(m)
		return status, fmt.Errorf("failed to run migrations: %w", err)
	}

	status.Version, status.Dirty, err = currentVersion(m)
	if err != nil {
		return status, err
	}
	status.Applied = countBetween(versions, before, status.Version)
	return status, nil
}

func currentVersion(m *migrate.Migrate) (uint, bool, error) {
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read migration version: %w", err)
	}
	return v, dirty, nil
}

// countBetween はfromより大きくto以下のバージョン数を返す。
func countBetween(versions []uint, from, to uint) int {
	n := 0
	for _, v := range versions {
		if v > from && v <= to {
			n++
		}
	}
	return n
}
