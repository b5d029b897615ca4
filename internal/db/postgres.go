package db

import (
	"context"
	"embed"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	migrate "github.com/rubenv/sql-migrate"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// NewPostgres создаёт подключение к PostgreSQL с заданным DSN.
func NewPostgres(ctx context.Context, dsn string) (*sqlx.DB, error) {
	conn, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: не удалось подключиться: %w", err)
	}

	conn.SetMaxOpenConns(100)
	conn.SetMaxIdleConns(25)
	conn.SetConnMaxLifetime(5 * time.Minute)

	return conn, nil
}

// Migrations возвращает источник встроенных миграций.
func Migrations() migrate.MigrationSource {
	return migrate.EmbedFileSystemMigrationSource{
		FileSystem: migrationFiles,
		Root:       "migrations",
	}
}

// Migrate применяет (direction = migrate.Up) или откатывает миграции и возвращает их количество.
func Migrate(conn *sqlx.DB, direction migrate.MigrationDirection) (int, error) {
	n, err := migrate.Exec(conn.DB, "postgres", Migrations(), direction)
	if err != nil {
		return 0, fmt.Errorf("postgres: ошибка миграций: %w", err)
	}
	return n, nil
}
