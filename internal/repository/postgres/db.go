package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Драйвер Postgres
	"github.com/pressly/goose/v3"
	"github.com/xela07ax/spaceai-agent-portal/migrations"
)

// Open открывает пул соединений; доступность базы проверяется через Ping.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	return db, nil
}

func Ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

// Migrate применяет встроенные миграции: up, down, status, version или redo.
func Migrate(ctx context.Context, db *sql.DB, action string) error {
	goose.SetBaseFS(migrations.EmbeddedFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	switch action {
	case "up":
		return goose.UpContext(ctx, db, ".")
	case "down":
		return goose.DownContext(ctx, db, ".")
	case "status":
		return goose.StatusContext(ctx, db, ".")
	case "version":
		_, err := goose.GetDBVersionContext(ctx, db)
		return err
	case "redo":
		return goose.RedoContext(ctx, db, ".")
	default:
		return fmt.Errorf("unknown migrate action %q", action)
	}
}
