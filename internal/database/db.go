package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Connect opens the postgres pool, pings it and makes sure the schema exists.
func Connect(ctx context.Context, cfg DBConfig, log *zap.Logger) (*pgxpool.Pool, error) {
	if cfg.User == "" || cfg.Host == "" || cfg.Port == "" || cfg.DBName == "" {
		return nil, fmt.Errorf("DB config incomplete: DB_USER/DB_HOST/DB_PORT/DB_NAME must be set")
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.TargetDSN())
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	log.Info("connected to postgres", zap.String("host", cfg.Host), zap.String("db", cfg.DBName))
	return pool, nil
}

// OpenSQLite opens the embedded database with a single connection, so every
// write goes through one writer.
func OpenSQLite(ctx context.Context, cfg DBConfig, log *zap.Logger) (*sql.DB, error) {
	if cfg.SQLitePath == "" {
		return nil, fmt.Errorf("DB config incomplete: SQLITE_PATH must be set")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.SQLiteDSN())
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	log.Info("opened sqlite", zap.String("path", cfg.SQLitePath))
	return db, nil
}
