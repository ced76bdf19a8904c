package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	_ "github.com/lib/pq"              // registers the "postgres" driver

	"servex_backend/internal/config"
	"servex_backend/pkg/utils"
)

//go:embed schema.sql
var schemaSQL string

const (
	maxConnectAttempts = 10
	connectRetryDelay  = 2 * time.Second
	pingTimeout        = 5 * time.Second
)

// Connect opens a pool with the configured driver and waits for the server to answer,
// retrying while ctx allows. The schema is applied when cfg.ApplySchema is set.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	var db *sql.DB
	var err error

	for attempt := 1; attempt <= maxConnectAttempts; attempt++ {
		db, err = sql.Open(cfg.Driver, cfg.DSN())
		if err == nil {
			pctx, cancel := context.WithTimeout(ctx, pingTimeout)
			err = db.PingContext(pctx)
			cancel()
			if err == nil {
				break
			}
			_ = db.Close()
		}

		utils.LogWarn("Database not reachable, retrying", map[string]interface{}{
			"attempt": attempt,
			"driver":  cfg.Driver,
			"host":    cfg.Host,
			"error":   err.Error(),
		})
		select {
		case <-time.After(connectRetryDelay):
		case <-ctx.Done():
			return nil, fmt.Errorf("database connect canceled: %w", ctx.Err())
		}
	}
	if err != nil {
		return nil, fmt.Errorf("database unreachable after %d attempts: %w", maxConnectAttempts, err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	utils.LogInfo("Successfully connected to the database", map[string]interface{}{
		"driver": cfg.Driver,
		"host":   cfg.Host,
		"name":   cfg.Name,
	})

	if cfg.ApplySchema {
		if err := ApplySchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return db, nil
}

// ApplySchema executes the embedded schema. Every statement is idempotent.
func ApplySchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("could not execute schema script: %w", err)
	}
	utils.LogInfo("Database schema applied")
	return nil
}
