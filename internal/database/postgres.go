package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

var PostgresDB *sql.DB

// ConnectPostgres opens the directory database and creates its tables.
func ConnectPostgres(ctx context.Context, postgresURI string) error {
	db, err := sql.Open("postgres", postgresURI)
	if err != nil {
		return err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err = db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return err
	}
	PostgresDB = db
	log.Info().Msg("✅ Connected to PostgreSQL")

	return InitPostgresTables(ctx, db)
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS chat_users (
		id TEXT PRIMARY KEY,
		display_name VARCHAR(64) NOT NULL DEFAULT '',
		language VARCHAR(16) NOT NULL DEFAULT 'en',
		gender VARCHAR(16) NOT NULL DEFAULT '',
		country VARCHAR(64) NOT NULL DEFAULT '',
		age INTEGER NOT NULL DEFAULT 0,
		profile_complete BOOLEAN NOT NULL DEFAULT FALSE,
		blocked BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP NOT NULL DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_chat_users_eligible ON chat_users(profile_complete, blocked)`,
	`CREATE INDEX IF NOT EXISTS idx_chat_users_language ON chat_users(LOWER(language))`,
	`CREATE INDEX IF NOT EXISTS idx_chat_users_country ON chat_users(LOWER(country))`,
}

// InitPostgresTables creates the directory tables if they don't exist.
func InitPostgresTables(ctx context.Context, db *sql.DB) error {
	for _, query := range schema {
		if _, err := db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("init postgres schema: %w", err)
		}
	}
	log.Info().Msg("✅ PostgreSQL tables initialized")
	return nil
}

// DisconnectPostgres closes the PostgreSQL connection
func DisconnectPostgres() error {
	if PostgresDB != nil {
		return PostgresDB.Close()
	}
	return nil
}
