package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// Init opens the view log database and applies the schema.
func Init(ctx context.Context, dbPath string) (*sql.DB, error) {
	dsn := formatDBPath(dbPath)

	instance, err := sql.Open("sqlite", dsn)
	if err != nil {
		log.Error().Err(err).Msg("failed to open database")
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := instance.PingContext(ctx); err != nil {
		log.Error().Err(err).Msg("failed to ping database")
		instance.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Debug().Msg("database connection successful")

	if err := migrate(ctx, instance); err != nil {
		log.Error().Err(err).Msg("failed to run migrations")
		instance.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info().Msg("migrations completed successfully")

	return instance, nil
}

func formatDBPath(path string) string {
	path = strings.TrimPrefix(path, "file:")

	// Add pragmas for better performance and safety
	// See: https://pkg.go.dev/modernc.org/sqlite#pkg-overview
	params := url.Values{}
	params.Set("mode", "rwc")
	params.Set("_time_format", "sqlite")
	params.Set("_pragma", "foreign_keys(1)")
	params.Add("_pragma", "journal_mode(WAL)")
	params.Add("_pragma", "synchronous(NORMAL)")
	params.Add("_pragma", "busy_timeout(5000)")

	return "file:" + path + "?" + params.Encode()
}

func migrate(ctx context.Context, db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS views (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		target TEXT NOT NULL,
		label TEXT NOT NULL DEFAULT '',
		viewed_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
		user_agent TEXT,
		ip_address TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_views_target ON views(target);
	CREATE INDEX IF NOT EXISTS idx_views_viewed_at ON views(viewed_at);
	`

	_, err := db.ExecContext(ctx, schema)
	return err
}
