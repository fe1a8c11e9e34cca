package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS social_connections (
		id BIGSERIAL PRIMARY KEY,
		user_id VARCHAR(128) NOT NULL,
		platform VARCHAR(32) NOT NULL,
		platform_user_id VARCHAR(255) NOT NULL DEFAULT '',
		platform_username VARCHAR(255) NOT NULL DEFAULT '',
		access_token TEXT NOT NULL,
		refresh_token TEXT NOT NULL DEFAULT '',
		token_expires_at TIMESTAMPTZ NULL,
		scope TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (user_id, platform)
	)`,
	`CREATE TABLE IF NOT EXISTS oauth_states (
		state_token VARCHAR(128) PRIMARY KEY,
		user_id VARCHAR(128) NOT NULL,
		platform VARCHAR(32) NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_oauth_states_expires_at ON oauth_states (expires_at)`,
	`CREATE TABLE IF NOT EXISTS videos (
		id VARCHAR(64) PRIMARY KEY,
		user_id VARCHAR(128) NOT NULL,
		file_path TEXT NOT NULL,
		file_size BIGINT NOT NULL DEFAULT 0,
		mime_type VARCHAR(128) NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_videos_user_id ON videos (user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS posts (
		id VARCHAR(64) PRIMARY KEY,
		video_id VARCHAR(64) NOT NULL REFERENCES videos (id) ON DELETE CASCADE,
		user_id VARCHAR(128) NOT NULL,
		platform VARCHAR(32) NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		tags TEXT[] NOT NULL DEFAULT '{}',
		status VARCHAR(16) NOT NULL,
		platform_post_id VARCHAR(255) NULL,
		platform_url TEXT NULL,
		error_message TEXT NULL,
		retry_count INTEGER NOT NULL DEFAULT 0,
		posted_at TIMESTAMPTZ NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_posts_user_video_platform ON posts (user_id, video_id, platform)`,
}

// EnsureSchema creates the tables used by the service. Safe to call at startup.
func EnsureSchema(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, ddl := range postgresSchema {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
