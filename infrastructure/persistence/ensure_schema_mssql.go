package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

var mssqlSchema = []struct {
	table string
	ddl   string
}{
	{"social_connections", `CREATE TABLE dbo.[social_connections] (
		id BIGINT IDENTITY(1,1) PRIMARY KEY,
		user_id NVARCHAR(128) NOT NULL,
		platform NVARCHAR(32) NOT NULL,
		platform_user_id NVARCHAR(255) NOT NULL DEFAULT '',
		platform_username NVARCHAR(255) NOT NULL DEFAULT '',
		access_token NVARCHAR(MAX) NOT NULL,
		refresh_token NVARCHAR(MAX) NOT NULL DEFAULT '',
		token_expires_at DATETIME2 NULL,
		scope NVARCHAR(MAX) NOT NULL DEFAULT '',
		is_active BIT NOT NULL DEFAULT 1,
		created_at DATETIME2 NOT NULL,
		updated_at DATETIME2 NOT NULL
	);
	CREATE UNIQUE INDEX UX_social_connections_user_platform ON dbo.[social_connections](user_id, platform);`},
	{"oauth_states", `CREATE TABLE dbo.[oauth_states] (
		state_token NVARCHAR(128) NOT NULL PRIMARY KEY,
		user_id NVARCHAR(128) NOT NULL,
		platform NVARCHAR(32) NOT NULL,
		expires_at DATETIME2 NOT NULL,
		created_at DATETIME2 NOT NULL
	);
	CREATE INDEX IX_oauth_states_expires_at ON dbo.[oauth_states](expires_at);`},
	{"videos", `CREATE TABLE dbo.[videos] (
		id NVARCHAR(64) NOT NULL PRIMARY KEY,
		user_id NVARCHAR(128) NOT NULL,
		file_path NVARCHAR(1024) NOT NULL,
		file_size BIGINT NOT NULL DEFAULT 0,
		mime_type NVARCHAR(128) NOT NULL DEFAULT '',
		title NVARCHAR(MAX) NOT NULL DEFAULT '',
		description NVARCHAR(MAX) NOT NULL DEFAULT '',
		created_at DATETIME2 NOT NULL,
		updated_at DATETIME2 NOT NULL
	);
	CREATE INDEX IX_videos_user_id ON dbo.[videos](user_id, created_at);`},
	{"posts", `CREATE TABLE dbo.[posts] (
		id NVARCHAR(64) NOT NULL PRIMARY KEY,
		video_id NVARCHAR(64) NOT NULL REFERENCES dbo.[videos](id) ON DELETE CASCADE,
		user_id NVARCHAR(128) NOT NULL,
		platform NVARCHAR(32) NOT NULL,
		title NVARCHAR(MAX) NOT NULL DEFAULT '',
		description NVARCHAR(MAX) NOT NULL DEFAULT '',
		tags NVARCHAR(MAX) NOT NULL DEFAULT '[]',
		status NVARCHAR(16) NOT NULL,
		platform_post_id NVARCHAR(255) NULL,
		platform_url NVARCHAR(1024) NULL,
		error_message NVARCHAR(MAX) NULL,
		retry_count INT NOT NULL DEFAULT 0,
		posted_at DATETIME2 NULL,
		created_at DATETIME2 NOT NULL,
		updated_at DATETIME2 NOT NULL
	);
	CREATE INDEX IX_posts_user_video_platform ON dbo.[posts](user_id, video_id, platform);`},
}

// EnsureSchemaMSSQL creates the service tables on SQL Server when missing.
func EnsureSchemaMSSQL(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, t := range mssqlSchema {
		q := fmt.Sprintf(`IF NOT EXISTS (SELECT * FROM sys.objects WHERE object_id = OBJECT_ID(N'dbo.%s') AND type in (N'U'))
BEGIN
	%s
END`, t.table, t.ddl)
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create %s (mssql): %w", t.table, err)
		}
	}
	return nil
}
