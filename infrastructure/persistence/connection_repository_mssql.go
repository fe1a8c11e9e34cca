package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"crosspost/domain/apperror"
	"crosspost/domain/model"
)

const (
	// MERGE upsert by (user_id, platform)
	upsertConnectionQueryMSSQL = `MERGE dbo.[social_connections] WITH (HOLDLOCK) AS target
USING (VALUES (@p1, @p2)) AS src(user_id, platform)
ON target.user_id = src.user_id AND target.platform = src.platform
WHEN MATCHED THEN UPDATE SET
    platform_user_id=@p3,
    platform_username=@p4,
    access_token=@p5,
    refresh_token=@p6,
    token_expires_at=@p7,
    scope=@p8,
    is_active=@p9,
    updated_at=@p10
WHEN NOT MATCHED THEN
    INSERT (user_id, platform, platform_user_id, platform_username, access_token, refresh_token, token_expires_at, scope, is_active, created_at, updated_at)
    VALUES (@p1,@p2,@p3,@p4,@p5,@p6,@p7,@p8,@p9,@p10,@p10)
OUTPUT inserted.id, inserted.created_at;`
	getActiveConnectionQueryMSSQL  = `SELECT ` + connectionColumns + ` FROM dbo.[social_connections] WHERE user_id=@p1 AND platform=@p2 AND is_active=1`
	listConnectionsQueryMSSQL      = `SELECT ` + connectionColumns + ` FROM dbo.[social_connections] WHERE user_id=@p1 ORDER BY platform`
	deleteConnectionQueryMSSQL     = `DELETE FROM dbo.[social_connections] WHERE user_id=@p1 AND platform=@p2`
	deleteUserConnectionQueryMSSQL = `DELETE FROM dbo.[social_connections] WHERE user_id=@p1`
)

// ConnectionRepositoryMSSQL stores platform connections in SQL Server.
type ConnectionRepositoryMSSQL struct{ db *sql.DB }

func NewConnectionRepositoryMSSQL(db *sql.DB) *ConnectionRepositoryMSSQL {
	return &ConnectionRepositoryMSSQL{db: db}
}

func (r *ConnectionRepositoryMSSQL) Upsert(ctx context.Context, c *model.Connection) error {
	now := time.Now().UTC()
	c.UpdatedAt = now
	row := r.db.QueryRowContext(ctx, upsertConnectionQueryMSSQL,
		c.UserID, string(c.Platform), c.PlatformUserID, c.PlatformUsername,
		c.AccessToken, c.RefreshToken, toNullTime(c.TokenExpiresAt), c.Scope, c.IsActive, now)
	return row.Scan(&c.ID, &c.CreatedAt)
}

func (r *ConnectionRepositoryMSSQL) GetActive(ctx context.Context, userID string, platform model.Platform) (*model.Connection, error) {
	row := r.db.QueryRowContext(ctx, getActiveConnectionQueryMSSQL, userID, string(platform))
	c, err := scanConnection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &apperror.NotFoundError{Resource: "connection", ID: string(platform)}
	}
	return c, err
}

func (r *ConnectionRepositoryMSSQL) ListByUser(ctx context.Context, userID string) ([]*model.Connection, error) {
	rows, err := r.db.QueryContext(ctx, listConnectionsQueryMSSQL, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*model.Connection
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

func (r *ConnectionRepositoryMSSQL) Delete(ctx context.Context, userID string, platform model.Platform) (bool, error) {
	res, err := r.db.ExecContext(ctx, deleteConnectionQueryMSSQL, userID, string(platform))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *ConnectionRepositoryMSSQL) DeleteByUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, deleteUserConnectionQueryMSSQL, userID)
	return err
}
