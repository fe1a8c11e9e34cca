package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"crosspost/domain/apperror"
	"crosspost/domain/model"
)

const connectionColumns = `id, user_id, platform, platform_user_id, platform_username, access_token, refresh_token, token_expires_at, scope, is_active, created_at, updated_at`

const (
	upsertConnectionQuery = `INSERT INTO social_connections (user_id, platform, platform_user_id, platform_username, access_token, refresh_token, token_expires_at, scope, is_active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$10)
		ON CONFLICT (user_id, platform) DO UPDATE SET
			platform_user_id=EXCLUDED.platform_user_id,
			platform_username=EXCLUDED.platform_username,
			access_token=EXCLUDED.access_token,
			refresh_token=EXCLUDED.refresh_token,
			token_expires_at=EXCLUDED.token_expires_at,
			scope=EXCLUDED.scope,
			is_active=EXCLUDED.is_active,
			updated_at=EXCLUDED.updated_at
		RETURNING id, created_at`
	getActiveConnectionQuery  = `SELECT ` + connectionColumns + ` FROM social_connections WHERE user_id=$1 AND platform=$2 AND is_active=TRUE`
	listConnectionsQuery      = `SELECT ` + connectionColumns + ` FROM social_connections WHERE user_id=$1 ORDER BY platform`
	deleteConnectionQuery     = `DELETE FROM social_connections WHERE user_id=$1 AND platform=$2`
	deleteUserConnectionQuery = `DELETE FROM social_connections WHERE user_id=$1`
)

// ConnectionRepository stores platform connections in PostgreSQL.
type ConnectionRepository struct{ db *sql.DB }

func NewConnectionRepository(db *sql.DB) *ConnectionRepository {
	return &ConnectionRepository{db: db}
}

func (r *ConnectionRepository) Upsert(ctx context.Context, c *model.Connection) error {
	now := time.Now().UTC()
	c.UpdatedAt = now
	row := r.db.QueryRowContext(ctx, upsertConnectionQuery,
		c.UserID, string(c.Platform), c.PlatformUserID, c.PlatformUsername,
		c.AccessToken, c.RefreshToken, toNullTime(c.TokenExpiresAt), c.Scope, c.IsActive, now)
	return row.Scan(&c.ID, &c.CreatedAt)
}

func (r *ConnectionRepository) GetActive(ctx context.Context, userID string, platform model.Platform) (*model.Connection, error) {
	row := r.db.QueryRowContext(ctx, getActiveConnectionQuery, userID, string(platform))
	c, err := scanConnection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &apperror.NotFoundError{Resource: "connection", ID: string(platform)}
	}
	return c, err
}

func (r *ConnectionRepository) ListByUser(ctx context.Context, userID string) ([]*model.Connection, error) {
	rows, err := r.db.QueryContext(ctx, listConnectionsQuery, userID)
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

func (r *ConnectionRepository) Delete(ctx context.Context, userID string, platform model.Platform) (bool, error) {
	res, err := r.db.ExecContext(ctx, deleteConnectionQuery, userID, string(platform))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *ConnectionRepository) DeleteByUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, deleteUserConnectionQuery, userID)
	return err
}

func scanConnection(row rowScanner) (*model.Connection, error) {
	c := &model.Connection{}
	var platform string
	var exp sql.NullTime
	if err := row.Scan(&c.ID, &c.UserID, &platform, &c.PlatformUserID, &c.PlatformUsername,
		&c.AccessToken, &c.RefreshToken, &exp, &c.Scope, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Platform = model.Platform(platform)
	c.TokenExpiresAt = nullTimePtr(exp)
	return c, nil
}
