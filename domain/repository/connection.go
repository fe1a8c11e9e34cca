package repository

import (
	"context"

	"crosspost/domain/model"
)

// IConnection persists per-user platform connections.
type IConnection interface {
	// Upsert inserts or updates the row keyed by (user_id, platform) in one statement.
	Upsert(ctx context.Context, c *model.Connection) error
	// GetActive returns apperror.ErrNotFound when the user has no active connection.
	GetActive(ctx context.Context, userID string, platform model.Platform) (*model.Connection, error)
	ListByUser(ctx context.Context, userID string) ([]*model.Connection, error)
	// Delete reports whether a row was removed.
	Delete(ctx context.Context, userID string, platform model.Platform) (bool, error)
	DeleteByUser(ctx context.Context, userID string) error
}

// IOAuthState stores single-use CSRF state tokens.
type IOAuthState interface {
	Create(ctx context.Context, s *model.OAuthState) error
	// Consume atomically removes and returns the state. A missing token yields
	// apperror.ErrNotFound. Expiry and owner checks are left to the caller.
	Consume(ctx context.Context, token string, platform model.Platform) (*model.OAuthState, error)
	// DeleteExpired sweeps states that expired before now.
	DeleteExpired(ctx context.Context) (int64, error)
}
