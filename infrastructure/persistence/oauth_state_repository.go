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
	createStateQuery        = `INSERT INTO oauth_states (state_token, user_id, platform, expires_at, created_at) VALUES ($1,$2,$3,$4,$5)`
	consumeStateQuery       = `DELETE FROM oauth_states WHERE state_token=$1 AND platform=$2 RETURNING user_id, expires_at, created_at`
	deleteExpiredStateQuery = `DELETE FROM oauth_states WHERE expires_at < $1`
)

// OAuthStateRepository keeps CSRF state tokens in PostgreSQL. Consume is a
// single DELETE ... RETURNING so two concurrent callbacks cannot both win.
type OAuthStateRepository struct{ db *sql.DB }

func NewOAuthStateRepository(db *sql.DB) *OAuthStateRepository {
	return &OAuthStateRepository{db: db}
}

func (r *OAuthStateRepository) Create(ctx context.Context, s *model.OAuthState) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, createStateQuery, s.StateToken, s.UserID, string(s.Platform), s.ExpiresAt, s.CreatedAt)
	return err
}

func (r *OAuthStateRepository) Consume(ctx context.Context, token string, platform model.Platform) (*model.OAuthState, error) {
	s := &model.OAuthState{StateToken: token, Platform: platform}
	err := r.db.QueryRowContext(ctx, consumeStateQuery, token, string(platform)).Scan(&s.UserID, &s.ExpiresAt, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &apperror.NotFoundError{Resource: "oauth state", ID: string(platform)}
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *OAuthStateRepository) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, deleteExpiredStateQuery, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
