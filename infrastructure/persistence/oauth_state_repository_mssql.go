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
	createStateQueryMSSQL        = `INSERT INTO dbo.[oauth_states] (state_token, user_id, platform, expires_at, created_at) VALUES (@p1,@p2,@p3,@p4,@p5)`
	consumeStateQueryMSSQL       = `DELETE FROM dbo.[oauth_states] OUTPUT deleted.user_id, deleted.expires_at, deleted.created_at WHERE state_token=@p1 AND platform=@p2`
	deleteExpiredStateQueryMSSQL = `DELETE FROM dbo.[oauth_states] WHERE expires_at < @p1`
)

type OAuthStateRepositoryMSSQL struct{ db *sql.DB }

func NewOAuthStateRepositoryMSSQL(db *sql.DB) *OAuthStateRepositoryMSSQL {
	return &OAuthStateRepositoryMSSQL{db: db}
}

func (r *OAuthStateRepositoryMSSQL) Create(ctx context.Context, s *model.OAuthState) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, createStateQueryMSSQL, s.StateToken, s.UserID, string(s.Platform), s.ExpiresAt, s.CreatedAt)
	return err
}

func (r *OAuthStateRepositoryMSSQL) Consume(ctx context.Context, token string, platform model.Platform) (*model.OAuthState, error) {
	s := &model.OAuthState{StateToken: token, Platform: platform}
	err := r.db.QueryRowContext(ctx, consumeStateQueryMSSQL, token, string(platform)).Scan(&s.UserID, &s.ExpiresAt, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &apperror.NotFoundError{Resource: "oauth state", ID: string(platform)}
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *OAuthStateRepositoryMSSQL) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, deleteExpiredStateQueryMSSQL, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
