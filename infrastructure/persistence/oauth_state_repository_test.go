package persistence

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"crosspost/domain/apperror"
	"crosspost/domain/model"
)

func TestOAuthStateRepository_CreateAndConsume(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewOAuthStateRepository(db)
	now := time.Now().UTC()
	expires := now.Add(10 * time.Minute)

	mock.ExpectExec(regexp.QuoteMeta(createStateQuery)).
		WithArgs("abc", "user-1", "youtube", expires, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(consumeStateQuery)).
		WithArgs("abc", "youtube").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "expires_at", "created_at"}).AddRow("user-1", expires, now))
	mock.ExpectQuery(regexp.QuoteMeta(consumeStateQuery)).
		WithArgs("abc", "youtube").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "expires_at", "created_at"}))

	state := &model.OAuthState{StateToken: "abc", UserID: "user-1", Platform: model.PlatformYouTube, ExpiresAt: expires, CreatedAt: now}
	require.NoError(t, repo.Create(context.Background(), state))

	got, err := repo.Consume(context.Background(), "abc", model.PlatformYouTube)
	require.NoError(t, err)
	require.Equal(t, "user-1", got.UserID)
	require.Equal(t, expires, got.ExpiresAt)

	_, err = repo.Consume(context.Background(), "abc", model.PlatformYouTube)
	require.True(t, errors.Is(err, apperror.ErrNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOAuthStateRepository_DeleteExpired(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewOAuthStateRepository(db)
	mock.ExpectExec(regexp.QuoteMeta(deleteExpiredStateQuery)).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.DeleteExpired(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(3), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOAuthStateRepositoryMSSQL_Consume(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewOAuthStateRepositoryMSSQL(db)
	expires := time.Now().UTC().Add(-time.Minute)
	mock.ExpectQuery(regexp.QuoteMeta(consumeStateQueryMSSQL)).
		WithArgs("tok", "tiktok").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "expires_at", "created_at"}).AddRow("user-2", expires, expires))

	got, err := repo.Consume(context.Background(), "tok", model.PlatformTikTok)
	require.NoError(t, err)
	require.True(t, got.Expired(time.Now()))
	require.NoError(t, mock.ExpectationsWereMet())
}
