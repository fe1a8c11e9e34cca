package persistence

import (
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureSchema_CreatesEveryTable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	for _, ddl := range postgresSchema {
		mock.ExpectExec(regexp.QuoteMeta(ddl)).WillReturnResult(sqlmock.NewResult(0, 0))
	}

	require.NoError(t, EnsureSchema(db))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema_PostsCarryRetryCount(t *testing.T) {
	var posts string
	for _, ddl := range postgresSchema {
		if regexp.MustCompile(`CREATE TABLE IF NOT EXISTS posts\b`).MatchString(ddl) {
			posts = ddl
		}
	}
	require.NotEmpty(t, posts)
	assert.Contains(t, posts, "retry_count INTEGER NOT NULL DEFAULT 0")
}

func TestEnsureSchema_StopsOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(postgresSchema[0])).WillReturnError(errors.New("permission denied"))

	err = EnsureSchema(db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
	require.NoError(t, mock.ExpectationsWereMet())
}
