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
	createVideoQueryMSSQL      = `INSERT INTO dbo.[videos] (` + videoColumns + `) VALUES (@p1,@p2,@p3,@p4,@p5,@p6,@p7,@p8,@p8)`
	getVideoQueryMSSQL         = `SELECT ` + videoColumns + ` FROM dbo.[videos] WHERE id=@p1 AND user_id=@p2`
	listVideosQueryMSSQL       = `SELECT ` + videoColumns + ` FROM dbo.[videos] WHERE user_id=@p1 ORDER BY created_at DESC`
	deleteVideoQueryMSSQL      = `DELETE FROM dbo.[videos] WHERE id=@p1 AND user_id=@p2`
	deleteUserVideosQueryMSSQL = `DELETE FROM dbo.[videos] WHERE user_id=@p1`
)

type VideoRepositoryMSSQL struct{ db *sql.DB }

func NewVideoRepositoryMSSQL(db *sql.DB) *VideoRepositoryMSSQL {
	return &VideoRepositoryMSSQL{db: db}
}

func (r *VideoRepositoryMSSQL) Create(ctx context.Context, v *model.Video) error {
	now := time.Now().UTC()
	v.CreatedAt, v.UpdatedAt = now, now
	_, err := r.db.ExecContext(ctx, createVideoQueryMSSQL, v.ID, v.UserID, v.FilePath, v.FileSize, v.MimeType, v.Title, v.Description, now)
	return err
}

func (r *VideoRepositoryMSSQL) GetByID(ctx context.Context, id, userID string) (*model.Video, error) {
	v, err := scanVideo(r.db.QueryRowContext(ctx, getVideoQueryMSSQL, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &apperror.NotFoundError{Resource: "video", ID: id}
	}
	return v, err
}

func (r *VideoRepositoryMSSQL) ListByUser(ctx context.Context, userID string) ([]*model.Video, error) {
	return queryVideos(ctx, r.db, listVideosQueryMSSQL, userID)
}

func (r *VideoRepositoryMSSQL) Delete(ctx context.Context, id, userID string) error {
	return execExpectingRow(ctx, r.db, &apperror.NotFoundError{Resource: "video", ID: id}, deleteVideoQueryMSSQL, id, userID)
}

func (r *VideoRepositoryMSSQL) DeleteByUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, deleteUserVideosQueryMSSQL, userID)
	return err
}
