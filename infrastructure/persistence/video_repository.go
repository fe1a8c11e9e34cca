package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"crosspost/domain/apperror"
	"crosspost/domain/model"
)

const videoColumns = `id, user_id, file_path, file_size, mime_type, title, description, created_at, updated_at`

const (
	createVideoQuery      = `INSERT INTO videos (` + videoColumns + `) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$8)`
	getVideoQuery         = `SELECT ` + videoColumns + ` FROM videos WHERE id=$1 AND user_id=$2`
	listVideosQuery       = `SELECT ` + videoColumns + ` FROM videos WHERE user_id=$1 ORDER BY created_at DESC`
	deleteVideoQuery      = `DELETE FROM videos WHERE id=$1 AND user_id=$2`
	deleteUserVideosQuery = `DELETE FROM videos WHERE user_id=$1`
)

// VideoRepository stores video metadata in PostgreSQL; the bytes live in object storage.
type VideoRepository struct{ db *sql.DB }

func NewVideoRepository(db *sql.DB) *VideoRepository { return &VideoRepository{db: db} }

func (r *VideoRepository) Create(ctx context.Context, v *model.Video) error {
	now := time.Now().UTC()
	v.CreatedAt, v.UpdatedAt = now, now
	_, err := r.db.ExecContext(ctx, createVideoQuery, v.ID, v.UserID, v.FilePath, v.FileSize, v.MimeType, v.Title, v.Description, now)
	return err
}

func (r *VideoRepository) GetByID(ctx context.Context, id, userID string) (*model.Video, error) {
	v, err := scanVideo(r.db.QueryRowContext(ctx, getVideoQuery, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &apperror.NotFoundError{Resource: "video", ID: id}
	}
	return v, err
}

func (r *VideoRepository) ListByUser(ctx context.Context, userID string) ([]*model.Video, error) {
	return queryVideos(ctx, r.db, listVideosQuery, userID)
}

func (r *VideoRepository) Delete(ctx context.Context, id, userID string) error {
	return execExpectingRow(ctx, r.db, &apperror.NotFoundError{Resource: "video", ID: id}, deleteVideoQuery, id, userID)
}

func (r *VideoRepository) DeleteByUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, deleteUserVideosQuery, userID)
	return err
}

func queryVideos(ctx context.Context, db *sql.DB, q string, args ...interface{}) ([]*model.Video, error) {
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*model.Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, v)
	}
	return list, rows.Err()
}

func scanVideo(row rowScanner) (*model.Video, error) {
	v := &model.Video{}
	if err := row.Scan(&v.ID, &v.UserID, &v.FilePath, &v.FileSize, &v.MimeType, &v.Title, &v.Description, &v.CreatedAt, &v.UpdatedAt); err != nil {
		return nil, err
	}
	return v, nil
}

// execExpectingRow runs q and returns notFound when no row was affected.
func execExpectingRow(ctx context.Context, db *sql.DB, notFound error, q string, args ...interface{}) error {
	res, err := db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
