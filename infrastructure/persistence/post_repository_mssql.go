package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"crosspost/domain/apperror"
	"crosspost/domain/model"
)

const (
	createPostQueryMSSQL = `INSERT INTO dbo.[posts] (id, video_id, user_id, platform, title, description, tags, status, retry_count, created_at, updated_at)
		VALUES (@p1,@p2,@p3,@p4,@p5,@p6,@p7,@p8,0,@p9,@p9)`
	updatePostStatusQueryMSSQL = `UPDATE dbo.[posts] SET status=@p1, updated_at=@p2
		WHERE id=@p3 AND user_id=@p4 AND status NOT IN ('published','failed')`
	publishPostQueryMSSQL = `UPDATE dbo.[posts] SET status='published', platform_post_id=@p1, platform_url=@p2, posted_at=@p3, updated_at=@p3
		WHERE id=@p4 AND user_id=@p5 AND status NOT IN ('published','failed')`
	failPostQueryMSSQL = `UPDATE dbo.[posts] SET status='failed', error_message=@p1, updated_at=@p2,
			retry_count=(SELECT COUNT(*) FROM dbo.[posts] prev WHERE prev.user_id=@p3 AND prev.video_id=@p4 AND prev.platform=@p5 AND prev.status='failed' AND prev.id<>@p6)
		OUTPUT inserted.retry_count
		WHERE id=@p6 AND user_id=@p3 AND status NOT IN ('published','failed')`
	deleteUserPostsQueryMSSQL = `DELETE FROM dbo.[posts] WHERE user_id=@p1`
)

// PostRepositoryMSSQL stores tags as a JSON array since SQL Server has no array type.
type PostRepositoryMSSQL struct{ db *sql.DB }

func NewPostRepositoryMSSQL(db *sql.DB) *PostRepositoryMSSQL { return &PostRepositoryMSSQL{db: db} }

func (r *PostRepositoryMSSQL) Create(ctx context.Context, p *model.Post) error {
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	if p.Tags == nil {
		p.Tags = []string{}
	}
	tags, err := json.Marshal(p.Tags)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, createPostQueryMSSQL, p.ID, p.VideoID, p.UserID, string(p.Platform),
		p.Title, p.Description, string(tags), string(p.Status), now)
	return err
}

func (r *PostRepositoryMSSQL) UpdateStatus(ctx context.Context, id, userID string, status model.PostStatus) error {
	return execExpectingRow(ctx, r.db, apperror.ErrInvalidTransition, updatePostStatusQueryMSSQL, string(status), time.Now().UTC(), id, userID)
}

func (r *PostRepositoryMSSQL) MarkPublished(ctx context.Context, p *model.Post) error {
	now := time.Now().UTC()
	if p.PostedAt == nil {
		p.PostedAt = &now
	}
	err := execExpectingRow(ctx, r.db, apperror.ErrInvalidTransition, publishPostQueryMSSQL,
		toNullString(p.PlatformPostID), toNullString(p.PlatformURL), *p.PostedAt, p.ID, p.UserID)
	if err != nil {
		return err
	}
	p.Status = model.PostStatusPublished
	p.UpdatedAt = *p.PostedAt
	return nil
}

func (r *PostRepositoryMSSQL) MarkFailed(ctx context.Context, p *model.Post) error {
	now := time.Now().UTC()
	err := r.db.QueryRowContext(ctx, failPostQueryMSSQL, toNullString(p.ErrorMessage), now,
		p.UserID, p.VideoID, string(p.Platform), p.ID).Scan(&p.RetryCount)
	if errors.Is(err, sql.ErrNoRows) {
		return apperror.ErrInvalidTransition
	}
	if err != nil {
		return err
	}
	p.Status = model.PostStatusFailed
	p.UpdatedAt = now
	return nil
}

func (r *PostRepositoryMSSQL) List(ctx context.Context, userID string, filter model.PostFilter) ([]*model.Post, error) {
	conds := []string{"user_id=@p1"}
	args := []interface{}{userID}
	if filter.VideoID != "" {
		args = append(args, filter.VideoID)
		conds = append(conds, fmt.Sprintf("video_id=@p%d", len(args)))
	}
	if filter.Platform != "" {
		args = append(args, string(filter.Platform))
		conds = append(conds, fmt.Sprintf("platform=@p%d", len(args)))
	}
	q := `SELECT ` + postColumns + ` FROM dbo.[posts] WHERE ` + strings.Join(conds, " AND ") + ` ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPosts(rows, scanPostMSSQL)
}

func (r *PostRepositoryMSSQL) DeleteByUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, deleteUserPostsQueryMSSQL, userID)
	return err
}

func scanPostMSSQL(row rowScanner) (*model.Post, error) {
	p := &model.Post{}
	var platform, status, tags string
	var postID, url, errMsg sql.NullString
	var postedAt sql.NullTime
	if err := row.Scan(&p.ID, &p.VideoID, &p.UserID, &platform, &p.Title, &p.Description, &tags,
		&status, &postID, &url, &errMsg, &p.RetryCount, &postedAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if tags != "" {
		if err := json.Unmarshal([]byte(tags), &p.Tags); err != nil {
			return nil, fmt.Errorf("decode tags of post %s: %w", p.ID, err)
		}
	}
	p.Platform = model.Platform(platform)
	p.Status = model.PostStatus(status)
	p.PlatformPostID = nullStringPtr(postID)
	p.PlatformURL = nullStringPtr(url)
	p.ErrorMessage = nullStringPtr(errMsg)
	p.PostedAt = nullTimePtr(postedAt)
	return p, nil
}
