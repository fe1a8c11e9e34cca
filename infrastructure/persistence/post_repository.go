package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"crosspost/domain/apperror"
	"crosspost/domain/model"

	"github.com/lib/pq"
)

const postColumns = `id, video_id, user_id, platform, title, description, tags, status, platform_post_id, platform_url, error_message, retry_count, posted_at, created_at, updated_at`

const (
	createPostQuery = `INSERT INTO posts (id, video_id, user_id, platform, title, description, tags, status, retry_count, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,0,$9,$9)`
	updatePostStatusQuery = `UPDATE posts SET status=$1, updated_at=$2
		WHERE id=$3 AND user_id=$4 AND status NOT IN ('published','failed')`
	publishPostQuery = `UPDATE posts SET status='published', platform_post_id=$1, platform_url=$2, posted_at=$3, updated_at=$3
		WHERE id=$4 AND user_id=$5 AND status NOT IN ('published','failed')`
	// retry_count counts earlier failed attempts for the same video and platform.
	failPostQuery = `UPDATE posts SET status='failed', error_message=$1, updated_at=$2,
			retry_count=(SELECT COUNT(*) FROM posts prev WHERE prev.user_id=$3 AND prev.video_id=$4 AND prev.platform=$5 AND prev.status='failed' AND prev.id<>$6)
		WHERE id=$6 AND user_id=$3 AND status NOT IN ('published','failed')
		RETURNING retry_count`
	deleteUserPostsQuery = `DELETE FROM posts WHERE user_id=$1`
)

// PostRepository stores publish attempts in PostgreSQL. Every status update is
// guarded so a terminal post is never rewritten.
type PostRepository struct{ db *sql.DB }

func NewPostRepository(db *sql.DB) *PostRepository { return &PostRepository{db: db} }

func (r *PostRepository) Create(ctx context.Context, p *model.Post) error {
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	if p.Tags == nil {
		p.Tags = []string{}
	}
	_, err := r.db.ExecContext(ctx, createPostQuery, p.ID, p.VideoID, p.UserID, string(p.Platform),
		p.Title, p.Description, pq.Array(p.Tags), string(p.Status), now)
	return err
}

func (r *PostRepository) UpdateStatus(ctx context.Context, id, userID string, status model.PostStatus) error {
	return execExpectingRow(ctx, r.db, apperror.ErrInvalidTransition, updatePostStatusQuery, string(status), time.Now().UTC(), id, userID)
}

func (r *PostRepository) MarkPublished(ctx context.Context, p *model.Post) error {
	now := time.Now().UTC()
	if p.PostedAt == nil {
		p.PostedAt = &now
	}
	err := execExpectingRow(ctx, r.db, apperror.ErrInvalidTransition, publishPostQuery,
		toNullString(p.PlatformPostID), toNullString(p.PlatformURL), *p.PostedAt, p.ID, p.UserID)
	if err != nil {
		return err
	}
	p.Status = model.PostStatusPublished
	p.UpdatedAt = *p.PostedAt
	return nil
}

func (r *PostRepository) MarkFailed(ctx context.Context, p *model.Post) error {
	now := time.Now().UTC()
	err := r.db.QueryRowContext(ctx, failPostQuery, toNullString(p.ErrorMessage), now,
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

func (r *PostRepository) List(ctx context.Context, userID string, filter model.PostFilter) ([]*model.Post, error) {
	q, args := listPostsQuery(userID, filter)
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPosts(rows, scanPost)
}

func (r *PostRepository) DeleteByUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, deleteUserPostsQuery, userID)
	return err
}

func listPostsQuery(userID string, filter model.PostFilter) (string, []interface{}) {
	conds := []string{"user_id=$1"}
	args := []interface{}{userID}
	if filter.VideoID != "" {
		args = append(args, filter.VideoID)
		conds = append(conds, fmt.Sprintf("video_id=$%d", len(args)))
	}
	if filter.Platform != "" {
		args = append(args, string(filter.Platform))
		conds = append(conds, fmt.Sprintf("platform=$%d", len(args)))
	}
	return `SELECT ` + postColumns + ` FROM posts WHERE ` + strings.Join(conds, " AND ") + ` ORDER BY created_at DESC`, args
}

func scanPosts(rows *sql.Rows, scan func(rowScanner) (*model.Post, error)) ([]*model.Post, error) {
	var list []*model.Post
	for rows.Next() {
		p, err := scan(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

func scanPost(row rowScanner) (*model.Post, error) {
	p := &model.Post{}
	var platform, status string
	var postID, url, errMsg sql.NullString
	var postedAt sql.NullTime
	if err := row.Scan(&p.ID, &p.VideoID, &p.UserID, &platform, &p.Title, &p.Description, pq.Array(&p.Tags),
		&status, &postID, &url, &errMsg, &p.RetryCount, &postedAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Platform = model.Platform(platform)
	p.Status = model.PostStatus(status)
	p.PlatformPostID = nullStringPtr(postID)
	p.PlatformURL = nullStringPtr(url)
	p.ErrorMessage = nullStringPtr(errMsg)
	p.PostedAt = nullTimePtr(postedAt)
	return p, nil
}
