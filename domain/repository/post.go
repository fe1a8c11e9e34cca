package repository

import (
	"context"

	"crosspost/domain/model"
)

type IVideo interface {
	Create(ctx context.Context, v *model.Video) error
	// GetByID is scoped to the owner; another user's video is apperror.ErrNotFound.
	GetByID(ctx context.Context, id, userID string) (*model.Video, error)
	ListByUser(ctx context.Context, userID string) ([]*model.Video, error)
	Delete(ctx context.Context, id, userID string) error
	DeleteByUser(ctx context.Context, userID string) error
}

type IPost interface {
	Create(ctx context.Context, p *model.Post) error
	// UpdateStatus moves a non-terminal post to an intermediate status.
	UpdateStatus(ctx context.Context, id, userID string, status model.PostStatus) error
	MarkPublished(ctx context.Context, p *model.Post) error
	// MarkFailed sets error_message and retry_count; p.RetryCount is filled in.
	MarkFailed(ctx context.Context, p *model.Post) error
	List(ctx context.Context, userID string, filter model.PostFilter) ([]*model.Post, error)
	DeleteByUser(ctx context.Context, userID string) error
}

// IPostAudit is an append-only log of post status changes.
type IPostAudit interface {
	Append(ctx context.Context, a *model.PostAudit) error
	ListByPost(ctx context.Context, postID, userID string) ([]*model.PostAudit, error)
}

// IPostEventPublisher forwards post status events to a subscriber channel.
type IPostEventPublisher interface {
	PublishPostEvent(ctx context.Context, evt model.PostEvent) error
}
