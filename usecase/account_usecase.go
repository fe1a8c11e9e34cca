package usecase

import (
	"context"
	"fmt"

	"crosspost/domain/apperror"
	"crosspost/domain/model"
	"crosspost/domain/repository"
	"crosspost/infrastructure/logger"

	"golang.org/x/sync/errgroup"
)

// AccountSummary is what an account deletion would remove.
type AccountSummary struct {
	Connections int `json:"connections"`
	Videos      int `json:"videos"`
	Posts       int `json:"posts"`
}

type IAccountUsecase interface {
	Summary(ctx context.Context, user model.AuthUser) (*AccountSummary, error)
	// Delete revokes every platform token, removes stored videos and deletes
	// all of the user's rows.
	Delete(ctx context.Context, user model.AuthUser) error
}

type accountUsecase struct {
	connections       repository.IConnection
	connectionUsecase IConnectionUsecase
	videos            repository.IVideo
	posts             repository.IPost
	storage           repository.IVideoStorage
}

func NewAccountUsecase(connections repository.IConnection, connectionUsecase IConnectionUsecase, videos repository.IVideo, posts repository.IPost, storage repository.IVideoStorage) IAccountUsecase {
	return &accountUsecase{
		connections:       connections,
		connectionUsecase: connectionUsecase,
		videos:            videos,
		posts:             posts,
		storage:           storage,
	}
}

func (u *accountUsecase) Summary(ctx context.Context, user model.AuthUser) (*AccountSummary, error) {
	if user.ID == "" {
		return nil, apperror.ErrUnauthorized
	}
	conns, err := u.connections.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	videos, err := u.videos.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	posts, err := u.posts.List(ctx, user.ID, model.PostFilter{})
	if err != nil {
		return nil, err
	}
	return &AccountSummary{Connections: len(conns), Videos: len(videos), Posts: len(posts)}, nil
}

func (u *accountUsecase) Delete(ctx context.Context, user model.AuthUser) error {
	if user.ID == "" {
		return apperror.ErrUnauthorized
	}
	lg := logger.GetLogger().WithField("user_id", user.ID)

	if err := u.connectionUsecase.RevokeAll(ctx, user); err != nil {
		lg.WithField("error", err).Warn("failed to revoke platform tokens")
	}

	videos, err := u.videos.ListByUser(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("list videos: %w", err)
	}
	var g errgroup.Group
	g.SetLimit(4)
	for _, v := range videos {
		key := v.FilePath
		g.Go(func() error {
			if err := u.storage.Remove(ctx, key); err != nil {
				lg.WithField("key", key).WithField("error", err).Warn("failed to remove video object")
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := u.posts.DeleteByUser(ctx, user.ID); err != nil {
		return fmt.Errorf("delete posts: %w", err)
	}
	if err := u.videos.DeleteByUser(ctx, user.ID); err != nil {
		return fmt.Errorf("delete videos: %w", err)
	}
	if err := u.connections.DeleteByUser(ctx, user.ID); err != nil {
		return fmt.Errorf("delete connections: %w", err)
	}
	lg.Info("account deleted")
	return nil
}
