package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"crosspost/domain/apperror"
	"crosspost/domain/dto"
	"crosspost/domain/model"
	"crosspost/domain/repository"
	"crosspost/infrastructure/logger"
	"crosspost/infrastructure/metrics"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// finalizeTimeout bounds the terminal status write after a publish attempt,
// which must land even when the attempt itself ran out of time.
const finalizeTimeout = 15 * time.Second

const finalizeAttempts = 3

// IPostUsecase dispatches one video to several platforms and reads back the history.
type IPostUsecase interface {
	Dispatch(ctx context.Context, user model.AuthUser, req dto.CreatePostRequest) ([]*model.Post, error)
	List(ctx context.Context, user model.AuthUser, filter model.PostFilter) ([]*model.Post, error)
}

type PostUsecaseConfig struct {
	// PublishTimeout is the deadline of a single platform attempt.
	PublishTimeout time.Duration
	SignedURLTTL   time.Duration
	// FinalizeRetryDelay is the base backoff between terminal write attempts.
	FinalizeRetryDelay time.Duration
}

type PostUsecase struct {
	videos      repository.IVideo
	posts       repository.IPost
	connections repository.IConnection
	tokens      IConnectionUsecase
	storage     repository.IVideoStorage
	publishers  map[model.Platform]repository.IPlatformPublisher
	audit       repository.IPostAudit // optional
	events      []repository.IPostEventPublisher
	config      PostUsecaseConfig
	now         func() time.Time
}

type platformJob struct {
	platform model.Platform
	meta     model.PublishMeta
}

func NewPostUsecase(videos repository.IVideo, posts repository.IPost, connections repository.IConnection, tokens IConnectionUsecase,
	storage repository.IVideoStorage, config PostUsecaseConfig, publishers ...repository.IPlatformPublisher) *PostUsecase {
	m := make(map[model.Platform]repository.IPlatformPublisher, len(publishers))
	for _, p := range publishers {
		m[p.Platform()] = p
	}
	if config.PublishTimeout <= 0 {
		config.PublishTimeout = 15 * time.Minute
	}
	if config.SignedURLTTL <= 0 {
		config.SignedURLTTL = time.Hour
	}
	if config.FinalizeRetryDelay <= 0 {
		config.FinalizeRetryDelay = 250 * time.Millisecond
	}
	return &PostUsecase{
		videos:      videos,
		posts:       posts,
		connections: connections,
		tokens:      tokens,
		storage:     storage,
		publishers:  m,
		config:      config,
		now:         time.Now,
	}
}

// WithAudit enables the status audit trail (fluent)
func (u *PostUsecase) WithAudit(audit repository.IPostAudit) *PostUsecase {
	u.audit = audit
	return u
}

// WithEvents adds status event sinks (fluent)
func (u *PostUsecase) WithEvents(events ...repository.IPostEventPublisher) *PostUsecase {
	for _, e := range events {
		if e != nil {
			u.events = append(u.events, e)
		}
	}
	return u
}

// Dispatch publishes the video to every requested platform concurrently and
// returns one post per platform in request order. A platform failure is
// recorded on its post and never fails the call.
func (u *PostUsecase) Dispatch(ctx context.Context, user model.AuthUser, req dto.CreatePostRequest) ([]*model.Post, error) {
	if user.ID == "" {
		return nil, apperror.ErrUnauthorized
	}
	jobs, err := validateCreatePost(req)
	if err != nil {
		return nil, err
	}

	video, err := u.videos.GetByID(ctx, strings.TrimSpace(req.VideoID), user.ID)
	if err != nil {
		return nil, err
	}
	signedURL, err := u.storage.SignedURL(ctx, video.FilePath, u.config.SignedURLTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to get video URL: %w", err)
	}

	// Attempts outlive the request; each one carries its own deadline.
	detached := context.WithoutCancel(ctx)
	posts := make([]*model.Post, len(jobs))
	var g errgroup.Group
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			posts[i] = u.publishOne(detached, user, video, signedURL, job)
			return nil
		})
	}
	_ = g.Wait()
	return posts, nil
}

func validateCreatePost(req dto.CreatePostRequest) ([]platformJob, error) {
	if strings.TrimSpace(req.VideoID) == "" {
		return nil, apperror.NewValidation("video_id", "is required")
	}
	if len(req.Platforms) == 0 {
		return nil, apperror.NewValidation("platforms", "at least one platform is required")
	}
	seen := make(map[model.Platform]struct{}, len(req.Platforms))
	jobs := make([]platformJob, 0, len(req.Platforms))
	for i, p := range req.Platforms {
		platform, ok := model.ParsePlatform(p.Platform)
		if !ok {
			return nil, apperror.NewValidation(fmt.Sprintf("platforms[%d].platform", i), fmt.Sprintf("unsupported platform %q", p.Platform))
		}
		if _, dup := seen[platform]; dup {
			return nil, apperror.NewValidation(fmt.Sprintf("platforms[%d].platform", i), fmt.Sprintf("%s requested more than once", platform))
		}
		seen[platform] = struct{}{}
		title := strings.TrimSpace(p.Title)
		if title == "" {
			return nil, apperror.NewValidation(fmt.Sprintf("platforms[%d].title", i), "is required")
		}
		tags := make([]string, 0, len(p.Tags))
		for _, t := range p.Tags {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
		jobs = append(jobs, platformJob{
			platform: platform,
			meta:     model.PublishMeta{Title: title, Description: p.Description, Tags: tags},
		})
	}
	return jobs, nil
}

func (u *PostUsecase) publishOne(ctx context.Context, user model.AuthUser, video *model.Video, signedURL string, job platformJob) *model.Post {
	lg := logger.GetLogger().WithField("platform", job.platform).WithField("video_id", video.ID)
	started := u.now()

	post := &model.Post{
		ID:          uuid.NewString(),
		VideoID:     video.ID,
		UserID:      user.ID,
		Platform:    job.platform,
		Title:       job.meta.Title,
		Description: job.meta.Description,
		Tags:        job.meta.Tags,
		Status:      model.PostStatusPending,
	}
	if err := u.posts.Create(ctx, post); err != nil {
		lg.WithField("error", err).Error("failed to create post")
		msg := "failed to record post"
		post.Status = model.PostStatusFailed
		post.ErrorMessage = &msg
		return post
	}
	u.record(ctx, post)

	attemptCtx, cancel := context.WithTimeout(ctx, u.config.PublishTimeout)
	result, err := u.attempt(attemptCtx, user, post, video, signedURL)
	cancel()

	finalCtx, cancelFinal := context.WithTimeout(ctx, finalizeTimeout)
	defer cancelFinal()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%s publish timed out after %s", job.platform, u.config.PublishTimeout)
		}
		lg.WithField("post_id", post.ID).WithField("error", err).Warn("publish failed")
		u.fail(finalCtx, post, err)
	} else {
		lg.WithField("post_id", post.ID).WithField("platform_url", result.URL).Info("publish succeeded")
		u.succeed(finalCtx, post, result)
	}
	if post.Status.Terminal() {
		metrics.ObservePublish(string(job.platform), string(post.Status), u.now().Sub(started))
	}
	return post
}

func (u *PostUsecase) attempt(ctx context.Context, user model.AuthUser, post *model.Post, video *model.Video, signedURL string) (*model.PublishResult, error) {
	publisher, ok := u.publishers[post.Platform]
	if !ok {
		return nil, fmt.Errorf("%s publishing is not available", post.Platform)
	}
	conn, err := u.connections.GetActive(ctx, user.ID, post.Platform)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("%s not connected", post.Platform)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s connection: %w", post.Platform, err)
	}
	if conn, err = u.tokens.EnsureFreshToken(ctx, conn); err != nil {
		return nil, err
	}

	return publisher.Publish(ctx, model.PublishInput{
		Connection: conn,
		Video:      video,
		Meta:       model.PublishMeta{Title: post.Title, Description: post.Description, Tags: post.Tags},
		SignedURL:  signedURL,
		Report:     func(status model.PostStatus) { u.advance(ctx, post, status) },
	})
}

// advance moves the post to an intermediate status. Backward or repeated moves are ignored.
func (u *PostUsecase) advance(ctx context.Context, post *model.Post, status model.PostStatus) {
	if status.Terminal() || status == post.Status || !post.Status.CanTransition(status) {
		return
	}
	if err := u.posts.UpdateStatus(ctx, post.ID, post.UserID, status); err != nil {
		logger.GetLogger().WithField("post_id", post.ID).WithField("error", err).Warn("failed to update post status")
		return
	}
	post.Status = status
	u.record(ctx, post)
}

func (u *PostUsecase) succeed(ctx context.Context, post *model.Post, result *model.PublishResult) {
	id, url := result.ID, result.URL
	now := u.now().UTC()
	published := *post
	published.PlatformPostID = &id
	published.PlatformURL = &url
	published.PostedAt = &now
	if err := u.finalize(ctx, &published, u.posts.MarkPublished); err != nil {
		u.unrecorded(post, model.PostStatusPublished, err)
		return
	}
	published.Status = model.PostStatusPublished
	*post = published
	u.record(ctx, post)
}

func (u *PostUsecase) fail(ctx context.Context, post *model.Post, cause error) {
	msg := cause.Error()
	failed := *post
	failed.ErrorMessage = &msg
	err := u.finalize(ctx, &failed, u.posts.MarkFailed)
	if err != nil && !errors.Is(err, apperror.ErrInvalidTransition) {
		// The store may reject the vendor text itself; keep the row terminal.
		generic := fmt.Sprintf("%s publish failed", post.Platform)
		failed.ErrorMessage = &generic
		err = u.posts.MarkFailed(ctx, &failed)
	}
	if err != nil {
		u.unrecorded(post, model.PostStatusFailed, err)
		return
	}
	failed.Status = model.PostStatusFailed
	*post = failed
	u.record(ctx, post)
}

// finalize runs a terminal write, retrying transient errors while ctx allows.
// ErrInvalidTransition means the row is already terminal or gone.
func (u *PostUsecase) finalize(ctx context.Context, post *model.Post, write func(context.Context, *model.Post) error) error {
	var err error
	for attempt := 1; attempt <= finalizeAttempts; attempt++ {
		if err = write(ctx, post); err == nil || errors.Is(err, apperror.ErrInvalidTransition) {
			return err
		}
		if attempt == finalizeAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(time.Duration(attempt) * u.config.FinalizeRetryDelay):
		}
	}
	return err
}

// unrecorded leaves post at the last status the store holds.
func (u *PostUsecase) unrecorded(post *model.Post, status model.PostStatus, err error) {
	logger.GetLogger().WithFields(map[string]interface{}{
		"post_id":  post.ID,
		"platform": post.Platform,
		"status":   status,
		"error":    err,
	}).Error("failed to record terminal post status")
	metrics.FinalizeFailed(string(post.Platform), string(status))
}

// record appends the audit row and fans the status out to event sinks. Both
// are best-effort.
func (u *PostUsecase) record(ctx context.Context, post *model.Post) {
	lg := logger.GetLogger().WithField("post_id", post.ID)
	if u.audit != nil {
		if err := u.audit.Append(ctx, &model.PostAudit{
			PostID:       post.ID,
			UserID:       post.UserID,
			Platform:     post.Platform,
			Status:       post.Status,
			ErrorMessage: post.ErrorMessage,
		}); err != nil {
			lg.WithField("error", err).Warn("failed to append post audit")
		}
	}
	evt := model.NewPostEvent(post)
	for _, sink := range u.events {
		// Sinks log and count their own failures.
		_ = sink.PublishPostEvent(ctx, evt)
	}
}

func (u *PostUsecase) List(ctx context.Context, user model.AuthUser, filter model.PostFilter) ([]*model.Post, error) {
	if user.ID == "" {
		return nil, apperror.ErrUnauthorized
	}
	if filter.Platform != "" {
		p, ok := model.ParsePlatform(string(filter.Platform))
		if !ok {
			return nil, apperror.NewValidation("platform", fmt.Sprintf("unsupported platform %q", filter.Platform))
		}
		filter.Platform = p
	}
	posts, err := u.posts.List(ctx, user.ID, filter)
	if err != nil {
		return nil, err
	}
	if posts == nil {
		posts = []*model.Post{}
	}
	return posts, nil
}
