package usecase

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"crosspost/domain/apperror"
	"crosspost/domain/dto"
	"crosspost/domain/model"
	"crosspost/domain/repository"
	"crosspost/infrastructure/logger"

	"github.com/google/uuid"
)

// DefaultMaxUploadBytes is the largest video accepted when none is configured.
const DefaultMaxUploadBytes int64 = 500 << 20

var allowedVideoTypes = map[string]string{
	"video/mp4":       "mp4",
	"video/quicktime": "mov",
	"video/x-msvideo": "avi",
	"video/webm":      "webm",
}

type IVideoUsecase interface {
	Upload(ctx context.Context, user model.AuthUser, req dto.UploadVideoRequest) (*model.Video, error)
	Get(ctx context.Context, user model.AuthUser, id string) (*model.Video, error)
	List(ctx context.Context, user model.AuthUser) ([]*model.Video, error)
	// Delete removes the row and then the stored object.
	Delete(ctx context.Context, user model.AuthUser, id string) error
}

type videoUsecase struct {
	videos   repository.IVideo
	storage  repository.IVideoStorage
	maxBytes int64
	now      func() time.Time
}

func NewVideoUsecase(videos repository.IVideo, storage repository.IVideoStorage, maxBytes int64) IVideoUsecase {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &videoUsecase{videos: videos, storage: storage, maxBytes: maxBytes, now: time.Now}
}

// AllowedVideoType reports whether contentType may be uploaded.
func AllowedVideoType(contentType string) bool {
	_, ok := allowedVideoTypes[normalizeContentType(contentType)]
	return ok
}

func normalizeContentType(ct string) string {
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

func (u *videoUsecase) Upload(ctx context.Context, user model.AuthUser, req dto.UploadVideoRequest) (*model.Video, error) {
	if user.ID == "" {
		return nil, apperror.ErrUnauthorized
	}
	if req.Body == nil {
		return nil, apperror.NewValidation("file", "No file provided")
	}
	contentType := normalizeContentType(req.ContentType)
	defaultExt, ok := allowedVideoTypes[contentType]
	if !ok {
		return nil, apperror.NewValidation("file", "Invalid file type. Only video files are allowed.")
	}
	if req.Size > u.maxBytes {
		return nil, apperror.NewValidation("file", fmt.Sprintf("File too large. Maximum size is %dMB.", u.maxBytes>>20))
	}

	ext := strings.TrimPrefix(strings.ToLower(path.Ext(req.FileName)), ".")
	if ext == "" {
		ext = defaultExt
	}
	key := fmt.Sprintf("%s/%d.%s", user.ID, u.now().UnixMilli(), ext)
	if err := u.storage.Put(ctx, key, req.Body, req.Size, contentType); err != nil {
		return nil, fmt.Errorf("failed to upload video: %w", err)
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = req.FileName
	}
	video := &model.Video{
		ID:          uuid.NewString(),
		UserID:      user.ID,
		FilePath:    key,
		FileSize:    req.Size,
		MimeType:    contentType,
		Title:       title,
		Description: req.Description,
	}
	if err := u.videos.Create(ctx, video); err != nil {
		if rmErr := u.storage.Remove(ctx, key); rmErr != nil {
			logger.GetLogger().WithField("key", key).WithField("error", rmErr).Error("failed to clean up orphaned upload")
		}
		return nil, fmt.Errorf("failed to save video metadata: %w", err)
	}
	return video, nil
}

func (u *videoUsecase) Get(ctx context.Context, user model.AuthUser, id string) (*model.Video, error) {
	if user.ID == "" {
		return nil, apperror.ErrUnauthorized
	}
	return u.videos.GetByID(ctx, id, user.ID)
}

func (u *videoUsecase) List(ctx context.Context, user model.AuthUser) ([]*model.Video, error) {
	if user.ID == "" {
		return nil, apperror.ErrUnauthorized
	}
	list, err := u.videos.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*model.Video{}
	}
	return list, nil
}

func (u *videoUsecase) Delete(ctx context.Context, user model.AuthUser, id string) error {
	if user.ID == "" {
		return apperror.ErrUnauthorized
	}
	video, err := u.videos.GetByID(ctx, id, user.ID)
	if err != nil {
		return err
	}
	if err := u.videos.Delete(ctx, video.ID, user.ID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return err
		}
		return fmt.Errorf("delete video: %w", err)
	}
	if err := u.storage.Remove(ctx, video.FilePath); err != nil {
		logger.GetLogger().WithField("key", video.FilePath).WithField("error", err).Warn("failed to remove video object")
	}
	return nil
}
