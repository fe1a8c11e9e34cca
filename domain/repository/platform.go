package repository

import (
	"context"
	"io"
	"time"

	"crosspost/domain/model"
)

// IPlatformOAuth is the vendor half of the connection flow for one platform.
type IPlatformOAuth interface {
	Platform() model.Platform
	// Configured reports whether client credentials are present.
	Configured() bool
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*model.PlatformToken, error)
	FetchIdentity(ctx context.Context, token *model.PlatformToken) (*model.PlatformIdentity, error)
	// Refresh trades a refresh token for a new access token.
	Refresh(ctx context.Context, refreshToken string) (*model.PlatformToken, error)
	// Revoke invalidates the token with the vendor. Callers treat failures as advisory.
	Revoke(ctx context.Context, accessToken string) error
}

// IPlatformPublisher runs one platform's upload protocol.
type IPlatformPublisher interface {
	Platform() model.Platform
	Publish(ctx context.Context, in model.PublishInput) (*model.PublishResult, error)
}

// IVideoStorage is the object store holding the video bytes.
type IVideoStorage interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	// SignedURL returns a publicly fetchable URL valid for ttl.
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	Remove(ctx context.Context, key string) error
}
