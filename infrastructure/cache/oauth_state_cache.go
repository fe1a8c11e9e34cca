package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"crosspost/domain/apperror"
	"crosspost/domain/model"

	"github.com/redis/go-redis/v9"
)

// expiredGrace keeps a state around after its expiry so a late callback is
// reported as state_expired rather than invalid_state.
const expiredGrace = 5 * time.Minute

// OAuthStateCache stores CSRF states in Redis. GETDEL makes consumption atomic.
type OAuthStateCache struct {
	client redis.Cmdable
	prefix string
}

func NewOAuthStateCache(client redis.Cmdable) *OAuthStateCache {
	return &OAuthStateCache{client: client, prefix: "oauth_state"}
}

type stateEntry struct {
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

func (c *OAuthStateCache) key(platform model.Platform, token string) string {
	return fmt.Sprintf("%s:%s:%s", c.prefix, platform, token)
}

func (c *OAuthStateCache) Create(ctx context.Context, s *model.OAuthState) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(stateEntry{UserID: s.UserID, ExpiresAt: s.ExpiresAt, CreatedAt: s.CreatedAt})
	if err != nil {
		return err
	}
	ttl := time.Until(s.ExpiresAt) + expiredGrace
	return c.client.Set(ctx, c.key(s.Platform, s.StateToken), payload, ttl).Err()
}

func (c *OAuthStateCache) Consume(ctx context.Context, token string, platform model.Platform) (*model.OAuthState, error) {
	raw, err := c.client.GetDel(ctx, c.key(platform, token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, &apperror.NotFoundError{Resource: "oauth state", ID: string(platform)}
	}
	if err != nil {
		return nil, err
	}
	var entry stateEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("decode oauth state: %w", err)
	}
	return &model.OAuthState{
		StateToken: token,
		UserID:     entry.UserID,
		Platform:   platform,
		ExpiresAt:  entry.ExpiresAt,
		CreatedAt:  entry.CreatedAt,
	}, nil
}

// DeleteExpired is a no-op: Redis evicts states through their TTL.
func (c *OAuthStateCache) DeleteExpired(context.Context) (int64, error) {
	return 0, nil
}
