package model

import "time"

// OAuthState is a single-use CSRF nonce binding a callback to the user who started it.
type OAuthState struct {
	StateToken string    `json:"state_token"`
	UserID     string    `json:"user_id"`
	Platform   Platform  `json:"platform"`
	ExpiresAt  time.Time `json:"expires_at"`
	CreatedAt  time.Time `json:"created_at"`
}

func (s *OAuthState) Expired(now time.Time) bool {
	return s.ExpiresAt.Before(now)
}
