package model

import "time"

// Connection stores the OAuth credentials linking one user to one platform account.
// (user_id, platform) is unique.
type Connection struct {
	ID               int64      `json:"id"`
	UserID           string     `json:"user_id"`
	Platform         Platform   `json:"platform"`
	PlatformUserID   string     `json:"platform_user_id"`
	PlatformUsername string     `json:"platform_username"`
	AccessToken      string     `json:"-"`
	RefreshToken     string     `json:"-"`
	TokenExpiresAt   *time.Time `json:"token_expires_at,omitempty"`
	Scope            string     `json:"scope"`
	IsActive         bool       `json:"is_active"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Expired reports whether the access token is past its expiry, with leeway.
func (c *Connection) Expired(now time.Time, leeway time.Duration) bool {
	if c.TokenExpiresAt == nil {
		return false
	}
	return !now.Add(leeway).Before(*c.TokenExpiresAt)
}

// PlatformToken is the credential set returned by a vendor token endpoint.
type PlatformToken struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
	Scope        string
	// OpenID is the vendor user id when the token response already carries it (TikTok).
	OpenID string
}

// PlatformIdentity is the vendor-side account a connection publishes as.
type PlatformIdentity struct {
	UserID   string
	Username string
	// AccessToken replaces the exchanged token when the account publishes with
	// a different credential (an Instagram business account uses its page token).
	AccessToken string
}

// CallbackParams are the query parameters a vendor sends back to the callback endpoint.
type CallbackParams struct {
	Code  string
	State string
	Error string
}
