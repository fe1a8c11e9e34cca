package configuration

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// PlatformOAuthConfig is the resolved client configuration for one platform.
type PlatformOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

// Configured reports whether both client credentials are present.
func (p PlatformOAuthConfig) Configured() bool {
	return p.ClientID != "" && p.ClientSecret != ""
}

var defaultScopes = map[string][]string{
	"youtube": {
		"https://www.googleapis.com/auth/youtube.upload",
		"https://www.googleapis.com/auth/youtube.readonly",
	},
	"tiktok": {"user.info.basic", "video.upload", "video.publish"},
	"instagram": {
		"instagram_basic",
		"instagram_content_publish",
		"pages_read_engagement",
		"pages_show_list",
	},
}

// GetPlatformOAuthConfig resolves credentials for platform. The redirect URL is
// always derived from the app base URL so it matches what the vendor has registered.
func GetPlatformOAuthConfig(platform string) PlatformOAuthConfig {
	var client OAuthClient
	switch platform {
	case "youtube":
		client = C.OAuth.YouTube
	case "tiktok":
		client = C.OAuth.TikTok
	case "instagram":
		client = C.OAuth.Instagram
	}
	scopes := client.Scopes
	if len(scopes) == 0 {
		scopes = defaultScopes[platform]
	}
	return PlatformOAuthConfig{
		ClientID:     client.ClientID,
		ClientSecret: client.ClientSecret,
		RedirectURL:  CallbackURL(C.App.BaseURL, platform),
		Scopes:       scopes,
	}
}

// CallbackURL builds <base>/api/<platform>/callback.
func CallbackURL(baseURL, platform string) string {
	return fmt.Sprintf("%s/api/%s/callback", strings.TrimRight(baseURL, "/"), platform)
}

// DashboardURL is where OAuth callbacks land the user.
func DashboardURL(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + "/dashboard"
}

func (p Publish) Timeout() time.Duration { return time.Duration(p.TimeoutSeconds) * time.Second }
func (p Publish) VendorTimeout() time.Duration {
	return time.Duration(p.VendorTimeoutSeconds) * time.Second
}
func (p Publish) UploadTimeout() time.Duration {
	return time.Duration(p.UploadTimeoutSeconds) * time.Second
}
func (p Publish) InstagramPollInterval() time.Duration {
	return time.Duration(p.InstagramPollIntervalSeconds) * time.Second
}
func (s Storage) SignedURLTTL() time.Duration {
	return time.Duration(s.SignedURLTTLSeconds) * time.Second
}
func (o OAuth) StateTTL() time.Duration { return time.Duration(o.StateTTLSeconds) * time.Second }

// getConfigValue gets value from config first, then environment variable, then default
func getConfigValue(configValue, envKey, defaultValue string) string {
	// Environment variable takes precedence when provided
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	// Otherwise use config value if set and not a placeholder
	if configValue != "" && !strings.HasPrefix(configValue, "YOUR_") {
		return configValue
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}
