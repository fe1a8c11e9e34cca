package configuration

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfiguration(t *testing.T) {
	t.Run("defaults_are_applied", func(t *testing.T) {
		require.NotZero(t, C.App.Port)
		require.NotEmpty(t, C.App.BaseURL)
		assert.Equal(t, time.Hour, C.Storage.SignedURLTTL())
		assert.Equal(t, 10*time.Second, C.Publish.InstagramPollInterval())
		assert.Equal(t, 30, C.Publish.InstagramPollAttempts)
		assert.Equal(t, 10*time.Minute, C.OAuth.StateTTL())
	})
}

func TestGetConfigValue(t *testing.T) {
	t.Setenv("CROSSPOST_TEST_KEY", "")
	assert.Equal(t, "from-config", getConfigValue("from-config", "CROSSPOST_TEST_KEY", "def"))
	assert.Equal(t, "def", getConfigValue("YOUR_CLIENT_ID", "CROSSPOST_TEST_KEY", "def"))

	t.Setenv("CROSSPOST_TEST_KEY", "from-env")
	assert.Equal(t, "from-env", getConfigValue("from-config", "CROSSPOST_TEST_KEY", "def"))
}

func TestGetPlatformOAuthConfig(t *testing.T) {
	saved := C
	t.Cleanup(func() { C = saved })

	C.App.BaseURL = "https://crosspost.example.com"
	C.OAuth.TikTok = OAuthClient{ClientID: "key", ClientSecret: "secret"}

	cfg := GetPlatformOAuthConfig("tiktok")
	assert.True(t, cfg.Configured())
	assert.Equal(t, "https://crosspost.example.com/api/tiktok/callback", cfg.RedirectURL)
	assert.Equal(t, []string{"user.info.basic", "video.upload", "video.publish"}, cfg.Scopes)

	C.OAuth.YouTube = OAuthClient{}
	assert.False(t, GetPlatformOAuthConfig("youtube").Configured())
}

func TestLoadEnvFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	content := "# comment\nCROSSPOST_ENV_A=\"alpha\"\n\nCROSSPOST_ENV_B=beta\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("CROSSPOST_ENV_B", "kept")
	os.Unsetenv("CROSSPOST_ENV_A")
	t.Cleanup(func() { os.Unsetenv("CROSSPOST_ENV_A") })

	LoadEnvFromFile(filepath.Join(dir, "missing.env"), path)
	assert.Equal(t, "alpha", os.Getenv("CROSSPOST_ENV_A"))
	assert.Equal(t, "kept", os.Getenv("CROSSPOST_ENV_B"))
}

func TestReloadPicksUpEnvironment(t *testing.T) {
	saved := C
	t.Cleanup(func() { C = saved })

	t.Setenv("TIKTOK_CLIENT_KEY", "reloaded-key")
	t.Setenv("APP_PORT", "18080")
	Reload()

	assert.Equal(t, "reloaded-key", C.OAuth.TikTok.ClientID)
	assert.Equal(t, 18080, C.App.Port)
}
