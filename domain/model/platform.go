package model

import "strings"

// Platform identifies a social network a video can be cross-posted to.
type Platform string

const (
	PlatformYouTube   Platform = "youtube"
	PlatformTikTok    Platform = "tiktok"
	PlatformInstagram Platform = "instagram"
)

// Platforms returns every supported platform in display order.
func Platforms() []Platform {
	return []Platform{PlatformYouTube, PlatformTikTok, PlatformInstagram}
}

// ParsePlatform normalizes s and reports whether it names a supported platform.
func ParsePlatform(s string) (Platform, bool) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Platforms() {
		if p == known {
			return p, true
		}
	}
	return "", false
}

func (p Platform) String() string { return string(p) }

// DisplayName is used in user-facing failure messages.
func (p Platform) DisplayName() string {
	switch p {
	case PlatformYouTube:
		return "YouTube"
	case PlatformTikTok:
		return "TikTok"
	case PlatformInstagram:
		return "Instagram"
	}
	return string(p)
}
