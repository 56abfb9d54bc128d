package service

import (
	"regexp"
	"strings"

	"github.com/mazbron/video-downloader/internal/model"
)

type platformPattern struct {
	platform model.Platform
	pattern  *regexp.Regexp
	info     model.PlatformInfo
}

// platformPatterns is evaluated in order, first match wins
var platformPatterns = []platformPattern{
	{model.PlatformYouTube, regexp.MustCompile(`(?i)(?:youtube\.com|youtu\.be)`), model.PlatformInfo{Name: "YouTube", Emoji: "🔴"}},
	{model.PlatformTikTok, regexp.MustCompile(`(?i)tiktok\.com`), model.PlatformInfo{Name: "TikTok", Emoji: "🎵"}},
	{model.PlatformInstagram, regexp.MustCompile(`(?i)instagram\.com`), model.PlatformInfo{Name: "Instagram", Emoji: "📸"}},
	{model.PlatformFacebook, regexp.MustCompile(`(?i)(?:facebook\.com|fb\.watch|fb\.com)`), model.PlatformInfo{Name: "Facebook", Emoji: "🔵"}},
	{model.PlatformTwitter, regexp.MustCompile(`(?i)(?:twitter\.com|x\.com)`), model.PlatformInfo{Name: "Twitter/X", Emoji: "🐦"}},
}

var unknownPlatform = model.PlatformInfo{Name: "Unknown", Emoji: "🎬"}

// ResolvePlatform maps a link to its platform by matching the raw URL text
func ResolvePlatform(url string) (model.Platform, bool) {
	for _, p := range platformPatterns {
		if p.pattern.MatchString(url) {
			return p.platform, true
		}
	}
	return model.PlatformUnknown, false
}

// DescribePlatform returns the display name and emoji of a platform
func DescribePlatform(platform model.Platform) model.PlatformInfo {
	for _, p := range platformPatterns {
		if p.platform == platform {
			return p.info
		}
	}
	return unknownPlatform
}

// SupportedPlatforms renders the supported platforms one per line
func SupportedPlatforms() string {
	lines := make([]string, 0, len(platformPatterns))
	for _, p := range platformPatterns {
		lines = append(lines, p.info.Emoji+" "+p.info.Name)
	}
	return strings.Join(lines, "\n")
}
