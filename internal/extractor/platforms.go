package extractor

import (
	"net/url"
	"strings"
)

// platformPatterns maps a platform name to the host substrings that identify
// it. Order matters only for documentation; hosts never overlap in practice.
var platformPatterns = []struct {
	name     string
	patterns []string
}{
	{"youtube", []string{"youtube.com", "youtu.be"}},
	{"tiktok", []string{"tiktok.com"}},
	{"facebook", []string{"facebook.com", "fb.com"}},
	{"instagram", []string{"instagram.com"}},
	{"twitter", []string{"twitter.com", "x.com"}},
	{"vimeo", []string{"vimeo.com"}},
	{"dailymotion", []string{"dailymotion.com"}},
	{"twitch", []string{"twitch.tv"}},
	{"reddit", []string{"reddit.com"}},
	{"soundcloud", []string{"soundcloud.com"}},
}

// SupportedPlatforms returns the platform names the API advertises.
func SupportedPlatforms() []string {
	names := make([]string, 0, len(platformPatterns))
	for _, entry := range platformPatterns {
		names = append(names, entry.name)
	}
	return names
}

// PlatformFromURL detects the platform a URL belongs to, or "unknown".
func PlatformFromURL(rawURL string) string {
	lower := strings.ToLower(rawURL)
	for _, entry := range platformPatterns {
		for _, pattern := range entry.patterns {
			if strings.Contains(lower, pattern) {
				return entry.name
			}
		}
	}
	return "unknown"
}

// IsValidURL reports whether rawURL carries both a scheme and a host.
func IsValidURL(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return parsed.Scheme != "" && parsed.Host != ""
}

// NormalizeURL canonicalizes a URL so equivalent forms share one cache
// fingerprint. YouTube watch URLs are reduced to the bare video id; other
// platforms pass through unchanged.
func NormalizeURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	host := strings.ToLower(parsed.Host)
	if strings.Contains(host, "youtube.com") {
		if id := parsed.Query().Get("v"); id != "" {
			return "https://www.youtube.com/watch?v=" + id
		}
	}
	if strings.Contains(host, "youtu.be") {
		if id := strings.Trim(parsed.Path, "/"); id != "" {
			return "https://www.youtube.com/watch?v=" + id
		}
	}
	return rawURL
}
