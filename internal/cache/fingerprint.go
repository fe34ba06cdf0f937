package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Options are the request parameters that participate in the fingerprint.
// Two requests with the same normalized URL and the same options address the
// same cache entry.
type Options struct {
	Quality     string
	FormatType  string
	Playlist    bool
	MaxPlaylist int
}

// Fingerprint derives the deterministic cache key for a normalized URL and
// its options. Callers must normalize the URL first so equivalent URLs
// (tracking parameters stripped) collapse to one entry.
func Fingerprint(normalizedURL string, opts Options) string {
	canonical := strings.Join([]string{
		normalizedURL,
		strings.ToLower(opts.Quality),
		strings.ToLower(opts.FormatType),
		fmt.Sprintf("playlist=%t", opts.Playlist),
		fmt.Sprintf("max=%d", opts.MaxPlaylist),
	}, "|")
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}
