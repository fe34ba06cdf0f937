package download

import (
	"os"
	"strings"
)

// SanitizeFilename strips path separators and control characters so a
// client-supplied name can never address anything outside the downloads
// directory.
func SanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		return ""
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r == '/' || r == '\\' || r == 0:
			continue
		case r < 0x20:
			continue
		default:
			b.WriteRune(r)
		}
	}
	clean := b.String()
	if clean == "." || clean == ".." {
		return ""
	}
	return clean
}

// RemoveFile attempts to delete the file at the specified path.
func RemoveFile(path string) {
	if path == "" {
		return
	}
	_ = os.Remove(path)
}
