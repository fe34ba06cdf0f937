package download

import "testing"

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in     string
		expect string
	}{
		{"clip.mp4", "clip.mp4"},
		{"  clip.mp4  ", "clip.mp4"},
		{"My Video (720p).mp4", "My Video (720p).mp4"},
		{"../../etc/passwd", "....etcpasswd"},
		{"a/b\\c.mp4", "abc.mp4"},
		{"bad\x00name.mp4", "badname.mp4"},
		{"tab\tname.mp4", "tabname.mp4"},
		{"", ""},
		{".", ""},
		{"..", ""},
		{"./.", ""},
	}

	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.expect {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.expect)
		}
	}
}
