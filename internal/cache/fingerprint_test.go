package cache

import "testing"

func TestFingerprint_Deterministic(t *testing.T) {
	opts := Options{Quality: "720p", FormatType: "video"}
	a := Fingerprint("https://www.youtube.com/watch?v=abc123", opts)
	b := Fingerprint("https://www.youtube.com/watch?v=abc123", opts)
	if a != b {
		t.Fatal("same url and options must produce the same fingerprint")
	}
	if len(a) != 64 {
		t.Fatalf("expected hex sha-256 fingerprint, got length %d", len(a))
	}
}

func TestFingerprint_OptionsParticipate(t *testing.T) {
	url := "https://www.youtube.com/watch?v=abc123"
	base := Fingerprint(url, Options{Quality: "720p", FormatType: "video"})

	variants := []Options{
		{Quality: "1080p", FormatType: "video"},
		{Quality: "720p", FormatType: "audio"},
		{Quality: "720p", FormatType: "video", Playlist: true},
		{Quality: "720p", FormatType: "video", Playlist: true, MaxPlaylist: 10},
	}
	for _, opts := range variants {
		if Fingerprint(url, opts) == base {
			t.Fatalf("options %+v must change the fingerprint", opts)
		}
	}

	if Fingerprint("https://vimeo.com/123", Options{Quality: "720p", FormatType: "video"}) == base {
		t.Fatal("different urls must not collide")
	}
}

func TestFingerprint_QualityCaseInsensitive(t *testing.T) {
	url := "https://www.youtube.com/watch?v=abc123"
	if Fingerprint(url, Options{Quality: "720P"}) != Fingerprint(url, Options{Quality: "720p"}) {
		t.Fatal("quality casing must not split cache entries")
	}
}
