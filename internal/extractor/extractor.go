// Package extractor is the boundary to the external video-extraction
// collaborator. The admission layer treats these calls as opaque: it never
// retries them and only caches their successful results.
package extractor

import (
	"context"
	"errors"
)

var (
	// ErrInvalidURL is returned for URLs missing a scheme or host.
	ErrInvalidURL = errors.New("invalid url")
	// ErrExtractionFailed is returned when the collaborator produced no
	// usable metadata for the URL.
	ErrExtractionFailed = errors.New("extraction failed")
)

// Format describes one downloadable rendition of a video.
type Format struct {
	ID         string  `json:"format_id"`
	Ext        string  `json:"ext"`
	Resolution string  `json:"resolution,omitempty"`
	Height     int     `json:"height,omitempty"`
	FPS        float64 `json:"fps,omitempty"`
	Filesize   int64   `json:"filesize,omitempty"`
	VCodec     string  `json:"vcodec,omitempty"`
	ACodec     string  `json:"acodec,omitempty"`
	ABR        float64 `json:"abr,omitempty"`
	Note       string  `json:"format_note,omitempty"`
}

// VideoInfo is the normalized metadata payload for a single video.
type VideoInfo struct {
	Title            string   `json:"title"`
	Description      string   `json:"description,omitempty"`
	Duration         int64    `json:"duration"`
	ViewCount        int64    `json:"view_count"`
	LikeCount        int64    `json:"like_count"`
	UploadDate       string   `json:"upload_date,omitempty"`
	Uploader         string   `json:"uploader"`
	UploaderID       string   `json:"uploader_id,omitempty"`
	ChannelURL       string   `json:"channel_url,omitempty"`
	Thumbnail        string   `json:"thumbnail,omitempty"`
	WebpageURL       string   `json:"webpage_url,omitempty"`
	Platform         string   `json:"platform"`
	Formats          []Format `json:"formats"`
	AudioFormats     []Format `json:"audio_formats"`
	VideoOnlyFormats []Format `json:"video_only_formats"`
}

// PlaylistEntry is the flattened record for one playlist member.
type PlaylistEntry struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	URL      string `json:"url,omitempty"`
	Duration int64  `json:"duration,omitempty"`
}

// PlaylistInfo is the normalized metadata payload for a playlist.
type PlaylistInfo struct {
	Title      string          `json:"title"`
	Uploader   string          `json:"uploader,omitempty"`
	Platform   string          `json:"platform"`
	WebpageURL string          `json:"webpage_url,omitempty"`
	VideoCount int             `json:"video_count"`
	Entries    []PlaylistEntry `json:"entries"`
}

// Validation reports whether a URL is supported and reachable.
type Validation struct {
	Valid      bool   `json:"valid"`
	Platform   string `json:"platform"`
	Title      string `json:"title,omitempty"`
	IsPlaylist bool   `json:"is_playlist"`
	VideoCount int    `json:"video_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// FetchRequest asks the collaborator to fetch media to local disk.
type FetchRequest struct {
	URL        string
	Quality    string
	FormatType string
	OutputDir  string
}

// FetchResult describes the fetched artifact.
type FetchResult struct {
	Path     string
	Title    string
	Filesize int64
}

// Client is the outbound contract to the extraction collaborator.
type Client interface {
	Extract(ctx context.Context, url string) (*VideoInfo, error)
	ExtractPlaylist(ctx context.Context, url string, maxVideos int) (*PlaylistInfo, error)
	Validate(ctx context.Context, url string) (*Validation, error)
	Fetch(ctx context.Context, req FetchRequest) (*FetchResult, error)
}
