package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const defaultBinary = "yt-dlp"

// qualityFormats maps the API quality names to yt-dlp format selectors.
var qualityFormats = map[string]string{
	"144p":  "worst[height<=144]",
	"240p":  "worst[height<=240]",
	"360p":  "best[height<=360]",
	"480p":  "best[height<=480]",
	"720p":  "best[height<=720]",
	"1080p": "best[height<=1080]",
	"1440p": "best[height<=1440]",
	"2160p": "best[height<=2160]",
	"best":  "best",
	"worst": "worst",
}

// QualityNames returns the accepted quality options in stable order.
func QualityNames() []string {
	names := make([]string, 0, len(qualityFormats))
	for name := range qualityFormats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsSupportedQuality reports whether the quality name is accepted.
func IsSupportedQuality(quality string) bool {
	_, ok := qualityFormats[strings.ToLower(quality)]
	return ok
}

var runCommand = func(ctx context.Context, binary string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return nil, fmt.Errorf("%s: %w: %s", binary, err, detail)
		}
		return nil, fmt.Errorf("%s: %w", binary, err)
	}
	return stdout.Bytes(), nil
}

// SetCommandRunnerForTest replaces the subprocess runner. It returns a
// restore function.
func SetCommandRunnerForTest(runner func(context.Context, string, []string) ([]byte, error)) func() {
	original := runCommand
	runCommand = runner
	return func() {
		runCommand = original
	}
}

// YTDLPClient implements Client by shelling out to the yt-dlp binary with
// JSON interchange. It performs no retries; retry policy belongs to callers
// outside the admission path.
type YTDLPClient struct {
	binary string
	tracer trace.Tracer
}

func NewYTDLPClient(binary string) *YTDLPClient {
	if binary == "" {
		binary = defaultBinary
	}
	return &YTDLPClient{
		binary: binary,
		tracer: otel.Tracer("vextract/internal/extractor"),
	}
}

func (c *YTDLPClient) Extract(ctx context.Context, url string) (*VideoInfo, error) {
	if !IsValidURL(url) {
		return nil, ErrInvalidURL
	}

	spanCtx, span := c.tracer.Start(ctx, "ExtractVideoInfo")
	defer span.End()

	output, err := runCommand(spanCtx, c.binary, []string{
		"--dump-single-json",
		"--no-playlist",
		"--no-warnings",
		"--skip-download",
		url,
	})
	if err != nil {
		return nil, fmt.Errorf("extract %q: %w", url, err)
	}

	var raw rawInfo
	if err := json.Unmarshal(output, &raw); err != nil {
		return nil, fmt.Errorf("decode extractor output: %w", err)
	}
	if raw.Title == "" && len(raw.Formats) == 0 {
		return nil, ErrExtractionFailed
	}
	return processInfo(url, raw), nil
}

func (c *YTDLPClient) ExtractPlaylist(ctx context.Context, url string, maxVideos int) (*PlaylistInfo, error) {
	if !IsValidURL(url) {
		return nil, ErrInvalidURL
	}
	if maxVideos <= 0 {
		maxVideos = 50
	}

	spanCtx, span := c.tracer.Start(ctx, "ExtractPlaylistInfo")
	defer span.End()

	output, err := runCommand(spanCtx, c.binary, []string{
		"--dump-single-json",
		"--flat-playlist",
		"--no-warnings",
		"--skip-download",
		"--playlist-end", fmt.Sprintf("%d", maxVideos),
		url,
	})
	if err != nil {
		return nil, fmt.Errorf("extract playlist %q: %w", url, err)
	}

	var raw rawInfo
	if err := json.Unmarshal(output, &raw); err != nil {
		return nil, fmt.Errorf("decode extractor output: %w", err)
	}
	if len(raw.Entries) == 0 && raw.Title == "" {
		return nil, ErrExtractionFailed
	}

	info := &PlaylistInfo{
		Title:      raw.Title,
		Uploader:   raw.Uploader,
		Platform:   platformName(url, raw.Extractor),
		WebpageURL: raw.WebpageURL,
		VideoCount: len(raw.Entries),
	}
	for _, entry := range raw.Entries {
		info.Entries = append(info.Entries, PlaylistEntry{
			ID:       entry.ID,
			Title:    entry.Title,
			URL:      entry.URL,
			Duration: int64(entry.Duration),
		})
	}
	return info, nil
}

func (c *YTDLPClient) Validate(ctx context.Context, url string) (*Validation, error) {
	if !IsValidURL(url) {
		return &Validation{Valid: false, Platform: "unknown", Error: "invalid url format"}, nil
	}
	platform := PlatformFromURL(url)

	spanCtx, span := c.tracer.Start(ctx, "ValidateURL")
	defer span.End()

	output, err := runCommand(spanCtx, c.binary, []string{
		"--dump-single-json",
		"--flat-playlist",
		"--no-warnings",
		"--skip-download",
		url,
	})
	if err != nil {
		return &Validation{Valid: false, Platform: platform, Error: "url not accessible or not supported"}, nil
	}

	var raw rawInfo
	if err := json.Unmarshal(output, &raw); err != nil || (raw.Title == "" && len(raw.Entries) == 0) {
		return &Validation{Valid: false, Platform: platform, Error: "url not accessible or not supported"}, nil
	}

	result := &Validation{
		Valid:    true,
		Platform: platform,
		Title:    raw.Title,
	}
	if len(raw.Entries) > 0 {
		result.IsPlaylist = true
		result.VideoCount = len(raw.Entries)
	} else {
		result.VideoCount = 1
	}
	return result, nil
}

func (c *YTDLPClient) Fetch(ctx context.Context, req FetchRequest) (*FetchResult, error) {
	if !IsValidURL(req.URL) {
		return nil, ErrInvalidURL
	}

	spanCtx, span := c.tracer.Start(ctx, "FetchMedia")
	defer span.End()

	args := []string{
		"--no-playlist",
		"--no-warnings",
		"--print", "after_move:filepath",
		"-o", filepath.Join(req.OutputDir, "%(title)s.%(ext)s"),
	}
	if strings.EqualFold(req.FormatType, "audio") {
		args = append(args, "-x", "--audio-format", "mp3")
	} else {
		selector, ok := qualityFormats[strings.ToLower(req.Quality)]
		if !ok {
			selector = qualityFormats["720p"]
		}
		args = append(args, "-f", selector)
	}
	args = append(args, req.URL)

	output, err := runCommand(spanCtx, c.binary, args)
	if err != nil {
		return nil, fmt.Errorf("fetch %q: %w", req.URL, err)
	}

	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	path := strings.TrimSpace(lines[len(lines)-1])
	if path == "" {
		return nil, ErrExtractionFailed
	}

	result := &FetchResult{
		Path:  path,
		Title: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
	}
	if stat, err := os.Stat(path); err == nil {
		result.Filesize = stat.Size()
	}
	return result, nil
}

type rawFormat struct {
	FormatID   string  `json:"format_id"`
	Ext        string  `json:"ext"`
	Resolution string  `json:"resolution"`
	Height     int     `json:"height"`
	FPS        float64 `json:"fps"`
	Filesize   int64   `json:"filesize"`
	VCodec     string  `json:"vcodec"`
	ACodec     string  `json:"acodec"`
	ABR        float64 `json:"abr"`
	FormatNote string  `json:"format_note"`
}

type rawEntry struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	URL      string  `json:"url"`
	Duration float64 `json:"duration"`
}

type rawInfo struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Duration    float64     `json:"duration"`
	ViewCount   int64       `json:"view_count"`
	LikeCount   int64       `json:"like_count"`
	UploadDate  string      `json:"upload_date"`
	Uploader    string      `json:"uploader"`
	UploaderID  string      `json:"uploader_id"`
	ChannelURL  string      `json:"channel_url"`
	Thumbnail   string      `json:"thumbnail"`
	WebpageURL  string      `json:"webpage_url"`
	Extractor   string      `json:"extractor"`
	Formats     []rawFormat `json:"formats"`
	Entries     []rawEntry  `json:"entries"`
}

func processInfo(url string, raw rawInfo) *VideoInfo {
	info := &VideoInfo{
		Title:       defaultString(raw.Title, "Unknown Title"),
		Description: raw.Description,
		Duration:    int64(raw.Duration),
		ViewCount:   raw.ViewCount,
		LikeCount:   raw.LikeCount,
		UploadDate:  raw.UploadDate,
		Uploader:    defaultString(raw.Uploader, "Unknown"),
		UploaderID:  raw.UploaderID,
		ChannelURL:  raw.ChannelURL,
		Thumbnail:   raw.Thumbnail,
		WebpageURL:  raw.WebpageURL,
		Platform:    platformName(url, raw.Extractor),
	}

	for _, f := range raw.Formats {
		format := Format{
			ID:         f.FormatID,
			Ext:        f.Ext,
			Resolution: f.Resolution,
			Height:     f.Height,
			FPS:        f.FPS,
			Filesize:   f.Filesize,
			VCodec:     f.VCodec,
			ACodec:     f.ACodec,
			ABR:        f.ABR,
			Note:       f.FormatNote,
		}
		hasVideo := f.VCodec != "" && f.VCodec != "none"
		hasAudio := f.ACodec != "" && f.ACodec != "none"
		switch {
		case hasVideo && hasAudio:
			info.Formats = append(info.Formats, format)
		case hasAudio:
			info.AudioFormats = append(info.AudioFormats, format)
		case hasVideo:
			info.VideoOnlyFormats = append(info.VideoOnlyFormats, format)
		}
	}
	return info
}

func platformName(url, extractor string) string {
	if platform := PlatformFromURL(url); platform != "unknown" {
		return platform
	}
	if extractor != "" {
		return strings.ToLower(extractor)
	}
	return "unknown"
}

func defaultString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
