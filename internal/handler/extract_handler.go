package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"vextract/internal/admission"
	"vextract/internal/cache"
	"vextract/internal/extractor"
)

// MetadataService is the slice of the extraction collaborator the metadata
// endpoints need.
type MetadataService interface {
	Extract(ctx context.Context, url string) (*extractor.VideoInfo, error)
	ExtractPlaylist(ctx context.Context, url string, maxVideos int) (*extractor.PlaylistInfo, error)
	Validate(ctx context.Context, url string) (*extractor.Validation, error)
}

// ExtractHandler handles POST /api/v1/extract. Successful extractions are
// cached by request fingerprint; the collaborator is only invoked on a miss.
type ExtractHandler struct {
	service MetadataService
	cache   cache.Store
	logger  *log.Logger
}

// NewExtractHandler returns a configured ExtractHandler. A nil store
// disables caching.
func NewExtractHandler(service MetadataService, store cache.Store, logger *log.Logger) http.Handler {
	return &ExtractHandler{
		service: service,
		cache:   store,
		logger:  logger,
	}
}

type extractRequest struct {
	URL              string `json:"url"`
	IncludePlaylist  bool   `json:"include_playlist"`
	MaxPlaylistCount int    `json:"max_playlist_videos"`
}

func (h *ExtractHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req extractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if !extractor.IsValidURL(req.URL) {
		writeJSONError(w, http.StatusBadRequest, "invalid url")
		return
	}

	normalized := extractor.NormalizeURL(req.URL)
	platform := extractor.PlatformFromURL(normalized)
	fingerprint := cache.Fingerprint(normalized, cache.Options{
		Playlist:    req.IncludePlaylist,
		MaxPlaylist: req.MaxPlaylistCount,
	})

	if h.cache != nil {
		if payload, ok := h.cache.Get(r.Context(), fingerprint); ok {
			h.logger.Printf("INFO: event=cache_hit fingerprint=%s", fingerprint[:12])
			serveCached(w, payload)
			return
		}
	}

	var (
		data interface{}
		err  error
	)
	if req.IncludePlaylist {
		data, err = h.service.ExtractPlaylist(r.Context(), normalized, req.MaxPlaylistCount)
	} else {
		data, err = h.service.Extract(r.Context(), normalized)
	}
	if err != nil {
		h.handleExtractionError(w, err)
		return
	}

	body := envelope(data, map[string]interface{}{
		"extracted_at": time.Now().UTC().Format(time.RFC3339),
		"platform":     platform,
	})

	if h.cache != nil {
		if payload, marshalErr := json.Marshal(body); marshalErr == nil {
			h.cache.Set(r.Context(), fingerprint, payload)
		}
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *ExtractHandler) handleExtractionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, extractor.ErrInvalidURL):
		writeJSONError(w, http.StatusBadRequest, "invalid url")
	case errors.Is(err, extractor.ErrExtractionFailed):
		writeJSONError(w, http.StatusBadRequest, "extraction failed")
	default:
		h.logger.Printf("ERROR: extract: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to extract video information")
	}
}

func serveCached(w http.ResponseWriter, payload json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Cache", "HIT")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

// ValidateHandler handles POST /api/v1/validate.
type ValidateHandler struct {
	service MetadataService
	logger  *log.Logger
}

func NewValidateHandler(service MetadataService, logger *log.Logger) http.Handler {
	return &ValidateHandler{service: service, logger: logger}
}

func (h *ValidateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	result, err := h.service.Validate(r.Context(), req.URL)
	if err != nil {
		h.logger.Printf("ERROR: validate: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "validation failed")
		return
	}

	writeJSON(w, http.StatusOK, envelope(result, map[string]interface{}{
		"validated_at": time.Now().UTC().Format(time.RFC3339),
	}))
}

// keyName returns the resolved key's name for response metadata, when the
// admission middleware ran.
func keyName(r *http.Request) string {
	if record, ok := admission.KeyFromContext(r.Context()); ok {
		return record.Name
	}
	return ""
}
