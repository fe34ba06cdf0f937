package handler

import (
	"net/http"

	"vextract/internal/extractor"
)

const (
	appName    = "Video Extractor Server"
	appVersion = "1.0.0"
)

// InfoHandler handles GET /api/v1/, advertising the API surface.
type InfoHandler struct{}

func NewInfoHandler() http.Handler {
	return InfoHandler{}
}

func (InfoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":    appName,
		"version": appVersion,
		"endpoints": map[string]string{
			"extract":   "/api/v1/extract - Extract video information",
			"download":  "/api/v1/download - Download video/audio",
			"validate":  "/api/v1/validate - Validate URL",
			"status":    "/api/v1/status/{download_id} - Get download status",
			"downloads": "/api/v1/downloads/{filename} - Fetch completed file",
			"platforms": "/api/v1/platforms - Supported platforms",
		},
	})
}

// PlatformsHandler handles GET /api/v1/platforms.
type PlatformsHandler struct{}

func NewPlatformsHandler() http.Handler {
	return PlatformsHandler{}
}

func (PlatformsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	platforms := extractor.SupportedPlatforms()
	writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"platforms": platforms,
		"count":     len(platforms),
		"qualities": extractor.QualityNames(),
	}, nil))
}
