package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"vextract/internal/download"
	"vextract/internal/extractor"
)

// DownloadService is the slice of the download manager the endpoints need.
type DownloadService interface {
	Start(url, quality, formatType string) (download.Job, error)
	Status(id string) (download.Job, error)
	FilePath(filename string) (string, error)
}

// DownloadHandler handles POST /api/v1/download. The fetch runs in the
// background; the response carries the job id for the status endpoint.
type DownloadHandler struct {
	service DownloadService
	logger  *log.Logger
}

func NewDownloadHandler(service DownloadService, logger *log.Logger) http.Handler {
	return &DownloadHandler{service: service, logger: logger}
}

type downloadRequest struct {
	URL        string `json:"url"`
	Quality    string `json:"quality"`
	FormatType string `json:"format_type"`
}

func (h *DownloadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req downloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if !extractor.IsValidURL(req.URL) {
		writeJSONError(w, http.StatusBadRequest, "invalid url")
		return
	}
	if req.Quality == "" {
		req.Quality = "720p"
	}
	if !extractor.IsSupportedQuality(req.Quality) {
		writeJSONError(w, http.StatusBadRequest, "unsupported quality")
		return
	}
	if req.FormatType == "" {
		req.FormatType = "video"
	}
	formatType := strings.ToLower(req.FormatType)
	if formatType != "video" && formatType != "audio" {
		writeJSONError(w, http.StatusBadRequest, "format_type must be video or audio")
		return
	}

	job, err := h.service.Start(extractor.NormalizeURL(req.URL), req.Quality, formatType)
	if err != nil {
		h.logger.Printf("ERROR: start download: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to start download")
		return
	}

	h.logger.Printf("INFO: event=download_accepted download_id=%s key=%q quality=%s format=%s", job.ID, keyName(r), req.Quality, formatType)
	writeJSON(w, http.StatusAccepted, envelope(map[string]interface{}{
		"download_id": job.ID,
		"status":      job.Status,
		"status_url":  "/api/v1/status/" + job.ID,
	}, map[string]interface{}{
		"accepted_at": job.CreatedAt.UTC().Format(time.RFC3339),
		"quality":     req.Quality,
		"format_type": formatType,
	}))
}

// StatusHandler handles GET /api/v1/status/{id}.
type StatusHandler struct {
	service DownloadService
	logger  *log.Logger
}

func NewStatusHandler(service DownloadService, logger *log.Logger) http.Handler {
	return &StatusHandler{service: service, logger: logger}
}

func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	const base = "/api/v1/status/"
	id := strings.TrimPrefix(r.URL.Path, base)
	if id == "" || strings.Contains(id, "/") {
		writeJSONError(w, http.StatusNotFound, "not found")
		return
	}

	job, err := h.service.Status(id)
	if errors.Is(err, download.ErrJobNotFound) {
		writeJSONError(w, http.StatusNotFound, "download not found")
		return
	}
	if err != nil {
		h.logger.Printf("ERROR: download status: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to fetch status")
		return
	}

	writeJSON(w, http.StatusOK, envelope(job, nil))
}

// FilesHandler handles GET /api/v1/downloads/{filename}, serving completed
// artifacts from the downloads directory.
type FilesHandler struct {
	service DownloadService
	logger  *log.Logger
}

func NewFilesHandler(service DownloadService, logger *log.Logger) http.Handler {
	return &FilesHandler{service: service, logger: logger}
}

func (h *FilesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	const base = "/api/v1/downloads/"
	name := strings.TrimPrefix(r.URL.Path, base)
	if name == "" || strings.Contains(name, "/") {
		writeJSONError(w, http.StatusNotFound, "not found")
		return
	}

	path, err := h.service.FilePath(name)
	if errors.Is(err, download.ErrFileNotFound) {
		writeJSONError(w, http.StatusNotFound, "file not found")
		return
	}
	if err != nil {
		h.logger.Printf("ERROR: resolve download file: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to serve file")
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	http.ServeFile(w, r, path)
}
