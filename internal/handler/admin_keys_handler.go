package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"vextract/internal/admission"
)

const (
	defaultKeyTTLMinutes = 10080
	minKeyTTLMinutes     = 15
	maxKeyTTLMinutes     = 10080
)

// KeyAdminHandler exposes operator operations for temporary API keys.
type KeyAdminHandler struct {
	service KeyManagementService
	logger  *log.Logger
}

type KeyManagementService interface {
	IssueTemporaryKey(ctx context.Context, req admission.IssueRequest) (admission.IssueResponse, error)
	Get(ctx context.Context, key string) (admission.APIKey, error)
	Revoke(ctx context.Context, key string, operator string) (admission.APIKey, error)
	CleanupExpired(ctx context.Context, limit int) (int, error)
}

func NewKeyAdminHandler(service KeyManagementService, logger *log.Logger) *KeyAdminHandler {
	return &KeyAdminHandler{
		service: service,
		logger:  logger,
	}
}

func (h *KeyAdminHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/admin/api-keys", h.issueKey)
	mux.HandleFunc("/admin/api-keys/", h.routeKeyActions)
	mux.HandleFunc("/admin/api-keys/cleanup", h.cleanup)
}

func (h *KeyAdminHandler) routeKeyActions(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	const base = "/admin/api-keys/"
	if len(path) <= len(base) {
		writeJSONError(w, http.StatusNotFound, "not found")
		return
	}
	rest := path[len(base):]
	switch {
	case r.Method == http.MethodGet:
		h.getKey(w, r, rest)
	case r.Method == http.MethodPost && strings.HasSuffix(rest, "/revoke"):
		key := strings.TrimSuffix(rest, "/revoke")
		h.revokeKey(w, r, key)
	default:
		writeJSONError(w, http.StatusNotFound, "not found")
	}
}

func (h *KeyAdminHandler) issueKey(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Label       string   `json:"label"`
		Permissions []string `json:"permissions"`
		TTLMinutes  *int     `json:"ttlMinutes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSONError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	permissions, err := parsePermissions(req.Permissions)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	ttl := defaultKeyTTLMinutes
	if req.TTLMinutes != nil {
		ttl = *req.TTLMinutes
	}
	if ttl < minKeyTTLMinutes || ttl > maxKeyTTLMinutes {
		writeJSONError(w, http.StatusBadRequest, "ttlMinutes out of range")
		return
	}

	operator := admission.AdminOperatorFromContext(r.Context())
	resp, err := h.service.IssueTemporaryKey(r.Context(), admission.IssueRequest{
		Label:       req.Label,
		Permissions: permissions,
		TTL:         time.Duration(ttl) * time.Minute,
		Operator:    operator,
	})
	if err != nil {
		h.logger.Printf("ERROR: issue temporary key: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to issue key")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"key":         resp.Key,
		"label":       resp.Record.Name,
		"permissions": resp.Record.Permissions,
		"createdAt":   resp.Record.CreatedAt.UTC().Format(time.RFC3339),
		"expiresAt":   formatOptionalTime(resp.Record.ExpiresAt),
		"status":      resp.Record.Status(time.Now().UTC()),
	})
}

func (h *KeyAdminHandler) getKey(w http.ResponseWriter, r *http.Request, key string) {
	record, err := h.service.Get(r.Context(), key)
	if errors.Is(err, admission.ErrKeyNotFound) {
		writeJSONError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		h.logger.Printf("ERROR: fetch key status: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to fetch key")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"label":       record.Name,
		"permissions": record.Permissions,
		"createdAt":   record.CreatedAt.UTC().Format(time.RFC3339),
		"expiresAt":   formatOptionalTime(record.ExpiresAt),
		"revokedAt":   formatOptionalTime(record.RevokedAt),
		"status":      record.Status(time.Now().UTC()),
	})
}

func (h *KeyAdminHandler) revokeKey(w http.ResponseWriter, r *http.Request, key string) {
	operator := admission.AdminOperatorFromContext(r.Context())
	record, err := h.service.Revoke(r.Context(), key, operator)
	if errors.Is(err, admission.ErrKeyNotFound) {
		writeJSONError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		h.logger.Printf("ERROR: revoke key: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to revoke key")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"label":     record.Name,
		"revokedAt": formatOptionalTime(record.RevokedAt),
		"status":    admission.StatusRevoked,
	})
}

func (h *KeyAdminHandler) cleanup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit := admission.DefaultCleanupLimit()
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeJSONError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	count, err := h.service.CleanupExpired(r.Context(), limit)
	if err != nil {
		h.logger.Printf("ERROR: cleanup expired keys: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to cleanup keys")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"deleted": count})
}

func parsePermissions(raw []string) ([]admission.Permission, error) {
	if len(raw) == 0 {
		return []admission.Permission{admission.PermissionExtract}, nil
	}
	permissions := make([]admission.Permission, 0, len(raw))
	for _, entry := range raw {
		switch admission.Permission(strings.ToLower(strings.TrimSpace(entry))) {
		case admission.PermissionExtract:
			permissions = append(permissions, admission.PermissionExtract)
		case admission.PermissionDownload:
			permissions = append(permissions, admission.PermissionDownload)
		default:
			return nil, errors.New("unknown permission: " + entry)
		}
	}
	return permissions, nil
}
