package handler

import (
	"encoding/json"
	"net/http"
	"time"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// envelope wraps successful responses the way the API has always shipped
// them: a success flag, the payload, and request metadata.
func envelope(data interface{}, metadata map[string]interface{}) map[string]interface{} {
	body := map[string]interface{}{
		"success": true,
		"data":    data,
	}
	if metadata != nil {
		body["metadata"] = metadata
	}
	return body
}

func formatOptionalTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
