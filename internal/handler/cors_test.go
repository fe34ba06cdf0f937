package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewCORSPolicy(t *testing.T) {
	policy, err := NewCORSPolicy([]string{"https://app.example.com", "http://localhost:3000"})
	if err != nil {
		t.Fatalf("new policy: %v", err)
	}

	if !policy.Allows("https://app.example.com") {
		t.Fatal("configured origin should be allowed")
	}
	if !policy.Allows("HTTPS://APP.EXAMPLE.COM") {
		t.Fatal("origin matching is case insensitive")
	}
	if policy.Allows("https://evil.example.com") {
		t.Fatal("unlisted origin should be refused")
	}

	if _, err := NewCORSPolicy([]string{"no-scheme.example.com"}); err == nil {
		t.Fatal("expected error for origin without scheme")
	}
}

func TestNewCORSPolicy_Wildcard(t *testing.T) {
	policy, err := NewCORSPolicy([]string{"*"})
	if err != nil {
		t.Fatalf("new policy: %v", err)
	}
	if !policy.Allows("https://anything.example.com") {
		t.Fatal("wildcard policy should allow every origin")
	}
}

func corsTestHandler(t *testing.T, origins []string) http.Handler {
	t.Helper()
	policy, err := NewCORSPolicy(origins)
	if err != nil {
		t.Fatalf("new policy: %v", err)
	}
	return CORSMiddleware(policy, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestCORSMiddleware_AllowedOrigin(t *testing.T) {
	handler := corsTestHandler(t, []string{"https://app.example.com"})

	r := httptest.NewRequest(http.MethodGet, "/api/v1/", nil)
	r.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Fatalf("unexpected allow-origin %q", got)
	}
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	handler := corsTestHandler(t, []string{"https://app.example.com"})

	r := httptest.NewRequest(http.MethodOptions, "/api/v1/extract", nil)
	r.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Headers") == "" {
		t.Fatal("expected allow-headers on preflight")
	}
}

func TestCORSMiddleware_ForbiddenPreflight(t *testing.T) {
	handler := corsTestHandler(t, []string{"https://app.example.com"})

	r := httptest.NewRequest(http.MethodOptions, "/api/v1/extract", nil)
	r.Header.Set("Origin", "https://evil.example.com")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestCORSMiddleware_DisallowedOriginNoHeaders(t *testing.T) {
	handler := corsTestHandler(t, []string{"https://app.example.com"})

	r := httptest.NewRequest(http.MethodGet, "/api/v1/", nil)
	r.Header.Set("Origin", "https://evil.example.com")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	// The request still runs same-origin; the browser enforces the rest.
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("no cors headers for a disallowed origin")
	}
}

func TestCORSMiddleware_NoOriginHeader(t *testing.T) {
	handler := corsTestHandler(t, []string{"https://app.example.com"})

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("no cors headers without an origin")
	}
}
