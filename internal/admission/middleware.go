package admission

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
)

const (
	apiKeyHeader  = "X-API-Key"
	apiKeyQuery   = "api_key"
	bearerPrefix  = "Bearer "
	realIPHeader  = "X-Real-IP"
	forwardHeader = "X-Forwarded-For"
)

type contextKey string

const apiKeyContextKey contextKey = "admission.apiKey"

// KeyFromContext returns the API key record resolved by the middleware.
func KeyFromContext(ctx context.Context) (APIKey, bool) {
	record, ok := ctx.Value(apiKeyContextKey).(APIKey)
	return record, ok
}

// CredentialFromRequest extracts the candidate API key. Precedence:
// Authorization bearer token, then the api_key query parameter, then the
// X-API-Key header. First match wins.
func CredentialFromRequest(r *http.Request) string {
	extractors := []func(*http.Request) string{
		bearerCredential,
		queryCredential,
		headerCredential,
	}
	for _, extract := range extractors {
		if key := extract(r); key != "" {
			return key
		}
	}
	return ""
}

func bearerCredential(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, bearerPrefix) {
		return strings.TrimSpace(header[len(bearerPrefix):])
	}
	return ""
}

func queryCredential(r *http.Request) string {
	return strings.TrimSpace(r.URL.Query().Get(apiKeyQuery))
}

func headerCredential(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(apiKeyHeader))
}

// ClientIP resolves the original client address, honouring proxy headers.
func ClientIP(r *http.Request) string {
	if header := r.Header.Get(forwardHeader); header != "" {
		parts := strings.Split(header, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get(realIPHeader)); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
	return host
}

// Middleware gates the wrapped handler behind the controller's admission
// decision for the given capability. Rejections are written as JSON with a
// machine-readable kind; admitted requests carry the resolved key record in
// the request context and rate headers on the response.
func Middleware(ctrl *Controller, capability Permission, logger *log.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = log.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			record, decision, err := ctrl.Admit(r.Context(), Request{
				Key:        CredentialFromRequest(r),
				ClientIP:   ClientIP(r),
				Capability: capability,
			})
			if err != nil {
				writeRejection(w, logger, err, ctrl.RateCeiling(), decision)
				return
			}

			setRateHeaders(w, ctrl.RateCeiling(), decision)
			ctx := context.WithValue(r.Context(), apiKeyContextKey, record)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func setRateHeaders(w http.ResponseWriter, ceiling int, decision RateDecision) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(ceiling))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
	if !decision.ResetAt.IsZero() {
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))
	}
}

func writeRejection(w http.ResponseWriter, logger *log.Logger, err error, ceiling int, decision RateDecision) {
	rej, ok := AsRejection(err)
	if !ok {
		logger.Printf("ERROR: admission check failed: %v", err)
		writeJSONError(w, http.StatusServiceUnavailable, "service unavailable")
		return
	}

	body := map[string]interface{}{
		"error": rej.Message,
		"kind":  string(rej.Kind),
	}
	if rej.Kind == KindRateLimited {
		retryAfter := int(rej.RetryAfter.Seconds() + 0.5)
		if retryAfter < 1 {
			retryAfter = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		setRateHeaders(w, ceiling, decision)
		body["retry_after_seconds"] = retryAfter
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rej.HTTPStatus())
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// SecurityHeaders adds the baseline hardening headers to every response.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-XSS-Protection", "1; mode=block")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}
