package admission

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	adminKeyHeader        = "X-Admin-Key"
	defaultAdminRateLimit = 100
	defaultAdminBurst     = 20
)

type operatorContextKey struct{}

func withAdminOperator(ctx context.Context, operator string) context.Context {
	return context.WithValue(ctx, operatorContextKey{}, operator)
}

// AdminOperatorFromContext returns the master key that authenticated the
// current admin request.
func AdminOperatorFromContext(ctx context.Context) string {
	operator, _ := ctx.Value(operatorContextKey{}).(string)
	return operator
}

// AdminMiddlewareConfig configures the admin authentication middleware.
type AdminMiddlewareConfig struct {
	MasterKeys []string
	Logger     *log.Logger
	RateLimit  rate.Limit
	Burst      int
}

// AdminAuthMiddleware gates the operator key-management endpoints behind a
// master key and a per-IP token bucket. The bucket is deliberately separate
// from the sliding-window limiter guarding the public API.
func AdminAuthMiddleware(cfg AdminMiddlewareConfig) func(http.Handler) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	masterSet := make(map[string]struct{}, len(cfg.MasterKeys))
	for _, key := range cfg.MasterKeys {
		masterSet[key] = struct{}{}
	}

	limit := cfg.RateLimit
	if limit == 0 {
		limit = rate.Every(time.Minute / defaultAdminRateLimit)
	}
	burst := cfg.Burst
	if burst == 0 {
		burst = defaultAdminBurst
	}

	ipLimiter := newIPRateLimiter(limit, burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)
			if !ipLimiter.Allow(ip) {
				logger.Printf("WARN: admin rate limit exceeded ip=%s path=%s", ip, r.URL.Path)
				writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			adminKey := r.Header.Get(adminKeyHeader)
			if adminKey == "" {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			if _, ok := masterSet[adminKey]; !ok {
				logger.Printf("WARN: invalid admin key ip=%s path=%s", ip, r.URL.Path)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			ctx := withAdminOperator(r.Context(), adminKey)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type ipRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rateLimiterEntry
	limit    rate.Limit
	burst    int
	ttl      time.Duration
}

type rateLimiterEntry struct {
	limiter *rate.Limiter
	expires time.Time
}

func newIPRateLimiter(limit rate.Limit, burst int) *ipRateLimiter {
	return &ipRateLimiter{
		limiters: make(map[string]*rateLimiterEntry),
		limit:    limit,
		burst:    burst,
		ttl:      10 * time.Minute,
	}
}

func (l *ipRateLimiter) Allow(ip string) bool {
	if ip == "" {
		ip = "unknown"
	}
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.limiters[ip]
	if !ok || now.After(entry.expires) {
		entry = &rateLimiterEntry{
			limiter: rate.NewLimiter(l.limit, l.burst),
		}
		l.limiters[ip] = entry
	}
	entry.expires = now.Add(l.ttl)
	return entry.limiter.Allow()
}
