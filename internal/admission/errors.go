package admission

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	// ErrKeyNotFound indicates that the requested key does not exist.
	ErrKeyNotFound = errors.New("api key not found")
	// ErrKeyExpired indicates that the key has surpassed its expiration timestamp.
	ErrKeyExpired = errors.New("api key expired")
	// ErrKeyRevoked indicates an operator revoked the key.
	ErrKeyRevoked = errors.New("api key revoked")
)

// RejectionKind classifies why a request was refused admission.
type RejectionKind string

const (
	// KindUnauthenticated covers missing, malformed and unknown keys.
	KindUnauthenticated RejectionKind = "unauthenticated"
	// KindForbidden covers valid keys lacking the requested capability,
	// revoked keys and expired keys.
	KindForbidden RejectionKind = "forbidden"
	// KindBlocked covers client IPs on the block list.
	KindBlocked RejectionKind = "blocked"
	// KindRateLimited covers sliding-window ceiling violations.
	KindRateLimited RejectionKind = "rate_limited"
)

// Rejection is a terminal admission failure. The HTTP layer translates it
// into the externally visible response; the controller never retries.
type Rejection struct {
	Kind       RejectionKind
	Message    string
	RetryAfter time.Duration
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("admission rejected: %s: %s", r.Kind, r.Message)
}

// HTTPStatus maps the rejection kind to the response status code. Blocked
// clients receive 403, matching the behaviour the API has always shipped.
func (r *Rejection) HTTPStatus() int {
	switch r.Kind {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden, KindBlocked:
		return http.StatusForbidden
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// AsRejection unwraps err into a Rejection when it is one.
func AsRejection(err error) (*Rejection, bool) {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}

func reject(kind RejectionKind, format string, args ...interface{}) *Rejection {
	return &Rejection{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
