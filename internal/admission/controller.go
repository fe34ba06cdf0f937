package admission

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

type clock interface {
	Now() time.Time
}

type timeNowClock struct{}

func (timeNowClock) Now() time.Time {
	return time.Now().UTC()
}

// Request carries everything the controller needs to decide admission.
type Request struct {
	Key        string
	ClientIP   string
	Capability Permission
}

// Controller makes the combined authentication, block-list and rate-limit
// decision in front of every API call. It owns no I/O of its own; the
// extraction collaborator is invoked by the handlers only after Admit
// succeeds.
type Controller struct {
	keys    KeyResolver
	limiter *RateLimiter
	blocks  *BlockList
	logger  *log.Logger
	metrics metricsRecorder
	clock   clock
}

// ControllerConfig captures optional tunables for Controller behaviour.
type ControllerConfig struct {
	Clock clock
}

func NewController(keys KeyResolver, limiter *RateLimiter, blocks *BlockList, logger *log.Logger, cfg ControllerConfig) *Controller {
	clk := cfg.Clock
	if clk == nil {
		clk = timeNowClock{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Controller{
		keys:    keys,
		limiter: limiter,
		blocks:  blocks,
		logger:  logger,
		metrics: newExpvarMetrics(),
		clock:   clk,
	}
}

// Authorize resolves the candidate key and checks the block list and the
// requested capability. Failed authentication feeds the per-IP failure
// ledger; crossing its threshold blocks the IP for the configured duration.
func (c *Controller) Authorize(ctx context.Context, req Request) (APIKey, error) {
	now := c.clock.Now()

	if entry, blocked := c.blocks.IsBlocked(req.ClientIP, now); blocked {
		c.metrics.IncAdmission(string(KindBlocked))
		c.logger.Printf("WARN: event=admission_blocked ip=%s reason=%q until=%s", req.ClientIP, entry.Reason, entry.ExpiresAt.UTC().Format(time.RFC3339))
		return APIKey{}, reject(KindBlocked, "access denied: client address is blocked")
	}

	if req.Key == "" {
		return APIKey{}, c.authFailure(req, now, KindUnauthenticated, "missing api key", "api key required")
	}

	record, err := c.keys.Lookup(ctx, req.Key)
	if errors.Is(err, ErrKeyNotFound) {
		return APIKey{}, c.authFailure(req, now, KindUnauthenticated, "invalid api key", "invalid api key")
	}
	if err != nil {
		return APIKey{}, fmt.Errorf("lookup api key: %w", err)
	}

	switch record.Status(now) {
	case StatusRevoked:
		return APIKey{}, c.authFailure(req, now, KindForbidden, "revoked api key", "api key revoked")
	case StatusExpired:
		return APIKey{}, c.authFailure(req, now, KindForbidden, "expired api key", "api key expired")
	}

	if !record.HasPermission(req.Capability) {
		return APIKey{}, c.authFailure(req, now, KindForbidden, fmt.Sprintf("insufficient permissions: %s", req.Capability), fmt.Sprintf("insufficient permissions: %s required", req.Capability))
	}

	return record, nil
}

// CheckRate runs the sliding-window check for the key, recording the request
// when admitted. The returned decision carries header material either way.
func (c *Controller) CheckRate(key string) (RateDecision, error) {
	decision := c.limiter.Allow(key, c.clock.Now())
	if !decision.Allowed {
		c.metrics.IncAdmission(string(KindRateLimited))
		c.logger.Printf("WARN: event=rate_limited api_key_hash=%s retry_after=%s", hashIdentifier(key, apiKeyHashPrefixLength), decision.RetryAfter)
		rej := reject(KindRateLimited, "rate limit exceeded")
		rej.RetryAfter = decision.RetryAfter
		return decision, rej
	}
	return decision, nil
}

// Admit is the full admission decision: authorize, then rate limit. Every
// rejection path is terminal for the request.
func (c *Controller) Admit(ctx context.Context, req Request) (APIKey, RateDecision, error) {
	record, err := c.Authorize(ctx, req)
	if err != nil {
		return APIKey{}, RateDecision{}, err
	}
	decision, err := c.CheckRate(record.Key)
	if err != nil {
		return APIKey{}, decision, err
	}
	c.metrics.IncAdmission("allowed")
	return record, decision, nil
}

// RateCeiling exposes the configured ceiling for response headers.
func (c *Controller) RateCeiling() int {
	return c.limiter.Ceiling()
}

func (c *Controller) authFailure(req Request, now time.Time, kind RejectionKind, reason, message string) error {
	c.metrics.IncAdmission(string(kind))
	if c.blocks.RecordFailure(req.ClientIP, reason, now) {
		c.metrics.IncBlockApplied()
		c.logger.Printf("WARN: event=ip_blocked ip=%s reason=%q", req.ClientIP, reason)
	} else {
		c.logger.Printf("WARN: event=auth_failure ip=%s reason=%q", req.ClientIP, reason)
	}
	return reject(kind, "%s", message)
}
