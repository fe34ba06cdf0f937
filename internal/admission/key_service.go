package admission

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"time"
)

const (
	defaultKeyBytes          = 32
	defaultCleanupLimit      = 200
	operatorHashPrefixLength = 16
	apiKeyHashPrefixLength   = 16
)

// KeyService coordinates issuance, revocation and lifecycle operations for
// operator-issued temporary API keys. Static keys never pass through here.
type KeyService struct {
	repo    KeyStore
	logger  *log.Logger
	metrics metricsRecorder
	clock   clock
}

// ServiceConfig captures optional tunables for KeyService behaviour.
type ServiceConfig struct {
	Clock clock
}

func NewKeyService(repo KeyStore, logger *log.Logger, cfg ServiceConfig) *KeyService {
	clk := cfg.Clock
	if clk == nil {
		clk = timeNowClock{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &KeyService{
		repo:    repo,
		logger:  logger,
		metrics: newExpvarMetrics(),
		clock:   clk,
	}
}

type IssueRequest struct {
	Label       string
	Permissions []Permission
	TTL         time.Duration
	Operator    string
}

type IssueResponse struct {
	Key    string
	Record APIKey
}

func (s *KeyService) IssueTemporaryKey(ctx context.Context, req IssueRequest) (IssueResponse, error) {
	rawKey, err := generateBase62Key(defaultKeyBytes)
	operatorHash := hashIdentifier(req.Operator, operatorHashPrefixLength)
	if err != nil {
		s.metrics.IncKeyIssue("error", operatorHash)
		return IssueResponse{}, fmt.Errorf("generate api key: %w", err)
	}

	now := s.clock.Now()
	expiresAt := now.Add(req.TTL)
	record := APIKey{
		Key:         rawKey,
		Source:      TemporaryKey,
		Name:        req.Label,
		Permissions: req.Permissions,
		CreatedAt:   now,
		ExpiresAt:   &expiresAt,
	}

	if err := s.repo.Create(ctx, record); err != nil {
		s.metrics.IncKeyIssue("error", operatorHash)
		return IssueResponse{}, fmt.Errorf("persist api key: %w", err)
	}

	s.metrics.IncKeyIssue("success", operatorHash)
	if err := s.refreshActiveGauge(ctx); err != nil {
		s.logger.Printf("WARN: refresh active keys gauge: %v", err)
	}

	keyHash := hashIdentifier(rawKey, apiKeyHashPrefixLength)
	s.logger.Printf("INFO: event=api_key_issue api_key_hash=%s operator=%s label=%q permissions=%v ttl=%s", keyHash, operatorHash, req.Label, req.Permissions, req.TTL)
	return IssueResponse{Key: rawKey, Record: record}, nil
}

func (s *KeyService) Get(ctx context.Context, key string) (APIKey, error) {
	return s.repo.Lookup(ctx, key)
}

func (s *KeyService) Revoke(ctx context.Context, key string, operator string) (APIKey, error) {
	record, err := s.repo.Revoke(ctx, key, s.clock.Now())
	if err != nil {
		return APIKey{}, err
	}
	if err := s.refreshActiveGauge(ctx); err != nil {
		s.logger.Printf("WARN: refresh active keys gauge: %v", err)
	}
	s.logger.Printf("INFO: event=api_key_revoke api_key_hash=%s operator=%s", hashIdentifier(key, apiKeyHashPrefixLength), hashIdentifier(operator, operatorHashPrefixLength))
	return record, nil
}

func (s *KeyService) CleanupExpired(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = defaultCleanupLimit
	}

	count, err := s.repo.DeleteExpired(ctx, s.clock.Now(), limit)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		if err := s.refreshActiveGauge(ctx); err != nil {
			s.logger.Printf("WARN: refresh active keys gauge: %v", err)
		}
	}
	return count, nil
}

// DefaultCleanupLimit returns the default maximum number of records deleted
// per cleanup run.
func DefaultCleanupLimit() int {
	return defaultCleanupLimit
}

func (s *KeyService) refreshActiveGauge(ctx context.Context) error {
	count, err := s.repo.CountActive(ctx, s.clock.Now())
	if err != nil {
		return err
	}
	s.metrics.SetTemporaryKeysActive(count)
	return nil
}

func generateBase62Key(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("invalid key length")
	}

	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	const charsetLen = byte(len(charset))
	const maxMultiple = 256 / int(charsetLen) * int(charsetLen)

	out := make([]byte, length)
	buffer := make([]byte, length)
	// Rejection sample random bytes to avoid modulo bias.
	for i := 0; i < length; {
		if _, err := rand.Read(buffer); err != nil {
			return "", fmt.Errorf("read random bytes: %w", err)
		}
		for _, b := range buffer {
			if int(b) >= maxMultiple {
				continue
			}
			idx := b % charsetLen
			out[i] = charset[idx]
			i++
			if i == length {
				break
			}
		}
	}
	return string(out), nil
}

func hashIdentifier(value string, prefix int) string {
	sum := sha256.Sum256([]byte(value))
	encoded := base64.RawURLEncoding.EncodeToString(sum[:])
	if prefix > 0 && prefix < len(encoded) {
		return encoded[:prefix]
	}
	return encoded
}
