package admission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultCollection = "apiKeys"
	maxRetries        = 3
	requestTimeout    = 3 * time.Second
	initialBackoff    = 100 * time.Millisecond
)

// FirestoreStore persists operator-issued temporary keys in a Firestore
// collection keyed by the raw key value.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
	tracer     trace.Tracer
}

func NewFirestoreStore(client *firestore.Client, collection string) *FirestoreStore {
	if collection == "" {
		collection = defaultCollection
	}
	return &FirestoreStore{
		client:     client,
		collection: collection,
		tracer:     otel.Tracer("vextract/internal/admission/firestore"),
	}
}

func (s *FirestoreStore) Create(ctx context.Context, key APIKey) error {
	return s.withRetries(ctx, "CreateTemporaryKey", func(ctx context.Context) error {
		doc := s.collectionRef().Doc(key.Key)
		_, err := doc.Create(ctx, encodeAPIKey(key))
		return err
	})
}

func (s *FirestoreStore) Lookup(ctx context.Context, key string) (APIKey, error) {
	var result APIKey
	err := s.withRetries(ctx, "LookupTemporaryKey", func(ctx context.Context) error {
		doc, err := s.collectionRef().Doc(key).Get(ctx)
		if status.Code(err) == codes.NotFound {
			return ErrKeyNotFound
		}
		if err != nil {
			return err
		}
		result, err = decodeAPIDocument(doc)
		return err
	})
	return result, err
}

func (s *FirestoreStore) Revoke(ctx context.Context, key string, now time.Time) (APIKey, error) {
	var result APIKey
	err := s.withRetries(ctx, "RevokeTemporaryKey", func(ctx context.Context) error {
		doc := s.collectionRef().Doc(key)
		err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
			snap, err := tx.Get(doc)
			if status.Code(err) == codes.NotFound {
				return ErrKeyNotFound
			}
			if err != nil {
				return err
			}
			record, err := decodeAPIDocument(snap)
			if err != nil {
				return err
			}
			if record.RevokedAt != nil {
				result = record
				return nil
			}
			record.RevokedAt = &now
			if err := tx.Set(doc, encodeAPIKey(record)); err != nil {
				return err
			}
			result = record
			return nil
		}, firestore.MaxAttempts(1))
		return err
	})
	return result, err
}

func (s *FirestoreStore) DeleteExpired(ctx context.Context, now time.Time, limit int) (int, error) {
	var deleted int
	err := s.withRetries(ctx, "DeleteExpiredKeys", func(ctx context.Context) error {
		q := s.collectionRef().Where("expires_at", "<=", now).Limit(limit)
		iter := q.Documents(ctx)
		defer iter.Stop()

		batch := s.client.Batch()
		for {
			doc, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				break
			}
			if err != nil {
				return err
			}
			batch.Delete(doc.Ref)
			deleted++
		}
		if deleted == 0 {
			return nil
		}
		_, err := batch.Commit(ctx)
		return err
	})
	return deleted, err
}

func (s *FirestoreStore) CountActive(ctx context.Context, now time.Time) (int, error) {
	var count int
	err := s.withRetries(ctx, "CountActiveKeys", func(ctx context.Context) error {
		iter := s.collectionRef().
			Where("expires_at", ">", now).
			Documents(ctx)
		defer iter.Stop()
		count = 0
		for {
			doc, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				break
			}
			if err != nil {
				return err
			}
			record, err := decodeAPIDocument(doc)
			if err != nil {
				return err
			}
			if record.RevokedAt == nil {
				count++
			}
		}
		return nil
	})
	return count, err
}

func (s *FirestoreStore) collectionRef() *firestore.CollectionRef {
	return s.client.Collection(s.collection)
}

func (s *FirestoreStore) withRetries(ctx context.Context, spanName string, fn func(context.Context) error) error {
	var err error
	backoff := initialBackoff
	for attempt := 0; attempt < maxRetries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, requestTimeout)
		spanCtx, span := s.tracer.Start(attemptCtx, spanName)
		err = fn(spanCtx)
		span.End()
		cancel()
		if err == nil || isNonRetryableError(err) || attempt == maxRetries-1 {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return err
}

func encodeAPIKey(key APIKey) map[string]interface{} {
	permissions := make([]string, 0, len(key.Permissions))
	for _, p := range key.Permissions {
		permissions = append(permissions, string(p))
	}
	return map[string]interface{}{
		"source":      string(key.Source),
		"label":       key.Name,
		"permissions": permissions,
		"created_at":  key.CreatedAt,
		"expires_at":  key.ExpiresAt,
		"revoked_at":  key.RevokedAt,
	}
}

func decodeAPIDocument(doc *firestore.DocumentSnapshot) (APIKey, error) {
	var payload struct {
		Source      string     `firestore:"source"`
		Label       string     `firestore:"label"`
		Permissions []string   `firestore:"permissions"`
		CreatedAt   time.Time  `firestore:"created_at"`
		ExpiresAt   *time.Time `firestore:"expires_at"`
		RevokedAt   *time.Time `firestore:"revoked_at"`
	}
	if err := doc.DataTo(&payload); err != nil {
		return APIKey{}, fmt.Errorf("decode api key document: %w", err)
	}
	permissions := make([]Permission, 0, len(payload.Permissions))
	for _, p := range payload.Permissions {
		permissions = append(permissions, Permission(p))
	}
	record := APIKey{
		Key:         doc.Ref.ID,
		Source:      KeySource(payload.Source),
		Name:        payload.Label,
		Permissions: permissions,
		CreatedAt:   payload.CreatedAt,
		ExpiresAt:   payload.ExpiresAt,
		RevokedAt:   payload.RevokedAt,
	}
	return record, nil
}

func isNonRetryableError(err error) bool {
	switch status.Code(err) {
	case codes.OK:
		return true
	case codes.NotFound, codes.InvalidArgument, codes.FailedPrecondition, codes.PermissionDenied, codes.AlreadyExists:
		return true
	default:
		return errors.Is(err, ErrKeyNotFound) ||
			errors.Is(err, ErrKeyExpired) ||
			errors.Is(err, ErrKeyRevoked)
	}
}
