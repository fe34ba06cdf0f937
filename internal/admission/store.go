package admission

import (
	"context"
	"errors"
	"time"
)

// KeyResolver is the read side of key storage, all the Controller needs.
type KeyResolver interface {
	Lookup(ctx context.Context, key string) (APIKey, error)
}

// KeyStore abstracts the storage operations required for API keys. Static
// keys live in memory for the process lifetime; temporary keys may be
// persisted in Firestore.
type KeyStore interface {
	KeyResolver
	Create(ctx context.Context, key APIKey) error
	Revoke(ctx context.Context, key string, now time.Time) (APIKey, error)
	DeleteExpired(ctx context.Context, now time.Time, limit int) (int, error)
	CountActive(ctx context.Context, now time.Time) (int, error)
}

// TieredResolver consults resolvers in order and returns the first hit.
// It lets the configured static keys and the persisted temporary keys share
// one lookup path.
type TieredResolver []KeyResolver

func (t TieredResolver) Lookup(ctx context.Context, key string) (APIKey, error) {
	for _, resolver := range t {
		record, err := resolver.Lookup(ctx, key)
		if err == nil {
			return record, nil
		}
		if !errors.Is(err, ErrKeyNotFound) {
			return APIKey{}, err
		}
	}
	return APIKey{}, ErrKeyNotFound
}
