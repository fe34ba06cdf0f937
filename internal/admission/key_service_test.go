package admission

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestKeyService_IssueTemporaryKey(t *testing.T) {
	clk := newStubClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	store := NewMemoryStore(nil)
	service := NewKeyService(store, discardLogger(), ServiceConfig{Clock: clk})

	resp, err := service.IssueTemporaryKey(context.Background(), IssueRequest{
		Label:       "ci-pipeline",
		Permissions: []Permission{PermissionExtract, PermissionDownload},
		TTL:         time.Hour,
		Operator:    "admin-1",
	})
	if err != nil {
		t.Fatalf("issue key: %v", err)
	}
	if len(resp.Key) != defaultKeyBytes {
		t.Fatalf("expected %d-character key, got %d", defaultKeyBytes, len(resp.Key))
	}
	if resp.Record.Source != TemporaryKey {
		t.Fatalf("expected temporary source, got %s", resp.Record.Source)
	}
	if resp.Record.ExpiresAt == nil || !resp.Record.ExpiresAt.Equal(clk.Now().Add(time.Hour)) {
		t.Fatalf("unexpected expiry %v", resp.Record.ExpiresAt)
	}

	stored, err := store.Lookup(context.Background(), resp.Key)
	if err != nil {
		t.Fatalf("lookup issued key: %v", err)
	}
	if stored.Name != "ci-pipeline" {
		t.Fatalf("unexpected label %q", stored.Name)
	}
	if stored.Status(clk.Now()) != StatusActive {
		t.Fatalf("expected active status, got %s", stored.Status(clk.Now()))
	}
}

func TestKeyService_IssuedKeysAreUnique(t *testing.T) {
	clk := newStubClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	service := NewKeyService(NewMemoryStore(nil), discardLogger(), ServiceConfig{Clock: clk})

	seen := make(map[string]struct{})
	for i := 0; i < 20; i++ {
		resp, err := service.IssueTemporaryKey(context.Background(), IssueRequest{
			Label:       "dup-check",
			Permissions: []Permission{PermissionExtract},
			TTL:         time.Hour,
		})
		if err != nil {
			t.Fatalf("issue key: %v", err)
		}
		if _, dup := seen[resp.Key]; dup {
			t.Fatalf("duplicate key issued: %s", resp.Key)
		}
		seen[resp.Key] = struct{}{}
	}
}

func TestKeyService_RevokeMakesKeyUnusable(t *testing.T) {
	clk := newStubClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	store := NewMemoryStore(nil)
	service := NewKeyService(store, discardLogger(), ServiceConfig{Clock: clk})

	resp, err := service.IssueTemporaryKey(context.Background(), IssueRequest{
		Label:       "short-lived",
		Permissions: []Permission{PermissionExtract},
		TTL:         time.Hour,
	})
	if err != nil {
		t.Fatalf("issue key: %v", err)
	}

	record, err := service.Revoke(context.Background(), resp.Key, "admin-1")
	if err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if record.RevokedAt == nil {
		t.Fatal("expected revocation timestamp")
	}
	if record.Status(clk.Now()) != StatusRevoked {
		t.Fatalf("expected revoked status, got %s", record.Status(clk.Now()))
	}
}

func TestKeyService_RevokeUnknownKey(t *testing.T) {
	service := NewKeyService(NewMemoryStore(nil), discardLogger(), ServiceConfig{})
	if _, err := service.Revoke(context.Background(), "missing", "admin-1"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestKeyService_CleanupExpired(t *testing.T) {
	clk := newStubClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	store := NewMemoryStore(nil)
	service := NewKeyService(store, discardLogger(), ServiceConfig{Clock: clk})

	for i := 0; i < 3; i++ {
		if _, err := service.IssueTemporaryKey(context.Background(), IssueRequest{
			Label:       "ephemeral",
			Permissions: []Permission{PermissionExtract},
			TTL:         time.Minute,
		}); err != nil {
			t.Fatalf("issue key: %v", err)
		}
	}
	keeper, err := service.IssueTemporaryKey(context.Background(), IssueRequest{
		Label:       "durable",
		Permissions: []Permission{PermissionExtract},
		TTL:         24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("issue key: %v", err)
	}

	clk.Advance(time.Hour)
	count, err := service.CleanupExpired(context.Background(), 0)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 deleted keys, got %d", count)
	}
	if _, err := store.Lookup(context.Background(), keeper.Key); err != nil {
		t.Fatalf("unexpired key must survive cleanup: %v", err)
	}
}

func TestGenerateBase62Key(t *testing.T) {
	key, err := generateBase62Key(32)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(key) != 32 {
		t.Fatalf("expected length 32, got %d", len(key))
	}
	for _, r := range key {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		default:
			t.Fatalf("unexpected character %q in key", r)
		}
	}

	if _, err := generateBase62Key(0); err == nil {
		t.Fatal("expected error for non-positive length")
	}
}

func TestHashIdentifier(t *testing.T) {
	a := hashIdentifier("secret-key", 16)
	b := hashIdentifier("secret-key", 16)
	if a != b {
		t.Fatal("hash must be deterministic")
	}
	if len(a) != 16 {
		t.Fatalf("expected 16-character prefix, got %d", len(a))
	}
	if a == hashIdentifier("other-key", 16) {
		t.Fatal("distinct inputs should not collide on the prefix")
	}
}
