package admission

import (
	"testing"
	"time"
)

func TestAPIKey_Status(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	tests := []struct {
		name   string
		key    APIKey
		expect KeyStatus
	}{
		{"static key never expires", APIKey{Key: "s", Source: StaticKey, CreatedAt: past}, StatusActive},
		{"temporary key before expiry", APIKey{Key: "t", Source: TemporaryKey, CreatedAt: past, ExpiresAt: &future}, StatusActive},
		{"temporary key after expiry", APIKey{Key: "t", Source: TemporaryKey, CreatedAt: past, ExpiresAt: &past}, StatusExpired},
		{"revoked wins over expiry", APIKey{Key: "t", Source: TemporaryKey, CreatedAt: past, ExpiresAt: &past, RevokedAt: &past}, StatusRevoked},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.Status(now); got != tt.expect {
				t.Fatalf("expected %s, got %s", tt.expect, got)
			}
		})
	}
}

func TestAPIKey_HasPermission(t *testing.T) {
	key := APIKey{Key: "k", Permissions: []Permission{PermissionExtract}}
	if !key.HasPermission(PermissionExtract) {
		t.Fatal("expected extract permission")
	}
	if key.HasPermission(PermissionDownload) {
		t.Fatal("did not grant download permission")
	}
}
