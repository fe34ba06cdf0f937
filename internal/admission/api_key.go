package admission

import "time"

// Permission is a capability an API key may exercise.
type Permission string

const (
	PermissionExtract  Permission = "extract"
	PermissionDownload Permission = "download"
)

// KeySource identifies where a key record originated.
type KeySource string

const (
	// StaticKey is loaded from configuration at startup.
	StaticKey KeySource = "static"
	// TemporaryKey is issued by an operator and persisted with a TTL.
	TemporaryKey KeySource = "temporary"
)

// KeyStatus is the lifecycle state of a key as exposed to operators.
type KeyStatus string

const (
	StatusActive  KeyStatus = "active"
	StatusExpired KeyStatus = "expired"
	StatusRevoked KeyStatus = "revoked"
)

// APIKey is a key record held by the key store. Static keys are immutable
// after load except for revocation.
type APIKey struct {
	Key         string
	Source      KeySource
	Name        string
	Permissions []Permission
	CreatedAt   time.Time
	ExpiresAt   *time.Time
	RevokedAt   *time.Time
}

// HasPermission reports whether the key grants the requested capability.
func (k APIKey) HasPermission(p Permission) bool {
	for _, granted := range k.Permissions {
		if granted == p {
			return true
		}
	}
	return false
}

// Status returns the derived lifecycle status for the key at the provided time.
func (k APIKey) Status(now time.Time) KeyStatus {
	if k.RevokedAt != nil {
		return StatusRevoked
	}
	if k.IsExpired(now) {
		return StatusExpired
	}
	return StatusActive
}

// IsExpired returns true when the key should be considered expired. Keys
// without an expiry never expire.
func (k APIKey) IsExpired(now time.Time) bool {
	return k.ExpiresAt != nil && now.After(*k.ExpiresAt)
}
