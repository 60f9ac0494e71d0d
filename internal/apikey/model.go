package apikey

import (
	"errors"
	"slices"
	"strings"
	"time"
)

// Permission is a capability an API key may carry.
type Permission string

const (
	PermissionRead     Permission = "read"
	PermissionDeposit  Permission = "deposit"
	PermissionTransfer Permission = "transfer"
)

// AllPermissions is granted to callers authenticated with an access token.
var AllPermissions = []Permission{PermissionRead, PermissionDeposit, PermissionTransfer}

var (
	ErrNameRequired      = errors.New("name is required")
	ErrInvalidPermission = errors.New("permissions must be a non-empty subset of read, deposit, transfer")
	ErrInvalidExpiry     = errors.New("expiry must be one of 1H, 1D, 1M, 1Y")
	ErrTooManyKeys       = errors.New("maximum of 5 active api keys reached")
	ErrKeyNotFound       = errors.New("api key not found")
	ErrKeyNotExpired     = errors.New("api key has not expired")
	ErrKeyRevoked        = errors.New("api key has been revoked")
	ErrKeyExpired        = errors.New("api key has expired")
	ErrInvalidKey        = errors.New("invalid api key")
)

// Key is a stored API key. The raw secret is never persisted; only its
// lookup prefix and bcrypt hash are.
type Key struct {
	ID          string
	UserID      string
	Name        string
	Prefix      string
	Hash        []byte
	Permissions []Permission
	ExpiresAt   time.Time
	Revoked     bool
	CreatedAt   time.Time
}

// Active reports whether the key can still authenticate at now.
func (k Key) Active(now time.Time) bool {
	return !k.Revoked && now.Before(k.ExpiresAt)
}

// Allows reports whether the key carries p.
func (k Key) Allows(p Permission) bool {
	return slices.Contains(k.Permissions, p)
}

// ParsePermissions validates and de-duplicates raw permission names.
func ParsePermissions(raw []string) ([]Permission, error) {
	if len(raw) == 0 {
		return nil, ErrInvalidPermission
	}
	out := make([]Permission, 0, len(raw))
	for _, r := range raw {
		p := Permission(strings.ToLower(strings.TrimSpace(r)))
		if !slices.Contains(AllPermissions, p) {
			return nil, ErrInvalidPermission
		}
		if !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	return out, nil
}

// ExpiresAt converts an expiry code into an absolute time from now.
func ExpiresAt(code string, now time.Time) (time.Time, error) {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "1H":
		return now.Add(time.Hour), nil
	case "1D":
		return now.AddDate(0, 0, 1), nil
	case "1M":
		return now.AddDate(0, 1, 0), nil
	case "1Y":
		return now.AddDate(1, 0, 0), nil
	default:
		return time.Time{}, ErrInvalidExpiry
	}
}
