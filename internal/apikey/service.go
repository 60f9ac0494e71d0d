package apikey

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	keyPrefix     = "sk_live_"
	secretBytes   = 20
	lookupLen     = 16
	maxActiveKeys = 5
)

// Service manages the API key lifecycle and authenticates raw keys.
type Service struct {
	repo Repository
	cost int
	now  func() time.Time
}

// NewService creates a new API key service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, cost: bcrypt.DefaultCost, now: func() time.Time { return time.Now().UTC() }}
}

// CreateInput describes a new key.
type CreateInput struct {
	UserID      string
	Name        string
	Permissions []string
	Expiry      string
}

// Issued is a freshly created key. Raw is shown to the caller once.
type Issued struct {
	Key
	Raw string
}

// Create issues a new key for the user.
func (s *Service) Create(ctx context.Context, in CreateInput) (Issued, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Issued{}, ErrNameRequired
	}
	perms, err := ParsePermissions(in.Permissions)
	if err != nil {
		return Issued{}, err
	}
	now := s.now()
	expires, err := ExpiresAt(in.Expiry, now)
	if err != nil {
		return Issued{}, err
	}
	return s.issue(ctx, in.UserID, name, perms, expires, now)
}

// Rollover replaces an expired, unrevoked key owned by the user with a new
// key carrying the same name and permissions.
func (s *Service) Rollover(ctx context.Context, userID, expiredKeyID, expiry string) (Issued, error) {
	old, err := s.repo.FindByID(ctx, expiredKeyID)
	if err != nil {
		return Issued{}, err
	}
	if old.UserID != userID {
		return Issued{}, ErrKeyNotFound
	}
	if old.Revoked {
		return Issued{}, ErrKeyRevoked
	}
	now := s.now()
	if now.Before(old.ExpiresAt) {
		return Issued{}, ErrKeyNotExpired
	}
	expires, err := ExpiresAt(expiry, now)
	if err != nil {
		return Issued{}, err
	}
	issued, err := s.mint(userID, old.Name, old.Permissions, expires, now)
	if err != nil {
		return Issued{}, err
	}
	// The replacement takes the expired key's slot, so the active-key
	// limit does not apply here.
	if err := s.repo.Replace(ctx, old.ID, issued.Key); err != nil {
		return Issued{}, err
	}
	return issued, nil
}

// Revoke disables a key owned by the user.
func (s *Service) Revoke(ctx context.Context, userID, keyID string) error {
	k, err := s.repo.FindByID(ctx, keyID)
	if err != nil {
		return err
	}
	if k.UserID != userID {
		return ErrKeyNotFound
	}
	return s.repo.Revoke(ctx, keyID)
}

// Authenticate resolves a raw key to its stored record. Expired keys are
// reported with ErrKeyExpired so callers can answer 403 instead of 401.
func (s *Service) Authenticate(ctx context.Context, raw string) (Key, error) {
	secret, ok := strings.CutPrefix(strings.TrimSpace(raw), keyPrefix)
	if !ok || len(secret) != secretBytes*2 {
		return Key{}, ErrInvalidKey
	}
	k, err := s.repo.FindByPrefix(ctx, secret[:lookupLen])
	if errors.Is(err, ErrKeyNotFound) {
		return Key{}, ErrInvalidKey
	}
	if err != nil {
		return Key{}, err
	}
	if bcrypt.CompareHashAndPassword(k.Hash, []byte(raw)) != nil || k.Revoked {
		return Key{}, ErrInvalidKey
	}
	if !s.now().Before(k.ExpiresAt) {
		return Key{}, ErrKeyExpired
	}
	return k, nil
}

func (s *Service) issue(ctx context.Context, userID, name string, perms []Permission, expires, now time.Time) (Issued, error) {
	issued, err := s.mint(userID, name, perms, expires, now)
	if err != nil {
		return Issued{}, err
	}
	if err := s.repo.Create(ctx, issued.Key, maxActiveKeys, now); err != nil {
		return Issued{}, err
	}
	return issued, nil
}

// mint generates key material and its bcrypt hash without persisting it.
func (s *Service) mint(userID, name string, perms []Permission, expires, now time.Time) (Issued, error) {
	if userID == "" {
		return Issued{}, errors.New("user id is required")
	}
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return Issued{}, fmt.Errorf("generate key: %w", err)
	}
	secret := hex.EncodeToString(buf)
	raw := keyPrefix + secret

	hash, err := bcrypt.GenerateFromPassword([]byte(raw), s.cost)
	if err != nil {
		return Issued{}, err
	}
	k := Key{
		ID:          uuid.NewString(),
		UserID:      userID,
		Name:        name,
		Prefix:      secret[:lookupLen],
		Hash:        hash,
		Permissions: perms,
		ExpiresAt:   expires,
		CreatedAt:   now,
	}
	return Issued{Key: k, Raw: raw}, nil
}
