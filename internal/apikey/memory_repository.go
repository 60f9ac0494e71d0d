package apikey

import (
	"context"
	"slices"
	"sync"
	"time"
)

type memoryRepository struct {
	mu   sync.RWMutex
	keys map[string]Key
}

// NewMemoryRepository builds an in-memory key store for tests and development.
func NewMemoryRepository() Repository {
	return &memoryRepository{keys: make(map[string]Key)}
}

func (r *memoryRepository) Create(_ context.Context, key Key, maxActive int, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	active := 0
	for _, k := range r.keys {
		if k.UserID == key.UserID && k.Active(now) {
			active++
		}
	}
	if active >= maxActive {
		return ErrTooManyKeys
	}
	key.Permissions = slices.Clone(key.Permissions)
	r.keys[key.ID] = key
	return nil
}

func (r *memoryRepository) FindByID(_ context.Context, id string) (Key, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.keys[id]
	if !ok {
		return Key{}, ErrKeyNotFound
	}
	return k, nil
}

func (r *memoryRepository) FindByPrefix(_ context.Context, prefix string) (Key, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, k := range r.keys {
		if k.Prefix == prefix {
			return k, nil
		}
	}
	return Key{}, ErrKeyNotFound
}

func (r *memoryRepository) Revoke(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.keys[id]
	if !ok {
		return ErrKeyNotFound
	}
	k.Revoked = true
	r.keys[id] = k
	return nil
}

func (r *memoryRepository) Replace(_ context.Context, oldID string, key Key) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.keys[oldID]
	if !ok {
		return ErrKeyNotFound
	}
	if old.Revoked {
		return ErrKeyRevoked
	}
	old.Revoked = true
	r.keys[oldID] = old
	key.Permissions = slices.Clone(key.Permissions)
	r.keys[key.ID] = key
	return nil
}
