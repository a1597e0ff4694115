package profile

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/kalambet/habitd/internal/fault"
)

// Store persists one profile per user. Get returns fault.ErrNotFound for an
// absent profile.
type Store interface {
	Get(ctx context.Context, userID int64) (*Profile, error)
	Save(ctx context.Context, p *Profile) error
	Delete(ctx context.Context, userID int64) error
}

// Backing is a Store with a readiness probe; the fallback store checks it at
// the top of each access.
type Backing interface {
	Store
	Ready(ctx context.Context) bool
}

// FallbackStore serves profiles from a durable backing store, degrading
// transparently to an in-process map keyed by user id when the backend is
// unavailable.
type FallbackStore struct {
	backing Backing

	mu  sync.Mutex
	mem map[int64][]byte // JSON-encoded to keep fallback copies detached

	degradedOnce sync.Once
}

// NewFallbackStore wraps backing (nil for a pure in-memory store).
func NewFallbackStore(backing Backing) *FallbackStore {
	return &FallbackStore{backing: backing, mem: make(map[int64][]byte)}
}

func (f *FallbackStore) ready(ctx context.Context) bool {
	if f.backing == nil {
		return false
	}
	ok := f.backing.Ready(ctx)
	if !ok {
		f.degradedOnce.Do(func() {
			slog.Warn("profile backing store unavailable, using in-memory fallback")
		})
	}
	return ok
}

func (f *FallbackStore) Get(ctx context.Context, userID int64) (*Profile, error) {
	if f.ready(ctx) {
		return f.backing.Get(ctx, userID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.mem[userID]
	if !ok {
		return nil, fault.ErrNotFound
	}
	var p Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (f *FallbackStore) Save(ctx context.Context, p *Profile) error {
	p.UpdatedAt = time.Now().UTC()
	if f.ready(ctx) {
		return f.backing.Save(ctx, p)
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mem[p.UserID] = raw
	return nil
}

func (f *FallbackStore) Delete(ctx context.Context, userID int64) error {
	if f.ready(ctx) {
		return f.backing.Delete(ctx, userID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.mem, userID)
	return nil
}

// GetOrCreate loads the user's profile, creating and saving a fresh one on
// first contact.
func GetOrCreate(ctx context.Context, store Store, userID int64) (*Profile, error) {
	p, err := store.Get(ctx, userID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, fault.ErrNotFound) {
		return nil, err
	}
	p = New(userID, time.Now().UTC())
	if err := store.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}
