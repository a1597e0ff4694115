package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kalambet/habitd/internal/fault"
)

// Store persists one session per user. Get returns fault.ErrNotFound for an
// absent session.
type Store interface {
	Get(ctx context.Context, userID int64) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, userID int64) error
}

// Backing is a Store that can report whether its backend is usable. The
// fallback store probes it at the top of every access instead of catching
// backend errors ad hoc at each call site.
type Backing interface {
	Store
	Ready(ctx context.Context) bool
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// RealClock returns the wall clock.
func RealClock() Clock { return realClock{} }

// FallbackStore serves sessions from a durable backing store, degrading
// transparently to an in-process map when the backend is unavailable. It
// also owns the expiry policy: an expired session is deleted on access and
// reported as absent.
type FallbackStore struct {
	backing Backing
	clock   Clock

	mu  sync.Mutex
	mem map[int64]*Session

	degradedOnce sync.Once
}

// NewFallbackStore wraps backing (which may be nil for a pure in-memory
// store) with the in-process fallback.
func NewFallbackStore(backing Backing) *FallbackStore {
	return &FallbackStore{
		backing: backing,
		clock:   realClock{},
		mem:     make(map[int64]*Session),
	}
}

// NewFallbackStoreWithClock is NewFallbackStore with a custom clock (tests).
func NewFallbackStoreWithClock(backing Backing, clock Clock) *FallbackStore {
	s := NewFallbackStore(backing)
	s.clock = clock
	return s
}

func (f *FallbackStore) ready(ctx context.Context) bool {
	if f.backing == nil {
		return false
	}
	ok := f.backing.Ready(ctx)
	if !ok {
		f.degradedOnce.Do(func() {
			slog.Warn("session backing store unavailable, using in-memory fallback")
		})
	}
	return ok
}

func (f *FallbackStore) Get(ctx context.Context, userID int64) (*Session, error) {
	var (
		s   *Session
		err error
	)
	if f.ready(ctx) {
		s, err = f.backing.Get(ctx, userID)
	} else {
		s, err = f.memGet(userID)
	}
	if err != nil {
		return nil, err
	}
	if s.IsExpired(f.clock.Now()) {
		_ = f.Delete(ctx, userID)
		return nil, fault.ErrNotFound
	}
	return s, nil
}

func (f *FallbackStore) Save(ctx context.Context, s *Session) error {
	if f.ready(ctx) {
		return f.backing.Save(ctx, s)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *s
	f.mem[s.UserID] = &cp
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

func (f *FallbackStore) memGet(userID int64) (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.mem[userID]
	if !ok {
		return nil, fault.ErrNotFound
	}
	cp := *s
	return &cp, nil
}
