package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kalambet/habitd/internal/fault"
)

type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// mockBacking is a Backing whose readiness can be flipped mid-test.
type mockBacking struct {
	mu    sync.Mutex
	data  map[int64]*Session
	ready bool
}

func newMockBacking(ready bool) *mockBacking {
	return &mockBacking{data: make(map[int64]*Session), ready: ready}
}

func (m *mockBacking) Ready(context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready
}

func (m *mockBacking) setReady(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ready = v
}

func (m *mockBacking) Get(_ context.Context, userID int64) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.data[userID]
	if !ok {
		return nil, fault.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *mockBacking) Save(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.data[s.UserID] = &cp
	return nil
}

func (m *mockBacking) Delete(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, userID)
	return nil
}

func TestFallbackStore_UsesBackingWhenReady(t *testing.T) {
	backing := newMockBacking(true)
	store := NewFallbackStore(backing)
	ctx := context.Background()

	s := New(42, time.Now(), time.Hour)
	s.State = StateHabitsAwaitingDate
	if err := store.Save(ctx, s); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Get(ctx, 42)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.State != StateHabitsAwaitingDate {
		t.Errorf("State = %q, want habits_awaiting_date", got.State)
	}
	if _, ok := backing.data[42]; !ok {
		t.Error("session not written to backing store")
	}
}

func TestFallbackStore_DegradesToMemory(t *testing.T) {
	backing := newMockBacking(false)
	store := NewFallbackStore(backing)
	ctx := context.Background()

	s := New(7, time.Now(), time.Hour)
	if err := store.Save(ctx, s); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if len(backing.data) != 0 {
		t.Error("degraded store must not touch the backing store")
	}

	if _, err := store.Get(ctx, 7); err != nil {
		t.Fatalf("Get() from fallback error = %v", err)
	}
}

func TestFallbackStore_ConcurrentDegradedAccess(t *testing.T) {
	backing := newMockBacking(false)
	store := NewFallbackStore(backing)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_ = store.Save(ctx, New(id, time.Now(), time.Hour))
			_, _ = store.Get(ctx, id)
		}(int64(i))
	}
	wg.Wait()
}

func TestFallbackStore_RecoversWhenBackingReturns(t *testing.T) {
	backing := newMockBacking(false)
	store := NewFallbackStore(backing)
	ctx := context.Background()

	_ = store.Save(ctx, New(7, time.Now(), time.Hour))

	backing.setReady(true)
	if _, err := store.Get(ctx, 7); !errors.Is(err, fault.ErrNotFound) {
		t.Errorf("Get() after recovery = %v, want ErrNotFound (fallback state is not promoted)", err)
	}
}

func TestFallbackStore_ExpiredSessionIsAbsent(t *testing.T) {
	clock := &mockClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	backing := newMockBacking(true)
	store := NewFallbackStoreWithClock(backing, clock)
	ctx := context.Background()

	s := New(9, clock.Now(), 30*time.Minute)
	if err := store.Save(ctx, s); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	clock.Advance(31 * time.Minute)
	if _, err := store.Get(ctx, 9); !errors.Is(err, fault.ErrNotFound) {
		t.Fatalf("Get() on expired session = %v, want ErrNotFound", err)
	}
	if _, ok := backing.data[9]; ok {
		t.Error("expired session should be deleted on access")
	}
}

func TestSessionReset(t *testing.T) {
	s := New(1, time.Now(), time.Hour)
	s.State = StateHabitsAwaitingConfirmation
	s.SelectedDate = "2026-03-01"
	s.PendingEntry = map[string]any{KeyRaw: "did yoga"}
	s.TempData.PreviousRaw = "old"
	s.TempData.FieldWizard = &FieldWizard{Stage: FieldStageName}

	s.Reset()

	if s.State != StateIdle || s.SelectedDate != "" || s.PendingEntry != nil {
		t.Errorf("Reset left transient state: %+v", s)
	}
	if s.TempData.PreviousRaw != "" || s.TempData.FieldWizard != nil {
		t.Errorf("Reset left temp data: %+v", s.TempData)
	}
}
