package engine

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/kalambet/habitd/internal/extract"
	"github.com/kalambet/habitd/internal/fault"
	"github.com/kalambet/habitd/internal/profile"
	"github.com/kalambet/habitd/internal/session"
	"github.com/kalambet/habitd/internal/storage"
	"github.com/kalambet/habitd/internal/tabular"
)

// mockChatter implements llm.Chatter and records the last prompts.
type mockChatter struct {
	response string
	err      error
	lastUser string
}

func (m *mockChatter) Chat(ctx context.Context, system, user string) (string, error) {
	m.lastUser = user
	return m.response, m.err
}

type fixture struct {
	engine   *Engine
	store    *storage.Store
	sessions *session.FallbackStore
	profiles *profile.FallbackStore
	chatter  *mockChatter
}

// newFixture wires an engine over an in-memory backing store. chatter may be
// nil to exercise the degraded extraction path.
func newFixture(t *testing.T, chatter *mockChatter) *fixture {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	sessions := session.NewFallbackStore(store.Sessions())
	profiles := profile.NewFallbackStore(store.Profiles())
	writer := tabular.NewWriter(store.Tables())

	var ex *extract.Extractor
	if chatter != nil {
		ex = extract.New(chatter)
	} else {
		ex = extract.New(nil)
	}

	e := New(sessions, profiles, ex, nil, writer, Config{
		SessionTTL:       30 * time.Minute,
		OperationTimeout: 5 * time.Second,
	})
	return &fixture{engine: e, store: store, sessions: sessions, profiles: profiles, chatter: chatter}
}

func (f *fixture) connectSheet(t *testing.T, userID int64) {
	t.Helper()
	ctx := context.Background()
	prof, err := profile.GetOrCreate(ctx, f.profiles, userID)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	prof.SheetID = "doc"
	prof.SheetValidated = true
	if err := f.profiles.Save(ctx, prof); err != nil {
		t.Fatalf("Save profile: %v", err)
	}
}

func (f *fixture) send(t *testing.T, userID int64, text string) []Reply {
	t.Helper()
	replies, err := f.engine.Handle(context.Background(), Update{UserID: userID, Text: text})
	if err != nil {
		t.Fatalf("Handle(%q): %v", text, err)
	}
	return replies
}

func (f *fixture) state(t *testing.T, userID int64) session.State {
	t.Helper()
	sess, err := f.sessions.Get(context.Background(), userID)
	if err != nil {
		t.Fatalf("session Get: %v", err)
	}
	return sess.State
}

func joined(replies []Reply) string {
	var parts []string
	for _, r := range replies {
		parts = append(parts, r.Text)
	}
	return strings.Join(parts, "\n")
}

func TestHabitsWithoutSheetResetsToIdle(t *testing.T) {
	f := newFixture(t, nil)

	f.send(t, 1, "/habits")
	if got := f.state(t, 1); got != session.StateHabitsAwaitingDate {
		t.Fatalf("state = %q after /habits", got)
	}

	replies := f.send(t, 1, "today")
	if got := f.state(t, 1); got != session.StateHabitsAwaitingContent {
		t.Fatalf("state = %q after date", got)
	}
	if !strings.Contains(joined(replies), "Describe your day") {
		t.Errorf("missing content prompt: %q", joined(replies))
	}

	replies = f.send(t, 1, "did yoga, felt good")
	if !strings.Contains(joined(replies), msg("en", "sheet_missing")) {
		t.Errorf("expected sheet-missing message, got %q", joined(replies))
	}
	if got := f.state(t, 1); got != session.StateIdle {
		t.Fatalf("state = %q, want idle after missing sheet", got)
	}
}

func TestHabitsDegradedExtractionSavesRawVerbatim(t *testing.T) {
	f := newFixture(t, nil)
	f.connectSheet(t, 2)

	f.send(t, 2, "/habits")
	f.send(t, 2, "today")
	replies := f.send(t, 2, "drank 3 glasses")

	if !strings.Contains(joined(replies), msg("en", "llm_disabled")) {
		t.Errorf("user not told summarization is disabled: %q", joined(replies))
	}
	if got := f.state(t, 2); got != session.StateHabitsAwaitingConfirmation {
		t.Fatalf("state = %q, want confirmation", got)
	}
	if !strings.Contains(joined(replies), "drank 3 glasses") {
		t.Errorf("preview lost raw text: %q", joined(replies))
	}

	f.send(t, 2, "yes")
	if got := f.state(t, 2); got != session.StateIdle {
		t.Fatalf("state = %q after save", got)
	}

	rows, err := f.store.Tables().Rows(context.Background(), "doc", string(tabular.Habits))
	if err != nil {
		t.Fatalf("Rows: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	header, _ := f.store.Tables().Header(context.Background(), "doc", string(tabular.Habits))
	raw := rows[0][indexOf(header, "raw_record")]
	if raw != "drank 3 glasses" {
		t.Errorf("raw_record = %q, want verbatim input", raw)
	}
}

func TestDeclineRetainsPreviousRawAsContext(t *testing.T) {
	chatter := &mockChatter{response: `{"diary":"d","mood":4}`}
	f := newFixture(t, chatter)
	f.connectSheet(t, 3)

	f.send(t, 3, "/habits")
	f.send(t, 3, "today")
	f.send(t, 3, "first version of my day")
	f.send(t, 3, "no")

	if got := f.state(t, 3); got != session.StateHabitsAwaitingContent {
		t.Fatalf("state = %q after decline, want awaiting content", got)
	}

	f.send(t, 3, "actually it was different")
	if !strings.Contains(chatter.lastUser, "first version of my day") {
		t.Errorf("resubmission lost original text: %q", chatter.lastUser)
	}
	if !strings.Contains(chatter.lastUser, "actually it was different") {
		t.Errorf("resubmission lost new text: %q", chatter.lastUser)
	}
	if !strings.Contains(chatter.lastUser, updateMarker) {
		t.Errorf("resubmission missing update marker: %q", chatter.lastUser)
	}
}

func TestReflectionTimeoutKeepsAnsweringState(t *testing.T) {
	chatter := &mockChatter{err: fmt.Errorf("%w: deadline", fault.ErrTimeout)}
	f := newFixture(t, chatter)
	f.connectSheet(t, 4)

	f.send(t, 4, "/reflect")
	if got := f.state(t, 4); got != session.StateReflectAnswering {
		t.Fatalf("state = %q after /reflect", got)
	}

	replies := f.send(t, 4, "grateful for a lot, focused on work")
	if !strings.Contains(joined(replies), msg("en", "timeout_retry")) {
		t.Errorf("expected timeout message, got %q", joined(replies))
	}
	if got := f.state(t, 4); got != session.StateReflectAnswering {
		t.Fatalf("state = %q, want still answering for retry", got)
	}
}

func TestCancelResetsFromAnyState(t *testing.T) {
	f := newFixture(t, nil)
	f.connectSheet(t, 5)

	f.send(t, 5, "/habits")
	f.send(t, 5, "today")
	replies := f.send(t, 5, "/cancel")
	if !strings.Contains(joined(replies), msg("en", "cancelled")) {
		t.Errorf("expected cancel message, got %q", joined(replies))
	}
	if got := f.state(t, 5); got != session.StateIdle {
		t.Fatalf("state = %q after cancel", got)
	}

	replies = f.send(t, 5, "/cancel")
	if !strings.Contains(joined(replies), msg("en", "nothing_cancel")) {
		t.Errorf("expected nothing-to-cancel, got %q", joined(replies))
	}
}

func TestBadDateReprompts(t *testing.T) {
	f := newFixture(t, nil)

	f.send(t, 6, "/habits")
	replies := f.send(t, 6, "the day before my birthday")
	if !strings.Contains(joined(replies), msg("en", "bad_date")) {
		t.Errorf("expected bad-date reprompt, got %q", joined(replies))
	}
	if got := f.state(t, 6); got != session.StateHabitsAwaitingDate {
		t.Fatalf("state = %q, want still awaiting date", got)
	}
}

func TestFieldWizardAddsIntegerField(t *testing.T) {
	f := newFixture(t, nil)

	f.send(t, 7, "/fields")
	f.send(t, 7, "add")
	f.send(t, 7, "water_glasses")
	f.send(t, 7, "Glasses of water drunk during the day")
	f.send(t, 7, "integer")
	f.send(t, 7, "0")
	replies := f.send(t, 7, "20")

	if !strings.Contains(joined(replies), "water_glasses") {
		t.Errorf("expected field-added confirmation, got %q", joined(replies))
	}
	if got := f.state(t, 7); got != session.StateFieldsMenu {
		t.Fatalf("state = %q, want back at fields menu", got)
	}

	prof, err := profile.GetOrCreate(context.Background(), f.profiles, 7)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	def, ok := prof.Schema.Fields["water_glasses"]
	if !ok {
		t.Fatal("field not persisted to profile schema")
	}
	if def.Minimum == nil || *def.Minimum != 0 || def.Maximum == nil || *def.Maximum != 20 {
		t.Errorf("bounds = %v..%v", def.Minimum, def.Maximum)
	}
}

func TestFieldWizardRejectsBaseColumnName(t *testing.T) {
	f := newFixture(t, nil)

	f.send(t, 8, "/fields")
	f.send(t, 8, "add")
	replies := f.send(t, 8, "raw_record")
	if !strings.Contains(joined(replies), "⚠") {
		t.Errorf("expected validation warning, got %q", joined(replies))
	}
	if got := f.state(t, 8); got != session.StateFieldsAdd {
		t.Fatalf("state = %q, want still in wizard", got)
	}
}

func TestLanguageSwitchChangesReplies(t *testing.T) {
	f := newFixture(t, nil)

	f.send(t, 9, "/language")
	replies := f.send(t, 9, "ru")
	if !strings.Contains(joined(replies), msg("ru", "language_saved")) {
		t.Errorf("expected Russian confirmation, got %q", joined(replies))
	}

	replies = f.send(t, 9, "/habits")
	if !strings.Contains(joined(replies), msg("ru", "select_date")) {
		t.Errorf("expected Russian prompt, got %q", joined(replies))
	}
}

func TestSheetFlowProvisionsTabs(t *testing.T) {
	f := newFixture(t, nil)

	f.send(t, 10, "/sheet")
	replies := f.send(t, 10, "my-doc")
	if !strings.Contains(joined(replies), msg("en", "sheet_saved")) {
		t.Fatalf("expected sheet-saved, got %q", joined(replies))
	}

	tabs, err := f.store.Tables().Tabs(context.Background(), "my-doc")
	if err != nil {
		t.Fatalf("Tabs: %v", err)
	}
	if len(tabs) != 4 {
		t.Errorf("tabs = %v, want all four categories", tabs)
	}
}

func indexOf(header []string, col string) int {
	for i, c := range header {
		if c == col {
			return i
		}
	}
	return -1
}

type mockScheduler struct {
	calls int
	last  *profile.Profile
}

func (m *mockScheduler) Schedule(prof *profile.Profile, now time.Time) error {
	m.calls++
	m.last = prof
	return nil
}

func TestReminderFlowSchedulesAndPersists(t *testing.T) {
	f := newFixture(t, nil)
	sched := &mockScheduler{}
	f.engine.SetScheduler(sched)

	f.send(t, 1, "/reminder")
	if got := f.state(t, 1); got != session.StateConfigReminder {
		t.Fatalf("state = %q after /reminder", got)
	}

	replies := f.send(t, 1, "not a time")
	if !strings.Contains(joined(replies), msg("en", "reminder_bad")) {
		t.Errorf("expected re-prompt, got %q", joined(replies))
	}

	f.send(t, 1, "21:30")
	if got := f.state(t, 1); got != session.StateIdle {
		t.Fatalf("state = %q, want idle after setting reminder", got)
	}
	if sched.calls != 1 {
		t.Fatalf("scheduler calls = %d, want 1", sched.calls)
	}

	prof, err := f.profiles.Get(context.Background(), 1)
	if err != nil {
		t.Fatalf("Get profile: %v", err)
	}
	if !prof.ReminderEnabled || prof.ReminderTime != "21:30" {
		t.Errorf("profile reminder = (%v, %q), want enabled at 21:30", prof.ReminderEnabled, prof.ReminderTime)
	}

	f.send(t, 1, "/reminder")
	f.send(t, 1, "off")
	prof, err = f.profiles.Get(context.Background(), 1)
	if err != nil {
		t.Fatalf("Get profile: %v", err)
	}
	if prof.ReminderEnabled {
		t.Error("reminder still enabled after off")
	}
}
