package tabular

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kalambet/habitd/internal/fault"
	"github.com/kalambet/habitd/internal/schema"
	"github.com/kalambet/habitd/internal/storage"
)

func newWriter(t *testing.T) (*Writer, TableAPI) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	api := store.Tables()
	return NewWriter(api), api
}

func TestEnsureTabsProvisionsAllCategories(t *testing.T) {
	w, api := newWriter(t)
	ctx := context.Background()

	if err := w.EnsureTabs(ctx, "doc"); err != nil {
		t.Fatalf("EnsureTabs: %v", err)
	}

	tabs, err := api.Tabs(ctx, "doc")
	if err != nil {
		t.Fatalf("Tabs: %v", err)
	}
	if len(tabs) != len(Categories()) {
		t.Fatalf("expected %d tabs, got %v", len(Categories()), tabs)
	}

	// Second run must not disturb anything.
	if err := w.EnsureTabs(ctx, "doc"); err != nil {
		t.Fatalf("EnsureTabs again: %v", err)
	}
}

func TestEnsureTabsNormalizesFixedShape(t *testing.T) {
	w, api := newWriter(t)
	ctx := context.Background()

	if err := api.CreateTab(ctx, "doc", string(Thoughts), []string{"whatever"}); err != nil {
		t.Fatalf("CreateTab: %v", err)
	}
	if err := w.EnsureTabs(ctx, "doc"); err != nil {
		t.Fatalf("EnsureTabs: %v", err)
	}

	header, err := api.Header(ctx, "doc", string(Thoughts))
	if err != nil {
		t.Fatalf("Header: %v", err)
	}
	want := defaultHeaders[Thoughts]
	if !equal(header, want) {
		t.Fatalf("header = %v, want %v", header, want)
	}
}

func TestAppendProvisionsAndReconciles(t *testing.T) {
	w, api := newWriter(t)
	ctx := context.Background()

	order := []string{"mood", "alcohol"}
	rec := Record{
		Timestamp: time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC),
		Date:      "2026-08-28",
		Raw:       "slept well, mood 4",
		Diary:     "slept well",
		Fields:    map[string]any{"mood": int64(4), "alcohol": false},
	}
	if err := w.Append(ctx, "doc", Habits, order, rec); err != nil {
		t.Fatalf("Append: %v", err)
	}

	header, err := api.Header(ctx, "doc", string(Habits))
	if err != nil {
		t.Fatalf("Header: %v", err)
	}
	want := []string{schema.ColDate, schema.ColTimestamp, schema.ColRaw, schema.ColDiary, "mood", "alcohol"}
	if !equal(header, want) {
		t.Fatalf("header = %v, want %v", header, want)
	}

	// Appending again with the same schema must not change the header.
	if err := w.Append(ctx, "doc", Habits, order, rec); err != nil {
		t.Fatalf("second Append: %v", err)
	}
	again, _ := api.Header(ctx, "doc", string(Habits))
	if !equal(again, want) {
		t.Fatalf("header changed on identical append: %v", again)
	}
}

func TestAppendHeaderNeverShrinks(t *testing.T) {
	w, api := newWriter(t)
	ctx := context.Background()

	full := Record{
		Date:   "2026-08-27",
		Raw:    "r",
		Fields: map[string]any{"mood": int64(5), "alcohol": true},
	}
	if err := w.Append(ctx, "doc", Habits, []string{"mood", "alcohol"}, full); err != nil {
		t.Fatalf("Append: %v", err)
	}

	// User removed "alcohol" from their schema; the column must survive
	// and the new row must carry a blank cell under it.
	slim := Record{
		Date:   "2026-08-28",
		Raw:    "r2",
		Fields: map[string]any{"mood": int64(3)},
	}
	if err := w.Append(ctx, "doc", Habits, []string{"mood"}, slim); err != nil {
		t.Fatalf("slim Append: %v", err)
	}

	header, _ := api.Header(ctx, "doc", string(Habits))
	idx := index(header, "alcohol")
	if idx < 0 {
		t.Fatalf("removed field column dropped from header: %v", header)
	}

	rows, err := api.(*storage.TableStore).Rows(ctx, "doc", string(Habits))
	if err != nil {
		t.Fatalf("Rows: %v", err)
	}
	last := rows[len(rows)-1]
	if last[idx] != "" {
		t.Fatalf("expected blank cell for removed field, got %q", last[idx])
	}
}

func TestAppendMigratesLegacyAliases(t *testing.T) {
	w, api := newWriter(t)
	ctx := context.Background()

	legacy := []string{schema.ColDate, "raw_diary", "mood"}
	if err := api.CreateTab(ctx, "doc", string(Habits), legacy); err != nil {
		t.Fatalf("CreateTab: %v", err)
	}

	rec := Record{Date: "2026-08-28", Raw: "r", Fields: map[string]any{"mood": int64(2)}}
	if err := w.Append(ctx, "doc", Habits, []string{"mood"}, rec); err != nil {
		t.Fatalf("Append: %v", err)
	}

	header, _ := api.Header(ctx, "doc", string(Habits))
	if index(header, "raw_diary") >= 0 {
		t.Fatalf("legacy alias survived migration: %v", header)
	}
	if got := index(header, schema.ColRaw); got != 1 {
		t.Fatalf("migrated column moved: %v", header)
	}
}

func TestAppendKeepsAliasWhenCurrentNameAlreadyPresent(t *testing.T) {
	w, api := newWriter(t)
	ctx := context.Background()

	// A hand-edited sheet can carry both the legacy alias and the current
	// name. Renaming the alias would collide and shrink the header,
	// shifting every previously written row.
	mixed := []string{schema.ColDate, "raw_diary", "mood", schema.ColRaw}
	if err := api.CreateTab(ctx, "doc", string(Habits), mixed); err != nil {
		t.Fatalf("CreateTab: %v", err)
	}

	rec := Record{Date: "2026-08-28", Raw: "r", Fields: map[string]any{"mood": int64(2)}}
	if err := w.Append(ctx, "doc", Habits, []string{"mood"}, rec); err != nil {
		t.Fatalf("Append: %v", err)
	}

	header, _ := api.Header(ctx, "doc", string(Habits))
	if len(header) < len(mixed) {
		t.Fatalf("header shrank from %v to %v", mixed, header)
	}
	for i, col := range mixed {
		if header[i] != col {
			t.Fatalf("column %d moved: header = %v, want prefix %v", i, header, mixed)
		}
	}
}

func TestAppendWithoutDocumentNotConfigured(t *testing.T) {
	w, _ := newWriter(t)
	err := w.Append(context.Background(), "", Habits, nil, Record{Raw: "r"})
	if !errors.Is(err, fault.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

type failingAPI struct {
	TableAPI
	headerErr error
	writeErr  error
}

func (f *failingAPI) Header(ctx context.Context, docID, tab string) ([]string, error) {
	if f.headerErr != nil {
		return nil, f.headerErr
	}
	return f.TableAPI.Header(ctx, docID, tab)
}

func (f *failingAPI) WriteHeader(ctx context.Context, docID, tab string, header []string) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	return f.TableAPI.WriteHeader(ctx, docID, tab, header)
}

func TestAppendProbeSurfacesAccessDenied(t *testing.T) {
	_, api := newWriter(t)
	ctx := context.Background()
	if err := api.CreateTab(ctx, "doc", string(Habits), defaultHeaders[Habits]); err != nil {
		t.Fatalf("CreateTab: %v", err)
	}

	w := NewWriter(&failingAPI{TableAPI: api, writeErr: fault.ErrAccessDenied})
	err := w.Append(ctx, "doc", Habits, nil, Record{Raw: "r"})
	if !errors.Is(err, fault.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
}

func TestAppendClassifiesTimeout(t *testing.T) {
	_, api := newWriter(t)
	w := NewWriter(&failingAPI{TableAPI: api, headerErr: context.DeadlineExceeded})
	err := w.Append(context.Background(), "doc", Habits, nil, Record{Raw: "r"})
	if !errors.Is(err, fault.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func index(header []string, col string) int {
	for i, c := range header {
		if c == col {
			return i
		}
	}
	return -1
}
