// Package tabular appends confirmed records to the destination table,
// reconciling the table's header against the fixed base columns, the active
// schema, and columns left behind by earlier schema versions.
package tabular

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/kalambet/habitd/internal/fault"
	"github.com/kalambet/habitd/internal/schema"
)

// TableAPI is the table collaborator boundary: row/header read and write
// primitives keyed by a document id and a named tab. Implementations must
// surface permission failure, timeout, and generic write failure as
// fault.ErrAccessDenied, fault.ErrTimeout, and fault.ErrWriteFailed.
type TableAPI interface {
	Tabs(ctx context.Context, docID string) ([]string, error)
	CreateTab(ctx context.Context, docID, tab string, header []string) error
	Header(ctx context.Context, docID, tab string) ([]string, error)
	WriteHeader(ctx context.Context, docID, tab string, header []string) error
	AppendRow(ctx context.Context, docID, tab string, row []string) error
}

// Category names one entry kind and its tab.
type Category string

const (
	Habits      Category = "Habits"
	Dreams      Category = "Dreams"
	Thoughts    Category = "Thoughts"
	Reflections Category = "Reflections"
)

// Categories lists all tabs in provisioning order.
func Categories() []Category {
	return []Category{Habits, Dreams, Thoughts, Reflections}
}

// defaultHeaders are the per-category base columns. Habits is the
// variable-shape category: its header grows at append time; the others are
// fixed-shape and forcibly normalized at provisioning.
var defaultHeaders = map[Category][]string{
	Habits:      {schema.ColDate, schema.ColTimestamp, schema.ColRaw, schema.ColDiary},
	Dreams:      {schema.ColTimestamp, schema.ColDate, schema.ColRaw, "mood", "lucid", "tags", "summary"},
	Thoughts:    {schema.ColTimestamp, schema.ColRaw, "tags", "category"},
	Reflections: {schema.ColDate, "answers"},
}

// fixedShape reports whether the category's header is normalized instead of
// reconciled.
func fixedShape(cat Category) bool {
	return cat != Habits
}

// Record is a confirmed entry about to become a table row. Reserved columns
// map to the fixed attributes; every other column pulls from Fields.
type Record struct {
	Timestamp time.Time
	Date      string // ISO calendar date, empty for undated categories
	Raw       string
	Diary     string
	Fields    map[string]any
}

// Writer appends records through a TableAPI.
type Writer struct {
	api TableAPI
}

// NewWriter creates a Writer over the given table collaborator.
func NewWriter(api TableAPI) *Writer {
	return &Writer{api: api}
}

// EnsureTabs lazily and idempotently provisions all category tabs:
// a missing tab is created with its default header; an existing tab with an
// empty header gets the default written; a fixed-shape tab with a
// non-canonical header is forcibly normalized. The habits tab keeps
// whatever header it has — append-time reconciliation owns it.
func (w *Writer) EnsureTabs(ctx context.Context, docID string) error {
	existing, err := w.api.Tabs(ctx, docID)
	if err != nil {
		return classify(ctx, fmt.Errorf("listing tabs: %w", err))
	}
	present := make(map[string]bool, len(existing))
	for _, tab := range existing {
		present[tab] = true
	}

	for _, cat := range Categories() {
		def := defaultHeaders[cat]
		if !present[string(cat)] {
			if err := w.api.CreateTab(ctx, docID, string(cat), def); err != nil {
				return classify(ctx, fmt.Errorf("creating tab %s: %w", cat, err))
			}
			continue
		}
		header, err := w.api.Header(ctx, docID, string(cat))
		if err != nil {
			return classify(ctx, fmt.Errorf("reading header of %s: %w", cat, err))
		}
		switch {
		case len(header) == 0:
			err = w.api.WriteHeader(ctx, docID, string(cat), def)
		case fixedShape(cat) && !equal(header, def):
			err = w.api.WriteHeader(ctx, docID, string(cat), def)
		}
		if err != nil {
			return classify(ctx, fmt.Errorf("normalizing header of %s: %w", cat, err))
		}
	}
	return nil
}

// Append appends rec to the category tab, reconciling the header first.
//
// The canonical header starts from the migrated existing header as-is, then
// appends missing base columns, then missing field_order columns, then any
// remaining record keys. Columns are never removed or reordered, so rows
// written under earlier schema versions stay aligned.
func (w *Writer) Append(ctx context.Context, docID string, cat Category, fieldOrder []string, rec Record) error {
	if docID == "" {
		return fault.ErrNotConfigured
	}

	header, err := w.api.Header(ctx, docID, string(cat))
	if errors.Is(err, fault.ErrNotFound) {
		if err := w.EnsureTabs(ctx, docID); err != nil {
			return err
		}
		header, err = w.api.Header(ctx, docID, string(cat))
	}
	if err != nil {
		return classify(ctx, fmt.Errorf("reading header: %w", err))
	}

	// No-op read-then-write probe: fail fast and distinctly on missing
	// write permission before any real mutation.
	if err := w.api.WriteHeader(ctx, docID, string(cat), header); err != nil {
		return classify(ctx, fmt.Errorf("write probe: %w", err))
	}

	migrated := migrateAliases(header)
	canonical := canonicalHeader(migrated, defaultHeaders[cat], fieldOrder, rec.Fields)

	if !equal(canonical, header) {
		if err := w.api.WriteHeader(ctx, docID, string(cat), canonical); err != nil {
			return classify(ctx, fmt.Errorf("writing header: %w", err))
		}
	}

	row := buildRow(canonical, rec)
	if err := w.api.AppendRow(ctx, docID, string(cat), row); err != nil {
		return classify(ctx, fmt.Errorf("appending row: %w", err))
	}
	return nil
}

// migrateAliases maps legacy column names onto their current names without
// reordering surviving columns. An alias whose current name already exists
// elsewhere in the header (a hand-edited sheet) is left as-is: renaming it
// would collide, and the dedup in canonicalHeader would then shrink the
// header and shift every previously written row.
func migrateAliases(header []string) []string {
	present := make(map[string]bool, len(header))
	for _, col := range header {
		present[col] = true
	}
	out := make([]string, len(header))
	for i, col := range header {
		target := schema.LegacyAlias(col)
		if target != col && present[target] {
			target = col
		}
		out[i] = target
	}
	return out
}

// canonicalHeader computes the order-preserving, monotonically growing
// header: existing columns first in their current order, then missing base
// columns, then missing field_order columns, then leftover record keys.
func canonicalHeader(existing, base, fieldOrder []string, fields map[string]any) []string {
	out := make([]string, 0, len(existing)+len(base)+len(fieldOrder))
	seen := make(map[string]bool)
	add := func(col string) {
		if col == "" || seen[col] {
			return
		}
		seen[col] = true
		out = append(out, col)
	}

	for _, col := range existing {
		add(col)
	}
	for _, col := range base {
		add(col)
	}
	for _, col := range fieldOrder {
		add(col)
	}

	var leftover []string
	for key := range fields {
		if !seen[key] {
			leftover = append(leftover, key)
		}
	}
	sort.Strings(leftover)
	for _, col := range leftover {
		add(col)
	}
	return out
}

// buildRow aligns the record to the canonical header positionally. A column
// the record does not carry becomes an empty cell, so removed schema fields
// leave blanks instead of shifting later columns.
func buildRow(header []string, rec Record) []string {
	row := make([]string, len(header))
	for i, col := range header {
		switch col {
		case schema.ColDate:
			row[i] = rec.Date
		case schema.ColTimestamp:
			if !rec.Timestamp.IsZero() {
				row[i] = rec.Timestamp.UTC().Format(time.RFC3339)
			}
		case schema.ColRaw:
			row[i] = rec.Raw
		case schema.ColDiary:
			row[i] = rec.Diary
		default:
			row[i] = formatCell(rec.Fields[col])
		}
	}
	return row
}

func formatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		if val {
			return "TRUE"
		}
		return "FALSE"
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}

// classify folds context expiry into the timeout kind so callers can treat
// table I/O timeouts uniformly.
func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("%w: %v", fault.ErrTimeout, err)
	}
	return err
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
