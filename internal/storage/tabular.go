package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/habitd/internal/fault"
)

// Tables returns a tabular backend view of the store. It implements the
// table collaborator contract (tabular.TableAPI) on local SQLite: one
// sheet_tabs row per tab holding the header, one sheet_rows row per
// appended record row.
func (s *Store) Tables() *TableStore {
	return &TableStore{s}
}

// TableStore is the local tabular backend.
type TableStore struct {
	s *Store
}

// Tabs lists the tab names present for a document.
func (t *TableStore) Tabs(ctx context.Context, docID string) ([]string, error) {
	rows, err := t.s.db.QueryContext(ctx, "SELECT tab FROM sheet_tabs WHERE doc_id = ?", docID)
	if err != nil {
		return nil, fmt.Errorf("%w: listing tabs: %v", fault.ErrWriteFailed, err)
	}
	defer rows.Close()

	var tabs []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tabs = append(tabs, name)
	}
	return tabs, rows.Err()
}

// CreateTab creates a tab with the given header. Creating an existing tab
// is an error; callers check Tabs first.
func (t *TableStore) CreateTab(ctx context.Context, docID, tab string, header []string) error {
	raw, err := json.Marshal(header)
	if err != nil {
		return err
	}
	if _, err := t.s.db.ExecContext(ctx,
		"INSERT INTO sheet_tabs (doc_id, tab, header_json) VALUES (?, ?, ?)",
		docID, tab, string(raw),
	); err != nil {
		return fmt.Errorf("%w: creating tab %s: %v", fault.ErrWriteFailed, tab, err)
	}
	return nil
}

// Header returns the tab's header row. A missing tab yields fault.ErrNotFound.
func (t *TableStore) Header(ctx context.Context, docID, tab string) ([]string, error) {
	var raw string
	err := t.s.db.QueryRowContext(ctx,
		"SELECT header_json FROM sheet_tabs WHERE doc_id = ? AND tab = ?", docID, tab,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, fault.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var header []string
	if err := json.Unmarshal([]byte(raw), &header); err != nil {
		return nil, fmt.Errorf("decoding header for %s/%s: %w", docID, tab, err)
	}
	return header, nil
}

// WriteHeader overwrites the tab's header row only.
func (t *TableStore) WriteHeader(ctx context.Context, docID, tab string, header []string) error {
	raw, err := json.Marshal(header)
	if err != nil {
		return err
	}
	res, err := t.s.db.ExecContext(ctx,
		"UPDATE sheet_tabs SET header_json = ? WHERE doc_id = ? AND tab = ?",
		string(raw), docID, tab,
	)
	if err != nil {
		return fmt.Errorf("%w: writing header for %s: %v", fault.ErrWriteFailed, tab, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fault.ErrNotFound
	}
	return nil
}

// AppendRow appends one row to the tab.
func (t *TableStore) AppendRow(ctx context.Context, docID, tab string, row []string) error {
	raw, err := json.Marshal(row)
	if err != nil {
		return err
	}
	if _, err := t.s.db.ExecContext(ctx,
		"INSERT INTO sheet_rows (id, doc_id, tab, row_json, created_at) VALUES (?, ?, ?, ?, ?)",
		uuid.New().String(), docID, tab, string(raw), time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("%w: appending row to %s: %v", fault.ErrWriteFailed, tab, err)
	}
	return nil
}

// Rows returns all rows for a tab in append order (tests and exports).
func (t *TableStore) Rows(ctx context.Context, docID, tab string) ([][]string, error) {
	rows, err := t.s.db.QueryContext(ctx,
		"SELECT row_json FROM sheet_rows WHERE doc_id = ? AND tab = ? ORDER BY created_at ASC, id ASC",
		docID, tab,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var row []string
		if err := json.Unmarshal([]byte(raw), &row); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
