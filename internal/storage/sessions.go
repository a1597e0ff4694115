package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kalambet/habitd/internal/fault"
	"github.com/kalambet/habitd/internal/profile"
	"github.com/kalambet/habitd/internal/session"
)

// Sessions returns a session.Backing view of the store.
func (s *Store) Sessions() *SessionStore {
	return &SessionStore{s}
}

// SessionStore implements session.Backing on top of the sessions table.
type SessionStore struct {
	s *Store
}

func (ss *SessionStore) Ready(ctx context.Context) bool {
	return ss.s.Ready(ctx)
}

func (ss *SessionStore) Get(ctx context.Context, userID int64) (*session.Session, error) {
	var data string
	err := ss.s.db.QueryRowContext(ctx,
		"SELECT data FROM sessions WHERE user_id = ?", userID,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fault.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading session %d: %w", userID, err)
	}
	var sess session.Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, fmt.Errorf("decoding session %d: %w", userID, err)
	}
	return &sess, nil
}

func (ss *SessionStore) Save(ctx context.Context, sess *session.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encoding session %d: %w", sess.UserID, err)
	}
	var expires any
	if !sess.ExpiresAt.IsZero() {
		expires = sess.ExpiresAt.UTC().Format(time.RFC3339)
	}
	_, err = ss.s.db.ExecContext(ctx, `
		INSERT INTO sessions (user_id, data, expires_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET data = excluded.data, expires_at = excluded.expires_at, updated_at = excluded.updated_at`,
		sess.UserID, string(data), expires, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

func (ss *SessionStore) Delete(ctx context.Context, userID int64) error {
	_, err := ss.s.db.ExecContext(ctx, "DELETE FROM sessions WHERE user_id = ?", userID)
	return err
}

// Profiles returns a profile.Backing view of the store.
func (s *Store) Profiles() *ProfileStore {
	return &ProfileStore{s}
}

// ProfileStore implements profile.Backing on top of the profiles table.
type ProfileStore struct {
	s *Store
}

func (ps *ProfileStore) Ready(ctx context.Context) bool {
	return ps.s.Ready(ctx)
}

func (ps *ProfileStore) Get(ctx context.Context, userID int64) (*profile.Profile, error) {
	var data string
	err := ps.s.db.QueryRowContext(ctx,
		"SELECT data FROM profiles WHERE user_id = ?", userID,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fault.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading profile %d: %w", userID, err)
	}
	var p profile.Profile
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("decoding profile %d: %w", userID, err)
	}
	return &p, nil
}

func (ps *ProfileStore) Save(ctx context.Context, p *profile.Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding profile %d: %w", p.UserID, err)
	}
	_, err = ps.s.db.ExecContext(ctx, `
		INSERT INTO profiles (user_id, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		p.UserID, string(data), time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

func (ps *ProfileStore) Delete(ctx context.Context, userID int64) error {
	_, err := ps.s.db.ExecContext(ctx, "DELETE FROM profiles WHERE user_id = ?", userID)
	return err
}
