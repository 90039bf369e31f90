package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/MrEthical07/onboardAuth/internal"
)

var (
	// ErrNotFound is returned for sessions that are missing or past expiry.
	ErrNotFound = errors.New("session not found")
	// ErrInvalidTTL is returned when a non-positive lifetime is requested.
	ErrInvalidTTL = errors.New("session ttl must be positive")
)

type row struct {
	ID        string         `db:"id"`
	AccountID sql.NullString `db:"account_id"`
	Data      string         `db:"data"`
	ExpiresAt int64          `db:"expires_at"`
	CreatedAt int64          `db:"created_at"`
	UpdatedAt int64          `db:"updated_at"`
}

// Manager creates, loads and destroys sessions in the sessions table.
type Manager struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewManager returns a Manager over a migrated database.
func NewManager(db *sqlx.DB) *Manager {
	return &Manager{db: db, now: time.Now}
}

// WithClock replaces the time source. Intended for tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Create persists a new session that expires ttl from now. accountID may be
// empty for anonymous sessions.
func (m *Manager) Create(ctx context.Context, accountID string, attrs map[string]string, ttl time.Duration) (*Session, error) {
	return create(ctx, m.db, m.now(), accountID, attrs, ttl)
}

// Load returns the live session for id. Expired rows are reported as ErrNotFound
// even when the sweep has not removed them yet.
func (m *Manager) Load(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	var r row
	err := m.db.GetContext(ctx, &r, m.db.Rebind(`SELECT id, account_id, data, expires_at, created_at, updated_at
		FROM sessions WHERE id = ? AND expires_at > ?`), id, m.now().UnixMilli())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r.toSession()
}

// Update replaces the attribute bag of a live session.
func (m *Manager) Update(ctx context.Context, id string, attrs map[string]string) error {
	data, err := json.Marshal(attrs)
	if err != nil {
		return err
	}
	now := m.now().UnixMilli()
	res, err := m.db.ExecContext(ctx, m.db.Rebind(`UPDATE sessions SET data = ?, updated_at = ? WHERE id = ? AND expires_at > ?`),
		string(data), now, id, now)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Destroy deletes the session. Destroying a missing session is not an error.
func (m *Manager) Destroy(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	_, err := m.db.ExecContext(ctx, m.db.Rebind(`DELETE FROM sessions WHERE id = ?`), id)
	return err
}

// DestroyAccount deletes every session owned by accountID.
func (m *Manager) DestroyAccount(ctx context.Context, accountID string) (int64, error) {
	res, err := m.db.ExecContext(ctx, m.db.Rebind(`DELETE FROM sessions WHERE account_id = ?`), accountID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Regenerate destroys oldID and creates a replacement in one transaction,
// rotating the identifier after a privilege change.
func (m *Manager) Regenerate(ctx context.Context, oldID, accountID string, attrs map[string]string, ttl time.Duration) (*Session, error) {
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	if oldID != "" {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM sessions WHERE id = ?`), oldID); err != nil {
			_ = tx.Rollback()
			return nil, err
		}
	}
	s, err := create(ctx, tx, m.now(), accountID, attrs, ttl)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s, nil
}

// DeleteExpired removes every row whose expiry has passed.
func (m *Manager) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := m.db.ExecContext(ctx, m.db.Rebind(`DELETE FROM sessions WHERE expires_at <= ?`), m.now().UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	Rebind(query string) string
}

func create(ctx context.Context, db execer, now time.Time, accountID string, attrs map[string]string, ttl time.Duration) (*Session, error) {
	if ttl <= 0 {
		return nil, ErrInvalidTTL
	}
	sid, err := internal.NewSessionID()
	if err != nil {
		return nil, fmt.Errorf("session id: %w", err)
	}

	s := &Session{
		ID:         sid.String(),
		AccountID:  accountID,
		Attributes: cloneAttrs(attrs),
		ExpiresAt:  now.Add(ttl).UTC(),
		CreatedAt:  now.UTC(),
		UpdatedAt:  now.UTC(),
	}
	data, err := json.Marshal(s.Attributes)
	if err != nil {
		return nil, err
	}

	owner := sql.NullString{String: accountID, Valid: accountID != ""}
	_, err = db.ExecContext(ctx, db.Rebind(`INSERT INTO sessions (id, account_id, data, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`), s.ID, owner, string(data), s.ExpiresAt.UnixMilli(), now.UnixMilli(), now.UnixMilli())
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r row) toSession() (*Session, error) {
	attrs := map[string]string{}
	if r.Data != "" {
		if err := json.Unmarshal([]byte(r.Data), &attrs); err != nil {
			return nil, fmt.Errorf("session %s: corrupt attributes: %w", r.ID, err)
		}
	}
	return &Session{
		ID:         r.ID,
		AccountID:  r.AccountID.String,
		Attributes: attrs,
		ExpiresAt:  time.UnixMilli(r.ExpiresAt).UTC(),
		CreatedAt:  time.UnixMilli(r.CreatedAt).UTC(),
		UpdatedAt:  time.UnixMilli(r.UpdatedAt).UTC(),
	}, nil
}
