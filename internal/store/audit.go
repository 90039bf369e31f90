package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AuditEntry is one row of the append-only MFA audit log.
type AuditEntry struct {
	ID            string `db:"id"`
	AccountID     string `db:"account_id"`
	Event         string `db:"event"`
	Success       bool   `db:"success"`
	IP            string `db:"ip"`
	UserAgentHash string `db:"user_agent_hash"`
	Detail        string `db:"detail"`
	CreatedAt     int64  `db:"created_at"`
}

// AppendAudit inserts e. Rows are never updated.
func (s *Store) AppendAudit(ctx context.Context, e AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`INSERT INTO mfa_audit_log
		(id, account_id, event, success, ip, user_agent_hash, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		e.ID, e.AccountID, e.Event, boolToInt(e.Success), e.IP, e.UserAgentHash, e.Detail, e.CreatedAt)
	return err
}

// AuditEntries returns up to limit entries for the account, newest first.
func (s *Store) AuditEntries(ctx context.Context, accountID string, limit int) ([]AuditEntry, error) {
	var out []AuditEntry
	err := s.db.SelectContext(ctx, &out, s.db.Rebind(`SELECT id, account_id, event, success, ip, user_agent_hash, detail, created_at
		FROM mfa_audit_log WHERE account_id = ? ORDER BY created_at DESC LIMIT ?`), accountID, limit)
	return out, err
}

// DeleteAuditBefore is the retention sweep: it removes entries created before cutoff.
func (s *Store) DeleteAuditBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM mfa_audit_log WHERE created_at < ?`), Millis(cutoff))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
