package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// SetupSession is the ephemeral record holding a provisional TOTP secret while
// the employee confirms enrollment.
type SetupSession struct {
	ID        string `db:"id"`
	AccountID string `db:"account_id"`
	Secret    string `db:"secret"`
	ExpiresAt int64  `db:"expires_at"`
	CreatedAt int64  `db:"created_at"`
}

// ReplaceSetupSession deletes any setup session owned by the account and
// inserts ss in the same transaction, so at most one provisional secret exists.
func (s *Store) ReplaceSetupSession(ctx context.Context, ss SetupSession) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM mfa_setup_sessions WHERE account_id = ?`), ss.AccountID); err != nil {
		return rollback(tx, err)
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO mfa_setup_sessions (id, account_id, secret, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?)`), ss.ID, ss.AccountID, ss.Secret, ss.ExpiresAt, ss.CreatedAt); err != nil {
		return rollback(tx, err)
	}
	return tx.Commit()
}

// SetupSessionByID returns the live setup session. Missing and expired rows
// are both ErrNotFound.
func (s *Store) SetupSessionByID(ctx context.Context, id string, now time.Time) (*SetupSession, error) {
	var ss SetupSession
	err := s.db.GetContext(ctx, &ss, s.db.Rebind(`SELECT id, account_id, secret, expires_at, created_at
		FROM mfa_setup_sessions WHERE id = ? AND expires_at > ?`), id, Millis(now))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ss, nil
}

// LiveSetupSessions counts unexpired setup sessions for an account.
func (s *Store) LiveSetupSessions(ctx context.Context, accountID string, now time.Time) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, s.db.Rebind(`SELECT COUNT(*) FROM mfa_setup_sessions WHERE account_id = ? AND expires_at > ?`),
		accountID, Millis(now))
	return n, err
}

// CompleteSetup is the input to CompleteMFASetup.
type CompleteSetup struct {
	AccountID  string
	SetupID    string
	Secret     string
	CodeHashes []string
	LastStep   int64 // TOTP step of the confirming code
	Now        time.Time
}

// CompleteMFASetup consumes the setup session, stores the secret and backup
// code hashes on the account and raises both enrollment flags. If the setup
// session was superseded concurrently nothing changes and ErrNotFound is returned.
func (s *Store) CompleteMFASetup(ctx context.Context, in CompleteSetup) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM mfa_setup_sessions WHERE id = ? AND account_id = ? AND expires_at > ?`),
		in.SetupID, in.AccountID, Millis(in.Now))
	if err != nil {
		return rollback(tx, err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return rollback(tx, ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE accounts SET mfa_enabled = 1, mfa_setup_completed = 1, mfa_secret = ?, mfa_last_step = ?, updated_at = ?
		WHERE id = ?`), in.Secret, in.LastStep, Millis(in.Now), in.AccountID); err != nil {
		return rollback(tx, err)
	}

	if err := replaceCodesTx(ctx, tx, in.AccountID, in.CodeHashes); err != nil {
		return rollback(tx, err)
	}
	return tx.Commit()
}

// ReplaceBackupCodes discards the account's remaining codes and stores hashes.
func (s *Store) ReplaceBackupCodes(ctx context.Context, accountID string, hashes []string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := replaceCodesTx(ctx, tx, accountID, hashes); err != nil {
		return rollback(tx, err)
	}
	return tx.Commit()
}

func replaceCodesTx(ctx context.Context, tx txExecer, accountID string, hashes []string) error {
	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM mfa_backup_codes WHERE account_id = ?`), accountID); err != nil {
		return err
	}
	insert := tx.Rebind(`INSERT INTO mfa_backup_codes (account_id, code_hash, position) VALUES (?, ?, ?)`)
	for i, h := range hashes {
		if _, err := tx.ExecContext(ctx, insert, accountID, h, i); err != nil {
			return err
		}
	}
	return nil
}

// ConsumeBackupCode deletes the matching code. The single DELETE makes
// concurrent use of the same code succeed at most once.
func (s *Store) ConsumeBackupCode(ctx context.Context, accountID, codeHash string) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM mfa_backup_codes WHERE account_id = ? AND code_hash = ?`), accountID, codeHash)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// BackupCodeCount returns the number of unused codes.
func (s *Store) BackupCodeCount(ctx context.Context, accountID string) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, s.db.Rebind(`SELECT COUNT(*) FROM mfa_backup_codes WHERE account_id = ?`), accountID)
	return n, err
}

// ResetMFA clears enrollment, secret, codes, setup sessions and trusted
// devices. Returns false when the account does not exist.
func (s *Store) ResetMFA(ctx context.Context, accountID string, now time.Time) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}

	res, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE accounts SET mfa_enabled = 0, mfa_setup_completed = 0, mfa_secret = '', mfa_last_step = 0, updated_at = ?
		WHERE id = ?`), Millis(now), accountID)
	if err != nil {
		return false, rollback(tx, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, rollback(tx, nil)
	}

	for _, q := range []string{
		`DELETE FROM mfa_backup_codes WHERE account_id = ?`,
		`DELETE FROM mfa_setup_sessions WHERE account_id = ?`,
		`DELETE FROM trusted_devices WHERE account_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, tx.Rebind(q), accountID); err != nil {
			return false, rollback(tx, err)
		}
	}
	return true, tx.Commit()
}

// ClaimTOTPStep records step as the account's last accepted TOTP step. It
// reports false when an equal or later step was already accepted, which makes
// the code a replay. The compare and update are one statement, so two
// concurrent uses of the same code cannot both succeed.
func (s *Store) ClaimTOTPStep(ctx context.Context, accountID string, step int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE accounts SET mfa_last_step = ? WHERE id = ? AND mfa_last_step < ?`),
		step, accountID, step)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// DeleteExpiredSetupSessions removes setup sessions past expiry.
func (s *Store) DeleteExpiredSetupSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM mfa_setup_sessions WHERE expires_at <= ?`), Millis(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
