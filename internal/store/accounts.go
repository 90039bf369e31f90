package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Account is the persisted identity row. It carries the password hash and the
// MFA secret, so it never leaves the engine.
type Account struct {
	ID                string `db:"id"`
	Email             string `db:"email"`
	PasswordHash      string `db:"password_hash"`
	Role              string `db:"role"`
	FirstName         string `db:"first_name"`
	LastName          string `db:"last_name"`
	Department        string `db:"department"`
	JobTitle          string `db:"job_title"`
	StartDate         int64  `db:"start_date"`
	PasswordChangedAt int64  `db:"password_changed_at"`
	MFAEnabled        bool   `db:"mfa_enabled"`
	MFASetupCompleted bool   `db:"mfa_setup_completed"`
	MFASecret         string `db:"mfa_secret"`
	MFALastStep       int64  `db:"mfa_last_step"`
	CreatedAt         int64  `db:"created_at"`
	UpdatedAt         int64  `db:"updated_at"`
}

const accountColumns = `id, email, password_hash, role, first_name, last_name, department, job_title,
	start_date, password_changed_at, mfa_enabled, mfa_setup_completed, mfa_secret, mfa_last_step, created_at, updated_at`

// NormalizeEmail is the canonical form used for the unique email key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateAccount inserts a new account. A missing ID is generated. Returns
// ErrDuplicate when the email is already registered.
func (s *Store) CreateAccount(ctx context.Context, a *Account) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.Email = NormalizeEmail(a.Email)

	query := s.db.Rebind(`INSERT INTO accounts (` + accountColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query,
		a.ID, a.Email, a.PasswordHash, a.Role, a.FirstName, a.LastName, a.Department, a.JobTitle,
		a.StartDate, a.PasswordChangedAt, boolToInt(a.MFAEnabled), boolToInt(a.MFASetupCompleted), a.MFASecret,
		a.MFALastStep, a.CreatedAt, a.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// AccountByEmail looks an account up by its normalized email.
func (s *Store) AccountByEmail(ctx context.Context, email string) (*Account, error) {
	var a Account
	err := s.db.GetContext(ctx, &a, s.db.Rebind(`SELECT `+accountColumns+` FROM accounts WHERE email = ?`), NormalizeEmail(email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// AccountByID looks an account up by id.
func (s *Store) AccountByID(ctx context.Context, id string) (*Account, error) {
	var a Account
	err := s.db.GetContext(ctx, &a, s.db.Rebind(`SELECT `+accountColumns+` FROM accounts WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ChangePassword swaps in newHash, moves the previous hash into history and
// trims history to keep entries. Runs in one transaction.
func (s *Store) ChangePassword(ctx context.Context, accountID, newHash string, changedAt time.Time, keep int) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	var oldHash string
	err = tx.GetContext(ctx, &oldHash, tx.Rebind(`SELECT password_hash FROM accounts WHERE id = ?`), accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return rollback(tx, ErrNotFound)
	}
	if err != nil {
		return rollback(tx, err)
	}

	at := Millis(changedAt)
	if _, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE accounts SET password_hash = ?, password_changed_at = ?, updated_at = ? WHERE id = ?`),
		newHash, at, at, accountID); err != nil {
		return rollback(tx, err)
	}

	if _, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO password_history (id, account_id, password_hash, changed_at) VALUES (?, ?, ?, ?)`),
		uuid.NewString(), accountID, oldHash, at); err != nil {
		return rollback(tx, err)
	}

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM password_history WHERE account_id = ? AND id NOT IN (
			SELECT id FROM password_history WHERE account_id = ? ORDER BY changed_at DESC, id DESC LIMIT ?
		)`), accountID, accountID, keep); err != nil {
		return rollback(tx, err)
	}

	return tx.Commit()
}

// PasswordHistory returns up to limit previous hashes, newest first.
func (s *Store) PasswordHistory(ctx context.Context, accountID string, limit int) ([]string, error) {
	var hashes []string
	err := s.db.SelectContext(ctx, &hashes, s.db.Rebind(`SELECT password_hash FROM password_history
		WHERE account_id = ? ORDER BY changed_at DESC, id DESC LIMIT ?`), accountID, limit)
	if err != nil {
		return nil, err
	}
	return hashes, nil
}
