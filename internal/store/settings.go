package store

import (
	"context"
	"database/sql"
	"errors"
)

// Settings is the single organization security-settings row.
type Settings struct {
	MFAEnforced        bool   `db:"mfa_enforced"`
	MFARequiredRoles   string `db:"mfa_required_roles"`
	MFAGracePeriodDays int    `db:"mfa_grace_period_days"`
	RememberDeviceDays int    `db:"remember_device_days"`
	PasswordExpiryDays int    `db:"password_expiry_days"`
	UpdatedAt          int64  `db:"updated_at"`
}

const settingsRowID = 1

// LoadSettings returns the stored settings or ErrNotFound when none were saved.
func (s *Store) LoadSettings(ctx context.Context) (*Settings, error) {
	var out Settings
	err := s.db.GetContext(ctx, &out, s.db.Rebind(`SELECT mfa_enforced, mfa_required_roles, mfa_grace_period_days,
		remember_device_days, password_expiry_days, updated_at FROM security_settings WHERE id = ?`), settingsRowID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SaveSettings upserts the settings row.
func (s *Store) SaveSettings(ctx context.Context, in Settings) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`INSERT INTO security_settings
		(id, mfa_enforced, mfa_required_roles, mfa_grace_period_days, remember_device_days, password_expiry_days, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			mfa_enforced = excluded.mfa_enforced,
			mfa_required_roles = excluded.mfa_required_roles,
			mfa_grace_period_days = excluded.mfa_grace_period_days,
			remember_device_days = excluded.remember_device_days,
			password_expiry_days = excluded.password_expiry_days,
			updated_at = excluded.updated_at`),
		settingsRowID, boolToInt(in.MFAEnforced), in.MFARequiredRoles, in.MFAGracePeriodDays,
		in.RememberDeviceDays, in.PasswordExpiryDays, in.UpdatedAt)
	return err
}
