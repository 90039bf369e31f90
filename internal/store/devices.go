package store

import (
	"context"
	"time"
)

// TrustDevice records (or extends) a trusted device for the account.
func (s *Store) TrustDevice(ctx context.Context, accountID, fingerprint string, expiresAt, now time.Time) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`INSERT INTO trusted_devices (account_id, fingerprint, expires_at, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (account_id, fingerprint) DO UPDATE SET expires_at = excluded.expires_at`),
		accountID, fingerprint, Millis(expiresAt), Millis(now))
	return err
}

// DeviceTrusted reports whether an unexpired trusted-device row exists.
func (s *Store) DeviceTrusted(ctx context.Context, accountID, fingerprint string, now time.Time) (bool, error) {
	var n int
	err := s.db.GetContext(ctx, &n, s.db.Rebind(`SELECT COUNT(*) FROM trusted_devices
		WHERE account_id = ? AND fingerprint = ? AND expires_at > ?`), accountID, fingerprint, Millis(now))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ForgetDevices removes every trusted device of the account.
func (s *Store) ForgetDevices(ctx context.Context, accountID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM trusted_devices WHERE account_id = ?`), accountID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteExpiredDevices removes trusted devices past expiry.
func (s *Store) DeleteExpiredDevices(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM trusted_devices WHERE expires_at <= ?`), Millis(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
