package onboardAuth

import (
	"context"
	"time"
)

// IsDeviceTrusted reports whether fingerprint has an unexpired trusted-device
// row for the account.
func (e *Engine) IsDeviceTrusted(ctx context.Context, accountID, fingerprint string) (bool, error) {
	if e == nil || e.store == nil {
		return false, ErrEngineNotReady
	}
	if accountID == "" || fingerprint == "" {
		return false, nil
	}
	ok, err := e.store.DeviceTrusted(ctx, accountID, fingerprint, e.now())
	if err != nil {
		return false, e.storeErr(err, nil)
	}
	return ok, nil
}

// TrustDevice records fingerprint as trusted for ttl. Trusting a device again
// extends its expiry.
func (e *Engine) TrustDevice(ctx context.Context, accountID, fingerprint string, ttl time.Duration) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	if ttl <= 0 || fingerprint == "" {
		return nil
	}
	now := e.now()
	if err := e.store.TrustDevice(ctx, accountID, fingerprint, now.Add(ttl), now); err != nil {
		return e.storeErr(err, nil)
	}
	return nil
}

// ForgetDevices removes every trusted device of the account.
func (e *Engine) ForgetDevices(ctx context.Context, accountID string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	if _, err := e.store.ForgetDevices(ctx, accountID); err != nil {
		return e.storeErr(err, nil)
	}
	return nil
}
