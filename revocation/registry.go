package revocation

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/MrEthical07/onboardAuth/internal"
)

// ErrTokenInvalid is returned by Revoke for input that is not a bearer token
// signed by the portal with an exp claim.
var ErrTokenInvalid = errors.New("revocation: token is not a valid bearer token")

// Verifier checks a token's signature and returns its exp claim, expired or
// not. *jwt.Manager implements it.
type Verifier interface {
	VerifiedExpiry(token string) (time.Time, error)
}

// Registry stores revoked token hashes in the revoked_tokens table.
type Registry struct {
	db       *sqlx.DB
	verifier Verifier
	now      func() time.Time
}

// NewRegistry returns a Registry over a migrated database. Only tokens that
// verifier accepts are stored; with a nil verifier every Revoke fails with
// ErrTokenInvalid.
func NewRegistry(db *sqlx.DB, verifier Verifier) *Registry {
	return &Registry{db: db, verifier: verifier, now: time.Now}
}

// WithClock replaces the time source. Intended for tests.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

// Revoke blacklists token until its own expiry. Revoking an already expired
// token or a token revoked earlier is a no-op. Tokens that fail signature
// verification never reach the table.
func (r *Registry) Revoke(ctx context.Context, token string) error {
	if token == "" || r.verifier == nil {
		return ErrTokenInvalid
	}
	exp, err := r.verifier.VerifiedExpiry(token)
	if err != nil {
		return errors.Join(ErrTokenInvalid, err)
	}
	now := r.now()
	if !exp.After(now) {
		return nil
	}

	_, err = r.db.ExecContext(ctx, r.db.Rebind(`INSERT INTO revoked_tokens (token_hash, expires_at, revoked_at)
		VALUES (?, ?, ?) ON CONFLICT (token_hash) DO NOTHING`),
		internal.HashToken(token), exp.UnixMilli(), now.UnixMilli())
	return err
}

// IsRevoked reports whether token has an unexpired blacklist row.
func (r *Registry) IsRevoked(ctx context.Context, token string) (bool, error) {
	var one int
	err := r.db.GetContext(ctx, &one, r.db.Rebind(`SELECT 1 FROM revoked_tokens WHERE token_hash = ? AND expires_at > ?`),
		internal.HashToken(token), r.now().UnixMilli())
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// DeleteExpired drops rows whose token would no longer verify anyway.
func (r *Registry) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM revoked_tokens WHERE expires_at <= ?`), r.now().UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
