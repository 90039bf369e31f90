package onboardAuth

import (
	"context"
	"errors"

	"github.com/MrEthical07/onboardAuth/revocation"
	"github.com/MrEthical07/onboardAuth/session"
)

// ResolveSession returns the caller behind a session cookie. Missing and
// expired sessions, and sessions whose account is gone, are
// [ErrSessionNotFound]. Pre-sessions resolve too; check
// [Caller.FullyAuthenticated] before serving protected resources.
func (e *Engine) ResolveSession(ctx context.Context, sessionID string) (*Caller, error) {
	if e == nil || e.sessions == nil {
		return nil, ErrEngineNotReady
	}
	sess, err := e.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, e.storeErr(err, ErrSessionNotFound)
	}
	if sess.AccountID == "" {
		return nil, ErrSessionNotFound
	}
	acct, err := e.store.AccountByID(ctx, sess.AccountID)
	if err != nil {
		return nil, e.storeErr(err, ErrSessionNotFound)
	}
	return &Caller{
		AccountID: acct.ID,
		Email:     acct.Email,
		Role:      acct.Role,
		SessionID: sess.ID,
		Stage:     sess.Stage(),
		ExpiresAt: sess.ExpiresAt,
	}, nil
}

// ResolveToken returns the caller behind a fallback bearer token. The token
// must verify, must not be revoked and must name an existing account. The
// session it was minted for must still be live and fully authenticated, so
// Logout and LogoutAll end the token along with the session. The role is
// read from the account, not from the token.
func (e *Engine) ResolveToken(ctx context.Context, token string) (*Caller, error) {
	if e == nil || e.store == nil || e.sessions == nil {
		return nil, ErrEngineNotReady
	}
	if e.jwtManager == nil || token == "" {
		return nil, ErrTokenInvalid
	}
	claims, err := e.jwtManager.ParseAccess(token)
	if err != nil {
		e.metricInc(MetricTokenRejected)
		return nil, ErrTokenInvalid
	}
	revoked, err := e.revocations.IsRevoked(ctx, token)
	if err != nil {
		return nil, e.storeErr(err, nil)
	}
	if revoked {
		e.metricInc(MetricTokenRejected)
		return nil, ErrTokenRevoked
	}
	if claims.SID == "" {
		e.metricInc(MetricTokenRejected)
		return nil, ErrTokenInvalid
	}
	sess, err := e.sessions.Load(ctx, claims.SID)
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		return nil, e.storeErr(err, nil)
	}
	if err != nil || sess.AccountID != claims.UID || sess.Stage() != stageFull {
		e.metricInc(MetricTokenRejected)
		return nil, ErrTokenRevoked
	}
	acct, err := e.store.AccountByID(ctx, claims.UID)
	if err != nil {
		return nil, e.storeErr(err, ErrTokenInvalid)
	}

	c := &Caller{
		AccountID: acct.ID,
		Email:     acct.Email,
		Role:      acct.Role,
		SessionID: claims.SID,
		Stage:     stageToken,
	}
	if claims.ExpiresAt != nil {
		c.ExpiresAt = claims.ExpiresAt.Time
	}
	return c, nil
}

// IssueToken mints a fallback bearer token for a fully authenticated session.
func (e *Engine) IssueToken(ctx context.Context, sessionID string) (*IssuedToken, error) {
	if e == nil || e.sessions == nil {
		return nil, ErrEngineNotReady
	}
	if e.jwtManager == nil {
		return nil, ErrTokensDisabled
	}
	caller, err := e.ResolveSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if caller.Stage == stageSetup {
		return nil, ErrMFARequired
	}
	if caller.Stage != stageFull {
		return nil, ErrUnauthorized
	}

	token, exp, err := e.jwtManager.CreateAccess(caller.AccountID, caller.SessionID, caller.Role)
	if err != nil {
		return nil, err
	}
	e.metricInc(MetricTokenIssued)
	e.emitAudit(ctx, auditEventTokenIssued, true, caller.AccountID, caller.SessionID, nil, nil)
	return &IssuedToken{Token: token, ExpiresAt: exp}, nil
}

// RevokeToken blacklists a bearer token until its own expiry.
func (e *Engine) RevokeToken(ctx context.Context, token string) error {
	if e == nil || e.revocations == nil {
		return ErrEngineNotReady
	}
	if err := e.revocations.Revoke(ctx, token); err != nil {
		if errors.Is(err, revocation.ErrTokenInvalid) {
			return ErrTokenInvalid
		}
		return e.storeErr(err, nil)
	}
	e.metricInc(MetricTokenRevoked)
	e.emitAudit(ctx, auditEventTokenRevoked, true, "", "", nil, nil)
	return nil
}

// Logout destroys the session and revokes the bearer token, either of which
// may be empty. Logging out twice is not an error.
func (e *Engine) Logout(ctx context.Context, sessionID, token string) error {
	if e == nil || e.sessions == nil {
		return ErrEngineNotReady
	}

	accountID := ""
	if sessionID != "" {
		if sess, err := e.sessions.Load(ctx, sessionID); err == nil {
			accountID = sess.AccountID
		}
		if err := e.sessions.Destroy(ctx, sessionID); err != nil {
			return e.storeErr(err, nil)
		}
	}

	if token != "" && e.jwtManager != nil {
		if err := e.RevokeToken(ctx, token); err != nil && !errors.Is(err, ErrTokenInvalid) {
			return err
		}
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, accountID, sessionID, nil, nil)
	return nil
}

// LogoutAll destroys every session of the account.
func (e *Engine) LogoutAll(ctx context.Context, accountID string) (int64, error) {
	if e == nil || e.sessions == nil {
		return 0, ErrEngineNotReady
	}
	n, err := e.sessions.DestroyAccount(ctx, accountID)
	if err != nil {
		return 0, e.storeErr(err, nil)
	}
	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, accountID, "", nil, func() map[string]string {
		return map[string]string{"scope": "all"}
	})
	return n, nil
}

// LoadSession returns the raw session record.
func (e *Engine) LoadSession(ctx context.Context, sessionID string) (*session.Session, error) {
	if e == nil || e.sessions == nil {
		return nil, ErrEngineNotReady
	}
	sess, err := e.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, e.storeErr(err, ErrSessionNotFound)
	}
	return sess, nil
}
