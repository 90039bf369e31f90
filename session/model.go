package session

import "time"

// Well-known attribute keys.
const (
	AttrLoginTime       = "login_time"
	AttrClientSignature = "client_signature"
	AttrAuthStage       = "auth_stage"
	AttrRole            = "role"
	AttrCSRFToken       = "csrf_token"
)

// Values of AttrAuthStage.
const (
	// StageFull marks a session that completed every login step.
	StageFull = "full"
	// StageMFASetup marks the short-lived pre-session issued while MFA enrollment is pending.
	StageMFASetup = "mfa_setup"
)

// Session is one server-held session record.
type Session struct {
	ID         string
	AccountID  string
	Attributes map[string]string
	ExpiresAt  time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Get returns the attribute value for key, or "".
func (s *Session) Get(key string) string {
	if s == nil || s.Attributes == nil {
		return ""
	}
	return s.Attributes[key]
}

// Set stores an attribute, allocating the bag when needed.
func (s *Session) Set(key, value string) {
	if s.Attributes == nil {
		s.Attributes = make(map[string]string, 4)
	}
	s.Attributes[key] = value
}

// Stage returns the auth stage attribute.
func (s *Session) Stage() string {
	return s.Get(AttrAuthStage)
}

// FullyAuthenticated reports whether the session belongs to an account that
// completed login.
func (s *Session) FullyAuthenticated() bool {
	return s != nil && s.AccountID != "" && s.Stage() == StageFull
}

func cloneAttrs(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
