package onboardAuth

import (
	"time"

	"github.com/MrEthical07/onboardAuth/internal/settings"
	"github.com/MrEthical07/onboardAuth/internal/store"
)

// Portal roles.
const (
	RoleAdmin    = "Admin"
	RoleHR       = "HR"
	RoleManager  = "Manager"
	RoleEmployee = "Employee"
)

// Roles lists every portal role in descending privilege order.
var Roles = []string{RoleAdmin, RoleHR, RoleManager, RoleEmployee}

func validRole(role string) bool {
	for _, r := range Roles {
		if r == role {
			return true
		}
	}
	return false
}

// SecurityPolicy is the organization-wide MFA and password policy.
type SecurityPolicy = settings.Policy

// Account is the public profile of an account. It never carries the password
// hash, the MFA secret or backup codes.
type Account struct {
	ID                string    `json:"id"`
	Email             string    `json:"email"`
	Role              string    `json:"role"`
	FirstName         string    `json:"firstName"`
	LastName          string    `json:"lastName"`
	Department        string    `json:"department,omitempty"`
	JobTitle          string    `json:"jobTitle,omitempty"`
	StartDate         time.Time `json:"startDate,omitzero"`
	MFAEnabled        bool      `json:"mfaEnabled"`
	MFASetupCompleted bool      `json:"mfaSetupCompleted"`
	PasswordChangedAt time.Time `json:"passwordChangedAt"`
	CreatedAt         time.Time `json:"createdAt"`
}

func publicAccount(a *store.Account) *Account {
	if a == nil {
		return nil
	}
	out := &Account{
		ID:                a.ID,
		Email:             a.Email,
		Role:              a.Role,
		FirstName:         a.FirstName,
		LastName:          a.LastName,
		Department:        a.Department,
		JobTitle:          a.JobTitle,
		MFAEnabled:        a.MFAEnabled,
		MFASetupCompleted: a.MFASetupCompleted,
		PasswordChangedAt: store.Time(a.PasswordChangedAt),
		CreatedAt:         store.Time(a.CreatedAt),
	}
	if a.StartDate > 0 {
		out.StartDate = store.Time(a.StartDate)
	}
	return out
}

// CreateAccountRequest is the input to [Engine.CreateAccount].
type CreateAccountRequest struct {
	Email      string    `json:"email"`
	Password   string    `json:"password"`
	Role       string    `json:"role"`
	FirstName  string    `json:"firstName"`
	LastName   string    `json:"lastName"`
	Department string    `json:"department"`
	JobTitle   string    `json:"jobTitle"`
	StartDate  time.Time `json:"startDate"`
}

// LoginRequest is the input to [Engine.Login]. SessionID is the caller's
// current session cookie, if any; it is rotated rather than reused.
type LoginRequest struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	MFACode        string `json:"mfaCode,omitempty"`
	RememberDevice bool   `json:"rememberDevice,omitempty"`
	SessionID      string `json:"-"`
}

// LoginStatus is the outcome of a login attempt that did not fail.
type LoginStatus string

const (
	LoginSuccess                LoginStatus = "success"
	LoginPasswordChangeRequired LoginStatus = "password_change_required"
	LoginMFASetupRequired       LoginStatus = "mfa_setup_required"
	LoginMFACodeRequired        LoginStatus = "mfa_code_required"
)

// LoginResult is returned by [Engine.Login].
//
// On LoginSuccess, SessionID is the new full session and Account is set. On
// LoginMFASetupRequired, SessionID is the pre-session and SetupToken equals
// it. Token is set only when fallback tokens are enabled.
type LoginResult struct {
	Status          LoginStatus
	Account         *Account
	SessionID       string
	SessionExpires  time.Time
	SetupToken      string
	Token           string
	TokenExpires    time.Time
	MFASetupPending bool
	DeviceTrusted   bool
}

// MFASetup is returned by [Engine.StartMFASetup] and [Engine.RestartMFASetup].
type MFASetup struct {
	SetupSessionID  string    `json:"setupSessionId"`
	Secret          string    `json:"secret"`
	ProvisioningURI string    `json:"provisioningUri"`
	ExpiresAt       time.Time `json:"expiresAt"`
}

// RestartRequest identifies the account for [Engine.RestartMFASetup]: by an
// existing session, or before login by email and password.
type RestartRequest struct {
	SessionID string
	Email     string
	Password  string
}

// MFASetupResult is returned by [Engine.VerifyMFASetup]. When the setup was
// driven from a pre-session, SessionID is the replacement full session.
type MFASetupResult struct {
	AccountID      string
	BackupCodes    []string
	SessionID      string
	SessionExpires time.Time
}

// Caller is the resolved identity of a request.
type Caller struct {
	AccountID string
	Email     string
	Role      string
	SessionID string
	// Stage is the session auth stage; "token" for bearer callers.
	Stage     string
	ExpiresAt time.Time
}

// FullyAuthenticated reports whether the caller completed every login step.
func (c *Caller) FullyAuthenticated() bool {
	return c != nil && c.AccountID != "" && (c.Stage == stageFull || c.Stage == stageToken)
}

// IssuedToken is a fallback bearer token and its expiry.
type IssuedToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}
