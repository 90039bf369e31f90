package onboardAuth

// Permission names checked by the admin routes.
const (
	PermMFAReset         = "mfa.reset"
	PermSettingsRead     = "security_settings.read"
	PermSettingsWrite    = "security_settings.write"
	PermAccountsCreate   = "accounts.create"
	PermAccountsRead     = "accounts.read"
	PermSessionsTokenUse = "sessions.token"
)

// DefaultPermissions is the permission set registered by [New].
var DefaultPermissions = []string{
	PermMFAReset,
	PermSettingsRead,
	PermSettingsWrite,
	PermAccountsCreate,
	PermAccountsRead,
	PermSessionsTokenUse,
}

// DefaultRolePermissions grants Admin everything, lets HR onboard new hires
// and leaves Managers and Employees with read access and bearer tokens.
var DefaultRolePermissions = map[string][]string{
	RoleAdmin: {
		PermMFAReset, PermSettingsRead, PermSettingsWrite,
		PermAccountsCreate, PermAccountsRead, PermSessionsTokenUse,
	},
	RoleHR:       {PermAccountsCreate, PermAccountsRead, PermSessionsTokenUse},
	RoleManager:  {PermAccountsRead, PermSessionsTokenUse},
	RoleEmployee: {PermSessionsTokenUse},
}
