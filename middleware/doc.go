// Package middleware adapts the onboarding auth engine to net/http.
//
// # Guards
//
//   - [Guard] resolves a session cookie, bearer token or token cookie.
//   - [RequireSession] accepts only the session cookie.
//   - [RequireToken] accepts only a bearer token.
//
// Each guard stores the resolved [onboardAuth.Caller] in the request context,
// readable through [CallerFromContext]. [RequirePermission] runs after a guard
// and checks the caller's role. [ClientInfo] copies the client IP and user
// agent into the context so throttling and audit entries see them.
//
// Guards never decide authentication themselves; they translate HTTP into
// Engine calls and Engine errors back into status codes.
package middleware
