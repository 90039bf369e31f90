// Package csrf implements the per-session anti-forgery token: the token is
// stored in the server-side session and must be echoed in a request header on
// every state-changing, cookie-authenticated request outside the exempt routes.
package csrf
