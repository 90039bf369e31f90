// Package jwt signs and verifies the portal's stateless bearer tokens. Tokens
// carry the account id, role and optional originating session id. Revocation
// lives outside this package.
package jwt
