// Package revocation keeps the blacklist of stateless bearer tokens that must
// be refused even though their signature still verifies. Rows are keyed by the
// sha256 of the token and live exactly as long as the token would have.
package revocation
