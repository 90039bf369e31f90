package internal

import (
	"crypto/sha256"
	"encoding/hex"
)

func HashBindingValue(v string) [32]byte {
	return sha256.Sum256([]byte(v))
}

// DeviceFingerprint derives the trusted-device key from the client signature.
// The same user agent and network origin always produce the same fingerprint.
func DeviceFingerprint(userAgent, ip string) string {
	sum := HashBindingValue(userAgent + "|" + ip)
	return hex.EncodeToString(sum[:])
}

// HashUserAgent is the form in which user agents are written to the audit log.
func HashUserAgent(userAgent string) string {
	if userAgent == "" {
		return ""
	}
	sum := HashBindingValue(userAgent)
	return hex.EncodeToString(sum[:])
}
