package onboardAuth

import (
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

type totpManager struct {
	config TOTPConfig
}

func newTOTPManager(cfg TOTPConfig) *totpManager {
	return &totpManager{config: cfg}
}

func (m *totpManager) digits() otp.Digits {
	if m.config.Digits == 8 {
		return otp.DigitsEight
	}
	return otp.DigitsSix
}

// Generate creates a new random secret labelled with the account email and
// returns its base32 form and otpauth:// URI.
func (m *totpManager) Generate(accountName string) (string, string, error) {
	if m == nil {
		return "", "", ErrEngineNotReady
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      m.config.Issuer,
		AccountName: accountName,
		Period:      uint(m.config.Period),
		SecretSize:  uint(m.config.SecretSize),
		Digits:      m.digits(),
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", "", err
	}
	return key.Secret(), key.URL(), nil
}

// VerifyCode checks code against secret within the configured skew of steps
// around now and returns the matched time step. Malformed codes are a
// mismatch, not an error.
func (m *totpManager) VerifyCode(secret, code string, now time.Time) (bool, int64, error) {
	if m == nil {
		return false, 0, ErrEngineNotReady
	}
	if secret == "" {
		return false, 0, errors.New("empty totp secret")
	}
	code = strings.TrimSpace(code)
	if len(code) != m.config.Digits || !isNumericString(code) {
		return false, 0, nil
	}

	period := int64(m.config.Period)
	base := now.Unix() / period
	for skew := -m.config.Skew; skew <= m.config.Skew; skew++ {
		step := base + int64(skew)
		if step < 0 {
			continue
		}
		generated, err := totp.GenerateCodeCustom(secret, time.Unix(step*period, 0), m.validateOpts())
		if err != nil {
			return false, 0, err
		}
		if subtle.ConstantTimeCompare([]byte(generated), []byte(code)) == 1 {
			return true, step, nil
		}
	}
	return false, 0, nil
}

// Code returns the code for secret at t.
func (m *totpManager) Code(secret string, t time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, t, m.validateOpts())
}

func (m *totpManager) validateOpts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    uint(m.config.Period),
		Skew:      uint(m.config.Skew),
		Digits:    m.digits(),
		Algorithm: otp.AlgorithmSHA1,
	}
}

func isNumericString(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
