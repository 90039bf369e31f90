package flows

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// BackupCodeLength is the length of a canonical backup code.
const BackupCodeLength = 8

type BackupCodeMetrics struct {
	BackupCodeRegenerated int
}

type BackupCodeEvents struct {
	BackupCodesRegenerated string
}

type BackupCodeErrors struct {
	EngineNotReady  error
	AccountNotFound error
	NotEnrolled     error
	MFACodeInvalid  error
	Unavailable     func(error) error
}

// BackupCodeAccount is the view of an account the backup code flows need.
type BackupCodeAccount struct {
	ID       string
	Enrolled bool
	Secret   string
}

type BackupCodeDeps struct {
	Count int

	GetAccountByID     func(context.Context, string) (*BackupCodeAccount, error)
	VerifyTOTP         func(ctx context.Context, accountID, secret, code string) (bool, error)
	NewCode            func() (string, error)
	ReplaceBackupCodes func(context.Context, string, []string) error

	MetricInc func(int)
	EmitAudit func(context.Context, string, bool, string, string, error, func() map[string]string)

	Metrics BackupCodeMetrics
	Events  BackupCodeEvents
	Errors  BackupCodeErrors
}

// RunRegenerateBackupCodes replaces every remaining backup code of an enrolled
// account after a valid TOTP code. A backup code cannot authorize its own
// replacement.
func RunRegenerateBackupCodes(ctx context.Context, accountID, totpCode string, deps BackupCodeDeps) ([]string, error) {
	normalizeBackupCodeDeps(&deps)
	if deps.GetAccountByID == nil || deps.VerifyTOTP == nil || deps.NewCode == nil || deps.ReplaceBackupCodes == nil {
		return nil, deps.Errors.EngineNotReady
	}

	acct, err := deps.GetAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !acct.Enrolled {
		return nil, deps.Errors.NotEnrolled
	}

	ok, err := deps.VerifyTOTP(ctx, acct.ID, acct.Secret, totpCode)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, deps.Errors.MFACodeInvalid
	}

	codes, hashes, err := GenerateBackupCodes(acct.ID, deps.Count, deps.NewCode)
	if err != nil {
		return nil, deps.Errors.Unavailable(err)
	}
	if err := deps.ReplaceBackupCodes(ctx, acct.ID, hashes); err != nil {
		return nil, deps.Errors.Unavailable(err)
	}

	deps.MetricInc(deps.Metrics.BackupCodeRegenerated)
	deps.EmitAudit(ctx, deps.Events.BackupCodesRegenerated, true, acct.ID, "", nil, func() map[string]string {
		return map[string]string{"method": "regenerate"}
	})
	return codes, nil
}

// GenerateBackupCodes returns count fresh codes in display form and their
// hashes bound to accountID, in the same order.
func GenerateBackupCodes(accountID string, count int, newCode func() (string, error)) ([]string, []string, error) {
	codes := make([]string, 0, count)
	hashes := make([]string, 0, count)
	for i := 0; i < count; i++ {
		raw, err := newCode()
		if err != nil {
			return nil, nil, err
		}
		canonical := CanonicalizeBackupCode(raw)
		codes = append(codes, canonical)
		hashes = append(hashes, BackupCodeHash(accountID, canonical))
	}
	return codes, hashes, nil
}

// FormatBackupCode splits a code in two groups for display.
func FormatBackupCode(code string) string {
	n := len(code)
	if n < 8 {
		return code
	}
	mid := n / 2
	return code[:mid] + "-" + code[mid:]
}

// CanonicalizeBackupCode trims, upper-cases and strips group separators so
// "abcd-1234", "ABCD 1234" and "ABCD1234" are the same code.
func CanonicalizeBackupCode(code string) string {
	s := strings.ToUpper(strings.TrimSpace(code))
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, " ", "")
	return s
}

// LooksLikeBackupCode reports whether a canonical code has backup code shape.
func LooksLikeBackupCode(canonical string) bool {
	if len(canonical) != BackupCodeLength {
		return false
	}
	for i := 0; i < len(canonical); i++ {
		c := canonical[i]
		if (c < '0' || c > '9') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}

// BackupCodeHash is the stored form of a canonical code: hex sha256 over the
// account id, a zero byte and the code.
func BackupCodeHash(accountID, canonicalCode string) string {
	data := make([]byte, 0, len(accountID)+1+len(canonicalCode))
	data = append(data, accountID...)
	data = append(data, 0)
	data = append(data, canonicalCode...)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func normalizeBackupCodeDeps(deps *BackupCodeDeps) {
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, string, error, func() map[string]string) {}
	}
	if deps.Errors.Unavailable == nil {
		deps.Errors.Unavailable = func(err error) error { return err }
	}
}
