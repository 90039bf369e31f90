package onboardAuth

import (
	"context"

	"github.com/MrEthical07/onboardAuth/internal"
	internalflows "github.com/MrEthical07/onboardAuth/internal/flows"
)

// RegenerateBackupCodes discards the account's remaining backup codes and
// returns a fresh set. A current TOTP code is required.
func (e *Engine) RegenerateBackupCodes(ctx context.Context, accountID, totpCode string) ([]string, error) {
	return internalflows.RunRegenerateBackupCodes(ctx, accountID, totpCode, e.backupCodeFlowDeps())
}

// BackupCodesRemaining returns how many unused backup codes the account has.
func (e *Engine) BackupCodesRemaining(ctx context.Context, accountID string) (int, error) {
	if e == nil || e.store == nil {
		return 0, ErrEngineNotReady
	}
	n, err := e.store.BackupCodeCount(ctx, accountID)
	if err != nil {
		return 0, e.storeErr(err, nil)
	}
	return n, nil
}

func (e *Engine) backupCodeFlowDeps() internalflows.BackupCodeDeps {
	var cfg Config
	if e != nil {
		cfg = e.config
	}

	deps := internalflows.BackupCodeDeps{
		Count:   cfg.TOTP.BackupCodeCount,
		NewCode: internal.NewBackupCode,
		MetricInc: func(id int) {
			e.metricInc(MetricID(id))
		},
		EmitAudit: e.emitAudit,
		Metrics: internalflows.BackupCodeMetrics{
			BackupCodeRegenerated: int(MetricBackupCodeRegenerated),
		},
		Events: internalflows.BackupCodeEvents{
			BackupCodesRegenerated: auditEventMFABackupCodesNew,
		},
		Errors: internalflows.BackupCodeErrors{
			EngineNotReady:  ErrEngineNotReady,
			AccountNotFound: ErrAccountNotFound,
			NotEnrolled:     ErrMFANotEnrolled,
			MFACodeInvalid:  ErrMFACodeInvalid,
			Unavailable: func(err error) error {
				return e.storeErr(err, nil)
			},
		},
	}

	if e != nil && e.store != nil && e.totp != nil {
		deps.GetAccountByID = func(ctx context.Context, accountID string) (*internalflows.BackupCodeAccount, error) {
			acct, err := e.store.AccountByID(ctx, accountID)
			if err != nil {
				return nil, e.storeErr(err, ErrAccountNotFound)
			}
			return &internalflows.BackupCodeAccount{
				ID:       acct.ID,
				Enrolled: enrolled(acct),
				Secret:   acct.MFASecret,
			}, nil
		}
		deps.VerifyTOTP = e.verifyTOTPOnly
		deps.ReplaceBackupCodes = e.store.ReplaceBackupCodes
	}

	return deps
}
