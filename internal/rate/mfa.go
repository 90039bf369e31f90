package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultMFAMaxAttempts = 5
	defaultMFACooldown    = 5 * time.Minute
)

// MFAConfig holds thresholds for the MFA code limiter.
type MFAConfig struct {
	MaxAttempts int
	Cooldown    time.Duration
}

// MFALimiter counts failed TOTP and backup-code submissions per account.
type MFALimiter struct {
	redis       redis.UniversalClient
	maxAttempts int64
	cooldown    time.Duration
}

// NewMFALimiter creates an MFA limiter. Zero-value fields fall back to
// 5 attempts per 5 minutes.
func NewMFALimiter(redisClient redis.UniversalClient, cfg MFAConfig) *MFALimiter {
	max := cfg.MaxAttempts
	if max <= 0 {
		max = defaultMFAMaxAttempts
	}
	cd := cfg.Cooldown
	if cd <= 0 {
		cd = defaultMFACooldown
	}
	return &MFALimiter{redis: redisClient, maxAttempts: int64(max), cooldown: cd}
}

func mfaKey(accountID string) string {
	return "om:" + accountID
}

// Check returns ErrRateLimited when the account has no attempts left.
func (l *MFALimiter) Check(ctx context.Context, accountID string) error {
	return checkCounter(ctx, l.redis, mfaKey(accountID), l.maxAttempts)
}

// RecordFailure counts one failed code. It returns ErrRateLimited when this
// failure used the last attempt.
func (l *MFALimiter) RecordFailure(ctx context.Context, accountID string) error {
	count, err := incrementWithTTL(ctx, l.redis, mfaKey(accountID), l.cooldown)
	if err != nil {
		return err
	}
	if count >= l.maxAttempts {
		return ErrRateLimited
	}
	return nil
}

// Reset clears the counter after a successful verification.
func (l *MFALimiter) Reset(ctx context.Context, accountID string) error {
	if err := l.redis.Del(ctx, mfaKey(accountID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
