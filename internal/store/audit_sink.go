package store

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/MrEthical07/onboardAuth/internal/audit"
)

// AuditSink persists MFA events to mfa_audit_log and ignores the rest.
type AuditSink struct {
	store  *Store
	logger *zap.Logger
}

// NewAuditSink returns a sink writing through s.
func NewAuditSink(s *Store, logger *zap.Logger) *AuditSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditSink{store: s, logger: logger}
}

func (a *AuditSink) Emit(ctx context.Context, event audit.Event) {
	if !event.IsMFA() || event.AccountID == "" {
		return
	}
	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	detail := event.Error
	if len(event.Metadata) > 0 {
		if raw, err := json.Marshal(event.Metadata); err == nil {
			if detail != "" {
				detail += " "
			}
			detail += string(raw)
		}
	}

	err := a.store.AppendAudit(ctx, AuditEntry{
		AccountID:     event.AccountID,
		Event:         strings.TrimPrefix(event.EventType, audit.MFAPrefix),
		Success:       event.Success,
		IP:            event.IP,
		UserAgentHash: event.UserAgentHash,
		Detail:        detail,
		CreatedAt:     Millis(ts),
	})
	if err != nil {
		a.logger.Error("persist mfa audit entry", zap.String("event", event.EventType), zap.Error(err))
	}
}
