package authgate

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const (
	auditEventLoginSuccess       = "login_success"
	auditEventLoginFailure       = "login_failure"
	auditEventAccountCreated     = "account_created"
	auditEventAccountDuplicate   = "account_duplicate"
	auditEventAccountFailure     = "account_creation_failure"
	auditEventRecoveryRequest    = "recovery_request"
	auditEventRecoveryVerify     = "recovery_verify"
	auditEventRecoveryReset      = "recovery_reset"
	auditEventRateLimitTriggered = "rate_limit_triggered"
)

// AuditErrorCode is the stable error label carried in [AuditEvent.Error].
// Codes are coarser than the sentinel errors so sink consumers do not
// depend on message text.
type AuditErrorCode string

const (
	auditErrUnauthenticated    AuditErrorCode = "unauthenticated"
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrAccountNotFound    AuditErrorCode = "account_not_found"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrPasswordPolicy     AuditErrorCode = "password_policy"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrRecoveryInvalid    AuditErrorCode = "recovery_invalid"
	auditErrRecoveryExpired    AuditErrorCode = "recovery_expired"
	auditErrRecoveryUsed       AuditErrorCode = "recovery_used"
	auditErrRecoveryUnverified AuditErrorCode = "recovery_unverified"
	auditErrDisabled           AuditErrorCode = "feature_disabled"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	accountID int64,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if accountID != 0 {
		event.AccountID = strconv.FormatInt(accountID, 10)
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitRateLimit(
	ctx context.Context,
	scope string,
	metadataBuilder func() map[string]string,
) {
	e.metricInc(MetricRateLimitHit)
	e.emitAudit(ctx, auditEventRateLimitTriggered, false, 0, nil, func() map[string]string {
		base := map[string]string{
			"scope": scope,
		}
		if metadataBuilder == nil {
			return base
		}
		for k, v := range metadataBuilder() {
			base[k] = v
		}
		return base
	})
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrUnauthenticated):
		return auditErrUnauthenticated
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrAccountNotFound):
		return auditErrAccountNotFound
	case errors.Is(err, ErrDuplicateEmail):
		return auditErrDuplicate
	case errors.Is(err, ErrPasswordPolicy),
		errors.Is(err, ErrRegistrationInvalid):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrRecoveryRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrRecoveryCodeInvalid):
		return auditErrRecoveryInvalid
	case errors.Is(err, ErrRecoveryCodeExpired):
		return auditErrRecoveryExpired
	case errors.Is(err, ErrRecoveryCodeUsed):
		return auditErrRecoveryUsed
	case errors.Is(err, ErrRecoveryNotVerified):
		return auditErrRecoveryUnverified
	case errors.Is(err, ErrRecoveryDisabled),
		errors.Is(err, ErrRegistrationDisabled):
		return auditErrDisabled
	case errors.Is(err, ErrRecoveryUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
