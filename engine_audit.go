package authcore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/google/uuid"
	"github.com/radiotrack/authcore/internal/lockout"
	"github.com/radiotrack/authcore/password"
	"github.com/radiotrack/authcore/session"
)

const (
	auditEventLoginSuccess            = "login_success"
	auditEventLoginFailure            = "login_failure"
	auditEventLockoutTriggered        = "lockout_triggered"
	auditEventLockoutCleared          = "lockout_cleared"
	auditEventLogout                  = "logout"
	auditEventLogoutAll               = "logout_all"
	auditEventSessionExpired          = "session_expired"
	auditEventPasswordChanged         = "password_changed"
	auditEventPasswordChangeFailure   = "password_change_failure"
	auditEventPasswordExpiredForced   = "password_expired_forced_change"
	auditEventAdminPasswordReset      = "admin_password_reset"
	auditEventAccountRegistered       = "account_registered"
	auditEventAccountRegisterFailure  = "account_register_failure"
	auditEventAccountStatusChange     = "account_status_change"
)

// AuditErrorCode defines a public type used by authcore APIs.
//
// AuditErrorCode instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditErrorCode string

const (
	auditErrInvalidCredentials  AuditErrorCode = "invalid_credentials"
	auditErrAccountLocked       AuditErrorCode = "account_locked"
	auditErrAccountDisabled     AuditErrorCode = "account_disabled"
	auditErrAccountNotFound     AuditErrorCode = "account_not_found"
	auditErrAccountExists       AuditErrorCode = "duplicate"
	auditErrRoleInvalid         AuditErrorCode = "role_invalid"
	auditErrPasswordPolicy      AuditErrorCode = "password_policy"
	auditErrPasswordReuse       AuditErrorCode = "password_reuse"
	auditErrSessionNotFound     AuditErrorCode = "session_not_found"
	auditErrSessionExpired      AuditErrorCode = "session_expired"
	auditErrSessionInvalidation AuditErrorCode = "session_invalidation_failed"
	auditErrUnavailable         AuditErrorCode = "backend_unavailable"
	auditErrIntegrity           AuditErrorCode = "integrity_error"
	auditErrInternal            AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	username string,
	sessionFP string,
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
		EventID:   uuid.NewString(),
		Timestamp: e.nowFn().UTC(),
		EventType: eventType,
		Username:  username,
		SessionID: sessionFP,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitAdminAudit(
	ctx context.Context,
	eventType string,
	success bool,
	username string,
	actor string,
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
		EventID:   uuid.NewString(),
		Timestamp: e.nowFn().UTC(),
		EventType: eventType,
		Username:  username,
		Actor:     actor,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

// sessionFingerprint derives a short stable identifier from a session token
// for audit and diagnostics. The raw token never reaches the audit trail.
func sessionFingerprint(token string) string {
	if token == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:6])
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrAccountLocked):
		return auditErrAccountLocked
	case errors.Is(err, ErrAccountDisabled):
		return auditErrAccountDisabled
	case errors.Is(err, ErrAccountNotFound):
		return auditErrAccountNotFound
	case errors.Is(err, ErrAccountExists):
		return auditErrAccountExists
	case errors.Is(err, ErrRoleInvalid):
		return auditErrRoleInvalid
	case errors.Is(err, ErrPasswordReuse):
		return auditErrPasswordReuse
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrSessionExpired):
		return auditErrSessionExpired
	case errors.Is(err, ErrSessionNotFound):
		return auditErrSessionNotFound
	case errors.Is(err, ErrSessionInvalidationFailed):
		return auditErrSessionInvalidation
	case errors.Is(err, ErrAccountStoreUnavailable),
		errors.Is(err, lockout.ErrUnavailable),
		errors.Is(err, session.ErrRedisUnavailable):
		return auditErrUnavailable
	case errors.Is(err, password.ErrHashMalformed),
		errors.Is(err, session.ErrCorrupt):
		return auditErrIntegrity
	default:
		return auditErrInternal
	}
}
