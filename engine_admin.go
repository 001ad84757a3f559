package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// AdminUnlock clears an active or lapsed lockout for username. actor is the
// administrator performing the unlock and is recorded in the audit trail.
// Unlocking an account that is not locked succeeds and resets the failure
// counter.
func (e *Engine) AdminUnlock(ctx context.Context, username, actor string) error {
	if e == nil || e.lockouts == nil {
		return ErrEngineNotReady
	}

	err := e.lockouts.Clear(ctx, username)
	if err == nil {
		e.metricInc(MetricLockoutCleared)
	}
	e.emitAdminAudit(ctx, auditEventLockoutCleared, err == nil, username, actor, err, nil)
	return err
}

// AdminResetPassword sets a new password for username without knowledge of
// the old one. The new password is still held to the complexity and history
// rules, the account is flagged must-change so the user rotates it at next
// login, and every existing session is revoked.
func (e *Engine) AdminResetPassword(ctx context.Context, username, newPassword, actor string) error {
	if e == nil || e.passwordHash == nil || e.accounts == nil {
		return ErrEngineNotReady
	}
	if username == "" || newPassword == "" {
		e.emitAdminAudit(ctx, auditEventPasswordChangeFailure, false, username, actor, ErrPasswordPolicy, func() map[string]string {
			return map[string]string{
				"reason": "invalid_input",
			}
		})
		return ErrPasswordPolicy
	}

	account, err := e.accounts.GetAccount(ctx, username)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			e.emitAdminAudit(ctx, auditEventPasswordChangeFailure, false, username, actor, ErrAccountNotFound, nil)
			return ErrAccountNotFound
		}
		return fmt.Errorf("%w: %v", ErrAccountStoreUnavailable, err)
	}

	return e.rotatePassword(ctx, account, newPassword, true, actor)
}

// SetAccountActive activates or deactivates username. Deactivation revokes
// every session immediately; accounts are never deleted, so historical audit
// entries keep a resolvable subject.
func (e *Engine) SetAccountActive(ctx context.Context, username string, active bool, actor string) error {
	if e == nil || e.accounts == nil {
		return ErrEngineNotReady
	}

	account, err := e.accounts.GetAccount(ctx, username)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			e.emitAdminAudit(ctx, auditEventAccountStatusChange, false, username, actor, ErrAccountNotFound, nil)
			return ErrAccountNotFound
		}
		return fmt.Errorf("%w: %v", ErrAccountStoreUnavailable, err)
	}

	if account.Active == active {
		// Idempotent: no save, no session churn, but the attempt is audited.
		e.emitAdminAudit(ctx, auditEventAccountStatusChange, true, username, actor, nil, func() map[string]string {
			return map[string]string{
				"active":  fmt.Sprintf("%t", active),
				"changed": "false",
			}
		})
		return nil
	}

	account.Active = active
	if err := e.accounts.SaveAccount(ctx, account); err != nil {
		e.emitAdminAudit(ctx, auditEventAccountStatusChange, false, username, actor, ErrAccountStoreUnavailable, nil)
		return fmt.Errorf("%w: %v", ErrAccountStoreUnavailable, err)
	}

	if !active {
		// A deactivated account must not keep authenticating through
		// sessions created while it was active.
		if err := e.sessionStore.DeleteAllForUser(ctx, username); err != nil {
			e.emitAdminAudit(ctx, auditEventAccountStatusChange, false, username, actor, ErrSessionInvalidationFailed, nil)
			return errors.Join(ErrSessionInvalidationFailed, err)
		}
		e.metricInc(MetricSessionInvalidated)
	}

	e.metricInc(MetricAccountStatusChange)
	e.emitAdminAudit(ctx, auditEventAccountStatusChange, true, username, actor, nil, func() map[string]string {
		return map[string]string{
			"active":  fmt.Sprintf("%t", active),
			"changed": "true",
		}
	})
	return nil
}

// RegisterAccount creates a new account record. The account starts inactive
// pending approval through [Engine.SetAccountActive], and the initial
// password is flagged must-change so the subject rotates it at first login.
func (e *Engine) RegisterAccount(ctx context.Context, req RegisterAccountRequest, actor string) error {
	if e == nil || e.passwordHash == nil || e.accounts == nil {
		return ErrEngineNotReady
	}

	auditFailure := func(err error, reason string) {
		e.emitAdminAudit(ctx, auditEventAccountRegisterFailure, false, req.Username, actor, err, func() map[string]string {
			return map[string]string{
				"reason": reason,
			}
		})
	}

	if req.Username == "" {
		auditFailure(ErrAccountNotFound, "empty_username")
		return ErrAccountNotFound
	}
	if !req.Role.Valid() {
		auditFailure(ErrRoleInvalid, "role_invalid")
		return ErrRoleInvalid
	}

	violations, err := e.policy.Validate(req.Password, nil)
	if err != nil {
		return err
	}
	if len(violations) > 0 {
		auditFailure(ErrPasswordPolicy, violationList(violations))
		return fmt.Errorf("%w: %s", ErrPasswordPolicy, violationList(violations))
	}

	hash, err := e.passwordHash.Hash(req.Password)
	if err != nil {
		return err
	}
	req.Password = ""

	account := Account{
		Username:           req.Username,
		PasswordHash:       hash,
		Role:               req.Role,
		Active:             false,
		MustChangePassword: true,
		PasswordSetAt:      e.nowFn(),
	}

	if err := e.accounts.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, ErrAccountExists) {
			auditFailure(ErrAccountExists, "duplicate")
			return ErrAccountExists
		}
		auditFailure(ErrAccountStoreUnavailable, "store_unavailable")
		return fmt.Errorf("%w: %v", ErrAccountStoreUnavailable, err)
	}

	e.metricInc(MetricAccountRegistered)
	e.emitAdminAudit(ctx, auditEventAccountRegistered, true, req.Username, actor, nil, func() map[string]string {
		return map[string]string{
			"role": string(req.Role),
		}
	})
	return nil
}

// ListSessions returns a read-only view of the live sessions for username.
// The listing does not slide idle windows; lapsed sessions are omitted.
func (e *Engine) ListSessions(ctx context.Context, username string) ([]SessionInfo, error) {
	if e == nil || e.sessionStore == nil {
		return nil, ErrEngineNotReady
	}

	ids, err := e.sessionStore.ActiveSessionIDs(ctx, username)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	sessions, err := e.sessionStore.GetManyReadOnly(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, SessionInfo{
			Token:      sess.ID,
			Username:   sess.Username,
			Role:       Role(sess.Role),
			CreatedAt:  timeFromUnix(sess.CreatedAt),
			LastActive: timeFromUnix(sess.LastActive),
		})
	}
	return out, nil
}

func timeFromUnix(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}
