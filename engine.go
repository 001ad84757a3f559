package authcore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/radiotrack/authcore/internal"
	"github.com/radiotrack/authcore/internal/lockout"
	"github.com/radiotrack/authcore/password"
	"github.com/radiotrack/authcore/policy"
	"github.com/radiotrack/authcore/session"
)

// Engine orchestrates credential verification, brute-force lockout, session
// lifecycle, and password-aging policy. Construct it through [Builder.Build];
// after that all methods are safe for concurrent use.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config       Config
	accounts     AccountStore
	sessionStore *session.Store
	lockouts     *lockout.Tracker
	policy       *policy.Checker
	passwordHash *password.Hasher
	audit        *auditDispatcher
	metrics      *Metrics
	nowFn        func() time.Time

	// dummyHash is verified against for unknown usernames so the response
	// shape and latency match a real credential check.
	dummyHash string
}

// Close drains and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns the number of audit events discarded under
// dispatcher backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Login authenticates a username/password pair and creates a session.
//
// Expected rejections are sentinel errors: [ErrInvalidCredentials] for a bad
// password and for an unknown username alike, [*LockoutError] (unwrapping to
// [ErrAccountLocked]) while a lock is active, [ErrAccountDisabled] for a
// deactivated account. An aged password does not reject the login; the
// result carries MustChangePassword and the surrounding application must
// restrict that session to the password-change operation.
func (e *Engine) Login(ctx context.Context, username, passwordPlain string) (*LoginResult, error) {
	if e == nil || e.passwordHash == nil || e.accounts == nil {
		return nil, ErrEngineNotReady
	}

	now := e.nowFn()

	// Lockout is checked before any credential work so a locked account
	// leaks nothing about whether the password was otherwise correct.
	state, err := e.lockouts.Status(ctx, username)
	if err != nil {
		return nil, err
	}
	if state.Locked(now) {
		e.metricInc(MetricLoginLocked)
		lockErr := &LockoutError{RetryAfter: state.LockedUntil.Sub(now)}
		e.emitAudit(ctx, auditEventLoginFailure, false, username, "", ErrAccountLocked, func() map[string]string {
			return map[string]string{
				"reason": "account_locked",
			}
		})
		return nil, lockErr
	}
	if state.Expired(now) {
		// The lock lapses on this touch; the counter resets and the
		// attempt is evaluated normally.
		if err := e.lockouts.Clear(ctx, username); err != nil {
			return nil, err
		}
	}

	account, known, err := e.resolveAccount(ctx, username)
	if err != nil {
		return nil, err
	}

	if passwordPlain == "" {
		return nil, e.failLogin(ctx, username, known, now, "empty_password")
	}

	ok, err := e.passwordHash.Verify(passwordPlain, account.PasswordHash)
	if err != nil {
		// Malformed stored hash is an integrity fault, never an
		// authentication outcome.
		return nil, err
	}
	if !ok || !known {
		reason := "password_mismatch"
		if !known {
			reason = "account_not_found"
		}
		return nil, e.failLogin(ctx, username, known, now, reason)
	}

	if err := e.lockouts.Clear(ctx, username); err != nil {
		return nil, err
	}

	if !account.Active {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, username, "", ErrAccountDisabled, func() map[string]string {
			return map[string]string{
				"reason": "account_disabled",
			}
		})
		return nil, ErrAccountDisabled
	}

	if needsRehash, rehashErr := e.passwordHash.NeedsRehash(account.PasswordHash); rehashErr == nil && needsRehash {
		if upgraded, hashErr := e.passwordHash.Hash(passwordPlain); hashErr == nil {
			// Rehash update is best-effort and must not block successful login.
			account.PasswordHash = upgraded
			if saveErr := e.accounts.SaveAccount(ctx, account); saveErr != nil {
				log.Print("authcore: password hash upgrade update failed")
			}
		} else {
			log.Print("authcore: password hash upgrade generation failed")
		}
	}
	passwordPlain = ""

	mustChange := account.MustChangePassword
	if !mustChange && e.policy.Expired(account.PasswordSetAt, now) {
		mustChange = true
		e.metricInc(MetricPasswordExpiredForcedChange)
		e.emitAudit(ctx, auditEventPasswordExpiredForced, true, username, "", nil, nil)

		// Persist the flag so the forced change survives this session.
		account.MustChangePassword = true
		if saveErr := e.accounts.SaveAccount(ctx, account); saveErr != nil {
			log.Print("authcore: must-change flag update failed")
		}
	}

	sess, token, err := e.createSession(ctx, account, mustChange, now)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, username, "", err, func() map[string]string {
			return map[string]string{
				"reason": "session_create_failed",
			}
		})
		return nil, err
	}

	e.metricInc(MetricSessionCreated)
	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, username, sessionFingerprint(token), nil, nil)

	return &LoginResult{
		Token:              token,
		Username:           sess.Username,
		Role:               Role(sess.Role),
		MustChangePassword: mustChange,
	}, nil
}

// ValidateSession authorizes one authenticated request: it touches the
// session, sliding the idle window and enforcing the absolute deadline.
// [ErrSessionExpired] and [ErrSessionNotFound] both force re-authentication;
// they are distinct only for audit and diagnostics.
func (e *Engine) ValidateSession(ctx context.Context, token string) (*AuthResult, error) {
	if e == nil || e.sessionStore == nil {
		return nil, ErrEngineNotReady
	}
	if e.metrics != nil && e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { e.metrics.Observe(MetricValidateLatency, time.Since(start)) }()
	}
	if token == "" {
		e.metricInc(MetricValidateFailure)
		return nil, ErrSessionNotFound
	}

	sess, err := e.sessionStore.Touch(ctx, token)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrExpired):
			e.metricInc(MetricValidateFailure)
			e.metricInc(MetricSessionExpired)
			e.emitAudit(ctx, auditEventSessionExpired, false, "", sessionFingerprint(token), ErrSessionExpired, nil)
			return nil, ErrSessionExpired
		case errors.Is(err, session.ErrNotFound):
			e.metricInc(MetricValidateFailure)
			return nil, ErrSessionNotFound
		default:
			return nil, err
		}
	}

	e.metricInc(MetricValidateSuccess)

	return &AuthResult{
		Username:           sess.Username,
		Role:               Role(sess.Role),
		MustChangePassword: sess.MustChangePassword,
	}, nil
}

// Logout revokes one session. Revoking an already-absent session succeeds.
func (e *Engine) Logout(ctx context.Context, token string) error {
	if e == nil || e.sessionStore == nil {
		return ErrEngineNotReady
	}

	err := e.sessionStore.Delete(ctx, token)
	if err == nil {
		e.metricInc(MetricLogout)
		e.metricInc(MetricSessionInvalidated)
	}
	e.emitAudit(ctx, auditEventLogout, err == nil, "", sessionFingerprint(token), err, nil)
	return err
}

// LogoutAll revokes every session for a username ("log out everywhere").
func (e *Engine) LogoutAll(ctx context.Context, username string) error {
	if e == nil || e.sessionStore == nil {
		return ErrEngineNotReady
	}

	err := e.sessionStore.DeleteAllForUser(ctx, username)
	if err == nil {
		e.metricInc(MetricLogoutAll)
		e.metricInc(MetricSessionInvalidated)
	}
	e.emitAudit(ctx, auditEventLogoutAll, err == nil, username, "", err, nil)
	return err
}

// ChangePassword verifies the old password, validates the new one against
// the complexity rules and the retained history, rotates the hash, and
// revokes every session for the account.
func (e *Engine) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error {
	if e == nil || e.passwordHash == nil || e.accounts == nil {
		return ErrEngineNotReady
	}
	if username == "" || oldPassword == "" || newPassword == "" {
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, username, "", ErrPasswordPolicy, func() map[string]string {
			return map[string]string{
				"reason": "invalid_input",
			}
		})
		return ErrPasswordPolicy
	}

	account, err := e.accounts.GetAccount(ctx, username)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			e.emitAudit(ctx, auditEventPasswordChangeFailure, false, username, "", ErrAccountNotFound, func() map[string]string {
				return map[string]string{
					"reason": "account_not_found",
				}
			})
			return ErrAccountNotFound
		}
		return fmt.Errorf("%w: %v", ErrAccountStoreUnavailable, err)
	}

	oldOK, err := e.passwordHash.Verify(oldPassword, account.PasswordHash)
	if err != nil {
		return err
	}
	if !oldOK {
		e.metricInc(MetricPasswordChangeInvalidOld)
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, username, "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"reason": "invalid_old_password",
			}
		})
		return ErrInvalidCredentials
	}

	return e.rotatePassword(ctx, account, newPassword, false, "")
}

// rotatePassword is the shared tail of ChangePassword and AdminResetPassword:
// policy and history validation, re-hash, history push, session revocation.
func (e *Engine) rotatePassword(ctx context.Context, account Account, newPassword string, adminReset bool, actor string) error {
	now := e.nowFn()
	username := account.Username

	eventType := auditEventPasswordChanged
	failureEvent := auditEventPasswordChangeFailure
	if adminReset {
		eventType = auditEventAdminPasswordReset
	}

	auditFailure := func(err error, reason string) {
		meta := func() map[string]string {
			return map[string]string{
				"reason": reason,
			}
		}
		if adminReset {
			e.emitAdminAudit(ctx, failureEvent, false, username, actor, err, meta)
		} else {
			e.emitAudit(ctx, failureEvent, false, username, "", err, meta)
		}
	}

	// The current hash is never in the retained history; it is checked
	// separately so reuse of the standing password is also rejected.
	same, err := e.passwordHash.Verify(newPassword, account.PasswordHash)
	if err != nil {
		return err
	}
	if same {
		e.metricInc(MetricPasswordChangeReuseRejected)
		auditFailure(ErrPasswordReuse, "reuse_current")
		return ErrPasswordReuse
	}

	history, err := e.accounts.PasswordHistory(ctx, username, e.config.Policy.HistoryLimit)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAccountStoreUnavailable, err)
	}

	violations, err := e.policy.Validate(newPassword, history)
	if err != nil {
		return err
	}
	if len(violations) > 0 {
		for _, v := range violations {
			if v == policy.ViolationHistoryReuse {
				e.metricInc(MetricPasswordChangeReuseRejected)
				auditFailure(ErrPasswordReuse, "reuse_history")
				return ErrPasswordReuse
			}
		}
		e.metricInc(MetricPasswordChangePolicyRejected)
		auditFailure(ErrPasswordPolicy, violationList(violations))
		return fmt.Errorf("%w: %s", ErrPasswordPolicy, violationList(violations))
	}

	newHash, err := e.passwordHash.Hash(newPassword)
	if err != nil {
		return err
	}
	newPassword = ""

	oldHash := account.PasswordHash
	account.PasswordHash = newHash
	account.PasswordSetAt = now
	account.MustChangePassword = adminReset

	if err := e.accounts.SaveAccount(ctx, account); err != nil {
		auditFailure(ErrAccountStoreUnavailable, "save_failed")
		return fmt.Errorf("%w: %v", ErrAccountStoreUnavailable, err)
	}

	if err := e.accounts.AppendPasswordHistory(ctx, username, oldHash, e.config.Policy.HistoryLimit); err != nil {
		auditFailure(ErrAccountStoreUnavailable, "history_append_failed")
		return fmt.Errorf("%w: %v", ErrAccountStoreUnavailable, err)
	}

	// A credential reset must not leave an attacker's stolen session alive.
	if err := e.sessionStore.DeleteAllForUser(ctx, username); err != nil {
		log.Print("authcore: session invalidation failed after password change")
		auditFailure(ErrSessionInvalidationFailed, "session_invalidation_failed")
		return errors.Join(ErrSessionInvalidationFailed, err)
	}
	e.metricInc(MetricSessionInvalidated)

	// Lockout reset is best-effort and must not block the completed change.
	if err := e.lockouts.Clear(ctx, username); err != nil {
		log.Print("authcore: lockout reset failed after password change")
	}

	if adminReset {
		e.metricInc(MetricAdminPasswordReset)
		e.emitAdminAudit(ctx, eventType, true, username, actor, nil, nil)
	} else {
		e.metricInc(MetricPasswordChangeSuccess)
		e.emitAudit(ctx, eventType, true, username, "", nil, nil)
	}

	return nil
}

// failLogin records one failed attempt against the lockout tracker and
// returns the generic invalid-credentials rejection. The tracker is keyed by
// the attempted identity even when no such account exists, so the failure
// path for unknown usernames is the same code path with the same latency.
func (e *Engine) failLogin(ctx context.Context, username string, known bool, now time.Time, reason string) error {
	state, err := e.lockouts.RecordFailure(ctx, username, now)
	if err != nil {
		return err
	}

	if state.Fails == e.config.Lockout.Threshold && !state.LockedUntil.IsZero() {
		e.metricInc(MetricLockoutTriggered)
		e.emitAudit(ctx, auditEventLockoutTriggered, true, username, "", nil, func() map[string]string {
			return map[string]string{
				"failures": fmt.Sprintf("%d", state.Fails),
			}
		})
	}

	e.metricInc(MetricLoginFailure)
	auditName := username
	if !known {
		auditName = ""
	}
	e.emitAudit(ctx, auditEventLoginFailure, false, auditName, "", ErrInvalidCredentials, func() map[string]string {
		return map[string]string{
			"identifier": username,
			"reason":     reason,
		}
	})

	return ErrInvalidCredentials
}

// resolveAccount fetches the credential record, substituting a dummy record
// for unknown usernames so the subsequent verify has the same cost.
func (e *Engine) resolveAccount(ctx context.Context, username string) (Account, bool, error) {
	account, err := e.accounts.GetAccount(ctx, username)
	if err == nil {
		return account, true, nil
	}
	if errors.Is(err, ErrAccountNotFound) {
		return Account{Username: username, PasswordHash: e.dummyHash}, false, nil
	}
	return Account{}, false, fmt.Errorf("%w: %v", ErrAccountStoreUnavailable, err)
}

func (e *Engine) createSession(ctx context.Context, account Account, mustChange bool, now time.Time) (*session.Session, string, error) {
	tokenValue, err := internal.NewSessionToken()
	if err != nil {
		return nil, "", err
	}
	token := tokenValue.String()

	sess := &session.Session{
		ID:                 token,
		Username:           account.Username,
		Role:               string(account.Role),
		MustChangePassword: mustChange,
		CreatedAt:          now.Unix(),
		LastActive:         now.Unix(),
	}

	if err := e.sessionStore.Save(ctx, sess); err != nil {
		return nil, "", err
	}

	return sess, token, nil
}

func violationList(violations []policy.Violation) string {
	out := ""
	for i, v := range violations {
		if i > 0 {
			out += ","
		}
		out += string(v)
	}
	return out
}
