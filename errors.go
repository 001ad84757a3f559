package authcore

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidCredentials is returned for a bad password and for an unknown
	// username alike; callers must not distinguish the two.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is an exported constant or variable used by the security engine.
	ErrAccountLocked = errors.New("account locked")
	// ErrAccountDisabled is an exported constant or variable used by the security engine.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrAccountNotFound is an exported constant or variable used by the security engine.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountExists is an exported constant or variable used by the security engine.
	ErrAccountExists = errors.New("account already exists")
	// ErrRoleInvalid is an exported constant or variable used by the security engine.
	ErrRoleInvalid = errors.New("invalid role")
	// ErrPasswordPolicy is an exported constant or variable used by the security engine.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrPasswordReuse is an exported constant or variable used by the security engine.
	ErrPasswordReuse = errors.New("password matches a retained prior password")
	// ErrSessionNotFound is an exported constant or variable used by the security engine.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired is an exported constant or variable used by the security engine.
	// Callers must treat it exactly like ErrSessionNotFound (force
	// re-authentication); it exists for audit and diagnostics only.
	ErrSessionExpired = errors.New("session expired")
	// ErrSessionInvalidationFailed is an exported constant or variable used by the security engine.
	ErrSessionInvalidationFailed = errors.New("session invalidation failed")
	// ErrAccountStoreUnavailable marks retryable account-store faults. The
	// engine performs no automatic retry; the caller decides.
	ErrAccountStoreUnavailable = errors.New("account store unavailable")
	// ErrEngineNotReady is an exported constant or variable used by the security engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// LockoutError is the rejection returned while an account lock is active.
// It unwraps to [ErrAccountLocked] so callers can match with errors.Is,
// and carries the remaining lock duration for Retry-After style messaging.
type LockoutError struct {
	RetryAfter time.Duration
}

func (e *LockoutError) Error() string {
	return fmt.Sprintf("account locked, retry after %s", e.RetryAfter.Round(time.Second))
}

func (e *LockoutError) Unwrap() error {
	return ErrAccountLocked
}
