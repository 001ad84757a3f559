package authcore

import (
	"context"
	"time"
)

// Role is one of the closed set of account roles. The hierarchy level is
// fixed at compile time; there is no dynamic role registry.
type Role string

const (
	// RoleEmployee is an exported constant or variable used by the security engine.
	RoleEmployee Role = "employee"
	// RoleManager is an exported constant or variable used by the security engine.
	RoleManager Role = "manager"
	// RoleAdmin is an exported constant or variable used by the security engine.
	RoleAdmin Role = "admin"
	// RoleCorrectionsSupervisor is an exported constant or variable used by the security engine.
	RoleCorrectionsSupervisor Role = "corrections_supervisor"
)

// Level returns the hierarchy rank of the role: employee(1), manager(2),
// admin and corrections_supervisor(3). Unknown roles rank 0.
func (r Role) Level() int {
	switch r {
	case RoleEmployee:
		return 1
	case RoleManager:
		return 2
	case RoleAdmin, RoleCorrectionsSupervisor:
		return 3
	default:
		return 0
	}
}

// Valid reports whether r is a member of the closed role set.
func (r Role) Valid() bool {
	return r.Level() > 0
}

// AtLeast reports whether r ranks at or above required. Callers use it for
// request-time authorization against the session's role snapshot.
func (r Role) AtLeast(required Role) bool {
	return r.Valid() && required.Valid() && r.Level() >= required.Level()
}

// Account is the credential record owned by the caller's account store.
// The engine mutates it only through SaveAccount on password changes and
// status changes; it never deletes accounts (deactivate instead, so
// historical audit entries keep a valid actor).
type Account struct {
	Username           string
	PasswordHash       string
	Role               Role
	Active             bool
	MustChangePassword bool
	PasswordSetAt      time.Time
}

// AccountStore is the interface callers implement to connect authcore to
// their account database. GetAccount returns [ErrAccountNotFound] for an
// unknown username; any other error is treated as a retryable storage fault.
// SaveAccount must apply the update atomically per account. Password history
// is bounded: AppendPasswordHistory trims to the retention limit, newest
// first, and PasswordHistory returns at most limit entries in that order.
type AccountStore interface {
	GetAccount(ctx context.Context, username string) (Account, error)
	CreateAccount(ctx context.Context, account Account) error
	SaveAccount(ctx context.Context, account Account) error
	PasswordHistory(ctx context.Context, username string, limit int) ([]string, error)
	AppendPasswordHistory(ctx context.Context, username, hash string, limit int) error
}

// LoginResult is returned by [Engine.Login] on success.
//
// MustChangePassword is set when the password aged past the expiry window:
// the session exists, but the surrounding application is responsible for
// restricting it to the password-change operation until cleared.
type LoginResult struct {
	Token              string
	Username           string
	Role               Role
	MustChangePassword bool
}

// AuthResult is returned by [Engine.ValidateSession]. Role is the snapshot
// taken at session creation; a later role change on the account applies only
// to sessions created afterward.
type AuthResult struct {
	Username           string
	Role               Role
	MustChangePassword bool
}

// SessionInfo is the read-only session view returned by [Engine.ListSessions].
type SessionInfo struct {
	Token      string
	Username   string
	Role       Role
	CreatedAt  time.Time
	LastActive time.Time
}

// RegisterAccountRequest is the input for [Engine.RegisterAccount].
// New accounts start inactive pending approval and must change their
// password at first login.
type RegisterAccountRequest struct {
	Username string
	Password string
	Role     Role
}
