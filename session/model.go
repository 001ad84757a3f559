package session

// Session is the authenticated-session record stored in Redis. The role is a
// snapshot taken at creation time and stays authoritative for the session's
// lifetime even if the account's role changes afterward.
//
// Session instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Session struct {
	ID       string
	Username string
	Role     string

	MustChangePassword bool

	CreatedAt  int64
	LastActive int64
}
