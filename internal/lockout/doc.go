// Package lockout tracks consecutive failed login attempts per account and
// trips a time-bounded lock when the configured threshold is reached.
//
// State lives in a Redis hash per account. The failure increment and the
// threshold comparison run inside one Lua script, so concurrent failures
// against the same account cannot race past the threshold. The lock expires
// lazily: there is no background timer, the next attempt observes the
// expired lock and resets the counter.
package lockout
