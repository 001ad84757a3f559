// Package authcore is the account-security engine of the RadioTrack
// facility inventory system: credential verification, brute-force lockout,
// session lifecycle, and password-aging policy.
//
// The package is designed for concurrent request handlers: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build]. Per-account lockout state and sessions live in Redis; the
// account records themselves are owned by the caller and reached through the
// [AccountStore] interface.
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config],
// and value types (LoginResult, AuthResult, MetricsSnapshot). Session
// encoding, lockout bookkeeping, and token generation live under internal/
// or in the session and password subpackages.
//
// # What this package must NOT do
//
//   - Expose Redis clients, internal stores, or encoding details in its
//     public API.
//   - Decide user-facing messaging: expected rejections are sentinel errors
//     and the caller owns presentation. Invalid-credential rejections never
//     reveal whether the username or the password was wrong.
//   - Carry the session token over the wire — the surrounding transport owns
//     cookie/header framing.
//
// # Performance contract
//
// ValidateSession is the hot path: one Redis GET plus one conditional SET to
// slide the idle window. Login is allowed the argon2 hashing cost plus a
// handful of Redis round-trips.
package authcore
