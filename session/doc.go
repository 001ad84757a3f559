// Package session implements the Redis-backed store for short-lived
// authenticated sessions: opaque-token records with an idle and an absolute
// deadline, per-user revocation, and a compact binary wire encoding.
//
// Expiry is lazy: a session dies at its next Touch once either deadline has
// passed, and the Redis key TTL is kept at the stricter of the two windows so
// abandoned records disappear on their own.
package session
