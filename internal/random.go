package internal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
)

const sessionTokenSize = 32

// SessionToken is the raw entropy behind an opaque session identifier.
// 256 bits from crypto/rand: guessing is computationally infeasible and the
// value is never derived from timestamps, usernames, or other predictable
// state.
type SessionToken [sessionTokenSize]byte

// NewSessionToken draws a fresh random token.
func NewSessionToken() (SessionToken, error) {
	var token SessionToken
	_, err := rand.Read(token[:])
	return token, err
}

// String renders the token base64url without padding, the form carried by
// the surrounding transport.
func (t SessionToken) String() string {
	return base64.RawURLEncoding.EncodeToString(t[:])
}

// ParseSessionToken validates the transport form of a token.
func ParseSessionToken(token string) (SessionToken, error) {
	var out SessionToken

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return out, err
	}
	if len(raw) != len(out) {
		return out, errors.New("invalid session token size")
	}

	copy(out[:], raw)
	return out, nil
}
