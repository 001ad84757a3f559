// Package password implements one-way credential hashing for authcore.
//
// Hashes use argon2id in PHC string format. Every Hash call draws a fresh
// random salt, so identical passwords never produce identical stored hashes
// and hash equality cannot leak password reuse across accounts. Verify
// compares with constant-time semantics and fails only on malformed stored
// input ([ErrHashMalformed]), never on password content.
package password
