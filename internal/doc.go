// Package internal holds shared helpers that must not become part of the
// public authcore API surface: session token generation and other
// cross-package plumbing.
package internal
