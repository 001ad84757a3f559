// Package policy evaluates candidate passwords against configured
// complexity rules, a bounded password-history set, and the password-aging
// window.
//
// Non-conformance is a normal outcome, not a failure: Validate returns the
// list of violated rule identifiers and errors only when a retained history
// hash is unreadable.
package policy
