package policy

import (
	"errors"
	"time"
	"unicode"
)

// Violation identifies a single violated password rule.
type Violation string

const (
	// ViolationTooShort is an exported constant or variable used by the policy evaluator.
	ViolationTooShort Violation = "min_length"
	// ViolationMissingUpper is an exported constant or variable used by the policy evaluator.
	ViolationMissingUpper Violation = "missing_upper"
	// ViolationMissingLower is an exported constant or variable used by the policy evaluator.
	ViolationMissingLower Violation = "missing_lower"
	// ViolationMissingDigit is an exported constant or variable used by the policy evaluator.
	ViolationMissingDigit Violation = "missing_digit"
	// ViolationMissingSymbol is an exported constant or variable used by the policy evaluator.
	ViolationMissingSymbol Violation = "missing_symbol"
	// ViolationHistoryReuse is an exported constant or variable used by the policy evaluator.
	ViolationHistoryReuse Violation = "history_reuse"
)

// ErrNilVerifier is returned by NewChecker when no hash verifier is supplied.
var ErrNilVerifier = errors.New("policy: nil verifier")

// Verifier matches a plaintext candidate against a stored hash. Satisfied
// by *password.Hasher.
type Verifier interface {
	Verify(password, encodedHash string) (bool, error)
}

// Config holds the complexity and aging rules.
type Config struct {
	MinLength     int
	RequireUpper  bool
	RequireLower  bool
	RequireDigit  bool
	RequireSymbol bool
	ExpiryWindow  time.Duration // 0 = never expires
}

// Checker is a pure evaluator: it mutates nothing and holds no state beyond
// its configuration and the verifier used for history comparison.
type Checker struct {
	config   Config
	verifier Verifier
}

// NewChecker builds a [Checker] for the given rules.
func NewChecker(cfg Config, verifier Verifier) (*Checker, error) {
	if verifier == nil {
		return nil, ErrNilVerifier
	}

	return &Checker{config: cfg, verifier: verifier}, nil
}

// Validate evaluates candidate against the complexity rules and the retained
// history hashes. An empty slice means accepted. History entries are salted,
// so reuse detection verifies the candidate against each retained hash; an
// unreadable history entry surfaces as an error (integrity, not rejection).
func (c *Checker) Validate(candidate string, history []string) ([]Violation, error) {
	var violations []Violation

	if len([]rune(candidate)) < c.config.MinLength {
		violations = append(violations, ViolationTooShort)
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range candidate {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSymbol = true
		}
	}

	if c.config.RequireUpper && !hasUpper {
		violations = append(violations, ViolationMissingUpper)
	}
	if c.config.RequireLower && !hasLower {
		violations = append(violations, ViolationMissingLower)
	}
	if c.config.RequireDigit && !hasDigit {
		violations = append(violations, ViolationMissingDigit)
	}
	if c.config.RequireSymbol && !hasSymbol {
		violations = append(violations, ViolationMissingSymbol)
	}

	for _, retained := range history {
		match, err := c.verifier.Verify(candidate, retained)
		if err != nil {
			return nil, err
		}
		if match {
			violations = append(violations, ViolationHistoryReuse)
			break
		}
	}

	return violations, nil
}

// Expired reports whether a password set at setAt has aged past the expiry
// window as of now. Evaluated at login time by the caller, never by a
// background sweep.
func (c *Checker) Expired(setAt, now time.Time) bool {
	if c.config.ExpiryWindow <= 0 {
		return false
	}
	if setAt.IsZero() {
		// No recorded set time: treat as expired so the account is forced
		// through a password change rather than aging forever.
		return true
	}
	return now.Sub(setAt) > c.config.ExpiryWindow
}
