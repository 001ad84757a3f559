package authcore

import (
	"errors"
	"time"
)

// Config defines engine behavior. Instances are configured during
// initialization and treated as immutable after [Builder.Build].
type Config struct {
	Password PasswordConfig
	Policy   PolicyConfig
	Lockout  LockoutConfig
	Session  SessionConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
	Security SecurityConfig
}

/*
====================================
PASSWORD (ARGON2) CONFIG
====================================
*/

// PasswordConfig holds the argon2id hashing parameters.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

/*
====================================
POLICY CONFIG
====================================
*/

// PolicyConfig holds the password complexity, history, and aging rules.
// Each character-class requirement is independently toggleable.
type PolicyConfig struct {
	MinLength     int
	RequireUpper  bool
	RequireLower  bool
	RequireDigit  bool
	RequireSymbol bool
	HistoryLimit  int
	ExpiryWindow  time.Duration // 0 = passwords never expire
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig holds the brute-force lockout thresholds. The lock is
// time-bounded and expires lazily on the next attempt; administrative
// unlock is always available.
type LockoutConfig struct {
	Threshold   int
	Window      time.Duration
	RedisPrefix string
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig holds session lifetime rules. A session dies at
// CreatedAt+AbsoluteTTL or LastActive+IdleTTL, whichever comes first.
type SessionConfig struct {
	RedisPrefix string
	IdleTTL     time.Duration
	AbsoluteTTL time.Duration
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process metrics counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// SecurityConfig holds cross-cutting hardening switches. ProductionMode
// tightens Validate to reject weakened deployments.
type SecurityConfig struct {
	ProductionMode bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

func defaultConfig() Config {
	return Config{
		Password: PasswordConfig{
			Memory:      65536,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		Policy: PolicyConfig{
			MinLength:     8,
			RequireUpper:  true,
			RequireLower:  true,
			RequireDigit:  true,
			RequireSymbol: true,
			HistoryLimit:  10,
			ExpiryWindow:  60 * 24 * time.Hour,
		},
		Lockout: LockoutConfig{
			Threshold:   5,
			Window:      15 * time.Minute,
			RedisPrefix: "alo",
		},
		Session: SessionConfig{
			RedisPrefix: "as",
			IdleTTL:     30 * time.Minute,
			AbsoluteTTL: 2 * time.Hour,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		Security: SecurityConfig{
			ProductionMode: false,
		},
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks the configuration for internal consistency. It is called
// by [Builder.Build]; callers constructing a Config by hand can call it
// directly.
func (c *Config) Validate() error {
	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}

	// Policy
	if c.Policy.MinLength < 1 {
		return errors.New("Policy MinLength must be >= 1")
	}
	if c.Policy.HistoryLimit < 0 {
		return errors.New("Policy HistoryLimit must be >= 0")
	}
	if c.Policy.ExpiryWindow < 0 {
		return errors.New("Policy ExpiryWindow must be >= 0")
	}

	// Lockout
	if c.Lockout.Threshold <= 0 {
		return errors.New("Lockout Threshold must be > 0")
	}
	if c.Lockout.Window <= 0 {
		return errors.New("Lockout Window must be > 0")
	}
	if c.Lockout.RedisPrefix == "" {
		return errors.New("Lockout RedisPrefix is required")
	}

	// Session
	if c.Session.RedisPrefix == "" {
		return errors.New("Session RedisPrefix is required")
	}
	if c.Session.IdleTTL <= 0 {
		return errors.New("Session IdleTTL must be > 0")
	}
	if c.Session.AbsoluteTTL <= 0 {
		return errors.New("Session AbsoluteTTL must be > 0")
	}
	if c.Session.IdleTTL > c.Session.AbsoluteTTL {
		return errors.New("Session IdleTTL must be <= AbsoluteTTL")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	if c.Security.ProductionMode {
		if c.Password.Memory < 64*1024 {
			return errors.New("ProductionMode requires Password Memory >= 65536 KB")
		}
		if c.Password.Time < 2 {
			return errors.New("ProductionMode requires Password Time >= 2")
		}
		if c.Password.KeyLength < 32 {
			return errors.New("ProductionMode requires Password KeyLength >= 32")
		}
		if c.Policy.MinLength < 8 {
			return errors.New("ProductionMode requires Policy MinLength >= 8")
		}
		if c.Policy.HistoryLimit < 5 {
			return errors.New("ProductionMode requires Policy HistoryLimit >= 5")
		}
		if c.Lockout.Threshold > 10 {
			return errors.New("ProductionMode requires Lockout Threshold <= 10")
		}
		if c.Lockout.Window < 5*time.Minute {
			return errors.New("ProductionMode requires Lockout Window >= 5m")
		}
		if c.Session.AbsoluteTTL > 24*time.Hour {
			return errors.New("ProductionMode requires Session AbsoluteTTL <= 24h")
		}
		if !c.Audit.Enabled {
			return errors.New("ProductionMode requires Audit Enabled")
		}
	}

	return nil
}
