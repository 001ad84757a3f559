package authcore

import "time"

type SecurityReport struct {
	ProductionMode      bool
	Argon2              PasswordConfigReport
	PasswordMinLength   int
	PasswordAllClasses  bool
	PasswordHistoryKept int
	PasswordExpiry      time.Duration
	LockoutThreshold    int
	LockoutWindow       time.Duration
	SessionIdleTTL      time.Duration
	SessionAbsoluteTTL  time.Duration
	AuditEnabled        bool
	MetricsEnabled      bool
}

type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	allClasses := e.config.Policy.RequireUpper &&
		e.config.Policy.RequireLower &&
		e.config.Policy.RequireDigit &&
		e.config.Policy.RequireSymbol

	return SecurityReport{
		ProductionMode: e.config.Security.ProductionMode,
		Argon2: PasswordConfigReport{
			Memory:      e.config.Password.Memory,
			Time:        e.config.Password.Time,
			Parallelism: e.config.Password.Parallelism,
			SaltLength:  e.config.Password.SaltLength,
			KeyLength:   e.config.Password.KeyLength,
		},
		PasswordMinLength:   e.config.Policy.MinLength,
		PasswordAllClasses:  allClasses,
		PasswordHistoryKept: e.config.Policy.HistoryLimit,
		PasswordExpiry:      e.config.Policy.ExpiryWindow,
		LockoutThreshold:    e.config.Lockout.Threshold,
		LockoutWindow:       e.config.Lockout.Window,
		SessionIdleTTL:      e.config.Session.IdleTTL,
		SessionAbsoluteTTL:  e.config.Session.AbsoluteTTL,
		AuditEnabled:        e.config.Audit.Enabled,
		MetricsEnabled:      e.config.Metrics.Enabled,
	}
}
