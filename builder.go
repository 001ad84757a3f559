package authcore

import (
	"errors"
	"time"

	"github.com/radiotrack/authcore/internal"
	"github.com/radiotrack/authcore/internal/lockout"
	"github.com/radiotrack/authcore/password"
	"github.com/radiotrack/authcore/policy"
	"github.com/radiotrack/authcore/session"
	"github.com/redis/go-redis/v9"
)

// Builder defines a public type used by authcore APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  *redis.Client

	accounts  AccountStore
	auditSink AuditSink
	nowFn     func() time.Time

	built bool
}

// New describes the new operation and its observable behavior.
//
// New may return an error when input validation, dependency calls, or security checks fail.
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig may return an error when input validation, dependency calls, or security checks fail.
// WithConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis describes the withredis operation and its observable behavior.
//
// WithRedis may return an error when input validation, dependency calls, or security checks fail.
// WithRedis does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithAccountStore describes the withaccountstore operation and its observable behavior.
//
// WithAccountStore may return an error when input validation, dependency calls, or security checks fail.
// WithAccountStore does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAccountStore(store AccountStore) *Builder {
	b.accounts = store
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// WithAuditSink may return an error when input validation, dependency calls, or security checks fail.
// WithAuditSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock overrides the engine time source. Every lockout, expiry, and
// aging decision flows through it, so tests can drive deterministic
// timelines. Production builds leave it unset.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.nowFn = now
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled may return an error when input validation, dependency calls, or security checks fail.
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms describes the withlatencyhistograms operation and its observable behavior.
//
// WithLatencyHistograms may return an error when input validation, dependency calls, or security checks fail.
// WithLatencyHistograms does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
// Build does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.accounts == nil {
		return nil, errors.New("account store required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	nowFn := b.nowFn
	if nowFn == nil {
		nowFn = time.Now
	}

	engine := &Engine{
		config:   cfg,
		accounts: b.accounts,
		nowFn:    nowFn,
	}

	// -------- CREDENTIAL HASHER --------
	hasher, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}
	engine.passwordHash = hasher

	// -------- POLICY EVALUATOR --------
	checker, err := policy.NewChecker(policy.Config{
		MinLength:     cfg.Policy.MinLength,
		RequireUpper:  cfg.Policy.RequireUpper,
		RequireLower:  cfg.Policy.RequireLower,
		RequireDigit:  cfg.Policy.RequireDigit,
		RequireSymbol: cfg.Policy.RequireSymbol,
		ExpiryWindow:  cfg.Policy.ExpiryWindow,
	}, hasher)
	if err != nil {
		return nil, err
	}
	engine.policy = checker

	// -------- LOCKOUT TRACKER --------
	engine.lockouts = lockout.NewTracker(b.redis, lockout.Config{
		Threshold: cfg.Lockout.Threshold,
		Window:    cfg.Lockout.Window,
		Prefix:    cfg.Lockout.RedisPrefix,
	})

	// -------- SESSION STORE --------
	engine.sessionStore = session.NewStore(b.redis, session.Config{
		Prefix:      cfg.Session.RedisPrefix,
		IdleTTL:     cfg.Session.IdleTTL,
		AbsoluteTTL: cfg.Session.AbsoluteTTL,
		Now:         nowFn,
	})

	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)

	// The dummy hash makes the unknown-username login path run the same
	// argon2 verification as a real account, so the two are not separable
	// by response shape or timing.
	dummySecret, err := internal.NewSessionToken()
	if err != nil {
		return nil, err
	}
	dummyHash, err := hasher.Hash(dummySecret.String())
	if err != nil {
		return nil, err
	}
	engine.dummyHash = dummyHash

	b.built = true

	return engine, nil
}
