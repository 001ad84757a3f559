package lockout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable indicates the lockout backend is unreachable. Retryable
// from the caller's perspective; the tracker never retries on its own.
var ErrUnavailable = errors.New("lockout backend unavailable")

// Config holds the lockout thresholds.
type Config struct {
	Threshold int
	Window    time.Duration
	Prefix    string
}

// State is a point-in-time view of one account's lockout record. The three
// spec states map onto it: Clear (Fails == 0), Accumulating (0 < Fails <
// threshold), Locked (LockedUntil in the future).
type State struct {
	Fails       int
	LockedUntil time.Time
}

// Locked reports whether the lock is active at now.
func (s State) Locked(now time.Time) bool {
	return !s.LockedUntil.IsZero() && now.Before(s.LockedUntil)
}

// Expired reports whether a lock was set and has lapsed by now. The caller
// clears the record and evaluates the attempt normally.
func (s State) Expired(now time.Time) bool {
	return !s.LockedUntil.IsZero() && !now.Before(s.LockedUntil)
}

// The increment and the threshold comparison must be one atomic step:
// two concurrent failures both reading count=4 must still produce exactly
// one lock at 5 and a sixth count, never two fives.
const recordFailureScript = `
local fails = redis.call("HINCRBY", KEYS[1], "fails", 1)
local window_ms = tonumber(ARGV[2])
if fails >= tonumber(ARGV[1]) then
  local until_ms = tonumber(ARGV[3]) + window_ms
  redis.call("HSET", KEYS[1], "locked_until", until_ms)
  redis.call("PEXPIRE", KEYS[1], window_ms)
  return {fails, until_ms}
end
redis.call("PEXPIRE", KEYS[1], window_ms)
return {fails, 0}
`

var recordFailureLua = redis.NewScript(recordFailureScript)

// Tracker is the Redis-backed per-account lockout state machine.
type Tracker struct {
	redis  redis.UniversalClient
	config Config
}

// NewTracker creates a [Tracker] backed by the given Redis client.
func NewTracker(redisClient redis.UniversalClient, cfg Config) *Tracker {
	if cfg.Prefix == "" {
		cfg.Prefix = "alo"
	}
	return &Tracker{redis: redisClient, config: cfg}
}

func (t *Tracker) key(username string) string {
	return t.config.Prefix + ":" + username
}

// Status returns the current state for username. A missing record is Clear.
func (t *Tracker) Status(ctx context.Context, username string) (State, error) {
	fields, err := t.redis.HGetAll(ctx, t.key(username)).Result()
	if err != nil {
		return State{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(fields) == 0 {
		return State{}, nil
	}

	var state State
	if raw, ok := fields["fails"]; ok {
		var fails int
		if _, err := fmt.Sscanf(raw, "%d", &fails); err == nil {
			state.Fails = fails
		}
	}
	if raw, ok := fields["locked_until"]; ok {
		var untilMs int64
		if _, err := fmt.Sscanf(raw, "%d", &untilMs); err == nil && untilMs > 0 {
			state.LockedUntil = time.UnixMilli(untilMs)
		}
	}

	return state, nil
}

// RecordFailure counts one failed attempt at now. When the new count reaches
// the threshold it sets the lock in the same atomic step and returns the
// lock deadline.
func (t *Tracker) RecordFailure(ctx context.Context, username string, now time.Time) (State, error) {
	result, err := recordFailureLua.Run(
		ctx,
		t.redis,
		[]string{t.key(username)},
		t.config.Threshold,
		t.config.Window.Milliseconds(),
		now.UnixMilli(),
	).Result()
	if err != nil {
		return State{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	parts, ok := result.([]interface{})
	if !ok || len(parts) != 2 {
		return State{}, fmt.Errorf("%w: invalid lockout script response", ErrUnavailable)
	}

	fails, ok := parts[0].(int64)
	if !ok {
		return State{}, fmt.Errorf("%w: invalid lockout script count", ErrUnavailable)
	}
	untilMs, ok := parts[1].(int64)
	if !ok {
		return State{}, fmt.Errorf("%w: invalid lockout script deadline", ErrUnavailable)
	}

	state := State{Fails: int(fails)}
	if untilMs > 0 {
		state.LockedUntil = time.UnixMilli(untilMs)
	}
	return state, nil
}

// Clear resets username to the Clear state: after a successful login, an
// administrative unlock, or an observed lapsed lock.
func (t *Tracker) Clear(ctx context.Context, username string) error {
	if err := t.redis.Del(ctx, t.key(username)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
