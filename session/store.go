package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable marks a Redis fault. Retryable from the caller's
// perspective; the store never retries on its own.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrNotFound is returned when no session exists for a token.
var ErrNotFound = errors.New("session not found")

// ErrExpired is returned when a session exists but has passed its idle or
// absolute deadline. Callers must treat it exactly like [ErrNotFound]; it is
// distinct for audit and diagnostics only.
var ErrExpired = errors.New("session expired")

const minStoreTTL = time.Second

const deleteSessionScript = `
local existed = redis.call("EXISTS", KEYS[1])
redis.call("SREM", KEYS[2], ARGV[1])
if existed == 1 then
  redis.call("DEL", KEYS[1])
end
return existed
`

var deleteSessionLua = redis.NewScript(deleteSessionScript)

// Revoke-all must not leave a surviving session behind: the member walk and
// the deletes run inside one script execution.
const deleteAllForUserScript = `
local ids = redis.call("SMEMBERS", KEYS[1])
local removed = 0
for _, id in ipairs(ids) do
  removed = removed + redis.call("DEL", ARGV[1] .. id)
end
redis.call("DEL", KEYS[1])
return removed
`

var deleteAllForUserLua = redis.NewScript(deleteAllForUserScript)

// Config holds the session lifetime rules and key namespace.
type Config struct {
	Prefix      string
	IdleTTL     time.Duration
	AbsoluteTTL time.Duration

	// Now supplies the clock for expiry decisions. Defaults to time.Now.
	Now func() time.Time
}

// Store is a Redis-backed session store enforcing both the idle and the
// absolute deadline; whichever comes first wins. Expiry is detected lazily on
// the next Touch, never by a background sweep.
type Store struct {
	redis  redis.UniversalClient
	config Config
	nowFn  func() time.Time
}

// NewStore creates a session [Store] backed by the given Redis client.
func NewStore(redisClient redis.UniversalClient, cfg Config) *Store {
	if cfg.Prefix == "" {
		cfg.Prefix = "as"
	}
	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Store{redis: redisClient, config: cfg, nowFn: nowFn}
}

func (s *Store) key(id string) string {
	return s.config.Prefix + ":" + id
}

func (s *Store) userKey(username string) string {
	return s.config.Prefix + ":u:" + username
}

// Save persists a new session and registers it in the per-user index.
func (s *Store) Save(ctx context.Context, sess *Session) error {
	data, err := Encode(sess)
	if err != nil {
		return err
	}

	ttl := s.storeTTL(sess, s.nowFn())
	if ttl <= 0 {
		ttl = minStoreTTL
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(sess.ID), data, ttl)
		pipe.SAdd(ctx, s.userKey(sess.Username), sess.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// Touch validates a session for one authenticated request: it checks both
// deadlines against the injected clock, slides the idle window on success,
// and removes the record on either expiry condition.
//
//	Performance: 1 Redis GET plus 1 SET on the success path.
func (s *Store) Touch(ctx context.Context, id string) (*Session, error) {
	key := s.key(id)

	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, err
	}
	sess.ID = id

	now := s.nowFn()
	if s.expired(sess, now) {
		if err := s.deleteSessionAndIndex(ctx, sess.Username, id); err != nil {
			return nil, err
		}
		return nil, ErrExpired
	}

	sess.LastActive = now.Unix()
	updated, err := Encode(sess)
	if err != nil {
		return nil, err
	}

	ttl := s.storeTTL(sess, now)
	if ttl < minStoreTTL {
		ttl = minStoreTTL
	}
	if err := s.redis.Set(ctx, key, updated, ttl).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return sess, nil
}

// Delete revokes one session. Deleting an absent session is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	key := s.key(id)

	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return err
	}

	return s.deleteSessionAndIndex(ctx, sess.Username, id)
}

// DeleteAllForUser revokes every session for a user in one atomic script
// execution, closing the window where a stolen session could survive a
// credential reset.
func (s *Store) DeleteAllForUser(ctx context.Context, username string) error {
	_, err := deleteAllForUserLua.Run(
		ctx,
		s.redis,
		[]string{s.userKey(username)},
		s.config.Prefix+":",
	).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// ActiveSessionIDs returns the tracked session IDs for a user. The index may
// contain IDs whose records have already lapsed in Redis.
func (s *Store) ActiveSessionIDs(ctx context.Context, username string) ([]string, error) {
	ids, err := s.redis.SMembers(ctx, s.userKey(username)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return ids, nil
}

// GetManyReadOnly fetches sessions without sliding the idle window or
// mutating any Redis state. Lapsed and missing records are skipped.
func (s *Store) GetManyReadOnly(ctx context.Context, ids []string) ([]*Session, error) {
	if len(ids) == 0 {
		return []*Session{}, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, s.key(id))
	}

	_, err := pipe.Exec(ctx)
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	now := s.nowFn()
	sessions := make([]*Session, 0, len(ids))
	for i, cmd := range cmds {
		data, cmdErr := cmd.Bytes()
		if cmdErr != nil {
			if errors.Is(cmdErr, redis.Nil) {
				continue
			}
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, cmdErr)
		}

		sess, decErr := Decode(data)
		if decErr != nil {
			return nil, decErr
		}
		sess.ID = ids[i]
		if s.expired(sess, now) {
			continue
		}

		sessions = append(sessions, sess)
	}

	return sessions, nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

func (s *Store) expired(sess *Session, now time.Time) bool {
	absoluteDeadline := time.Unix(sess.CreatedAt, 0).Add(s.config.AbsoluteTTL)
	if !now.Before(absoluteDeadline) {
		return true
	}
	idleDeadline := time.Unix(sess.LastActive, 0).Add(s.config.IdleTTL)
	return !now.Before(idleDeadline)
}

// storeTTL caps the Redis key TTL at the idle window or the remaining
// absolute lifetime, whichever is shorter, so an untouched key lapses on its
// own even if Touch is never called again.
func (s *Store) storeTTL(sess *Session, now time.Time) time.Duration {
	remainingAbsolute := time.Unix(sess.CreatedAt, 0).Add(s.config.AbsoluteTTL).Sub(now)
	if s.config.IdleTTL < remainingAbsolute {
		return s.config.IdleTTL
	}
	return remainingAbsolute
}

func (s *Store) deleteSessionAndIndex(ctx context.Context, username, id string) error {
	_, err := deleteSessionLua.Run(
		ctx,
		s.redis,
		[]string{s.key(id), s.userKey(username)},
		id,
	).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
