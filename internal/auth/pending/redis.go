package pending

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/hostdesk/internal/auth/domain"
	"github.com/aussiebroadwan/hostdesk/pkg/cryptox"
	"github.com/redis/go-redis/v9"
)

const DefaultRedisPrefix = "hd:pending"

// ErrBackend wraps failures talking to redis.
var ErrBackend = errors.New("pending: backend unavailable")

// RedisRegistry shares pending sessions between instances. Keys carry a TTL
// matching the session expiry, and the key is a fingerprint of the token so
// a dump of the keyspace holds nothing a client could replay.
type RedisRegistry struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewRedisRegistry(client redis.UniversalClient, prefix string, now func() time.Time) *RedisRegistry {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisRegistry{
		redis:  client,
		prefix: prefix,
		now:    clockOrDefault(now),
	}
}

// Ping reports whether redis is reachable.
func (r *RedisRegistry) Ping(ctx context.Context) error {
	if err := r.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrBackend, err)
	}
	return nil
}

func (r *RedisRegistry) key(token string) string {
	return r.prefix + ":" + cryptox.FingerprintToken(token)
}

func (r *RedisRegistry) Put(ctx context.Context, s domain.PendingSession) error {
	ttl := s.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		return ErrExpired
	}
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if err := r.redis.Set(ctx, r.key(s.Token), data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return nil
}

func (r *RedisRegistry) Get(ctx context.Context, token string) (domain.PendingSession, error) {
	key := r.key(token)
	data, err := r.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.PendingSession{}, ErrNotFound
		}
		return domain.PendingSession{}, fmt.Errorf("%w: %v", ErrBackend, err)
	}

	var s domain.PendingSession
	if err := json.Unmarshal(data, &s); err != nil {
		return domain.PendingSession{}, err
	}
	if s.Expired(r.now()) {
		_, _ = r.redis.Del(ctx, key).Result()
		return domain.PendingSession{}, ErrExpired
	}
	return s, nil
}

func (r *RedisRegistry) Delete(ctx context.Context, token string) (bool, error) {
	n, err := r.redis.Del(ctx, r.key(token)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return n > 0, nil
}

func (r *RedisRegistry) Update(ctx context.Context, token string, fn func(s *domain.PendingSession) error) (domain.PendingSession, error) {
	return r.update(ctx, token, func(s *domain.PendingSession, _ time.Time) error { return fn(s) })
}

func (r *RedisRegistry) Extend(ctx context.Context, token string, lim Limits) (domain.PendingSession, error) {
	return r.update(ctx, token, func(s *domain.PendingSession, now time.Time) error {
		next, err := extend(*s, now, lim)
		*s = next
		return err
	})
}

// errAbort carries an error returned by an update callback out of the
// WATCH transaction untouched.
type errAbort struct{ err error }

func (e errAbort) Error() string { return e.err.Error() }

func (r *RedisRegistry) update(ctx context.Context, token string, fn func(s *domain.PendingSession, now time.Time) error) (domain.PendingSession, error) {
	const maxRetries = 4
	key := r.key(token)

	for i := 0; i < maxRetries; i++ {
		var updated domain.PendingSession
		err := r.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			var s domain.PendingSession
			if err := json.Unmarshal(data, &s); err != nil {
				return err
			}

			now := r.now()
			if s.Expired(now) {
				_, _ = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				return ErrExpired
			}
			if err := fn(&s, now); err != nil {
				return errAbort{err}
			}
			s.Token = token

			ttl := s.ExpiresAt.Sub(now)
			if ttl <= 0 {
				return ErrExpired
			}
			encoded, err := json.Marshal(s)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, encoded, ttl)
				return nil
			})
			if err == nil {
				updated = s
			}
			return err
		}, key)

		var abort errAbort
		switch {
		case errors.Is(err, redis.TxFailedErr):
			continue
		case err == nil:
			return updated, nil
		case errors.As(err, &abort):
			return domain.PendingSession{}, abort.err
		case errors.Is(err, redis.Nil):
			return domain.PendingSession{}, ErrNotFound
		case errors.Is(err, ErrExpired):
			return domain.PendingSession{}, err
		default:
			return domain.PendingSession{}, fmt.Errorf("%w: %v", ErrBackend, err)
		}
	}

	return domain.PendingSession{}, fmt.Errorf("%w: too much contention on session", ErrBackend)
}

// Sweep removes entries whose recorded expiry has passed. Redis drops keys
// on its own once their TTL runs out, so this only catches entries kept
// alive by clock skew between instances.
func (r *RedisRegistry) Sweep(ctx context.Context) (int, error) {
	now := r.now()
	removed := 0

	iter := r.redis.Scan(ctx, 0, r.prefix+":*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		data, err := r.redis.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return removed, fmt.Errorf("%w: %v", ErrBackend, err)
		}

		var s domain.PendingSession
		if err := json.Unmarshal(data, &s); err != nil || s.Expired(now) {
			n, err := r.redis.Del(ctx, key).Result()
			if err != nil {
				return removed, fmt.Errorf("%w: %v", ErrBackend, err)
			}
			removed += int(n)
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return removed, nil
}

var _ Registry = (*RedisRegistry)(nil)
