package sessionsvc

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
)

const keyPrefix = "blacklist:session:"

// RedisStore keeps revoked session ids as expiring redis keys.
type RedisStore struct {
	rdb *redis.Client
}

var _ core.SessionStore = (*RedisStore)(nil)

// OpenRedis connects to the redis server at url (redis://[:password@]host:port/db).
func OpenRedis(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parsing redis url")
	}
	rdb := redis.NewClient(opt)
	if err = rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return rdb, nil
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Revoke(ctx context.Context, sessionID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil // already expired
	}
	return errors.Wrap(s.rdb.Set(ctx, keyPrefix+sessionID, "1", ttl).Err(), "revoking session")
}

func (s *RedisStore) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.rdb.Exists(ctx, keyPrefix+sessionID).Result()
	if err != nil {
		return false, errors.Wrap(err, "checking session")
	}
	return n > 0, nil
}
