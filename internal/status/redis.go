package status

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"visitlog/internal/visits"
)

// DefaultKey is where the last ingest timestamp is mirrored.
const DefaultKey = "visitlog:last_ingest"

// KV is the subset of the Redis client the mirror uses.
type KV interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisMirror copies the last ingest timestamp into Redis after every
// recorded fix. It implements visits.Observer.
type RedisMirror struct {
	kv     KV
	key    string
	logger *zap.Logger
}

// NewRedisMirror returns a mirror writing to key, or DefaultKey when key is empty.
func NewRedisMirror(kv KV, key string, logger *zap.Logger) *RedisMirror {
	if key == "" {
		key = DefaultKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisMirror{kv: kv, key: key, logger: logger}
}

// Recorded stores the fix timestamp under the mirror key. Failures are logged.
func (m *RedisMirror) Recorded(ctx context.Context, fix visits.Fix, _ visits.Result) {
	if err := m.kv.Set(ctx, m.key, fix.Timestamp, 0).Err(); err != nil {
		m.logger.Warn("failed to mirror last ingest to redis", zap.String("key", m.key), zap.Error(err))
	}
}

// Failed does nothing; only successful fixes move the last ingest time.
func (m *RedisMirror) Failed(context.Context, visits.Fix, error) {}

// LastIngest reads the mirrored timestamp. It returns 0 when the key is absent.
func (m *RedisMirror) LastIngest(ctx context.Context) (int64, error) {
	val, err := m.kv.Get(ctx, m.key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get last ingest from Redis: %w", err)
	}

	ts, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid last ingest value %q: %w", val, err)
	}
	return ts, nil
}
