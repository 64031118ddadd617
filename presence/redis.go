package presence

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultHeartbeatWindow = 15 * time.Second

// getter is the slice of the go-redis client Redis needs.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// Redis reads heartbeats written by the external presence service: the key
// presence:user:<id> holds the last heartbeat in unix milliseconds. A user is
// online while the heartbeat is younger than the window.
type Redis struct {
	client getter
	window time.Duration
	now    func() time.Time
}

func NewRedis(client *redis.Client, window time.Duration) *Redis {
	if window <= 0 {
		window = DefaultHeartbeatWindow
	}
	return &Redis{client: client, window: window, now: time.Now}
}

// Connect parses a redis:// URL and pings the server.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func HeartbeatKey(userID int64) string {
	return "presence:user:" + strconv.FormatInt(userID, 10)
}

func (r *Redis) Status(ctx context.Context, userID int64) (Status, error) {
	raw, err := r.client.Get(ctx, HeartbeatKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("failed to read heartbeat of user %d: %w", userID, err)
	}

	millis, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return Status{}, fmt.Errorf("malformed heartbeat %q for user %d: %w", raw, userID, err)
	}
	seen := time.UnixMilli(millis)
	return Status{Online: r.now().Sub(seen) < r.window, LastSeen: seen}, nil
}
