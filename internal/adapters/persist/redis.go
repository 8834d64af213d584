package persist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redislib "github.com/redis/go-redis/v9"
)

// RedisConfig configures the Redis port.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// Redis stores the key as a plain Redis string.
type Redis struct {
	client *redislib.Client
	key    string
}

// OpenRedis connects to Redis, retrying the initial ping with backoff.
func OpenRedis(cfg RedisConfig, key string) (*Redis, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, errors.New("redis addr required")
	}
	if strings.TrimSpace(key) == "" {
		return nil, errors.New("storage key required")
	}

	client := redislib.NewClient(&redislib.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	attempts := 5
	backoff := 200 * time.Millisecond
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		err = client.Ping(ctx).Err()
		cancel()
		if err == nil {
			break
		}
		if attempt < attempts {
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return NewRedis(client, cfg.KeyPrefix+key), nil
}

// NewRedis wraps an existing client.
func NewRedis(client *redislib.Client, key string) *Redis {
	return &Redis{client: client, key: key}
}

// Load implements playlist.Port.
func (r *Redis) Load() (string, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	start := time.Now()
	value, err := r.client.Get(ctx, r.key).Result()
	if errors.Is(err, redislib.Nil) {
		observe("redis", "load", start, nil)
		return "", false, nil
	}
	observe("redis", "load", start, err)
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Save implements playlist.Port.
func (r *Redis) Save(data string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	start := time.Now()
	err := r.client.Set(ctx, r.key, data, 0).Err()
	observe("redis", "save", start, err)
	return err
}

// Close closes the client.
func (r *Redis) Close() error {
	return r.client.Close()
}
