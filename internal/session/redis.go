package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"kitetrader/internal/model"
)

const sessionKey = "kite:session"

// RedisConfig configures the Redis session backend.
type RedisConfig struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int
}

// RedisStore keeps the session in a single Redis key, for containerized
// deployments where the local disk does not survive restarts.
type RedisStore struct {
	client *goredis.Client
}

// NewRedisStore connects to Redis and pings the server.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[session] connected to redis at %s", cfg.Addr)
	return &RedisStore{client: client}, nil
}

// Load reads the saved session from Redis.
func (rs *RedisStore) Load() (model.Session, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	raw, err := rs.client.Get(ctx, sessionKey).Bytes()
	if err == goredis.Nil {
		return model.Session{}, ErrNoSession
	}
	if err != nil {
		return model.Session{}, fmt.Errorf("redis get session: %w", err)
	}
	var s model.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return model.Session{}, fmt.Errorf("parse redis session: %w", err)
	}
	if s.AccessToken == "" {
		return model.Session{}, ErrNoSession
	}
	return s, nil
}

// Save writes the session. No TTL: expiry is decided by IsExpired so the
// age-based policy matches the file backend exactly.
func (rs *RedisStore) Save(s model.Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rs.client.Set(ctx, sessionKey, raw, 0).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}

// Clear deletes the session key.
func (rs *RedisStore) Clear() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rs.client.Del(ctx, sessionKey).Err(); err != nil {
		return fmt.Errorf("redis del session: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (rs *RedisStore) Close() error { return rs.client.Close() }

var _ Store = (*RedisStore)(nil)
var _ Store = (*FileStore)(nil)
