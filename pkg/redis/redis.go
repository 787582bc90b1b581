package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ikkim/bookstore-backend/config"
	"github.com/ikkim/bookstore-backend/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// NewClient connects to Redis and verifies the connection
func NewClient(cfg *config.RedisConfig) (*redis.Client, error) {
	logger.Info("Initializing Redis connection", map[string]interface{}{
		"addr": cfg.Addr,
		"db":   cfg.DB,
	})

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Error("Failed to connect to Redis", err, map[string]interface{}{
			"addr": cfg.Addr,
		})
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis connection established successfully", nil)
	return client, nil
}

// Store wraps a client with the key layouts used by the service
type Store struct {
	client redis.UniversalClient
}

func NewStore(client redis.UniversalClient) *Store {
	return &Store{client: client}
}

// Client exposes the underlying client
func (s *Store) Client() redis.UniversalClient {
	return s.client
}

// SetJSON stores value as JSON under key with the given expiry
func (s *Store) SetJSON(ctx context.Context, key string, value interface{}, expiry time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}
	return s.client.Set(ctx, key, data, expiry).Err()
}

// GetJSON loads key into dest. It reports false without error on a miss.
func (s *Store) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("unmarshal cache value: %w", err)
	}
	return true, nil
}

// BlacklistToken adds a token to the blacklist until it would have expired anyway
func (s *Store) BlacklistToken(ctx context.Context, token string, expiry time.Duration) error {
	if expiry <= 0 {
		return nil
	}
	key := fmt.Sprintf("blacklist:%s", token)
	if err := s.client.Set(ctx, key, "revoked", expiry).Err(); err != nil {
		logger.Error("Failed to blacklist token", err, nil)
		return err
	}
	return nil
}

// IsTokenBlacklisted checks if a token is in the blacklist
func (s *Store) IsTokenBlacklisted(ctx context.Context, token string) (bool, error) {
	key := fmt.Sprintf("blacklist:%s", token)
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		logger.Error("Failed to check token blacklist", err, nil)
		return false, err
	}
	return val == "revoked", nil
}
