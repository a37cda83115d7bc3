package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisKeyPrefix namespaces every key written by RedisStorage.
const RedisKeyPrefix = "tkdesk:state:"

// RedisStorage keeps state as plain string values under RedisKeyPrefix.
type RedisStorage struct {
	client *redis.Client
	owned  bool
}

// DialRedis connects to addr and verifies the connection.
func DialRedis(ctx context.Context, addr string) (*RedisStorage, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	err := client.Ping(ctx).Err()
	if err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("redis state: ping %s: %w", addr, err)
	}

	return &RedisStorage{client: client, owned: true}, nil
}

// NewRedisStorage wraps an existing client. Close does not close it.
func NewRedisStorage(client *redis.Client) *RedisStorage {
	return &RedisStorage{client: client}
}

// Load implements Storage.
func (s *RedisStorage) Load(ctx context.Context, key string) ([]byte, error) {
	err := validateKey(key)
	if err != nil {
		return nil, err
	}

	data, err := s.client.Get(ctx, RedisKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}

		return nil, fmt.Errorf("redis state: load %s: %w", key, err)
	}

	return data, nil
}

// Save implements Storage.
func (s *RedisStorage) Save(ctx context.Context, key string, data []byte) error {
	err := validateKey(key)
	if err != nil {
		return err
	}

	err = s.client.Set(ctx, RedisKeyPrefix+key, data, 0).Err()
	if err != nil {
		return fmt.Errorf("redis state: save %s: %w", key, err)
	}

	return nil
}

// Delete implements Storage.
func (s *RedisStorage) Delete(ctx context.Context, key string) error {
	err := validateKey(key)
	if err != nil {
		return err
	}

	err = s.client.Del(ctx, RedisKeyPrefix+key).Err()
	if err != nil {
		return fmt.Errorf("redis state: delete %s: %w", key, err)
	}

	return nil
}

// Close implements Storage.
func (s *RedisStorage) Close() error {
	if !s.owned {
		return nil
	}

	err := s.client.Close()
	if err != nil {
		return fmt.Errorf("redis state: close: %w", err)
	}

	return nil
}
