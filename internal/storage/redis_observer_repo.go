package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisObserverRepo хранит позиции наблюдателей в Redis с TTL
type RedisObserverRepo struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisObserverRepo подключается к Redis
func NewRedisObserverRepo(ctx context.Context, config *RedisConfig, ttl time.Duration) (*RedisObserverRepo, error) {
	if config == nil {
		config = DefaultRedisConfig()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisObserverRepo{client: client, keyPrefix: config.KeyPrefix + "observer:", ttl: ttl}, nil
}

// Save записывает позицию с TTL
func (r *RedisObserverRepo) Save(ctx context.Context, pos ObserverPosition) error {
	if err := validateObserver(pos); err != nil {
		return err
	}
	if pos.UpdatedAt.IsZero() {
		pos.UpdatedAt = time.Now()
	}

	data, err := json.Marshal(pos)
	if err != nil {
		return fmt.Errorf("failed to marshal position: %w", err)
	}

	return r.client.Set(ctx, r.keyPrefix+pos.PlayerID, data, r.ttl).Err()
}

// Load читает позицию
func (r *RedisObserverRepo) Load(ctx context.Context, playerID string) (ObserverPosition, bool, error) {
	data, err := r.client.Get(ctx, r.keyPrefix+playerID).Bytes()
	if errors.Is(err, redis.Nil) {
		return ObserverPosition{}, false, nil
	}
	if err != nil {
		return ObserverPosition{}, false, fmt.Errorf("failed to get position: %w", err)
	}

	var pos ObserverPosition
	if err := json.Unmarshal(data, &pos); err != nil {
		return ObserverPosition{}, false, fmt.Errorf("failed to unmarshal position: %w", err)
	}
	return pos, true, nil
}

// Delete удаляет позицию
func (r *RedisObserverRepo) Delete(ctx context.Context, playerID string) error {
	n, err := r.client.Del(ctx, r.keyPrefix+playerID).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("позиция игрока %s: %w", playerID, ErrNotFound)
	}
	return nil
}

func (r *RedisObserverRepo) Close() error {
	return r.client.Close()
}
