package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-redis/redis/v8"
)

// RedisConfig содержит настройки подключения к Redis
type RedisConfig struct {
	Addr      string // Адрес Redis сервера
	Password  string // Пароль (пустой если не требуется)
	DB        int    // Номер базы данных
	KeyPrefix string // Префикс для ключей
}

// DefaultRedisConfig возвращает конфигурацию по умолчанию
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:      "localhost:6379",
		KeyPrefix: "meadow:",
	}
}

// RedisStore хранит документы сохранения в Redis (сессии на выделенном хосте)
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStore подключается к Redis и проверяет соединение
func NewRedisStore(ctx context.Context, config *RedisConfig) (*RedisStore, error) {
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

	return newRedisStoreWithClient(client, config.KeyPrefix), nil
}

func newRedisStoreWithClient(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, keyPrefix: prefix}
}

func (rs *RedisStore) key(profile, worldID string) string {
	return rs.keyPrefix + "save:" + profile + ":" + worldID
}

// Save записывает документ
func (rs *RedisStore) Save(ctx context.Context, profile, worldID string, doc *Document) error {
	if err := validateKey(profile, worldID); err != nil {
		return err
	}

	data, err := EncodeDocument(doc)
	if err != nil {
		return err
	}

	if err := rs.client.Set(ctx, rs.key(profile, worldID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save %s/%s: %w", profile, worldID, err)
	}
	return nil
}

// Load читает документ
func (rs *RedisStore) Load(ctx context.Context, profile, worldID string) (*Document, error) {
	if err := validateKey(profile, worldID); err != nil {
		return nil, err
	}

	data, err := rs.client.Get(ctx, rs.key(profile, worldID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%s/%s: %w", profile, worldID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s/%s: %w", profile, worldID, err)
	}

	doc, err := DecodeDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%s/%s: %w", profile, worldID, err)
	}
	return doc, nil
}

// Delete удаляет документ
func (rs *RedisStore) Delete(ctx context.Context, profile, worldID string) error {
	if err := validateKey(profile, worldID); err != nil {
		return err
	}
	return rs.client.Del(ctx, rs.key(profile, worldID)).Err()
}

// List перечисляет миры профиля через SCAN
func (rs *RedisStore) List(ctx context.Context, profile string) ([]string, error) {
	if err := validateName("профиль", profile); err != nil {
		return nil, err
	}

	prefix := rs.key(profile, "")
	ids := []string{}
	iter := rs.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, strings.TrimPrefix(iter.Val(), prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}

	sort.Strings(ids)
	return ids, nil
}

// Close закрывает соединение
func (rs *RedisStore) Close() error {
	return rs.client.Close()
}
