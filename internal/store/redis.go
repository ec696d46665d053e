package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const keyPrefix = "doc:"

// RedisStore implements Store on a redis backend. Documents are JSON strings
// under prefixed keys; Subscribe rides a pubsub channel per path, published
// to on every write through this store.
type RedisStore struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewRedisStore creates a RedisStore over an existing client.
func NewRedisStore(rdb *redis.Client, log zerolog.Logger) *RedisStore {
	return &RedisStore{
		rdb: rdb,
		log: log.With().Str("component", "redis_store").Logger(),
	}
}

func docKey(path string) string  { return keyPrefix + path }
func channel(path string) string { return keyPrefix + "ch:" + path }

func (s *RedisStore) Read(ctx context.Context, path string) (json.RawMessage, error) {
	val, err := s.rdb.Get(ctx, docKey(path)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store read %s: %w", path, err)
	}
	return json.RawMessage(val), nil
}

func (s *RedisStore) Create(ctx context.Context, path string, data any) (string, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	key := uuid.New().String()
	child := path + "/" + key

	if err := s.rdb.Set(ctx, docKey(child), string(raw), 0).Err(); err != nil {
		return "", fmt.Errorf("store create %s: %w", child, err)
	}
	s.publish(ctx, child, raw)
	return key, nil
}

func (s *RedisStore) Update(ctx context.Context, path string, partial map[string]any) error {
	current, err := s.Read(ctx, path)
	if err != nil && err != ErrNotFound {
		return err
	}

	merged, err := merge(current, partial)
	if err != nil {
		return fmt.Errorf("store update %s: %w", path, err)
	}

	if err := s.rdb.Set(ctx, docKey(path), string(merged), 0).Err(); err != nil {
		return fmt.Errorf("store update %s: %w", path, err)
	}
	s.publish(ctx, path, merged)
	return nil
}

func (s *RedisStore) Set(ctx context.Context, path string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, docKey(path), string(raw), 0).Err(); err != nil {
		return fmt.Errorf("store set %s: %w", path, err)
	}
	s.publish(ctx, path, raw)
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, path string) error {
	if err := s.rdb.Del(ctx, docKey(path)).Err(); err != nil {
		return fmt.Errorf("store delete %s: %w", path, err)
	}
	s.publish(ctx, path, nil)
	return nil
}

func (s *RedisStore) Subscribe(ctx context.Context, path string, fn func(json.RawMessage)) (func(), error) {
	sub := s.rdb.Subscribe(ctx, channel(path))
	if _, err := sub.Receive(ctx); err != nil {
		return nil, fmt.Errorf("store subscribe %s: %w", path, err)
	}

	// Deliver the current document first, matching the live-read contract.
	if current, err := s.Read(ctx, path); err == nil {
		fn(current)
	}

	go func() {
		for msg := range sub.Channel() {
			if msg.Payload == "" {
				fn(nil)
				continue
			}
			fn(json.RawMessage(msg.Payload))
		}
	}()

	cancel := func() {
		if err := sub.Close(); err != nil {
			s.log.Warn().Err(err).Str("path", path).Msg("Subscription close error")
		}
	}
	return cancel, nil
}

func (s *RedisStore) publish(ctx context.Context, path string, doc json.RawMessage) {
	if err := s.rdb.Publish(ctx, channel(path), string(doc)).Err(); err != nil {
		s.log.Warn().Err(err).Str("path", path).Msg("Publish error")
	}
}
