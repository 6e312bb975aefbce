package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	trimmedPrefix := strings.TrimSpace(prefix)
	if trimmedPrefix == "" {
		trimmedPrefix = "ridehail:idempotency"
	}
	trimmedPrefix = strings.TrimSuffix(trimmedPrefix, ":")

	return &RedisStore{client: client, prefix: trimmedPrefix}
}

func (s *RedisStore) key(key string) string {
	return s.prefix + ":" + key
}

func (s *RedisStore) Reserve(ctx context.Context, key, fingerprint string, ttl time.Duration) (*Record, bool, error) {
	payload, err := json.Marshal(Record{
		State:       StateInFlight,
		Fingerprint: fingerprint,
		ExpiresAt:   time.Now().Add(ttl),
	})
	if err != nil {
		return nil, false, err
	}

	// The stored record can expire between SetNX and Get; one retry covers it.
	for attempt := 0; attempt < 2; attempt++ {
		reserved, err := s.client.SetNX(ctx, s.key(key), payload, ttl).Result()
		if err != nil {
			return nil, false, err
		}
		if reserved {
			return nil, true, nil
		}

		raw, err := s.client.Get(ctx, s.key(key)).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, false, err
		}

		var existing Record
		if err := json.Unmarshal(raw, &existing); err != nil {
			return nil, false, err
		}
		return &existing, false, nil
	}
	return nil, false, errors.New("idempotency key changed while reserving")
}

func (s *RedisStore) Complete(ctx context.Context, key string, record Record, ttl time.Duration) error {
	record.State = StateCompleted
	record.ExpiresAt = time.Now().Add(ttl)
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(key), payload, ttl).Err()
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}
