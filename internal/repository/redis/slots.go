package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// Slots implements repository.Slots using Redis string keys with a sliding
// TTL refreshed on every read and write.
type Slots struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewSlots creates a Redis-backed slot store.
func NewSlots(client redis.UniversalClient, ttl time.Duration) *Slots {
	return &Slots{
		client: client,
		ttl:    ttl,
	}
}

// Get reads key and refreshes its TTL.
func (s *Slots) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.GetEx(ctx, key, s.ttl).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.NotFound("slot", key)
		}
		return nil, fmt.Errorf("redis getex %s: %w", key, err)
	}
	return data, nil
}

// Set overwrites key with the configured TTL.
func (s *Slots) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, key, value, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (s *Slots) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}
