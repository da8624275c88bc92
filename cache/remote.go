package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
)

// RemoteTier is consulted on a local miss and written by Set
// (SetWithTags writes the memory tier only). Implementations must never return an error the caller cannot
// treat as "unavailable, fall back to memory" — this engine's cache layer
// guarantees remote outages never surface past it.
type RemoteTier[T any] interface {
	Get(key string) (value T, ok bool, err error)
	Set(key string, value T, ttl time.Duration) error
}

// RedisTier is the Redis-backed remote tier, grounded on the engine's
// guarded-client-over-go-redis pattern used for discovery and capability
// routing elsewhere in this codebase.
type RedisTier[T any] struct {
	client  *redis.Client
	prefix  string
	codec   *Codec
	timeout time.Duration
}

// NewRedisTier wraps an existing *redis.Client. prefix namespaces keys so
// multiple caches can share one Redis instance.
func NewRedisTier[T any](client *redis.Client, prefix string, codec *Codec) *RedisTier[T] {
	if codec == nil {
		codec = NewCodec(CodecOptions{})
	}
	return &RedisTier[T]{client: client, prefix: prefix, codec: codec, timeout: 2 * time.Second}
}

func (r *RedisTier[T]) key(k string) string { return r.prefix + ":" + k }

func (r *RedisTier[T]) Get(key string) (T, bool, error) {
	var zero T
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	raw, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err == redis.Nil {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, err
	}

	decoded, err := r.codec.Decode(raw)
	if err != nil {
		return zero, false, err
	}

	var v T
	if err := json.Unmarshal(decoded, &v); err != nil {
		return zero, false, err
	}
	return v, true, nil
}

func (r *RedisTier[T]) Set(key string, value T, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	encoded, err := r.codec.Encode(raw)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key(key), encoded, ttl).Err()
}
