package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "stocksync:collection:"

// RedisRepository stores each collection as one JSON array value.
type RedisRepository struct {
	client *redis.Client
}

// NewRedisRepository wraps an existing Redis client.
func NewRedisRepository(client *redis.Client) *RedisRepository {
	return &RedisRepository{client: client}
}

func collectionKey(name string) string {
	return redisKeyPrefix + name
}

// Get implements Repository.
func (r *RedisRepository) Get(ctx context.Context, collection string) ([]json.RawMessage, error) {
	if collection == "" {
		return nil, ErrUnknownCollection
	}
	payload, err := r.client.Get(ctx, collectionKey(collection)).Bytes()
	if errors.Is(err, redis.Nil) {
		return []json.RawMessage{}, nil
	}
	if err != nil {
		return nil, err
	}
	var records []json.RawMessage
	if err := json.Unmarshal(payload, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Put implements Repository.
func (r *RedisRepository) Put(ctx context.Context, collection string, records []json.RawMessage) error {
	return r.PutAll(ctx, map[string][]json.RawMessage{collection: records})
}

// PutAll implements Repository using a MULTI/EXEC pipeline.
func (r *RedisRepository) PutAll(ctx context.Context, batch map[string][]json.RawMessage) error {
	payloads := make(map[string][]byte, len(batch))
	for name, records := range batch {
		if name == "" {
			return ErrUnknownCollection
		}
		if records == nil {
			records = []json.RawMessage{}
		}
		raw, err := json.Marshal(records)
		if err != nil {
			return err
		}
		payloads[collectionKey(name)] = raw
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for key, raw := range payloads {
			pipe.Set(ctx, key, raw, 0)
		}
		return nil
	})
	return err
}
