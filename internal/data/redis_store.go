package data

import (
	"clouddb/internal/core"
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisPrefix = "clouddb:"

// RedisStore keeps each document in a hash holding its body and version.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// OpenRedis connects and pings the server.
func OpenRedis(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return NewRedisStore(client), nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, int64, error) {
	vals, err := s.client.HMGet(ctx, redisPrefix+key, "body", "version").Result()
	if err != nil {
		return nil, 0, fmt.Errorf("redis get %s: %w", key, err)
	}
	body, ok := vals[0].(string)
	if !ok {
		return nil, 0, ErrBlobNotFound
	}
	var version int64
	if v, ok := vals[1].(string); ok {
		if _, err := fmt.Sscan(v, &version); err != nil {
			return nil, 0, fmt.Errorf("redis version %s: %w", key, err)
		}
	}
	return []byte(body), version, nil
}

func (s *RedisStore) Put(ctx context.Context, key string, body []byte, expectVersion int64) (int64, error) {
	rkey := redisPrefix + key
	next := expectVersion + 1

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, rkey, "version").Int64()
		if errors.Is(err, redis.Nil) {
			current = 0
		} else if err != nil {
			return err
		}
		if current != expectVersion {
			return core.ErrVersionConflict
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, rkey, "body", body, "version", next)
			return nil
		})
		return err
	}, rkey)

	switch {
	case errors.Is(err, redis.TxFailedErr):
		return 0, core.ErrVersionConflict
	case err != nil:
		return 0, err
	}
	return next, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
