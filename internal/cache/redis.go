// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wneessen/geo-loc/internal/location"
)

// RedisKeyPrefix is prepended to every key written by the RedisStore. Keys are
// "geo-loc:fix:<host>:<provider>".
const RedisKeyPrefix = "geo-loc:fix:"

// RedisStore keeps cached fixes in Redis. Several hosts can share one server, each host only
// sees its own entries. Expiry is handled by Redis.
type RedisStore struct {
	client redis.UniversalClient
	host   string
}

// RedisOptions configures the connection of a RedisStore.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// Host separates the entries of hosts sharing a server. Defaults to os.Hostname.
	Host string
}

// NewRedisStore opens a client for the given address.
func NewRedisStore(opts RedisOptions) (*RedisStore, error) {
	if opts.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	if opts.DB < 0 {
		opts.DB = 0
	}
	if opts.Host == "" {
		host, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("failed to determine hostname for redis keys: %w", err)
		}
		opts.Host = host
	}
	return &RedisStore{
		client: redis.NewClient(&redis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
		}),
		host: opts.Host,
	}, nil
}

func (r *RedisStore) key(key string) string {
	return RedisKeyPrefix + r.host + ":" + key
}

func (r *RedisStore) Get(ctx context.Context, key string) (location.Fix, bool, error) {
	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return location.Fix{}, false, nil
	}
	if err != nil {
		return location.Fix{}, false, fmt.Errorf("failed to read fix from redis: %w", err)
	}
	_, fix, err := decode(data)
	if err != nil {
		return location.Fix{}, false, err
	}
	return fix, true, nil
}

func (r *RedisStore) Set(ctx context.Context, key string, fix location.Fix, ttl time.Duration) error {
	data, err := encode(fix, time.Now().Add(ttl))
	if err != nil {
		return err
	}
	if err = r.client.Set(ctx, r.key(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store fix in redis: %w", err)
	}
	return nil
}

// Ping checks that the server is reachable.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
