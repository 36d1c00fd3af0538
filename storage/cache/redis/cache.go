package rediscache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/eduassist/core"
	"github.com/trezcool/eduassist/core/cache"
)

// DecodeFunc turns raw cached bytes back into the namespace's Go value.
type DecodeFunc func(data []byte) (interface{}, error)

// Cache is a Redis-backed cache.Cache. Values are stored as JSON;
// each key namespace must be registered with a decoder so Get can
// return a typed value.
type Cache struct {
	client   *redis.Client
	decoders map[string]DecodeFunc
	ttl      time.Duration
}

var _ cache.Cache = (*Cache)(nil)

const defaultTTL = time.Hour

func New(conf *core.Config) *Cache {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
	return &Cache{
		client:   client,
		decoders: make(map[string]DecodeFunc),
		ttl:      defaultTTL,
	}
}

// Register binds a decoder to a key namespace (the first key part).
func (c *Cache) Register(namespace string, decode DecodeFunc) {
	c.decoders[namespace] = decode
}

// Ping checks the connection.
func (c *Cache) Ping(ctx context.Context) error {
	return errors.Wrap(c.client.Ping(ctx).Err(), "pinging redis")
}

func (c *Cache) Close() error { return c.client.Close() }

func (c *Cache) Get(ctx context.Context, key cache.Key) (interface{}, bool, error) {
	if len(key) == 0 {
		return nil, false, errors.New("empty cache key")
	}
	decode, ok := c.decoders[key[0]]
	if !ok {
		return nil, false, errors.Errorf("no decoder registered for namespace %q", key[0])
	}

	data, err := c.client.Get(ctx, key.String()).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(err, "getting cached value")
	}

	value, err := decode(data)
	if err != nil {
		return nil, false, errors.Wrap(err, "decoding cached value")
	}
	return value, true, nil
}

func (c *Cache) Set(ctx context.Context, key cache.Key, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "encoding value")
	}
	return errors.Wrap(c.client.Set(ctx, key.String(), data, c.ttl).Err(), "setting cached value")
}

func (c *Cache) Delete(ctx context.Context, key cache.Key) error {
	return errors.Wrap(c.client.Del(ctx, key.String()).Err(), "deleting cached value")
}
