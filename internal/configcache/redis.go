package configcache

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"frameworks/cartographer/pkg/cache"
	"frameworks/cartographer/pkg/logging"
	"frameworks/cartographer/pkg/redis"
)

// InvalidationChannel carries Clean calls between instances.
const InvalidationChannel = "cartographer:config_cache:invalidate"

const (
	defaultKeyPrefix = "cartographer:config:"
	scanBatch        = 500
)

// Invalidation is published after a Clean so peers can drop their own
// derived state.
type Invalidation struct {
	Prefix string `json:"prefix"`
	Origin string `json:"origin"`
}

// RedisCache is shared by every instance pointing at the same Redis. Read
// and write failures are logged and treated as misses so a Redis outage
// only costs rebuild time.
type RedisCache struct {
	client     goredis.UniversalClient
	keyPrefix  string
	ttl        time.Duration
	metrics    cache.MetricsHooks
	pubsub     *redis.TypedPubSub[Invalidation]
	instanceID string
	logger     logging.Logger
}

func NewRedisCache(client goredis.UniversalClient, opts Options, logger logging.Logger) *RedisCache {
	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisCache{
		client:     client,
		keyPrefix:  prefix,
		ttl:        opts.TTL,
		metrics:    opts.Metrics,
		pubsub:     redis.NewTypedPubSub[Invalidation](client, logger),
		instanceID: uuid.NewString(),
		logger:     logger,
	}
}

func (c *RedisCache) key(k string) string {
	return c.keyPrefix + k
}

func (c *RedisCache) Load(ctx context.Context, key string) (string, bool, error) {
	val, err := c.client.Get(ctx, c.key(key)).Result()
	if errors.Is(err, goredis.Nil) {
		c.miss(key)
		return "", false, nil
	}
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Config cache read failed")
		c.miss(key)
		return "", false, nil
	}
	if c.metrics.OnHit != nil {
		c.metrics.OnHit(key)
	}
	return val, true, nil
}

func (c *RedisCache) miss(key string) {
	if c.metrics.OnMiss != nil {
		c.metrics.OnMiss(key)
	}
}

func (c *RedisCache) Save(ctx context.Context, key, value string) error {
	err := c.client.Set(ctx, c.key(key), value, c.ttl).Err()
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Config cache write failed")
	}
	if c.metrics.OnStore != nil {
		c.metrics.OnStore(key, err == nil)
	}
	return nil
}

// Clean deletes every key starting with prefix and announces the
// invalidation to other instances.
func (c *RedisCache) Clean(ctx context.Context, prefix string) error {
	pattern := c.key(prefix) + "*"

	var deleted atomic.Int64
	clean := func(ctx context.Context, client goredis.UniversalClient) error {
		n, err := deleteMatching(ctx, client, pattern)
		deleted.Add(n)
		return err
	}

	var err error
	if cluster, ok := c.client.(*goredis.ClusterClient); ok {
		err = cluster.ForEachMaster(ctx, func(ctx context.Context, node *goredis.Client) error {
			return clean(ctx, node)
		})
	} else {
		err = clean(ctx, c.client)
	}
	if err != nil {
		return err
	}

	if err := c.pubsub.Publish(ctx, InvalidationChannel, Invalidation{Prefix: prefix, Origin: c.instanceID}); err != nil {
		c.logger.WithError(err).Warn("Failed to publish config cache invalidation")
	}
	c.logger.WithFields(logging.Fields{
		"prefix":  prefix,
		"deleted": deleted.Load(),
	}).Info("Config cache cleaned")
	return nil
}

func deleteMatching(ctx context.Context, client goredis.UniversalClient, pattern string) (int64, error) {
	var (
		cursor  uint64
		deleted int64
	)
	for {
		keys, next, err := client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return deleted, err
		}
		if len(keys) > 0 {
			// one DEL per key; scanned keys may span cluster slots
			pipe := client.Pipeline()
			cmds := make([]*goredis.IntCmd, 0, len(keys))
			for _, k := range keys {
				cmds = append(cmds, pipe.Del(ctx, k))
			}
			if _, err := pipe.Exec(ctx); err != nil {
				return deleted, err
			}
			for _, cmd := range cmds {
				deleted += cmd.Val()
			}
		}
		cursor = next
		if cursor == 0 {
			return deleted, nil
		}
	}
}

// Watch blocks until ctx is done, calling handler for every invalidation
// published by another instance.
func (c *RedisCache) Watch(ctx context.Context, ready chan<- struct{}, handler func(Invalidation)) error {
	return c.pubsub.Subscribe(ctx, InvalidationChannel, ready, func(msg Invalidation) {
		if msg.Origin == c.instanceID {
			return
		}
		handler(msg)
	})
}
