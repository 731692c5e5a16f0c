// Package configcache stores rendered configuration blobs such as the region
// JSON. Backends: Redis (shared across instances), in-process memory, or
// none.
package configcache

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"frameworks/cartographer/pkg/cache"
	"frameworks/cartographer/pkg/logging"
)

const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
	BackendNone   = "none"
)

// Cache is the directory.ConfigCache contract.
type Cache interface {
	Load(ctx context.Context, key string) (string, bool, error)
	Save(ctx context.Context, key, value string) error
	Clean(ctx context.Context, prefix string) error
}

type Options struct {
	Backend   string
	KeyPrefix string
	TTL       time.Duration
	// MaxEntries bounds the memory backend.
	MaxEntries int
	Metrics    cache.MetricsHooks
}

// New builds the cache selected by opts.Backend. The redis backend requires
// a client.
func New(opts Options, client goredis.UniversalClient, logger logging.Logger) (Cache, error) {
	switch strings.ToLower(opts.Backend) {
	case BackendRedis:
		if client == nil {
			return nil, fmt.Errorf("config cache backend %q needs a redis client", opts.Backend)
		}
		return NewRedisCache(client, opts, logger), nil
	case BackendMemory, "":
		return NewMemoryCache(opts), nil
	case BackendNone:
		return Noop{}, nil
	default:
		return nil, fmt.Errorf("unknown config cache backend %q", opts.Backend)
	}
}

// MemoryCache keeps entries in process.
type MemoryCache struct {
	items *cache.Cache[string]
	ttl   time.Duration
}

func NewMemoryCache(opts Options) *MemoryCache {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &MemoryCache{
		items: cache.New[string](cache.Options{TTL: ttl, MaxEntries: opts.MaxEntries}, opts.Metrics),
		ttl:   ttl,
	}
}

func (m *MemoryCache) Load(_ context.Context, key string) (string, bool, error) {
	v, ok := m.items.Peek(key)
	return v, ok, nil
}

func (m *MemoryCache) Save(_ context.Context, key, value string) error {
	m.items.Set(key, value, m.ttl)
	return nil
}

func (m *MemoryCache) Clean(_ context.Context, prefix string) error {
	m.items.DeleteFunc(func(key string) bool { return strings.HasPrefix(key, prefix) })
	return nil
}

// Noop never stores anything.
type Noop struct{}

func (Noop) Load(context.Context, string) (string, bool, error) { return "", false, nil }
func (Noop) Save(context.Context, string, string) error         { return nil }
func (Noop) Clean(context.Context, string) error                { return nil }
