package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"frameworks/cartographer/pkg/config"
)

const defaultTimeout = 5 * time.Second

// Mode selects the Redis deployment topology.
type Mode string

const (
	ModeSingle   Mode = "single"
	ModeSentinel Mode = "sentinel"
	ModeCluster  Mode = "cluster"
)

// Config configures a topology-agnostic Redis connection.
type Config struct {
	Mode         Mode
	Addrs        []string // single: 1 addr, sentinel: sentinel addrs, cluster: seed nodes
	MasterName   string   // sentinel only
	Username     string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// ConfigFromEnv reads REDIS_* variables. An empty Addrs means Redis is disabled.
func ConfigFromEnv() Config {
	return Config{
		Mode:       Mode(strings.ToLower(config.GetEnv("REDIS_MODE", string(ModeSingle)))),
		Addrs:      config.GetEnvList("REDIS_ADDRS", nil),
		MasterName: config.GetEnv("REDIS_MASTER_NAME", ""),
		Username:   config.GetEnv("REDIS_USERNAME", ""),
		Password:   config.GetEnv("REDIS_PASSWORD", ""),
		DB:         config.GetEnvInt("REDIS_DB", 0),
	}
}

func orDefault(d time.Duration) time.Duration {
	if d == 0 {
		return defaultTimeout
	}
	return d
}

// NewUniversalClient creates a Redis client for single-node, Sentinel or
// Cluster topologies. go-redis routes on the options: MasterName set →
// Sentinel, multiple Addrs → Cluster, single Addr → standalone.
func NewUniversalClient(ctx context.Context, cfg Config) (goredis.UniversalClient, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("at least one redis address is required")
	}

	opts := &goredis.UniversalOptions{
		Addrs:        cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  orDefault(cfg.DialTimeout),
		ReadTimeout:  orDefault(cfg.ReadTimeout),
		WriteTimeout: orDefault(cfg.WriteTimeout),
	}

	var client goredis.UniversalClient
	switch cfg.Mode {
	case ModeSentinel:
		if cfg.MasterName == "" {
			return nil, fmt.Errorf("sentinel mode requires a master name")
		}
		opts.MasterName = cfg.MasterName
		client = goredis.NewUniversalClient(opts)
	case ModeCluster:
		// A single seed would otherwise be treated as a standalone node.
		client = goredis.NewClusterClient(opts.Cluster())
	default:
		client = goredis.NewUniversalClient(opts)
	}

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}
