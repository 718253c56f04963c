package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/omega-realm/pokeidle/internal/config"
	"github.com/omega-realm/pokeidle/internal/logging"
)

// Client wraps the Redis client
type Client struct {
	*redis.Client
	log *zap.Logger
}

// Config holds Redis configuration
type Config struct {
	Host        string
	Port        string
	Password    string
	DB          int
	PoolSize    int
	DialTimeout time.Duration
	// KeyPrefix namespaces every key, so several deployments can share one instance
	KeyPrefix string
}

// LoadConfigFromEnv loads Redis configuration from environment variables
func LoadConfigFromEnv() *Config {
	return &Config{
		Host:        config.GetEnv("REDIS_HOST", "localhost"),
		Port:        config.GetEnv("REDIS_PORT", "6379"),
		Password:    config.GetEnv("REDIS_PASSWORD", ""),
		DB:          config.GetEnvAsInt("REDIS_DB", 0),
		PoolSize:    config.GetEnvAsInt("REDIS_POOL_SIZE", 10),
		DialTimeout: config.GetEnvAsDuration("REDIS_DIAL_TIMEOUT", 10*time.Second),
		KeyPrefix:   config.GetEnv("REDIS_KEY_PREFIX", "pokeidle:"),
	}
}

// NewClient creates a new Redis client with the provided configuration
func NewClient(cfg *Config, log *zap.Logger) (*Client, error) {
	addr := fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)

	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		PoolTimeout:  10 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log = logging.OrNop(log).Named("redis")
	log.Info("connected", zap.String("addr", addr), zap.Int("db", cfg.DB), zap.Int("pool_size", cfg.PoolSize))

	return &Client{Client: rdb, log: log}, nil
}

// Wrap adapts an existing go-redis client, mostly for tests
func Wrap(rdb *redis.Client, log *zap.Logger) *Client {
	return &Client{Client: rdb, log: logging.OrNop(log).Named("redis")}
}
