package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/config"
)

// RedisCache 基于 go-redis 的 Cache 实现。
type RedisCache struct {
	client redis.UniversalClient
}

// RedisConfig 同时给出 MasterName 和 SentinelAddrs 时使用哨兵模式，否则连接 Host。
type RedisConfig struct {
	Host     string
	Username string
	Password string
	DB       int

	MasterName       string
	SentinelAddrs    []string
	SentinelUsername string
	SentinelPassword string
}

// RedisConfigFromDep 把 depServices.redis 转成客户端配置，connectType 为 sentinel 时走哨兵模式。
func RedisConfigFromDep(dep config.DepRedisConfig) RedisConfig {
	info := dep.ConnectInfo
	cfg := RedisConfig{
		Username: info.Username,
		Password: info.Password,
	}
	addr := fmt.Sprintf("%s:%d", info.SentinelHost, info.SentinelPort)
	if dep.ConnectType == "sentinel" {
		cfg.MasterName = info.MasterGroupName
		cfg.SentinelAddrs = []string{addr}
		cfg.SentinelUsername = info.SentinelUsername
		cfg.SentinelPassword = info.SentinelPassword
	} else {
		cfg.Host = addr
	}
	return cfg
}

// NewRedisCache 创建客户端并 Ping，连接失败时返回错误。
func NewRedisCache(cfg RedisConfig) (Cache, error) {
	var client redis.UniversalClient

	if cfg.MasterName != "" && len(cfg.SentinelAddrs) > 0 {
		client = newSentinelClient(cfg)
	} else {
		client = newStandaloneClient(cfg)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "连接 redis 失败")
	}

	return &RedisCache{client: client}, nil
}

// 引擎只在启动时读一次快照、之后定期覆盖写，连接池保持很小。
// 快照可能较大，写超时放宽。
const (
	poolSize     = 4
	minIdleConns = 1
	maxRetries   = 3
	dialTimeout  = 5 * time.Second
	readTimeout  = 3 * time.Second
	writeTimeout = 10 * time.Second
)

func newSentinelClient(cfg RedisConfig) redis.UniversalClient {
	return redis.NewFailoverClient(&redis.FailoverOptions{
		MasterName:       cfg.MasterName,
		SentinelAddrs:    cfg.SentinelAddrs,
		SentinelUsername: cfg.SentinelUsername,
		SentinelPassword: cfg.SentinelPassword,
		Username:         cfg.Username,
		Password:         cfg.Password,
		DB:               cfg.DB,
		PoolSize:         poolSize,
		MinIdleConns:     minIdleConns,
		MaxRetries:       maxRetries,
		DialTimeout:      dialTimeout,
		ReadTimeout:      readTimeout,
		WriteTimeout:     writeTimeout,
	})
}

func newStandaloneClient(cfg RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Host,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     poolSize,
		MinIdleConns: minIdleConns,
		MaxRetries:   maxRetries,
		DialTimeout:  dialTimeout,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	})
}

// Get 获取缓存值。
func (r *RedisCache) Get(ctx context.Context, key string) (string, error) {
	value, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", errors.Wrap(ErrNotFound, key)
	}
	if err != nil {
		return "", errors.Wrap(err, "redis get")
	}
	return value, nil
}

// Set 设置缓存值。
func (r *RedisCache) Set(ctx context.Context, key string, value string, expiration time.Duration) error {
	err := r.client.Set(ctx, key, value, expiration).Err()
	if err != nil {
		return errors.Wrap(err, "redis set")
	}
	return nil
}

// Close 关闭 Redis 连接。
func (r *RedisCache) Close() error {
	return r.client.Close()
}
