package cache

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// ErrNotFound 键不存在。
var ErrNotFound = errors.New("cache key not found")

// Cache 键值缓存接口，引擎状态快照通过它落到 Redis。
type Cache interface {
	// Get 获取缓存值，键不存在时返回 ErrNotFound
	Get(ctx context.Context, key string) (string, error)

	// Set 设置缓存值，expiration 为 0 表示永不过期
	Set(ctx context.Context, key string, value string, expiration time.Duration) error

	Close() error
}
