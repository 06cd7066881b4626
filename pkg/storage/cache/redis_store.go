package cache

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"orphansweep/pkg/storage"

	"github.com/redis/go-redis/v9"
)

// listBatch 回填 Redis 时每次 RPUSH 的 key 数量
const listBatch = 1000

// CachedStore 是一个装饰器，它为底层 storage.Store 的 key 列表添加 Redis 缓存层
// 只用于只读的 scan：clean 永远直接列举底层存储
type CachedStore struct {
	backend storage.Store // 被装饰的底层存储 (如 S3)
	client  *redis.Client // Redis 客户端
	ttl     time.Duration // 缓存过期时间
	ns      string        // 缓存命名空间 (通常是 bucket 名)
}

type Config struct {
	RedisURL  string        // 标准连接字符串: redis://<user>:<password>@<host>:<port>/<db>
	TTL       time.Duration // 过期时间
	Namespace string        // 区分不同 bucket 的缓存
}

func NewCachedStore(backend storage.Store, cfg Config) (*CachedStore, error) {
	// 解析 URL
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	// Fail-fast 连接检查
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &CachedStore{
		backend: backend,
		client:  client,
		ttl:     cfg.TTL,
		ns:      cfg.Namespace,
	}, nil
}

// cacheKey 生成 Redis Key，添加前缀防止冲突
func (s *CachedStore) cacheKey() string {
	return "sweep:keys:" + s.ns
}

// ListKeys 优先读 Redis 中的快照，未命中时列举底层存储并回填
func (s *CachedStore) ListKeys(ctx context.Context, fn func(key string) error) error {
	key := s.cacheKey()

	// 1. 查 Redis
	keys, err := s.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		// 缓存故障降级：退化为无缓存模式
		slog.Warn("redis list cache unavailable", "error", err)
	} else if len(keys) > 0 {
		for _, k := range keys {
			if err := fn(k); err != nil {
				return err
			}
		}
		return nil
	}

	// 2. 缓存未命中，穿透到底层存储
	var collected []string
	if err := s.backend.ListKeys(ctx, func(k string) error {
		collected = append(collected, k)
		return fn(k)
	}); err != nil {
		return err
	}

	// 3. 回填 (只有完整列举成功才写缓存)
	s.fill(ctx, collected)
	return nil
}

func (s *CachedStore) fill(ctx context.Context, keys []string) {
	if len(keys) == 0 {
		return
	}
	key := s.cacheKey()

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		for start := 0; start < len(keys); start += listBatch {
			end := min(start+listBatch, len(keys))
			vals := make([]any, 0, end-start)
			for _, k := range keys[start:end] {
				vals = append(vals, k)
			}
			pipe.RPush(ctx, key, vals...)
		}
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		slog.Warn("redis list cache fill failed", "error", err)
	}
}

// Invalidate 丢弃缓存的列表
func (s *CachedStore) Invalidate(ctx context.Context) error {
	return s.client.Del(ctx, s.cacheKey()).Err()
}

// Get 透传 - 不缓存 Blob 数据
func (s *CachedStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.backend.Get(ctx, key)
}

// Delete 透传，并让缓存失效
func (s *CachedStore) Delete(ctx context.Context, keys []string) (map[string]error, error) {
	failures, err := s.backend.Delete(ctx, keys)
	if ierr := s.Invalidate(ctx); ierr != nil {
		slog.Warn("redis list cache invalidate failed", "error", ierr)
	}
	return failures, err
}

// Close 释放 Redis 连接
func (s *CachedStore) Close() error {
	return s.client.Close()
}

var _ storage.Store = (*CachedStore)(nil)
