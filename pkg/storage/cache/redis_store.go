package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"datafold/pkg/storage"

	"github.com/redis/go-redis/v9"
)

// MetadataSuffix 标记可以整体缓存内容的小对象
const MetadataSuffix = ".metadata"

// CachedStore 是一个装饰器，它为底层的 storage.Store 添加 Redis 缓存层
// 缓存两类信息：对象是否存在 (所有对象)；元数据记录的完整内容 (.metadata，体积很小)
type CachedStore struct {
	backend storage.Store // 被装饰的底层存储 (如 S3)
	client  *redis.Client // Redis 客户端
	ttl     time.Duration // 缓存过期时间 (例如 24h)
	prefix  string
}

type Config struct {
	RedisURL  string        // 标准连接字符串: redis://<user>:<password>@<host>:<port>/<db>
	TTL       time.Duration // 过期时间
	KeyPrefix string        // 默认 "dfold:"
}

// NewCachedStore 解析 URL 并做 Fail-fast 连接检查
func NewCachedStore(backend storage.Store, cfg Config) (*CachedStore, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewWithClient(backend, client, cfg.TTL, cfg.KeyPrefix), nil
}

// NewWithClient 使用已有的 Redis 客户端，不做连接检查
func NewWithClient(backend storage.Store, client *redis.Client, ttl time.Duration, keyPrefix string) *CachedStore {
	if keyPrefix == "" {
		keyPrefix = "dfold:"
	}
	return &CachedStore{backend: backend, client: client, ttl: ttl, prefix: keyPrefix}
}

func (s *CachedStore) Close() error { return s.client.Close() }

// existsKey / blobKey 生成 Redis Key，添加前缀防止冲突
func (s *CachedStore) existsKey(name string) string { return s.prefix + "obj:" + name }
func (s *CachedStore) blobKey(name string) string   { return s.prefix + "blob:" + name }

func cacheable(name string) bool { return strings.HasSuffix(name, MetadataSuffix) }

// Has 优先查 Redis
func (s *CachedStore) Has(ctx context.Context, name string) (bool, error) {
	key := s.existsKey(name)

	// 1. 查 Redis
	// Exists 返回 1 表示存在，0 表示不存在
	val, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		// 缓存故障降级：Redis 不可用时退化为无缓存模式，直接查底层
		slog.Warn("redis exists failed, falling back to backend", "name", name, "error", err)
	} else if val > 0 {
		// Cache Hit
		return true, nil
	}

	// 2. 缓存未命中 (Cache Miss)，查底层存储
	found, err := s.backend.Has(ctx, name)
	if err != nil {
		return false, err
	}

	// 3. 缓存回填 (Cache Fill)
	if found {
		// 异步写入 Redis，不阻塞主流程
		// 使用 context.Background() 确保即使上层 ctx 取消，回填也能完成
		go func() {
			fillCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			s.client.Set(fillCtx, key, "1", s.ttl)
		}()
	}

	return found, nil
}

// Put 写穿 (Write-Through)：先写底层，成功后刷新缓存
// 记录允许被覆盖，所以这里不能像内容寻址存储那样"已存在就跳过"
func (s *CachedStore) Put(ctx context.Context, name string, data []byte) error {
	if err := s.backend.Put(ctx, name, data); err != nil {
		// 底层写失败时旧缓存可能已经过时，直接丢弃
		s.invalidate(ctx, name)
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.existsKey(name), "1", s.ttl)
	if cacheable(name) {
		pipe.Set(ctx, s.blobKey(name), data, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		// 缓存写失败不影响主流程，但要保证不会留下旧内容
		slog.Warn("redis cache update failed", "name", name, "error", err)
		s.invalidate(ctx, name)
	}
	return nil
}

// Get 对元数据记录读缓存，payload 透传
// payload 可能很大，Redis 内存宝贵，只缓存元数据
func (s *CachedStore) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	if !cacheable(name) {
		return s.backend.Get(ctx, name)
	}

	data, err := s.client.Get(ctx, s.blobKey(name)).Bytes()
	if err == nil {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	if !errors.Is(err, redis.Nil) {
		slog.Warn("redis get failed, falling back to backend", "name", name, "error", err)
	}

	data, err = storage.ReadAll(ctx, s.backend, name)
	if err != nil {
		return nil, err
	}
	// 回填
	if err := s.client.Set(ctx, s.blobKey(name), data, s.ttl).Err(); err != nil {
		slog.Debug("redis fill failed", "name", name, "error", err)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// List 透传
func (s *CachedStore) List(ctx context.Context, suffix string) ([]string, error) {
	return s.backend.List(ctx, suffix)
}

func (s *CachedStore) Delete(ctx context.Context, name string) error {
	if err := s.backend.Delete(ctx, name); err != nil {
		return err
	}
	s.invalidate(ctx, name)
	return nil
}

func (s *CachedStore) invalidate(ctx context.Context, name string) {
	if err := s.client.Del(ctx, s.existsKey(name), s.blobKey(name)).Err(); err != nil {
		slog.Warn("redis invalidate failed", "name", name, "error", err)
	}
}
