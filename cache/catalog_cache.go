// Package cache 按 owner 缓存 facets 与 suggestion 结果。
// 缓存键包含 owner 的目录版本号，每次变更递增版本号即可让该 owner 的全部缓存失效。
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"tunevault/logger"
	"tunevault/metrics"

	"github.com/go-redis/redis/v8"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// 缓存值类型，同时用作指标标签
const (
	KindFacets  = "facets"
	KindSuggest = "suggest"
)

// CatalogCache 目录缓存。缓存错误只记录日志，按未命中处理。
type CatalogCache interface {
	Version(ctx context.Context, ownerID int64) int64
	Bump(ctx context.Context, ownerID int64)
	Get(ctx context.Context, kind, key string, dest interface{}) bool
	Set(ctx context.Context, kind, key string, v interface{})
}

// FacetsKey 生成 facets 缓存键
func FacetsKey(ownerID, version int64) string {
	return fmt.Sprintf("catalog:facets:%d:v%d", ownerID, version)
}

// SuggestKey 生成 suggestion 缓存键
func SuggestKey(ownerID, version int64, partial string, limit int) string {
	return fmt.Sprintf("catalog:suggest:%d:v%d:%d:%s", ownerID, version, limit, strings.ToLower(strings.TrimSpace(partial)))
}

func versionKey(ownerID int64) string {
	return fmt.Sprintf("catalog:ver:%d", ownerID)
}

func observe(kind string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	metrics.CacheRequestsTotal.WithLabelValues(kind, result).Inc()
}

// ========== Redis 实现 ==========

// RedisCache 基于 Redis 的目录缓存，多实例部署时共享
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache 创建 Redis 目录缓存
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Version(ctx context.Context, ownerID int64) int64 {
	v, err := c.client.Get(ctx, versionKey(ownerID)).Int64()
	if err != nil && err != redis.Nil {
		logger.Warn("获取缓存版本失败", logger.Int64("ownerID", ownerID), logger.ErrorField(err))
	}
	return v
}

func (c *RedisCache) Bump(ctx context.Context, ownerID int64) {
	if err := c.client.Incr(ctx, versionKey(ownerID)).Err(); err != nil {
		logger.Warn("更新缓存版本失败", logger.Int64("ownerID", ownerID), logger.ErrorField(err))
	}
}

func (c *RedisCache) Get(ctx context.Context, kind, key string, dest interface{}) bool {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			metrics.CacheRequestsTotal.WithLabelValues(kind, "error").Inc()
			logger.Warn("读取缓存失败", logger.String("key", key), logger.ErrorField(err))
			return false
		}
		observe(kind, false)
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		observe(kind, false)
		return false
	}
	observe(kind, true)
	return true
}

func (c *RedisCache) Set(ctx context.Context, kind, key string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		logger.Warn("序列化缓存值失败", logger.String("kind", kind), logger.ErrorField(err))
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		logger.Warn("写入缓存失败", logger.String("key", key), logger.ErrorField(err))
	}
}

// ========== 进程内实现 ==========

// MemoryCache 进程内 LRU 缓存，未启用 Redis 时使用
type MemoryCache struct {
	lru *expirable.LRU[string, []byte]

	mu       sync.Mutex
	versions map[int64]int64
}

// NewMemoryCache 创建进程内目录缓存
func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	if size <= 0 {
		size = 1024
	}
	return &MemoryCache{
		lru:      expirable.NewLRU[string, []byte](size, nil, ttl),
		versions: make(map[int64]int64),
	}
}

func (c *MemoryCache) Version(_ context.Context, ownerID int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.versions[ownerID]
}

func (c *MemoryCache) Bump(_ context.Context, ownerID int64) {
	c.mu.Lock()
	c.versions[ownerID]++
	c.mu.Unlock()
}

func (c *MemoryCache) Get(_ context.Context, kind, key string, dest interface{}) bool {
	data, ok := c.lru.Get(key)
	if !ok {
		observe(kind, false)
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		observe(kind, false)
		return false
	}
	observe(kind, true)
	return true
}

func (c *MemoryCache) Set(_ context.Context, kind, key string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		logger.Warn("序列化缓存值失败", logger.String("kind", kind), logger.ErrorField(err))
		return
	}
	c.lru.Add(key, data)
}

// Nop 不缓存任何内容（测试与命令行工具使用）
type Nop struct{}

func (Nop) Version(context.Context, int64) int64                  { return 0 }
func (Nop) Bump(context.Context, int64)                           {}
func (Nop) Get(context.Context, string, string, interface{}) bool { return false }
func (Nop) Set(context.Context, string, string, interface{})      {}
