package files

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/openparish/backend/pkg/storage"
)

// RecordCache caches file metadata records for the retrieval path,
// which is by far the hottest endpoint (every page embeds images).
// Misses are not errors; a failing cache degrades to storage reads.
type RecordCache interface {
	Get(ctx context.Context, id string) (*storage.UploadedFile, bool)
	Put(ctx context.Context, id string, f *storage.UploadedFile)
	Invalidate(ctx context.Context, id string)
}

// RedisCache shares file records across instances.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache returns a RecordCache backed by redis.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func redisKey(id string) string {
	return "file:" + id
}

func (c *RedisCache) Get(ctx context.Context, id string) (*storage.UploadedFile, bool) {
	data, err := c.client.Get(ctx, redisKey(id)).Bytes()
	if err != nil {
		return nil, false
	}
	var f storage.UploadedFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, false
	}
	return &f, true
}

func (c *RedisCache) Put(ctx context.Context, id string, f *storage.UploadedFile) {
	data, err := json.Marshal(f)
	if err != nil {
		return
	}
	c.client.Set(ctx, redisKey(id), data, c.ttl)
}

func (c *RedisCache) Invalidate(ctx context.Context, id string) {
	c.client.Del(ctx, redisKey(id))
}

// LRUCache is the in-process fallback when redis is not configured.
type LRUCache struct {
	cache *lru.Cache[string, *storage.UploadedFile]
}

// NewLRUCache returns a RecordCache holding up to size records.
func NewLRUCache(size int) (*LRUCache, error) {
	cache, err := lru.New[string, *storage.UploadedFile](size)
	if err != nil {
		return nil, err
	}
	return &LRUCache{cache: cache}, nil
}

func (c *LRUCache) Get(ctx context.Context, id string) (*storage.UploadedFile, bool) {
	return c.cache.Get(id)
}

func (c *LRUCache) Put(ctx context.Context, id string, f *storage.UploadedFile) {
	c.cache.Add(id, f)
}

func (c *LRUCache) Invalidate(ctx context.Context, id string) {
	c.cache.Remove(id)
}
