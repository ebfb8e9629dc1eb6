package store

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nmsalvatore/go-blog/internal/post"
)

const publishedFeedKey = "feed:published"

// ErrCacheMiss is returned by Cache.Get when the key is absent.
var ErrCacheMiss = errors.New("cache miss")

// Cache is the key/value store behind Cached.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, val string) error
	Del(ctx context.Context, keys ...string) error
}

type RedisCache struct {
	Cli *redis.Client
	TTL time.Duration
}

func NewRedisCache(addr string, db int, ttl time.Duration) *RedisCache {
	return &RedisCache{
		Cli: redis.NewClient(&redis.Options{Addr: addr, DB: db}),
		TTL: ttl,
	}
}

func (r *RedisCache) Get(ctx context.Context, key string) (string, error) {
	val, err := r.Cli.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	return val, err
}

func (r *RedisCache) Set(ctx context.Context, key, val string) error {
	return r.Cli.Set(ctx, key, val, r.TTL).Err()
}

func (r *RedisCache) Del(ctx context.Context, keys ...string) error {
	return r.Cli.Del(ctx, keys...).Err()
}

func (r *RedisCache) Ping(ctx context.Context) error {
	return r.Cli.Ping(ctx).Err()
}

func (r *RedisCache) Close() error {
	return r.Cli.Close()
}

// Cached serves single-post reads and the published feed from a cache,
// falling through to repo on a miss. Writes go straight to repo and then
// invalidate the affected keys. Cache faults are logged and never fail a
// call.
type Cached struct {
	repo   post.Repository
	cache  Cache
	logger *log.Logger
}

func NewCached(repo post.Repository, cache Cache, logger *log.Logger) *Cached {
	if logger == nil {
		logger = log.Default()
	}
	return &Cached{repo: repo, cache: cache, logger: logger}
}

func postKey(id string) string {
	return "post:" + id
}

func (c *Cached) Create(ctx context.Context, ownerID string, e post.Edit) (*post.Post, error) {
	p, err := c.repo.Create(ctx, ownerID, e)
	if err != nil {
		return nil, err
	}
	if p.IsPublished() {
		c.invalidate(ctx, publishedFeedKey)
	}
	return p, nil
}

func (c *Cached) Update(ctx context.Context, id, ownerID string, e post.Edit) (*post.Post, error) {
	p, err := c.repo.Update(ctx, id, ownerID, e)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, postKey(id), publishedFeedKey)
	return p, nil
}

func (c *Cached) Delete(ctx context.Context, id, ownerID string) error {
	if err := c.repo.Delete(ctx, id, ownerID); err != nil {
		return err
	}
	c.invalidate(ctx, postKey(id), publishedFeedKey)
	return nil
}

func (c *Cached) GetByID(ctx context.Context, id string) (*post.Post, error) {
	key := postKey(id)

	var p post.Post
	if c.load(ctx, key, &p) {
		return &p, nil
	}

	got, err := c.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, got)
	return got, nil
}

// ListByOwner is never cached; owners expect to see their own writes.
func (c *Cached) ListByOwner(ctx context.Context, ownerID string) ([]post.Post, error) {
	return c.repo.ListByOwner(ctx, ownerID)
}

func (c *Cached) ListPublished(ctx context.Context) ([]post.Post, error) {
	var posts []post.Post
	if c.load(ctx, publishedFeedKey, &posts) {
		return posts, nil
	}

	posts, err := c.repo.ListPublished(ctx)
	if err != nil {
		return nil, err
	}
	c.store(ctx, publishedFeedKey, posts)
	return posts, nil
}

func (c *Cached) load(ctx context.Context, key string, dst any) bool {
	val, err := c.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			c.logger.Printf("cache get %s: %v", key, err)
		}
		return false
	}
	if err := json.Unmarshal([]byte(val), dst); err != nil {
		c.logger.Printf("cache decode %s: %v", key, err)
		return false
	}
	return true
}

func (c *Cached) store(ctx context.Context, key string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		c.logger.Printf("cache encode %s: %v", key, err)
		return
	}
	if err := c.cache.Set(ctx, key, string(b)); err != nil {
		c.logger.Printf("cache set %s: %v", key, err)
	}
}

func (c *Cached) invalidate(ctx context.Context, keys ...string) {
	if err := c.cache.Del(ctx, keys...); err != nil {
		c.logger.Printf("cache invalidate %v: %v", keys, err)
	}
}
