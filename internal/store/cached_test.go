package store

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"testing"

	"github.com/nmsalvatore/go-blog/internal/post"
)

type memCache struct {
	mu     sync.Mutex
	data   map[string]string
	getErr error
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string]string)}
}

func (m *memCache) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return "", ErrCacheMiss
	}
	return v, nil
}

func (m *memCache) Set(_ context.Context, key, val string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = val
	return nil
}

func (m *memCache) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memCache) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

// countingRepo counts reads that reach the backing store.
type countingRepo struct {
	post.Repository
	gets, feeds int
}

func (c *countingRepo) GetByID(ctx context.Context, id string) (*post.Post, error) {
	c.gets++
	return c.Repository.GetByID(ctx, id)
}

func (c *countingRepo) ListPublished(ctx context.Context) ([]post.Post, error) {
	c.feeds++
	return c.Repository.ListPublished(ctx)
}

func setupCached(t *testing.T) (*Cached, *countingRepo, *memCache, *bytes.Buffer) {
	t.Helper()
	s, _ := setupTestStore(t)
	repo := &countingRepo{Repository: s}
	cache := newMemCache()
	var buf bytes.Buffer
	return NewCached(repo, cache, log.New(&buf, "", 0)), repo, cache, &buf
}

func TestCached_GetByID(t *testing.T) {
	c, repo, cache, _ := setupCached(t)
	ctx := context.Background()

	p, _ := c.Create(ctx, "alice", publishEdit("Hello", "World"))

	for i := 0; i < 3; i++ {
		got, err := c.GetByID(ctx, p.ID)
		if err != nil {
			t.Fatalf("GetByID() error: %v", err)
		}
		if got.Title != "Hello" || got.Status != post.Published || got.PublishedAt == nil {
			t.Errorf("unexpected cached post: %+v", got)
		}
	}
	if repo.gets != 1 {
		t.Errorf("expected 1 backing read, got %d", repo.gets)
	}

	if _, err := c.Update(ctx, p.ID, "alice", publishEdit("Changed", "World")); err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if cache.has(postKey(p.ID)) {
		t.Error("expected update to invalidate the post key")
	}

	got, _ := c.GetByID(ctx, p.ID)
	if got.Title != "Changed" {
		t.Errorf("expected fresh title after update, got %q", got.Title)
	}
}

func TestCached_NotFoundIsNotCached(t *testing.T) {
	c, _, cache, _ := setupCached(t)

	if _, err := c.GetByID(context.Background(), "missing"); !errors.Is(err, post.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if cache.has(postKey("missing")) {
		t.Error("a miss must not be cached")
	}
}

func TestCached_ListPublished(t *testing.T) {
	c, repo, cache, _ := setupCached(t)
	ctx := context.Background()

	c.Create(ctx, "alice", publishEdit("One", "Body"))

	c.ListPublished(ctx)
	c.ListPublished(ctx)
	if repo.feeds != 1 {
		t.Errorf("expected 1 backing feed read, got %d", repo.feeds)
	}

	// A draft does not touch the feed.
	c.Create(ctx, "alice", draftEdit("Draft", ""))
	if !cache.has(publishedFeedKey) {
		t.Error("creating a draft should keep the feed cached")
	}

	p, _ := c.Create(ctx, "bob", publishEdit("Two", "Body"))
	if cache.has(publishedFeedKey) {
		t.Error("publishing should invalidate the feed")
	}

	posts, _ := c.ListPublished(ctx)
	if len(posts) != 2 || posts[0].ID != p.ID {
		t.Errorf("expected newest published post first, got %+v", posts)
	}

	if err := c.Delete(ctx, p.ID, "bob"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	posts, _ = c.ListPublished(ctx)
	if len(posts) != 1 {
		t.Errorf("expected 1 post after delete, got %d", len(posts))
	}
}

func TestCached_CacheFaultFallsThrough(t *testing.T) {
	c, repo, cache, logs := setupCached(t)
	ctx := context.Background()

	p, _ := c.Create(ctx, "alice", draftEdit("Hello", ""))
	cache.getErr = errors.New("connection refused")

	got, err := c.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetByID() error: %v", err)
	}
	if got.ID != p.ID {
		t.Errorf("expected %q, got %q", p.ID, got.ID)
	}
	if repo.gets != 1 {
		t.Errorf("expected read to reach the store, got %d reads", repo.gets)
	}
	if !strings.Contains(logs.String(), "connection refused") {
		t.Errorf("expected cache fault to be logged, got %q", logs.String())
	}
}
