package editor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nmsalvatore/go-blog/internal/post"
)

// fakeRepo is an in-memory post.Repository that counts mutations and can
// hold them open to exercise overlapping saves.
type fakeRepo struct {
	mu          sync.Mutex
	posts       map[string]*post.Post
	now         time.Time
	seq         int
	creates     int
	updates     int
	deletes     int
	inFlight    int
	maxInFlight int
	err         error

	// When gate is non-nil, mutations signal entered and then block until
	// gate is closed.
	gate    chan struct{}
	entered chan struct{}
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		posts: make(map[string]*post.Post),
		now:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (r *fakeRepo) hold() {
	r.gate = make(chan struct{})
	r.entered = make(chan struct{}, 8)
}

func (r *fakeRepo) setErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *fakeRepo) mutations() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.creates + r.updates + r.deletes
}

func (r *fakeRepo) counts() (creates, updates int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.creates, r.updates
}

func (r *fakeRepo) begin() (time.Time, error) {
	r.mu.Lock()
	r.inFlight++
	if r.inFlight > r.maxInFlight {
		r.maxInFlight = r.inFlight
	}
	gate, entered := r.gate, r.entered
	r.mu.Unlock()

	if gate != nil {
		entered <- struct{}{}
		<-gate
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = r.now.Add(time.Second)
	return r.now, r.err
}

func (r *fakeRepo) end() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inFlight--
}

func (r *fakeRepo) Create(_ context.Context, ownerID string, e post.Edit) (*post.Post, error) {
	now, err := r.begin()
	defer r.end()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.creates++
	r.seq++
	p := &post.Post{
		ID:        fmt.Sprintf("post-%d", r.seq),
		Title:     e.Title,
		Content:   e.Content,
		Status:    e.Status,
		CreatedAt: now,
		UpdatedAt: now,
		UserID:    ownerID,
	}
	if e.Status == post.Published {
		p.PublishedAt = &now
	}
	r.posts[p.ID] = p
	cp := *p
	return &cp, nil
}

func (r *fakeRepo) Update(_ context.Context, id, ownerID string, e post.Edit) (*post.Post, error) {
	now, err := r.begin()
	defer r.end()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return nil, post.ErrNotFound
	}
	if p.UserID != ownerID {
		return nil, post.ErrForbidden
	}
	r.updates++

	switch {
	case e.Status == post.Draft:
		p.PublishedAt = nil
	case p.Status == post.Draft || e.Republish:
		p.PublishedAt = &now
	}
	p.Title, p.Content, p.Status, p.UpdatedAt = e.Title, e.Content, e.Status, now
	cp := *p
	return &cp, nil
}

func (r *fakeRepo) Delete(_ context.Context, id, ownerID string) error {
	_, err := r.begin()
	defer r.end()
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return post.ErrNotFound
	}
	if p.UserID != ownerID {
		return post.ErrForbidden
	}
	r.deletes++
	delete(r.posts, id)
	return nil
}

func (r *fakeRepo) GetByID(_ context.Context, id string) (*post.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return nil, post.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakeRepo) ListByOwner(_ context.Context, ownerID string) ([]post.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []post.Post
	for _, p := range r.posts {
		if p.UserID == ownerID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (r *fakeRepo) ListPublished(_ context.Context) ([]post.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []post.Post
	for _, p := range r.posts {
		if p.Status == post.Published {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PublishedAt.After(*out[j].PublishedAt) })
	return out, nil
}
