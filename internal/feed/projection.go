// Package feed builds the read-side post lists: an author's own posts and
// the public feed of published posts, plus single-post retrieval gated by
// visibility.
package feed

import (
	"context"
	"errors"
	"fmt"

	"github.com/nmsalvatore/go-blog/internal/post"
)

// ErrNotAvailable means the post exists but the viewer may not read it.
var ErrNotAvailable = errors.New("post not available")

// Reader is the read half of post.Repository.
type Reader interface {
	GetByID(ctx context.Context, id string) (*post.Post, error)
	ListByOwner(ctx context.Context, ownerID string) ([]post.Post, error)
	ListPublished(ctx context.Context) ([]post.Post, error)
}

type Tab string

const (
	TabMine      Tab = "mine"
	TabPublished Tab = "published"
)

// ParseTab maps a query value onto a tab, defaulting to TabMine.
func ParseTab(s string) Tab {
	if Tab(s) == TabPublished {
		return TabPublished
	}
	return TabMine
}

type Projection struct {
	posts Reader
}

func New(posts Reader) *Projection {
	return &Projection{posts: posts}
}

// MyPosts returns every post owned by viewer, drafts included, most
// recently updated first.
func (p *Projection) MyPosts(ctx context.Context, viewer post.Viewer) ([]post.Post, error) {
	ownerID, err := viewer.Require()
	if err != nil {
		return nil, err
	}
	posts, err := p.posts.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing posts for %s: %w", ownerID, err)
	}
	return posts, nil
}

// Published returns the public feed, most recently published first.
func (p *Projection) Published(ctx context.Context) ([]post.Post, error) {
	posts, err := p.posts.ListPublished(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing published posts: %w", err)
	}

	visible := make([]post.Post, 0, len(posts))
	for _, each := range posts {
		if post.CanView(each, post.Anonymous()) {
			visible = append(visible, each)
		}
	}
	return visible, nil
}

// Load returns the list behind tab. Anonymous viewers always get the
// published feed.
func (p *Projection) Load(ctx context.Context, tab Tab, viewer post.Viewer) (Tab, []post.Post, error) {
	if !viewer.Resolved() {
		return tab, nil, post.ErrIdentityPending
	}
	if _, ok := viewer.UserID(); !ok {
		tab = TabPublished
	}

	var (
		posts []post.Post
		err   error
	)
	switch tab {
	case TabPublished:
		posts, err = p.Published(ctx)
	default:
		tab = TabMine
		posts, err = p.MyPosts(ctx, viewer)
	}
	return tab, posts, err
}

// Post returns the post id if viewer may read it. Hidden drafts yield
// ErrNotAvailable, unknown ids post.ErrNotFound.
func (p *Projection) Post(ctx context.Context, id string, viewer post.Viewer) (*post.Post, error) {
	got, err := p.posts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if post.CanView(*got, viewer) {
		return got, nil
	}
	if !viewer.Resolved() {
		return nil, post.ErrIdentityPending
	}
	return nil, ErrNotAvailable
}
