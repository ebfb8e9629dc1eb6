// Package store implements post.Repository on SQLite and Postgres, plus a
// Redis cache-aside layer that can wrap either.
package store

import (
	"time"

	"github.com/nmsalvatore/go-blog/internal/post"
)

// Option configures a repository.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now as the source of created, updated and
// published timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// publishedAt decides the published_at value written by an update.
func publishedAt(prev post.Status, prevAt *time.Time, e post.Edit, now time.Time) *time.Time {
	if e.Status != post.Published {
		return nil
	}
	if prev == post.Draft || e.Republish || prevAt == nil {
		return &now
	}
	return prevAt
}

func stampIfPublished(s post.Status, now time.Time) *time.Time {
	if s == post.Published {
		return &now
	}
	return nil
}
