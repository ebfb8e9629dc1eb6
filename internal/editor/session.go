// Package editor turns an in-progress edit buffer into a persisted post.
//
// A Session holds the buffer for one post. Every repository mutation for a
// session, whether an autosave tick or an explicit save, publish or
// unpublish, runs through the session's single save slot, so at most one is
// in flight at a time and an unsaved session can never be created twice.
package editor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/nmsalvatore/go-blog/internal/post"
)

var ErrAlreadyBound = errors.New("session already bound to a post")

// Buffer is a point-in-time copy of a session's editable fields.
type Buffer struct {
	PostID  string
	Title   string
	Content string
	Status  post.Status
}

func (b Buffer) bound() bool {
	return b.PostID != ""
}

type Session struct {
	ownerID string
	slot    *semaphore.Weighted
	busy    atomic.Bool

	mu              sync.Mutex
	postID          string
	title           string
	content         string
	status          post.Status
	dirty           bool
	rev             uint64
	lastPersistedAt time.Time
}

// NewSession starts an empty, unsaved buffer for owner.
func NewSession(owner post.Viewer) (*Session, error) {
	id, err := owner.Require()
	if err != nil {
		return nil, err
	}
	return &Session{
		ownerID: id,
		slot:    semaphore.NewWeighted(1),
		status:  post.Draft,
	}, nil
}

// OpenSession starts a buffer over an existing post. Only the post's owner
// may open it.
func OpenSession(owner post.Viewer, p *post.Post) (*Session, error) {
	if err := post.Authorize(*p, owner); err != nil {
		return nil, err
	}
	return &Session{
		ownerID: p.UserID,
		slot:    semaphore.NewWeighted(1),
		postID:  p.ID,
		title:   p.Title,
		content: p.Content,
		status:  p.Status,
	}, nil
}

func (s *Session) Owner() string {
	return s.ownerID
}

func (s *Session) SetTitle(title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.title = title
	s.touch()
}

func (s *Session) SetContent(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.content = content
	s.touch()
}

// touch must be called with mu held.
func (s *Session) touch() {
	s.dirty = true
	s.rev++
}

// HasPersistableContent reports whether the title or content is non-blank.
func (s *Session) HasPersistableContent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.TrimSpace(s.title) != "" || strings.TrimSpace(s.content) != ""
}

// Bind records the id assigned by the first successful save. It succeeds
// once; later calls fail unless they repeat the same id.
func (s *Session) Bind(postID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.postID != "" {
		if s.postID == postID {
			return nil
		}
		return ErrAlreadyBound
	}
	s.postID = postID
	return nil
}

func (s *Session) PostID() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.postID, s.postID != ""
}

func (s *Session) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title
}

func (s *Session) Content() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.content
}

func (s *Session) Status() post.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

func (s *Session) LastPersistedAt() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPersistedAt, !s.lastPersistedAt.IsZero()
}

func (s *Session) Snapshot() Buffer {
	b, _ := s.snapshot()
	return b
}

func (s *Session) snapshot() (Buffer, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Buffer{
		PostID:  s.postID,
		Title:   s.title,
		Content: s.content,
		Status:  s.status,
	}, s.rev
}

// Saving reports whether a save currently holds the session's slot.
func (s *Session) Saving() bool {
	return s.busy.Load()
}

// trySave runs fn only if no other save is in flight.
func (s *Session) trySave(fn func() error) (bool, error) {
	if !s.slot.TryAcquire(1) {
		return false, nil
	}
	return true, s.holding(fn)
}

// save waits for the slot, then runs fn.
func (s *Session) save(ctx context.Context, fn func() error) error {
	if err := s.slot.Acquire(ctx, 1); err != nil {
		return err
	}
	return s.holding(fn)
}

func (s *Session) holding(fn func() error) error {
	s.busy.Store(true)
	defer func() {
		s.busy.Store(false)
		s.slot.Release(1)
	}()
	return fn()
}

// persisted records a successful save of the buffer taken at rev. The
// session stays dirty if it was edited while the save was in flight.
func (s *Session) persisted(p *post.Post, rev uint64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = p.Status
	s.lastPersistedAt = at
	if s.rev == rev {
		s.dirty = false
	}
}
