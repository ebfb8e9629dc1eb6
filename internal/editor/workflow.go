package editor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nmsalvatore/go-blog/internal/post"
)

var ErrNotSaved = errors.New("post has not been saved yet")

// Workflow performs the save, publish and unpublish transitions of a
// session against a repository. A failed call leaves the session's buffer
// and status untouched.
type Workflow struct {
	repo post.Repository
}

func NewWorkflow(repo post.Repository) *Workflow {
	return &Workflow{repo: repo}
}

// Autosave persists the buffer if it has content, has changed since the
// last save, and no other save is in flight. It never waits: when the slot
// is busy it returns false. Unsaved sessions are created as drafts; saved
// ones keep their current status and publish time.
func (w *Workflow) Autosave(ctx context.Context, s *Session) (bool, error) {
	if !s.HasPersistableContent() || !s.Dirty() {
		return false, nil
	}

	var saved bool
	_, err := s.trySave(func() error {
		buf, rev := s.snapshot()
		if !s.Dirty() {
			return nil
		}

		e := post.Edit{Title: buf.Title, Content: buf.Content, Status: buf.Status}
		if strings.TrimSpace(e.Title) == "" {
			e.Title = post.UntitledTitle
		}
		if !buf.bound() {
			e.Status = post.Draft
		}

		if _, err := w.persist(ctx, s, buf, rev, e); err != nil {
			return err
		}
		saved = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("autosaving: %w", err)
	}
	return saved, nil
}

// SaveDraft persists the buffer as a draft. A blank title is rejected
// before any repository call.
func (w *Workflow) SaveDraft(ctx context.Context, s *Session) (*post.Post, error) {
	return w.transition(ctx, s, post.Draft, func(b Buffer) error {
		return post.ValidateDraft(b.Title)
	})
}

// Publish persists the buffer as published and stamps the publish time,
// also when the post was already published. An unsaved session is created
// directly as published.
func (w *Workflow) Publish(ctx context.Context, s *Session) (*post.Post, error) {
	return w.transition(ctx, s, post.Published, func(b Buffer) error {
		return post.ValidatePublish(b.Title, b.Content)
	})
}

// Unpublish moves a saved post back to draft.
func (w *Workflow) Unpublish(ctx context.Context, s *Session) (*post.Post, error) {
	return w.transition(ctx, s, post.Draft, func(b Buffer) error {
		if !b.bound() {
			return ErrNotSaved
		}
		return post.ValidateDraft(b.Title)
	})
}

func (w *Workflow) transition(ctx context.Context, s *Session, to post.Status, validate func(Buffer) error) (*post.Post, error) {
	if err := validate(s.Snapshot()); err != nil {
		return nil, err
	}

	var p *post.Post
	err := s.save(ctx, func() error {
		buf, rev := s.snapshot()
		if err := validate(buf); err != nil {
			return err
		}

		e := post.Edit{
			Title:     buf.Title,
			Content:   buf.Content,
			Status:    to,
			Republish: to == post.Published,
		}

		var err error
		p, err = w.persist(ctx, s, buf, rev, e)
		return err
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// persist must be called while holding the session's save slot.
func (w *Workflow) persist(ctx context.Context, s *Session, buf Buffer, rev uint64, e post.Edit) (*post.Post, error) {
	if buf.bound() {
		p, err := w.repo.Update(ctx, buf.PostID, s.Owner(), e)
		if err != nil {
			return nil, fmt.Errorf("updating post: %w", err)
		}
		s.persisted(p, rev, p.UpdatedAt)
		return p, nil
	}

	p, err := w.repo.Create(ctx, s.Owner(), e)
	if err != nil {
		return nil, fmt.Errorf("creating post: %w", err)
	}
	if err := s.Bind(p.ID); err != nil {
		return nil, err
	}
	s.persisted(p, rev, p.UpdatedAt)
	return p, nil
}

// Delete removes the post id on behalf of viewer. A missing post reports
// post.ErrNotFound regardless of who asks.
func (w *Workflow) Delete(ctx context.Context, viewer post.Viewer, id string) error {
	p, err := w.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := post.Authorize(*p, viewer); err != nil {
		return err
	}
	ownerID, _ := viewer.UserID()
	return w.repo.Delete(ctx, id, ownerID)
}

// AutosaveFunc adapts Autosave for a Scheduler.
func (w *Workflow) AutosaveFunc(s *Session) SaveFunc {
	return func(ctx context.Context) error {
		_, err := w.Autosave(ctx, s)
		return err
	}
}
