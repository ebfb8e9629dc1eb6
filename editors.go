package main

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nmsalvatore/go-blog/internal/editor"
)

// liveEditor is one open editor page: a session and its autosave loop.
type liveEditor struct {
	id        string
	session   *editor.Session
	scheduler *editor.Scheduler

	mu       sync.Mutex
	lastSeen time.Time
}

func (e *liveEditor) touch(now time.Time) {
	e.mu.Lock()
	e.lastSeen = now
	e.mu.Unlock()
}

func (e *liveEditor) idleSince() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSeen
}

// editorRegistry tracks open editors by id.
type editorRegistry struct {
	editors  sync.Map // editor id → *liveEditor
	workflow *editor.Workflow
	interval time.Duration
	idle     time.Duration
	logger   *log.Logger
	now      func() time.Time
}

func newEditorRegistry(wf *editor.Workflow, interval, idle time.Duration, logger *log.Logger) *editorRegistry {
	return &editorRegistry{
		workflow: wf,
		interval: interval,
		idle:     idle,
		logger:   logger,
		now:      time.Now,
	}
}

// open registers s and starts autosaving it.
func (r *editorRegistry) open(s *editor.Session) (*liveEditor, error) {
	e := &liveEditor{
		id:        uuid.NewString(),
		session:   s,
		scheduler: editor.NewScheduler(r.interval, r.logger),
		lastSeen:  r.now(),
	}
	if err := e.scheduler.Start(context.Background(), s, r.workflow.AutosaveFunc(s)); err != nil {
		return nil, err
	}
	r.editors.Store(e.id, e)
	return e, nil
}

// get returns the editor id if it belongs to ownerID.
func (r *editorRegistry) get(id, ownerID string) (*liveEditor, bool) {
	v, ok := r.editors.Load(id)
	if !ok {
		return nil, false
	}
	e := v.(*liveEditor)
	if e.session.Owner() != ownerID {
		return nil, false
	}
	e.touch(r.now())
	return e, true
}

func (r *editorRegistry) close(id string) {
	v, ok := r.editors.LoadAndDelete(id)
	if !ok {
		return
	}
	v.(*liveEditor).scheduler.Stop()
}

// closePost closes every editor bound to postID.
func (r *editorRegistry) closePost(postID string) {
	r.editors.Range(func(key, v any) bool {
		if id, ok := v.(*liveEditor).session.PostID(); ok && id == postID {
			r.close(key.(string))
		}
		return true
	})
}

// reap closes editors that have been idle longer than the idle timeout.
// A dirty session gets one last autosave first.
func (r *editorRegistry) reap(ctx context.Context) int {
	cutoff := r.now().Add(-r.idle)
	var reaped int
	r.editors.Range(func(key, v any) bool {
		e := v.(*liveEditor)
		if e.idleSince().After(cutoff) {
			return true
		}
		r.close(key.(string))
		if _, err := r.workflow.Autosave(ctx, e.session); err != nil {
			r.logger.Printf("final autosave failed (editor %s): %v", e.id, err)
		}
		reaped++
		return true
	})
	return reaped
}

func (r *editorRegistry) closeAll(ctx context.Context) {
	r.editors.Range(func(key, v any) bool {
		e := v.(*liveEditor)
		r.close(key.(string))
		if _, err := r.workflow.Autosave(ctx, e.session); err != nil {
			r.logger.Printf("final autosave failed (editor %s): %v", e.id, err)
		}
		return true
	})
}

func (r *editorRegistry) count() int {
	var n int
	r.editors.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
