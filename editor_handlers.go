package main

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/nmsalvatore/go-blog/internal/editor"
	"github.com/nmsalvatore/go-blog/internal/post"
)

const statusTimeFormat = "15:04:05"

func (b *Blog) NewPost(w http.ResponseWriter, r *http.Request) {
	s, err := editor.NewSession(b.viewer(r))
	if err != nil {
		b.unavailable(w)
		return
	}
	b.openEditor(w, r, s)
}

func (b *Blog) EditPost(w http.ResponseWriter, r *http.Request) {
	p, err := b.posts.GetByID(r.Context(), r.PathValue("id"))
	if errors.Is(err, post.ErrNotFound) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if err != nil {
		log.Printf("loading post for edit: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	s, err := editor.OpenSession(b.viewer(r), p)
	if errors.Is(err, post.ErrForbidden) {
		b.renderError(w, r, http.StatusForbidden, "Forbidden", "You do not have permission to edit this post.")
		return
	}
	if err != nil {
		b.unavailable(w)
		return
	}
	b.openEditor(w, r, s)
}

func (b *Blog) openEditor(w http.ResponseWriter, r *http.Request, s *editor.Session) {
	e, err := b.editors.open(s)
	if err != nil {
		log.Printf("opening editor: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	b.renderEditor(w, r, e, http.StatusOK, nil)
}

func (b *Blog) renderEditor(w http.ResponseWriter, r *http.Request, e *liveEditor, status int, flash *editor.Outcome) {
	buf := e.session.Snapshot()
	b.render(w, status, "editor.html", map[string]any{
		"Title":           editorTitle(buf),
		"EditorID":        e.id,
		"Buffer":          buf,
		"Post":            buf.PostID != "",
		"Status":          buf.Status,
		"Published":       buf.Status == post.Published,
		"Flash":           flash,
		"IsAuthenticated": true,
		"CSRFToken":       b.ensureCSRFToken(w, r),
	})
}

func editorTitle(buf editor.Buffer) string {
	if buf.PostID == "" {
		return "New post"
	}
	if buf.Title == "" {
		return "Editing " + post.UntitledTitle
	}
	return "Editing " + buf.Title
}

// lookupEditor looks up the editor named in the path for the signed-in user.
func (b *Blog) lookupEditor(w http.ResponseWriter, r *http.Request) (*liveEditor, bool) {
	ownerID, _ := b.viewer(r).UserID()
	e, ok := b.editors.get(r.PathValue("sid"), ownerID)
	if !ok {
		http.NotFound(w, r)
		return nil, false
	}
	return e, true
}

// applyBuffer copies the submitted fields into the session. Fields absent
// from the form are left alone.
func applyBuffer(s *editor.Session, r *http.Request) {
	if _, ok := r.PostForm["title"]; ok {
		if title := r.PostForm.Get("title"); title != s.Title() {
			s.SetTitle(title)
		}
	}
	if _, ok := r.PostForm["content"]; ok {
		if content := r.PostForm.Get("content"); content != s.Content() {
			s.SetContent(content)
		}
	}
}

func (b *Blog) EditorBuffer(w http.ResponseWriter, r *http.Request) {
	if !parseFormWithCSRF(w, r) {
		return
	}
	e, ok := b.lookupEditor(w, r)
	if !ok {
		return
	}

	applyBuffer(e.session, r)
	w.WriteHeader(http.StatusNoContent)
}

func (b *Blog) EditorStatus(w http.ResponseWriter, r *http.Request) {
	e, ok := b.lookupEditor(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Write([]byte(saveStatus(e.session)))
}

func saveStatus(s *editor.Session) string {
	if s.Saving() {
		return "Saving…"
	}
	if at, ok := s.LastPersistedAt(); ok {
		return "Saved " + at.Local().Format(statusTimeFormat)
	}
	return ""
}

type actionFunc func(ctx context.Context, s *editor.Session) (*post.Post, error)

func (b *Blog) EditorSave(w http.ResponseWriter, r *http.Request) {
	b.editorAction(w, r, b.workflow.SaveDraft, false)
}

func (b *Blog) EditorPublish(w http.ResponseWriter, r *http.Request) {
	b.editorAction(w, r, b.workflow.Publish, true)
}

func (b *Blog) EditorUnpublish(w http.ResponseWriter, r *http.Request) {
	b.editorAction(w, r, b.workflow.Unpublish, false)
}

// editorAction runs an explicit save, publish or unpublish and shows its
// outcome on the editor page. done closes the editor on success.
func (b *Blog) editorAction(w http.ResponseWriter, r *http.Request, action actionFunc, done bool) {
	if !parseFormWithCSRF(w, r) {
		return
	}
	e, ok := b.lookupEditor(w, r)
	if !ok {
		return
	}

	applyBuffer(e.session, r)
	_, err := action(r.Context(), e.session)
	outcome := editor.OutcomeOf(err)

	if outcome.OK() && done {
		b.editors.close(e.id)
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	status := http.StatusOK
	switch {
	case err == nil:
	case post.IsValidation(err):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, post.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, post.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, editor.ErrNotSaved):
		status = http.StatusConflict
	case errors.Is(err, post.ErrIdentityPending):
		status = http.StatusServiceUnavailable
	case post.IsTransient(err):
		log.Printf("editor %s: %v", e.id, err)
		status = http.StatusInternalServerError
	default:
		status = http.StatusUnauthorized
	}
	b.renderEditor(w, r, e, status, &outcome)
}

func (b *Blog) EditorClose(w http.ResponseWriter, r *http.Request) {
	if !parseFormWithCSRF(w, r) {
		return
	}
	e, ok := b.lookupEditor(w, r)
	if !ok {
		return
	}

	applyBuffer(e.session, r)
	b.editors.close(e.id)
	if _, err := b.workflow.Autosave(r.Context(), e.session); err != nil {
		log.Printf("saving on close (editor %s): %v", e.id, err)
	}
	if id, ok := e.session.PostID(); ok {
		http.Redirect(w, r, "/post/"+id, http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
