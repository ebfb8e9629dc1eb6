package main

import (
	"context"
	"database/sql"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/nmsalvatore/go-blog/internal/config"
	"github.com/nmsalvatore/go-blog/internal/editor"
	"github.com/nmsalvatore/go-blog/internal/feed"
	"github.com/nmsalvatore/go-blog/internal/post"
)

type Blog struct {
	db        *sql.DB
	posts     post.Repository
	workflow  *editor.Workflow
	feed      *feed.Projection
	editors   *editorRegistry
	templates map[string]*template.Template

	sessionDuration time.Duration
	secureCookies   bool
}

// NewBlog wires the web application. db holds accounts and sessions; posts
// may live elsewhere.
func NewBlog(db *sql.DB, posts post.Repository, cfg *config.Config) (*Blog, error) {
	templates, err := loadTemplates()
	if err != nil {
		return nil, err
	}

	logger := log.New(os.Stderr, "", log.LstdFlags)
	workflow := editor.NewWorkflow(posts)

	return &Blog{
		db:              db,
		posts:           posts,
		workflow:        workflow,
		feed:            feed.New(posts),
		editors:         newEditorRegistry(workflow, cfg.Editor.AutosaveInterval, cfg.Editor.IdleTimeout, logger),
		templates:       templates,
		sessionDuration: cfg.Auth.SessionDuration,
		secureCookies:   cfg.Auth.SecureCookies,
	}, nil
}

func (b *Blog) routes() http.Handler {
	mux := http.NewServeMux()

	// Public routes
	mux.HandleFunc("GET /{$}", b.Home)
	mux.HandleFunc("GET /post/{id}", b.Detail)
	mux.HandleFunc("GET /login", b.Login)
	mux.HandleFunc("POST /login", b.Login)
	mux.HandleFunc("POST /logout", b.Logout)

	// Protected routes
	mux.HandleFunc("GET /new", b.requireAuth(b.NewPost))
	mux.HandleFunc("GET /edit/{id}", b.requireAuth(b.EditPost))
	mux.HandleFunc("POST /delete/{id}", b.requireAuth(b.Delete))
	mux.HandleFunc("POST /editor/{sid}/buffer", b.requireAuth(b.EditorBuffer))
	mux.HandleFunc("GET /editor/{sid}/status", b.requireAuth(b.EditorStatus))
	mux.HandleFunc("POST /editor/{sid}/save", b.requireAuth(b.EditorSave))
	mux.HandleFunc("POST /editor/{sid}/publish", b.requireAuth(b.EditorPublish))
	mux.HandleFunc("POST /editor/{sid}/unpublish", b.requireAuth(b.EditorUnpublish))
	mux.HandleFunc("POST /editor/{sid}/close", b.requireAuth(b.EditorClose))

	return mux
}

// every runs fn on each tick of interval until ctx is done.
func every(ctx context.Context, interval time.Duration, fn func()) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
}

// Serve handles requests on addr until ctx is cancelled, then drains open
// editors.
func (b *Blog) Serve(ctx context.Context, addr string, cfg *config.Config) error {
	if err := cleanupExpiredSessions(b.db); err != nil {
		log.Printf("cleaning up expired sessions: %v", err)
	}

	every(ctx, cfg.Auth.CleanupInterval, func() {
		if err := cleanupExpiredSessions(b.db); err != nil {
			log.Printf("cleaning up expired sessions: %v", err)
		}
	})
	every(ctx, cfg.Editor.ReapInterval, func() {
		if n := b.editors.reap(ctx); n > 0 {
			log.Printf("closed %d idle editors", n)
		}
	})

	srv := &http.Server{Addr: addr, Handler: b.routes()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("Server starting on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serving: %w", err)
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	b.editors.closeAll(drainCtx)
	log.Println("Server stopped")
	return nil
}

func (b *Blog) render(w http.ResponseWriter, status int, page string, data map[string]any) {
	t, ok := b.templates[page]
	if !ok {
		log.Printf("template not found: %s", page)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := t.ExecuteTemplate(w, "base", data); err != nil {
		log.Printf("render error (%s): %v", page, err)
	}
}

func (b *Blog) renderError(w http.ResponseWriter, r *http.Request, status int, title, message string) {
	b.render(w, status, "error.html", map[string]any{
		"Title":           title,
		"Message":         message,
		"IsAuthenticated": b.isAuthenticated(r),
		"CSRFToken":       getCSRFToken(r),
	})
}

// unavailable answers requests whose identity could not be resolved.
func (b *Blog) unavailable(w http.ResponseWriter) {
	b.render(w, http.StatusServiceUnavailable, "error.html", map[string]any{
		"Title":   "Try again",
		"Message": "We could not check who you are right now. Please try again in a moment.",
	})
}
