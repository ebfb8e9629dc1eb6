package main

import (
	"errors"
	"log"
	"net/http"

	"github.com/nmsalvatore/go-blog/internal/feed"
	"github.com/nmsalvatore/go-blog/internal/post"
)

func (b *Blog) Home(w http.ResponseWriter, r *http.Request) {
	viewer := b.viewer(r)
	if !viewer.Resolved() {
		b.unavailable(w)
		return
	}

	tab, posts, err := b.feed.Load(r.Context(), feed.ParseTab(r.URL.Query().Get("tab")), viewer)
	if err != nil {
		log.Printf("loading %s posts: %v", tab, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	_, isAuth := viewer.UserID()
	b.render(w, http.StatusOK, "home.html", map[string]any{
		"Title":           "Home",
		"Tab":             tab,
		"Posts":           posts,
		"IsAuthenticated": isAuth,
		"CSRFToken":       b.ensureCSRFToken(w, r),
	})
}

func (b *Blog) Detail(w http.ResponseWriter, r *http.Request) {
	viewer := b.viewer(r)

	p, err := b.feed.Post(r.Context(), r.PathValue("id"), viewer)
	switch {
	case errors.Is(err, post.ErrNotFound):
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	case errors.Is(err, feed.ErrNotAvailable):
		b.render(w, http.StatusNotFound, "not_available.html", map[string]any{
			"Title":           "Not available",
			"IsAuthenticated": b.isAuthenticated(r),
			"CSRFToken":       b.ensureCSRFToken(w, r),
		})
		return
	case errors.Is(err, post.ErrIdentityPending):
		b.unavailable(w)
		return
	case err != nil:
		log.Printf("loading post: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	_, isAuth := viewer.UserID()
	b.render(w, http.StatusOK, "detail.html", map[string]any{
		"Title":           p.Title,
		"Post":            p,
		"CanEdit":         post.CanEdit(*p, viewer),
		"IsAuthenticated": isAuth,
		"CSRFToken":       b.ensureCSRFToken(w, r),
	})
}

func (b *Blog) Login(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{
		"Title":     "Log in",
		"CSRFToken": b.ensureCSRFToken(w, r),
	}

	if r.Method == http.MethodGet {
		if b.isAuthenticated(r) {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		b.render(w, http.StatusOK, "login.html", data)
		return
	}

	if !parseFormWithCSRF(w, r) {
		return
	}

	username := r.FormValue("username")
	user, err := authenticate(b.db, username, r.FormValue("password"))
	if errors.Is(err, errBadCredentials) {
		data["Username"] = username
		data["Error"] = "Invalid username or password"
		b.render(w, http.StatusUnauthorized, "login.html", data)
		return
	}
	if err != nil {
		log.Printf("authenticating %q: %v", username, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	token, err := createSession(b.db, user.ID, b.sessionDuration)
	if err != nil {
		log.Printf("creating session: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	b.setSessionCookie(w, token)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (b *Blog) Logout(w http.ResponseWriter, r *http.Request) {
	if !parseFormWithCSRF(w, r) {
		return
	}

	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		if err := deleteSession(b.db, cookie.Value); err != nil {
			log.Printf("logging out: %v", err)
		}
	}

	b.clearSessionCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (b *Blog) Delete(w http.ResponseWriter, r *http.Request) {
	if !parseFormWithCSRF(w, r) {
		return
	}

	id := r.PathValue("id")
	err := b.workflow.Delete(r.Context(), b.viewer(r), id)
	switch {
	case errors.Is(err, post.ErrNotFound):
		http.NotFound(w, r)
		return
	case errors.Is(err, post.ErrForbidden):
		b.renderError(w, r, http.StatusForbidden, "Forbidden", "You do not have permission to delete this post.")
		return
	case err != nil:
		log.Printf("deleting post %s: %v", id, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	b.editors.closePost(id)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
