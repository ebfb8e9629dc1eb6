package main

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/nmsalvatore/go-blog/internal/post"
)

const (
	sessionCookieName = "session"
	csrfCookieName    = "csrf"
	csrfFieldName     = "csrf_token"

	defaultAdminPassword = "password"

	maxFormMemory = 1 << 20
)

var (
	errUsernameTaken  = errors.New("username already taken")
	errBadCredentials = errors.New("invalid username or password")
)

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

func checkPassword(hash, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

func generateToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

func createUser(db *sql.DB, username, password string) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, errors.New("username and password are required")
	}

	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	u := &User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	_, err = db.Exec(`
		INSERT INTO users (id, username, password_hash, created_at)
		VALUES (?, ?, ?, ?)`, u.ID, u.Username, u.PasswordHash, u.CreatedAt.Unix())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return nil, errUsernameTaken
		}
		return nil, fmt.Errorf("inserting user: %w", err)
	}

	return u, nil
}

func getUserByUsername(db *sql.DB, username string) (*User, error) {
	row := db.QueryRow(`
		SELECT id, username, password_hash, created_at
		FROM users
		WHERE username = ?`, username)

	var u User
	var created int64
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &created)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning user: %w", err)
	}
	u.CreatedAt = time.Unix(created, 0).UTC()

	return &u, nil
}

func authenticate(db *sql.DB, username, password string) (*User, error) {
	u, err := getUserByUsername(db, username)
	if err != nil {
		return nil, err
	}
	if u == nil || !checkPassword(u.PasswordHash, password) {
		return nil, errBadCredentials
	}
	return u, nil
}

// bootstrapAdmin creates the first account when none exist.
func bootstrapAdmin(db *sql.DB, username, password string) error {
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return fmt.Errorf("counting users: %w", err)
	}
	if count > 0 {
		return nil
	}

	if username == "" {
		username = "admin"
	}
	if password == "" {
		log.Println("WARNING: ADMIN_PASS not set, using default password")
		password = defaultAdminPassword
	}

	if _, err := createUser(db, username, password); err != nil {
		return fmt.Errorf("creating admin user: %w", err)
	}
	log.Printf("created admin user %q", username)
	return nil
}

func createSession(db *sql.DB, userID string, duration time.Duration) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", fmt.Errorf("generating session token: %w", err)
	}

	expiresAt := time.Now().Add(duration)
	_, err = db.Exec(`
		INSERT INTO sessions (token, user_id, expires_at)
		VALUES (?, ?, ?)`, token, userID, expiresAt.Unix())
	if err != nil {
		return "", fmt.Errorf("inserting session: %w", err)
	}

	return token, nil
}

func getSession(db *sql.DB, token string) (*Session, error) {
	row := db.QueryRow(`
		SELECT token, user_id, expires_at
		FROM sessions
		WHERE token = ? AND expires_at > ?`, token, time.Now().Unix())

	var session Session
	var expires int64
	err := row.Scan(&session.Token, &session.UserID, &expires)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning session: %w", err)
	}
	session.ExpiresAt = time.Unix(expires, 0)

	return &session, nil
}

func deleteSession(db *sql.DB, token string) error {
	_, err := db.Exec("DELETE FROM sessions WHERE token = ?", token)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

func cleanupExpiredSessions(db *sql.DB) error {
	_, err := db.Exec("DELETE FROM sessions WHERE expires_at < ?", time.Now().Unix())
	if err != nil {
		return fmt.Errorf("cleaning up expired sessions: %w", err)
	}
	return nil
}

// CSRF protection using double-submit cookie pattern

func (b *Blog) setCSRFCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: false,
		Secure:   b.secureCookies,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(b.sessionDuration.Seconds()),
	})
}

func getCSRFToken(r *http.Request) string {
	cookie, err := r.Cookie(csrfCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func validateCSRF(r *http.Request) bool {
	cookieToken := getCSRFToken(r)
	formToken := r.FormValue(csrfFieldName)

	if cookieToken == "" || formToken == "" {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(cookieToken), []byte(formToken)) == 1
}

// parseFormWithCSRF accepts urlencoded and multipart bodies alike.
func parseFormWithCSRF(w http.ResponseWriter, r *http.Request) bool {
	parse := r.ParseForm
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		parse = func() error { return r.ParseMultipartForm(maxFormMemory) }
	}
	if err := parse(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return false
	}
	if !validateCSRF(r) {
		http.Error(w, "Invalid CSRF token", http.StatusForbidden)
		return false
	}
	return true
}

// ensureCSRFToken returns existing token or creates a new one
func (b *Blog) ensureCSRFToken(w http.ResponseWriter, r *http.Request) string {
	token := getCSRFToken(r)
	if token != "" {
		return token
	}

	token, err := generateToken()
	if err != nil {
		return ""
	}
	b.setCSRFCookie(w, token)
	return token
}

func (b *Blog) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   b.secureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(b.sessionDuration.Seconds()),
	})
}

func (b *Blog) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   b.secureCookies,
		MaxAge:   -1,
	})
}

// viewer resolves who is making the request. A failed session lookup
// leaves the identity pending rather than treating the caller as
// anonymous.
func (b *Blog) viewer(r *http.Request) post.Viewer {
	if v, ok := r.Context().Value(viewerKey{}).(post.Viewer); ok {
		return v
	}

	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return post.Anonymous()
	}

	session, err := getSession(b.db, cookie.Value)
	if err != nil {
		log.Printf("resolving session: %v", err)
		return post.PendingViewer()
	}
	if session == nil {
		return post.Anonymous()
	}
	return post.Authenticated(session.UserID)
}

type viewerKey struct{}

// requireAuth is middleware that protects routes requiring authentication
func (b *Blog) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v := b.viewer(r)
		if !v.Resolved() {
			b.unavailable(w)
			return
		}
		if _, ok := v.UserID(); !ok {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		ctx := context.WithValue(r.Context(), viewerKey{}, v)
		next(w, r.WithContext(ctx))
	}
}

// isAuthenticated checks if the current request has a valid session
func (b *Blog) isAuthenticated(r *http.Request) bool {
	_, ok := b.viewer(r).UserID()
	return ok
}
