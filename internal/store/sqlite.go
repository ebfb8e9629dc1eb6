package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/nmsalvatore/go-blog/internal/post"
)

// Fixed width so that text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS posts (
	id           TEXT PRIMARY KEY,
	user_id      TEXT NOT NULL,
	title        TEXT NOT NULL,
	content      TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT 'draft' CHECK (status IN ('draft', 'published')),
	created_at   TEXT NOT NULL,
	updated_at   TEXT NOT NULL,
	published_at TEXT,
	CHECK ((status = 'published') = (published_at IS NOT NULL))
);

CREATE INDEX IF NOT EXISTS idx_posts_owner ON posts(user_id, updated_at);
CREATE INDEX IF NOT EXISTS idx_posts_published ON posts(status, published_at);
`

const postColumns = "id, user_id, title, content, status, created_at, updated_at, published_at"

// SQLiteDSN adds the connection options every handle on a blog database
// needs: writers wait up to five seconds for the lock, and transactions take
// the write lock at BEGIN so a read-then-write cannot deadlock.
func SQLiteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=busy_timeout(5000)&_txlock=immediate"
}

type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens the database file at path and prepares the posts table.
func OpenSQLite(path string, opts ...Option) (*SQLite, error) {
	db, err := sql.Open("sqlite", SQLiteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	s, err := NewSQLite(db, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLite uses an already open database. The caller keeps ownership of db.
func NewSQLite(db *sql.DB, opts ...Option) (*SQLite, error) {
	o := buildOptions(opts)
	s := &SQLite{db: db, now: o.now}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	if _, err := s.db.Exec(sqliteSchema); err != nil {
		return fmt.Errorf("creating posts schema: %w", err)
	}
	return nil
}

// DB exposes the underlying handle for callers sharing the file.
func (s *SQLite) DB() *sql.DB {
	return s.db
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Create(ctx context.Context, ownerID string, e post.Edit) (*post.Post, error) {
	now := s.now().UTC()
	p := &post.Post{
		ID:          uuid.NewString(),
		Title:       e.Title,
		Content:     e.Content,
		Status:      e.Status,
		CreatedAt:   now,
		UpdatedAt:   now,
		PublishedAt: stampIfPublished(e.Status, now),
		UserID:      ownerID,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO posts (`+postColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.Title, p.Content, p.Status.String(),
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt), formatNullTime(p.PublishedAt))
	if err != nil {
		return nil, fmt.Errorf("inserting post: %w", err)
	}
	return p, nil
}

func (s *SQLite) Update(ctx context.Context, id, ownerID string, e post.Edit) (*post.Post, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning update: %w", err)
	}
	defer tx.Rollback()

	cur, err := scanPost(tx.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}
	if cur.UserID != ownerID {
		return nil, fmt.Errorf("updating post %s: %w", id, post.ErrForbidden)
	}

	now := s.now().UTC()
	cur.Title = e.Title
	cur.Content = e.Content
	cur.PublishedAt = publishedAt(cur.Status, cur.PublishedAt, e, now)
	cur.Status = e.Status
	cur.UpdatedAt = now

	_, err = tx.ExecContext(ctx, `
		UPDATE posts
		SET title = ?, content = ?, status = ?, updated_at = ?, published_at = ?
		WHERE id = ? AND user_id = ?`,
		cur.Title, cur.Content, cur.Status.String(), formatTime(now), formatNullTime(cur.PublishedAt),
		id, ownerID)
	if err != nil {
		return nil, fmt.Errorf("updating post: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing update: %w", err)
	}
	return cur, nil
}

func (s *SQLite) Delete(ctx context.Context, id, ownerID string) error {
	var owner string
	err := s.db.QueryRowContext(ctx, "SELECT user_id FROM posts WHERE id = ?", id).Scan(&owner)
	if err == sql.ErrNoRows {
		return fmt.Errorf("deleting post %s: %w", id, post.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("looking up post owner: %w", err)
	}
	if owner != ownerID {
		return fmt.Errorf("deleting post %s: %w", id, post.ErrForbidden)
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM posts WHERE id = ? AND user_id = ?", id, ownerID)
	if err != nil {
		return fmt.Errorf("deleting post: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("deleting post %s: %w", id, post.ErrNotFound)
	}
	return nil
}

func (s *SQLite) GetByID(ctx context.Context, id string) (*post.Post, error) {
	return scanPost(s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id = ?`, id))
}

func (s *SQLite) ListByOwner(ctx context.Context, ownerID string) ([]post.Post, error) {
	return s.list(ctx, `
		SELECT `+postColumns+`
		FROM posts
		WHERE user_id = ?
		ORDER BY updated_at DESC, rowid DESC`, ownerID)
}

func (s *SQLite) ListPublished(ctx context.Context) ([]post.Post, error) {
	return s.list(ctx, `
		SELECT `+postColumns+`
		FROM posts
		WHERE status = 'published'
		ORDER BY published_at DESC, rowid DESC`)
}

func (s *SQLite) list(ctx context.Context, query string, args ...any) ([]post.Post, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing posts: %w", err)
	}
	defer rows.Close()

	var posts []post.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, *p)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("listing posts: %w", err)
	}
	return posts, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPost(row scanner) (*post.Post, error) {
	var (
		p                    post.Post
		status               string
		createdAt, updatedAt string
		published            sql.NullString
	)
	err := row.Scan(&p.ID, &p.UserID, &p.Title, &p.Content, &status, &createdAt, &updatedAt, &published)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, post.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning post: %w", err)
	}

	if p.Status, err = post.ParseStatus(status); err != nil {
		return nil, err
	}
	if p.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at of post %s: %w", p.ID, err)
	}
	if p.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at of post %s: %w", p.ID, err)
	}
	if published.Valid {
		t, err := time.Parse(timeLayout, published.String)
		if err != nil {
			return nil, fmt.Errorf("parsing published_at of post %s: %w", p.ID, err)
		}
		p.PublishedAt = &t
	}
	return &p, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatNullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}
