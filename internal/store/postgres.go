package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nmsalvatore/go-blog/internal/post"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS posts (
	id           UUID PRIMARY KEY,
	seq          BIGSERIAL,
	user_id      TEXT NOT NULL,
	title        TEXT NOT NULL,
	content      TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT 'draft' CHECK (status IN ('draft', 'published')),
	created_at   TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL,
	published_at TIMESTAMPTZ,
	CHECK ((status = 'published') = (published_at IS NOT NULL))
);

CREATE INDEX IF NOT EXISTS idx_posts_owner ON posts(user_id, updated_at DESC);
CREATE INDEX IF NOT EXISTS idx_posts_published ON posts(published_at DESC) WHERE status = 'published';
`

const pgPostColumns = "id::text, user_id, title, content, status, created_at, updated_at, published_at"

// Postgres stores posts through a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// OpenPostgres connects to dsn and prepares the posts table.
func OpenPostgres(ctx context.Context, dsn string, opts ...Option) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.MaxConns = 10
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheStatement

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	p := NewPostgres(pool, opts...)
	if err := p.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

// NewPostgres uses an existing pool. The schema is not created.
func NewPostgres(pool *pgxpool.Pool, opts ...Option) *Postgres {
	o := buildOptions(opts)
	return &Postgres{pool: pool, now: o.now}
}

func (s *Postgres) migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("create posts schema: %w", err)
	}
	return nil
}

func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}

func (s *Postgres) Create(ctx context.Context, ownerID string, e post.Edit) (*post.Post, error) {
	now := s.now().UTC()
	row := s.pool.QueryRow(ctx, `
		INSERT INTO posts (id, user_id, title, content, status, created_at, updated_at, published_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6, $7)
		RETURNING `+pgPostColumns,
		uuid.NewString(), ownerID, e.Title, e.Content, e.Status.String(), now, stampIfPublished(e.Status, now))
	p, err := scanPgPost(row)
	if err != nil {
		return nil, fmt.Errorf("insert post: %w", err)
	}
	return p, nil
}

func (s *Postgres) Update(ctx context.Context, id, ownerID string, e post.Edit) (*post.Post, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, post.ErrNotFound
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin update: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cur, err := scanPgPost(tx.QueryRow(ctx, `SELECT `+pgPostColumns+` FROM posts WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}
	if cur.UserID != ownerID {
		return nil, fmt.Errorf("update post %s: %w", id, post.ErrForbidden)
	}

	now := s.now().UTC()
	row := tx.QueryRow(ctx, `
		UPDATE posts
		SET title = $3, content = $4, status = $5, updated_at = $6, published_at = $7
		WHERE id = $1 AND user_id = $2
		RETURNING `+pgPostColumns,
		id, ownerID, e.Title, e.Content, e.Status.String(), now,
		publishedAt(cur.Status, cur.PublishedAt, e, now))
	updated, err := scanPgPost(row)
	if err != nil {
		return nil, fmt.Errorf("update post: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}
	return updated, nil
}

func (s *Postgres) Delete(ctx context.Context, id, ownerID string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("delete post %s: %w", id, post.ErrNotFound)
	}

	var owner string
	err := s.pool.QueryRow(ctx, `SELECT user_id FROM posts WHERE id = $1`, id).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("delete post %s: %w", id, post.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("lookup post owner: %w", err)
	}
	if owner != ownerID {
		return fmt.Errorf("delete post %s: %w", id, post.ErrForbidden)
	}

	tag, err := s.pool.Exec(ctx, `DELETE FROM posts WHERE id = $1 AND user_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete post %s: %w", id, post.ErrNotFound)
	}
	return nil
}

func (s *Postgres) GetByID(ctx context.Context, id string) (*post.Post, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, post.ErrNotFound
	}
	return scanPgPost(s.pool.QueryRow(ctx, `SELECT `+pgPostColumns+` FROM posts WHERE id = $1`, id))
}

func (s *Postgres) ListByOwner(ctx context.Context, ownerID string) ([]post.Post, error) {
	const q = `
	SELECT ` + pgPostColumns + `
	FROM posts
	WHERE user_id = $1
	ORDER BY updated_at DESC, seq DESC;
	`
	return s.list(ctx, q, ownerID)
}

func (s *Postgres) ListPublished(ctx context.Context) ([]post.Post, error) {
	const q = `
	SELECT ` + pgPostColumns + `
	FROM posts
	WHERE status = 'published'
	ORDER BY published_at DESC, seq DESC;
	`
	return s.list(ctx, q)
}

func (s *Postgres) list(ctx context.Context, q string, args ...any) ([]post.Post, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer rows.Close()

	var res []post.Post
	for rows.Next() {
		p, err := scanPgPost(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *p)
	}
	return res, rows.Err()
}

func scanPgPost(row pgx.Row) (*post.Post, error) {
	var (
		p      post.Post
		status string
	)
	err := row.Scan(&p.ID, &p.UserID, &p.Title, &p.Content, &status, &p.CreatedAt, &p.UpdatedAt, &p.PublishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, post.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	if p.Status, err = post.ParseStatus(status); err != nil {
		return nil, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	if p.PublishedAt != nil {
		t := p.PublishedAt.UTC()
		p.PublishedAt = &t
	}
	return &p, nil
}
