package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BorisDmv/portfolio-api/internal/models"
)

const postsTableSQL = `CREATE TABLE IF NOT EXISTS posts (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    title TEXT NOT NULL,
    excerpt TEXT NOT NULL DEFAULT '',
    content TEXT NOT NULL DEFAULT '',
    date TEXT NOT NULL DEFAULT '',
    author TEXT NOT NULL DEFAULT '',
    category TEXT NOT NULL DEFAULT '',
    tags TEXT[] NOT NULL DEFAULT '{}',
    read_time INTEGER NOT NULL DEFAULT 5,
    featured_image TEXT,
    images TEXT[],
    created_at TEXT NOT NULL DEFAULT '',
    updated_at TEXT
);`

const postColumns = `
	id::text,
	title,
	excerpt,
	content,
	date,
	author,
	category,
	COALESCE(tags, '{}'::text[]),
	read_time,
	COALESCE(featured_image, ''),
	COALESCE(images, '{}'::text[]),
	created_at,
	COALESCE(updated_at, '')
`

// PostgresStore is the relational profile of Repository.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

// Migrate creates the posts table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postsTableSQL); err != nil {
		return fmt.Errorf("create posts table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close(context.Context) error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func scanPost(row pgx.Row) (models.Post, error) {
	var post models.Post
	err := row.Scan(
		&post.ID,
		&post.Title,
		&post.Excerpt,
		&post.Content,
		&post.Date,
		&post.Author,
		&post.Category,
		&post.Tags,
		&post.ReadTime,
		&post.FeaturedImage,
		&post.Images,
		&post.CreatedAt,
		&post.UpdatedAt,
	)
	if len(post.Images) == 0 {
		post.Images = nil
	}
	return post, err
}

func (s *PostgresStore) List(ctx context.Context) ([]models.Post, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+postColumns+` FROM posts ORDER BY date DESC, created_at`)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	posts := make([]models.Post, 0)
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return posts, nil
}

func postgresID(id string) (string, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return parsed.String(), nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*models.Post, error) {
	pid, err := postgresID(id)
	if err != nil {
		return nil, err
	}
	post, err := scanPost(s.pool.QueryRow(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1`, pid))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get post: %w", err)
	}
	return &post, nil
}

func (s *PostgresStore) Create(ctx context.Context, post models.Post) (string, error) {
	const query = `
		INSERT INTO posts (title, excerpt, content, date, author, category, tags, read_time, featured_image, images, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10, $11)
		RETURNING id::text
	`
	tags := post.Tags
	if tags == nil {
		tags = []string{}
	}

	var id string
	err := s.pool.QueryRow(ctx, query,
		post.Title,
		post.Excerpt,
		post.Content,
		post.Date,
		post.Author,
		post.Category,
		tags,
		post.ReadTime,
		post.FeaturedImage,
		post.Images,
		post.CreatedAt,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("create post: %w", err)
	}
	return id, nil
}

// updateStatement builds an UPDATE touching only the supplied fields plus
// updated_at. The id is always the last argument.
func updateStatement(id string, u models.PostUpdate) (string, []interface{}) {
	var sets []string
	var args []interface{}
	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if u.Title != nil {
		add("title", *u.Title)
	}
	if u.Excerpt != nil {
		add("excerpt", *u.Excerpt)
	}
	if u.Content != nil {
		add("content", *u.Content)
	}
	if u.Date != nil {
		add("date", *u.Date)
	}
	if u.Author != nil {
		add("author", *u.Author)
	}
	if u.Category != nil {
		add("category", *u.Category)
	}
	if u.Tags != nil {
		add("tags", models.NormalizeTags(*u.Tags))
	}
	if u.ReadTime != nil {
		add("read_time", *u.ReadTime)
	}
	if u.FeaturedImage != nil {
		add("featured_image", *u.FeaturedImage)
	}
	if u.Images != nil {
		add("images", *u.Images)
	}
	add("updated_at", u.UpdatedAt)

	args = append(args, id)
	query := fmt.Sprintf("UPDATE posts SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))
	return query, args
}

func (s *PostgresStore) Update(ctx context.Context, id string, update models.PostUpdate) error {
	pid, err := postgresID(id)
	if err != nil {
		return err
	}
	query, args := updateStatement(pid, update)
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	pid, err := postgresID(id)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM posts WHERE id = $1`, pid)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
