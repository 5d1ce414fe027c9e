package db

import (
	"context"
	"errors"

	"github.com/BorisDmv/portfolio-api/internal/models"
)

var (
	ErrNotFound   = errors.New("post not found")
	ErrInvalidID  = errors.New("invalid post id")
	ErrMissingURI = errors.New("MONGODB_URI is not set")
)

// Repository is implemented by every storage profile. Only one profile is
// active in a running server.
type Repository interface {
	// List returns all posts ordered by date, newest first.
	List(ctx context.Context) ([]models.Post, error)
	Get(ctx context.Context, id string) (*models.Post, error)
	// Create inserts post and returns the identifier assigned by the store.
	Create(ctx context.Context, post models.Post) (string, error)
	Update(ctx context.Context, id string, update models.PostUpdate) error
	Delete(ctx context.Context, id string) error
	Close(ctx context.Context) error
}
