package db

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/BorisDmv/portfolio-api/internal/models"
)

// Slot is a single durable key holding the whole serialized collection.
type Slot interface {
	// Load returns nil data when nothing has been saved yet.
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}

// LocalStore keeps every post in memory and writes the full collection to
// its slot after each mutation.
type LocalStore struct {
	slot  Slot
	newID func() string

	mu     sync.RWMutex
	posts  []models.Post
	loaded bool
}

// OpenLocalStore loads the collection from slot once.
func OpenLocalStore(ctx context.Context, slot Slot) (*LocalStore, error) {
	s := &LocalStore{
		slot:  slot,
		newID: uuid.NewString,
		posts: []models.Post{},
	}
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *LocalStore) load(ctx context.Context) error {
	data, err := s.slot.Load(ctx)
	if err != nil {
		return fmt.Errorf("load posts: %w", err)
	}
	if len(data) > 0 {
		var posts []models.Post
		if err := json.Unmarshal(data, &posts); err != nil {
			return fmt.Errorf("decode posts: %w", err)
		}
		for i := range posts {
			if posts[i].Tags == nil {
				posts[i].Tags = []string{}
			}
		}
		s.posts = posts
	}
	s.loaded = true
	return nil
}

// persist must be called with mu held. Nothing is written until a load has
// succeeded so stored data is never replaced by the initial empty state.
func (s *LocalStore) persist(ctx context.Context) error {
	if !s.loaded {
		return nil
	}
	data, err := json.Marshal(s.posts)
	if err != nil {
		return fmt.Errorf("encode posts: %w", err)
	}
	if err := s.slot.Save(ctx, data); err != nil {
		return fmt.Errorf("save posts: %w", err)
	}
	return nil
}

func clonePost(p models.Post) models.Post {
	p.Tags = append([]string{}, p.Tags...)
	if p.Images != nil {
		p.Images = append([]string(nil), p.Images...)
	}
	return p
}

func (s *LocalStore) indexOf(id string) int {
	for i := range s.posts {
		if s.posts[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *LocalStore) List(context.Context) ([]models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	posts := make([]models.Post, 0, len(s.posts))
	for _, p := range s.posts {
		posts = append(posts, clonePost(p))
	}
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].Date > posts[j].Date
	})
	return posts, nil
}

func (s *LocalStore) Get(_ context.Context, id string) (*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(id)
	if i < 0 {
		return nil, ErrNotFound
	}
	post := clonePost(s.posts[i])
	return &post, nil
}

// Create prepends the post under a freshly generated id.
func (s *LocalStore) Create(ctx context.Context, post models.Post) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	post = clonePost(post)
	post.ID = s.newID()

	prev := s.posts
	s.posts = append([]models.Post{post}, s.posts...)
	if err := s.persist(ctx); err != nil {
		s.posts = prev
		return "", err
	}
	return post.ID, nil
}

// Update replaces the matching post in place.
func (s *LocalStore) Update(ctx context.Context, id string, update models.PostUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return ErrNotFound
	}

	prev := s.posts[i]
	next := clonePost(prev)
	update.Apply(&next)
	s.posts[i] = next
	if err := s.persist(ctx); err != nil {
		s.posts[i] = prev
		return err
	}
	return nil
}

func (s *LocalStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return ErrNotFound
	}

	prev := s.posts
	kept := make([]models.Post, 0, len(s.posts)-1)
	kept = append(kept, s.posts[:i]...)
	kept = append(kept, s.posts[i+1:]...)
	s.posts = kept
	if err := s.persist(ctx); err != nil {
		s.posts = prev
		return err
	}
	return nil
}

func (s *LocalStore) Close(context.Context) error {
	if c, ok := s.slot.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
