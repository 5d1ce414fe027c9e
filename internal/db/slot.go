package db

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/redis/go-redis/v9"
)

// FileSlot stores the collection in a single JSON file.
type FileSlot struct {
	path string
}

func NewFileSlot(path string) *FileSlot {
	return &FileSlot{path: path}
}

func (f *FileSlot) Load(context.Context) ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return data, err
}

// Save writes through a temp file so a crash never leaves a partial file.
func (f *FileSlot) Save(_ context.Context, data []byte) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}

// RedisSlot stores the collection under one redis key.
type RedisSlot struct {
	client *redis.Client
	key    string
}

func NewRedisSlot(client *redis.Client, key string) *RedisSlot {
	return &RedisSlot{client: client, key: key}
}

func (r *RedisSlot) Load(ctx context.Context) ([]byte, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return data, err
}

func (r *RedisSlot) Save(ctx context.Context, data []byte) error {
	return r.client.Set(ctx, r.key, data, 0).Err()
}

func (r *RedisSlot) Close() error {
	return r.client.Close()
}

// MemorySlot keeps the collection in process memory.
type MemorySlot struct {
	mu   sync.Mutex
	data []byte
	// Err, when set, is returned by Save.
	Err error
}

func (m *MemorySlot) Load(context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.data...), nil
}

func (m *MemorySlot) Save(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.data = append([]byte(nil), data...)
	return nil
}

// Bytes returns what was last saved.
func (m *MemorySlot) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.data...)
}
