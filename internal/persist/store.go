// Package persist provides durable key-value slots for system snapshots,
// the snapshot codec, and a debounced saver.
package persist

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrNotFound is returned by Load when the key has never been saved.
var ErrNotFound = errors.New("snapshot not found")

// Store defines the interface for a durable key-value slot.
type Store interface {
	// Load retrieves the value saved under key.
	Load(ctx context.Context, key string) ([]byte, error)

	// Save replaces the value under key.
	Save(ctx context.Context, key string, data []byte) error

	// Close releases resources held by the store.
	Close() error
}

func checkKey(key string) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}
	if strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return fmt.Errorf("invalid key %q", key)
	}
	return nil
}

// MemoryStore implements Store using in-memory storage.
// Useful for testing and development.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string][]byte
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string][]byte)}
}

// Load retrieves the value saved under key.
func (s *MemoryStore) Load(ctx context.Context, key string) ([]byte, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	// Return a copy
	return append([]byte(nil), v...), nil
}

// Save replaces the value under key.
func (s *MemoryStore) Save(ctx context.Context, key string, data []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = append([]byte(nil), data...)
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

// FileStore implements Store with one file per key.
type FileStore struct {
	mu       sync.RWMutex
	basePath string
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a new file-based store rooted at basePath.
func NewFileStore(basePath string) (*FileStore, error) {
	if basePath == "" {
		return nil, errors.New("base path cannot be empty")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &FileStore{basePath: basePath}, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.basePath, key+".snap")
}

// Load retrieves the value saved under key.
func (s *FileStore) Load(ctx context.Context, key string) ([]byte, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read snapshot file: %w", err)
	}
	return data, nil
}

// Save replaces the value under key. The file is replaced atomically.
func (s *FileStore) Save(ctx context.Context, key string, data []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.basePath, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write snapshot file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write snapshot file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		return fmt.Errorf("failed to replace snapshot file: %w", err)
	}
	return nil
}

// Close is a no-op.
func (s *FileStore) Close() error { return nil }

// Store types accepted by OpenStore.
const (
	TypeMemory = "memory"
	TypeFile   = "file"
	TypeBadger = "badger"
)

// OpenStore creates the store named by storeType.
func OpenStore(storeType, path string) (Store, error) {
	switch storeType {
	case "", TypeMemory:
		return NewMemoryStore(), nil
	case TypeFile:
		s, err := NewFileStore(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case TypeBadger:
		s, err := NewBadgerStore(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store type %q", storeType)
	}
}
