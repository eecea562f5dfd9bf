package persist

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestStore runs the same contract against every Store implementation.
func TestStore(t *testing.T) {
	implementations := map[string]func(t *testing.T) Store{
		"MemoryStore": func(t *testing.T) Store {
			return NewMemoryStore()
		},
		"FileStore": func(t *testing.T) Store {
			store, err := NewFileStore(t.TempDir())
			require.NoError(t, err)
			return store
		},
		"BadgerStore": func(t *testing.T) Store {
			store, err := NewBadgerStore(filepath.Join(t.TempDir(), "db"))
			require.NoError(t, err)
			t.Cleanup(func() { store.Close() })
			return store
		},
	}

	for name, createStore := range implementations {
		t.Run(name, func(t *testing.T) {
			t.Run("LoadMissing", func(t *testing.T) { testStoreLoadMissing(t, createStore(t)) })
			t.Run("SaveLoad", func(t *testing.T) { testStoreSaveLoad(t, createStore(t)) })
			t.Run("Overwrite", func(t *testing.T) { testStoreOverwrite(t, createStore(t)) })
			t.Run("InvalidKey", func(t *testing.T) { testStoreInvalidKey(t, createStore(t)) })
		})
	}
}

func testStoreLoadMissing(t *testing.T, store Store) {
	_, err := store.Load(context.Background(), "nothing")
	assert.True(t, errors.Is(err, ErrNotFound), "Load() error = %v, want ErrNotFound", err)
}

func testStoreSaveLoad(t *testing.T, store Store) {
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "system", []byte("hello")))

	data, err := store.Load(ctx, "system")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	_, err = store.Load(ctx, "other")
	assert.ErrorIs(t, err, ErrNotFound)
}

func testStoreOverwrite(t *testing.T, store Store) {
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "system", []byte("one")))
	require.NoError(t, store.Save(ctx, "system", []byte("two")))

	data, err := store.Load(ctx, "system")
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), data)
}

func testStoreInvalidKey(t *testing.T, store Store) {
	ctx := context.Background()
	for _, key := range []string{"", "a/b", ".."} {
		assert.Error(t, store.Save(ctx, key, []byte("x")), "Save(%q)", key)
		_, err := store.Load(ctx, key)
		assert.Error(t, err, "Load(%q)", key)
	}
}

func TestFileStore_Persists(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s1, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, s1.Save(ctx, "system", []byte("durable")))

	s2, err := NewFileStore(dir)
	require.NoError(t, err)
	data, err := s2.Load(ctx, "system")
	require.NoError(t, err)
	assert.Equal(t, "durable", string(data))
}

func TestNewFileStore_EmptyPath(t *testing.T) {
	_, err := NewFileStore("")
	assert.Error(t, err)
}

func TestOpenStore(t *testing.T) {
	s, err := OpenStore("", "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = OpenStore(TypeFile, t.TempDir())
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	_, err = OpenStore("redis", "")
	assert.Error(t, err)
}
