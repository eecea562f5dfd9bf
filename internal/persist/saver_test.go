package persist

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajaxzhan/simos/internal/fs"
	"github.com/ajaxzhan/simos/internal/system"
	"github.com/ajaxzhan/simos/pkg/types"
)

// countingStore records how many saves reached the backend.
type countingStore struct {
	*MemoryStore
	mu    sync.Mutex
	saves int
}

func (c *countingStore) Save(ctx context.Context, key string, data []byte) error {
	c.mu.Lock()
	c.saves++
	c.mu.Unlock()
	return c.MemoryStore.Save(ctx, key, data)
}

func (c *countingStore) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saves
}

func newSnapshot(t *testing.T) system.Snapshot {
	t.Helper()
	s, err := system.New(system.Options{RootPassword: "toor"})
	require.NoError(t, err)
	return s.Snapshot()
}

func TestCodec_RoundTrip(t *testing.T) {
	snap := newSnapshot(t)

	data, err := Encode(snap)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	require.NoError(t, system.ValidateSnapshot(decoded))

	tree := fs.NewTree(decoded.Root)
	orig := fs.NewTree(snap.Root)
	assert.Equal(t, orig.Count(), tree.Count())
	assert.Equal(t, orig.Lookup("/etc/passwd").Content, tree.Lookup("/etc/passwd").Content)
	assert.Equal(t, orig.Lookup("/tmp").ID, tree.Lookup("/tmp").ID)
	assert.Equal(t, "toor", decoded.Users[0].Password)
}

func TestDecode_Garbage(t *testing.T) {
	for _, data := range [][]byte{nil, []byte("nope"), append([]byte("SIMOS1"), 1, 2, 3)} {
		_, err := Decode(data)
		assert.ErrorIs(t, err, ErrBadSnapshot)
	}
}

func TestSaver_Debounces(t *testing.T) {
	store := &countingStore{MemoryStore: NewMemoryStore()}
	saver := NewSaver(store, "", 50*time.Millisecond)

	snap := newSnapshot(t)
	for i := 0; i < 5; i++ {
		saver.Schedule(snap)
	}

	require.Eventually(t, func() bool { return store.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, store.count())

	loaded, err := Load(context.Background(), store, DefaultKey)
	require.NoError(t, err)
	require.NotNil(t, loaded)
}

func TestSaver_CloseFlushes(t *testing.T) {
	store := &countingStore{MemoryStore: NewMemoryStore()}
	saver := NewSaver(store, "slot", time.Hour)

	saver.Schedule(newSnapshot(t))
	require.NoError(t, saver.Close(context.Background()))
	assert.Equal(t, 1, store.count())

	saver.Schedule(newSnapshot(t))
	require.NoError(t, saver.Flush(context.Background()))
	assert.Equal(t, 1, store.count(), "closed saver ignores new snapshots")
}

func TestLoad_Missing(t *testing.T) {
	snap, err := Load(context.Background(), NewMemoryStore(), DefaultKey)
	assert.NoError(t, err)
	assert.Nil(t, snap)
}

func TestSystemPersistsThroughSaver(t *testing.T) {
	store := NewMemoryStore()
	saver := NewSaver(store, DefaultKey, time.Hour)

	s, err := system.New(system.Options{RootPassword: "toor", OnChange: saver.Schedule})
	require.NoError(t, err)
	root, err := s.User("root")
	require.NoError(t, err)
	_, err = s.AddUser(root, &types.User{Username: "alice", Password: "pw"})
	require.NoError(t, err)
	require.NoError(t, saver.Flush(context.Background()))

	snap, err := Load(context.Background(), store, DefaultKey)
	require.NoError(t, err)
	restored, err := system.Restore(snap, system.Options{})
	require.NoError(t, err)
	assert.False(t, restored.ReadOnly())
	assert.NotNil(t, restored.GetNodeAtPath("/home/alice/Desktop"))
	assert.True(t, restored.VerifyPassword("alice", "pw"))
}
