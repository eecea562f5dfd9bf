package persist

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ajaxzhan/simos/internal/logging"
	"github.com/ajaxzhan/simos/internal/system"
)

// DefaultKey is the slot name used for the system snapshot.
const DefaultKey = "system"

// Load reads and decodes the snapshot stored under key. A missing snapshot
// is reported as (nil, nil).
func Load(ctx context.Context, store Store, key string) (*system.Snapshot, error) {
	data, err := store.Load(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// Saver writes snapshots to a Store after a quiet period. Bursts of
// changes inside the debounce window produce a single write of the latest
// state.
type Saver struct {
	store Store
	key   string
	delay time.Duration

	mu      sync.Mutex
	pending *system.Snapshot
	timer   *time.Timer
	closed  bool

	// writeMu serializes store writes so an older snapshot never lands
	// after a newer one.
	writeMu sync.Mutex
}

// NewSaver creates a saver for key with the given debounce delay.
func NewSaver(store Store, key string, delay time.Duration) *Saver {
	if key == "" {
		key = DefaultKey
	}
	return &Saver{store: store, key: key, delay: delay}
}

// Schedule records snap as the latest state and (re)starts the debounce
// timer. It is suitable as a system OnChange hook.
func (s *Saver) Schedule(snap system.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.pending = &snap
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.delay, func() {
		if err := s.Flush(context.Background()); err != nil {
			logging.Warn("Failed to persist snapshot", logging.String("key", s.key), logging.Err(err))
		}
	})
}

// Flush writes the pending snapshot, if any, immediately.
func (s *Saver) Flush(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	snap := s.pending
	s.pending = nil
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	if snap == nil {
		return nil
	}
	data, err := Encode(*snap)
	if err != nil {
		return err
	}
	if err := s.store.Save(ctx, s.key, data); err != nil {
		return err
	}
	logging.Debug("Snapshot persisted", logging.String("key", s.key), logging.Int("bytes", len(data)))
	return nil
}

// Close flushes pending state and stops accepting new snapshots.
func (s *Saver) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.Flush(ctx)
}
