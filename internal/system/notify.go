package system

import (
	"errors"
	"sync"

	"github.com/ajaxzhan/simos/pkg/types"
)

// Notifier receives user-visible notifications raised by the core.
type Notifier interface {
	Notify(n types.Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(types.Notification)

// Notify calls f(n).
func (f NotifierFunc) Notify(n types.Notification) { f(n) }

// Inbox is a Notifier that keeps notifications until drained.
type Inbox struct {
	mu    sync.Mutex
	items []types.Notification
}

// Notify appends n.
func (b *Inbox) Notify(n types.Notification) {
	b.mu.Lock()
	b.items = append(b.items, n)
	b.mu.Unlock()
}

// Drain returns and clears the pending notifications.
func (b *Inbox) Drain() []types.Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.items
	b.items = nil
	return out
}

func denialNotification(err error) (types.Notification, bool) {
	var pe *types.PermissionError
	if !errors.As(err, &pe) {
		return types.Notification{}, false
	}
	title := "Permission Denied"
	if pe.Sticky {
		title = "Sticky Bit Protection"
	}
	return types.Notification{
		Title:   title,
		Message: pe.Error(),
		Path:    pe.Path,
		Time:    now(),
	}, true
}
