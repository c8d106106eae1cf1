package notify

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL is how long a toast stays up unless dismissed.
const DefaultTTL = 5 * time.Second

// Toaster is the single renderer of the notification channel. It keeps the
// active notifications in insertion order and expires each one after its TTL.
type Toaster struct {
	mu       sync.Mutex
	ttl      time.Duration
	active   []Notification
	timers   map[string]*time.Timer
	watchers map[chan []Notification]struct{}
	detach   func()
}

// NewToaster attaches a toaster to ch. Call Close to detach it.
func NewToaster(ch *Channel, ttl time.Duration) *Toaster {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	t := &Toaster{
		ttl:      ttl,
		timers:   make(map[string]*time.Timer),
		watchers: make(map[chan []Notification]struct{}),
	}
	t.detach = ch.Subscribe(t.push)
	return t
}

func (t *Toaster) push(n Notification) {
	t.mu.Lock()
	t.active = append(t.active, n)
	id := n.ID
	t.timers[id] = time.AfterFunc(t.ttl, func() { t.Dismiss(id) })
	t.broadcastLocked()
	t.mu.Unlock()
}

// Active returns a snapshot of the notifications currently shown.
func (t *Toaster) Active() []Notification {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// Dismiss removes a notification before it expires. It reports whether the
// notification was still active.
func (t *Toaster) Dismiss(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, n := range t.active {
		if n.ID != id {
			continue
		}
		t.active = append(t.active[:i:i], t.active[i+1:]...)
		if timer, ok := t.timers[id]; ok {
			timer.Stop()
			delete(t.timers, id)
		}
		t.broadcastLocked()
		return true
	}
	return false
}

// Watch calls fn with the current stack and again after every change until
// ctx ends. Slow watchers only see the latest stack.
func (t *Toaster) Watch(ctx context.Context, fn func([]Notification)) {
	updates := make(chan []Notification, 1)
	t.mu.Lock()
	t.watchers[updates] = struct{}{}
	updates <- t.snapshotLocked()
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		delete(t.watchers, updates)
		t.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case stack := <-updates:
			fn(stack)
		}
	}
}

// Close detaches the toaster from its channel and stops pending timers.
func (t *Toaster) Close() {
	t.detach()
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, timer := range t.timers {
		timer.Stop()
		delete(t.timers, id)
	}
}

// Watchers returns the number of running Watch calls.
func (t *Toaster) Watchers() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.watchers)
}

func (t *Toaster) snapshotLocked() []Notification {
	out := make([]Notification, len(t.active))
	copy(out, t.active)
	return out
}

func (t *Toaster) broadcastLocked() {
	stack := t.snapshotLocked()
	for w := range t.watchers {
		// replace any undelivered stack with the newest one
		select {
		case <-w:
		default:
		}
		w <- stack
	}
}
