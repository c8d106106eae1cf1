package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Severity classifies a notification.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityInfo    Severity = "info"
)

// Notification is a transient message shown to the user.
type Notification struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Severity    Severity  `json:"severity"`
	Timestamp   time.Time `json:"timestamp"`
}

// Notifier is anything that accepts notifications.
type Notifier interface {
	Notify(n Notification)
}

// Channel is a process-wide publish/subscribe channel for notifications.
// Subscribers are called synchronously, in subscription order.
type Channel struct {
	mu     sync.RWMutex
	nextID int
	subs   []subscriber
	now    func() time.Time
}

type subscriber struct {
	id int
	fn func(Notification)
}

// NewChannel returns a channel with no subscribers.
func NewChannel() *Channel {
	return &Channel{now: time.Now}
}

// Subscribe registers fn and returns a function that removes it.
func (c *Channel) Subscribe(fn func(Notification)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	c.subs = append(c.subs, subscriber{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			for i, s := range c.subs {
				if s.id == id {
					c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Notify stamps n with an ID and timestamp when missing and delivers it to
// every subscriber. Notifications sent with no subscribers are dropped.
func (c *Channel) Notify(n Notification) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = c.now()
	}
	if n.Severity == "" {
		n.Severity = SeverityInfo
	}

	c.mu.RLock()
	subs := make([]subscriber, len(c.subs))
	copy(subs, c.subs)
	c.mu.RUnlock()

	for _, s := range subs {
		s.fn(n)
	}
}

// Success sends a success notification.
func Success(n Notifier, title, description string) {
	n.Notify(Notification{Title: title, Description: description, Severity: SeveritySuccess})
}

// Error sends an error notification.
func Error(n Notifier, title, description string) {
	n.Notify(Notification{Title: title, Description: description, Severity: SeverityError})
}

// Info sends an informational notification.
func Info(n Notifier, title, description string) {
	n.Notify(Notification{Title: title, Description: description, Severity: SeverityInfo})
}
