package notify

import (
	"sync"
	"time"
)

const (
	// DefaultSessionIdle is how long an unwatched session is kept after its
	// last request.
	DefaultSessionIdle = 30 * time.Minute

	sweepInterval = time.Minute
)

// Session is the notification stack of one browser. Everything sent to it
// is also forwarded to the process channel.
type Session struct {
	ID string

	channel  *Channel
	toaster  *Toaster
	detach   func()
	lastSeen time.Time
}

// Notify delivers n to this session's toaster.
func (s *Session) Notify(n Notification) {
	s.channel.Notify(n)
}

// Toaster returns the session's toast stack.
func (s *Session) Toaster() *Toaster {
	return s.toaster
}

func (s *Session) close() {
	s.toaster.Close()
	s.detach()
}

// Sessions keys a toaster per browser session.
type Sessions struct {
	mu        sync.Mutex
	global    *Channel
	ttl       time.Duration
	idle      time.Duration
	sessions  map[string]*Session
	now       func() time.Time
	lastSweep time.Time
}

// NewSessions returns an empty registry. Session notifications are
// forwarded to global when it is not nil. Sessions idle for longer than
// idle are dropped unless a watcher is attached.
func NewSessions(global *Channel, ttl, idle time.Duration) *Sessions {
	if idle <= 0 {
		idle = DefaultSessionIdle
	}
	return &Sessions{
		global:   global,
		ttl:      ttl,
		idle:     idle,
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Get returns the session for id, creating it when needed.
func (s *Sessions) Get(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) >= sweepInterval {
		s.sweepLocked(now)
	}
	if sess, ok := s.sessions[id]; ok {
		sess.lastSeen = now
		return sess
	}

	ch := NewChannel()
	sess := &Session{
		ID:       id,
		channel:  ch,
		toaster:  NewToaster(ch, s.ttl),
		detach:   func() {},
		lastSeen: now,
	}
	if s.global != nil {
		sess.detach = ch.Subscribe(s.global.Notify)
	}
	s.sessions[id] = sess
	return sess
}

// Lookup returns an existing session without creating one.
func (s *Sessions) Lookup(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if ok {
		sess.lastSeen = s.now()
	}
	return sess, ok
}

// Sweep drops idle, unwatched sessions and returns how many it dropped.
func (s *Sessions) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked(s.now())
}

func (s *Sessions) sweepLocked(now time.Time) int {
	s.lastSweep = now
	dropped := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.lastSeen) < s.idle || sess.toaster.Watchers() > 0 {
			continue
		}
		sess.close()
		delete(s.sessions, id)
		dropped++
	}
	return dropped
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close detaches every session.
func (s *Sessions) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		sess.close()
		delete(s.sessions, id)
	}
}
