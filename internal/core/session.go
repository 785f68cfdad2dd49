package core

import (
	"sync"
	"sync/atomic"
	"time"
)

// sessionBuffer is the outbox size of a session. A session that falls this far
// behind is kicked.
const sessionBuffer = 64

// Session is one live connection of a user to a room as seen by the core layer.
// A user may hold several sessions at once (for example two browser tabs).
type Session struct {
	ID          string
	Room        string
	User        string
	Color       string
	ConnectedAt time.Time
	Events      chan *Event

	closeOnce sync.Once
	done      chan struct{}
	detached  atomic.Bool

	mu     sync.Mutex
	reason error
}

// NewSession constructs a session with an initialized outbox.
func NewSession(id, room, user, color string, connectedAt time.Time) *Session {
	return &Session{
		ID:          id,
		Room:        room,
		User:        user,
		Color:       color,
		ConnectedAt: connectedAt,
		Events:      make(chan *Event, sessionBuffer),
		done:        make(chan struct{}),
	}
}

// Deliver queues ev without blocking. A full outbox closes the session with
// ErrSlowConsumer instead of silently dropping events.
func (s *Session) Deliver(ev *Event) {
	select {
	case <-s.done:
		return
	default:
	}

	select {
	case s.Events <- ev:
	default:
		s.close(ErrSlowConsumer)
	}
}

// Done is closed when the session is kicked or disconnected.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns why the session was closed, or nil for a normal disconnect.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// close marks the session closed. Returns true only for the first call.
func (s *Session) close(reason error) bool {
	closed := false
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.reason = reason
		s.mu.Unlock()
		close(s.done)
		closed = true
	})
	return closed
}
