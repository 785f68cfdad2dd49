// Package lifecycle deletes rooms that stay empty for a grace window.
package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
)

// DeletionGrace is how long a room must stay empty before it is deleted.
const DeletionGrace = 30 * time.Second

const deleteTimeout = 5 * time.Second

// Locker serializes work on a single room. The hub holds the same lock while it
// admits, removes, schedules or cancels, so expiry sees a consistent room.
type Locker interface {
	Lock(room string)
	Unlock(room string)
}

// DeleteFunc removes a room's durable state.
type DeleteFunc func(ctx context.Context, room string) error

// pending is one scheduled deletion. Expiry compares pointers so a timer that
// fires after being replaced or cancelled does nothing.
type pending struct {
	timer *clock.Timer
}

// Manager owns the table of pending deletions, at most one per room.
type Manager struct {
	clock    clock.Clock
	locks    Locker
	isEmpty  func(room string) bool
	onDelete DeleteFunc
	log      *zerolog.Logger

	mu      sync.Mutex
	pending map[string]*pending
	stopped bool
}

// New creates a manager. isEmpty must report the current presence state of a room.
func New(clk clock.Clock, locks Locker, isEmpty func(room string) bool, onDelete DeleteFunc, logger *zerolog.Logger) *Manager {
	return &Manager{
		clock:    clk,
		locks:    locks,
		isEmpty:  isEmpty,
		onDelete: onDelete,
		log:      logger,
		pending:  make(map[string]*pending),
	}
}

// ScheduleDeletionIfEmpty starts the grace countdown for room if it is empty and
// no countdown is running. The caller must hold the room lock.
func (m *Manager) ScheduleDeletionIfEmpty(room string) bool {
	if !m.isEmpty(room) {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return false
	}
	if _, ok := m.pending[room]; ok {
		return false
	}

	p := &pending{}
	p.timer = m.clock.AfterFunc(DeletionGrace, func() { m.expire(room, p) })
	m.pending[room] = p

	m.log.Debug().Str("room", room).Dur("grace", DeletionGrace).Msg("room deletion scheduled")
	return true
}

// CancelPendingDeletion stops and clears the countdown for room, if any. The
// caller must hold the room lock.
func (m *Manager) CancelPendingDeletion(room string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pending[room]
	if !ok {
		return false
	}
	p.timer.Stop()
	delete(m.pending, room)

	m.log.Debug().Str("room", room).Msg("room deletion cancelled")
	return true
}

// Pending reports whether room has a deletion countdown running.
func (m *Manager) Pending(room string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.pending[room]
	return ok
}

// Stop cancels every pending deletion and refuses new ones.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for room, p := range m.pending {
		p.timer.Stop()
		delete(m.pending, room)
	}
	m.stopped = true
}

func (m *Manager) expire(room string, p *pending) {
	m.locks.Lock(room)
	defer m.locks.Unlock(room)

	m.mu.Lock()
	if m.pending[room] != p {
		m.mu.Unlock()
		return
	}
	delete(m.pending, room)
	m.mu.Unlock()

	if !m.isEmpty(room) {
		m.log.Debug().Str("room", room).Msg("room repopulated before deletion")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), deleteTimeout)
	defer cancel()

	// The table entry is already gone; a failed delete is not retried.
	if err := m.onDelete(ctx, room); err != nil {
		m.log.Error().Err(err).Str("room", room).Msg("room deletion failed")
		return
	}
	m.log.Info().Str("room", room).Msg("empty room deleted")
}
