package core

import (
	"context"
	"sync"
)

// Subscriber receives events published to a room group.
type Subscriber interface {
	Deliver(ev *Event)
}

// Broadcaster fans events out to every subscriber of a room group. Publish
// delivers to subscribers on all nodes sharing the backend.
type Broadcaster interface {
	Subscribe(room string, sub Subscriber) error
	Unsubscribe(room string, sub Subscriber)
	Publish(ctx context.Context, room string, ev *Event) error
	Close() error
}

// LocalBroadcaster keeps room groups in process memory.
type LocalBroadcaster struct {
	mu    sync.RWMutex
	rooms map[string]map[Subscriber]struct{}
}

// NewLocalBroadcaster constructs a broadcaster with no groups.
func NewLocalBroadcaster() *LocalBroadcaster {
	return &LocalBroadcaster{rooms: make(map[string]map[Subscriber]struct{})}
}

// Subscribe adds sub to the room group.
func (b *LocalBroadcaster) Subscribe(room string, sub Subscriber) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	group, ok := b.rooms[room]
	if !ok {
		group = make(map[Subscriber]struct{})
		b.rooms[room] = group
	}
	group[sub] = struct{}{}
	return nil
}

// Unsubscribe removes sub from the room group. Empty groups are dropped.
func (b *LocalBroadcaster) Unsubscribe(room string, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	group, ok := b.rooms[room]
	if !ok {
		return
	}
	delete(group, sub)
	if len(group) == 0 {
		delete(b.rooms, room)
	}
}

// Publish delivers ev to all subscribers of room.
func (b *LocalBroadcaster) Publish(_ context.Context, room string, ev *Event) error {
	b.Deliver(room, ev)
	return nil
}

// Deliver fans ev out to the local group without going through a backend.
func (b *LocalBroadcaster) Deliver(room string, ev *Event) {
	b.mu.RLock()
	subs := make([]Subscriber, 0, len(b.rooms[room]))
	for sub := range b.rooms[room] {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	for _, sub := range subs {
		sub.Deliver(ev)
	}
}

// Count returns the number of local subscribers in room.
func (b *LocalBroadcaster) Count(room string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.rooms[room])
}

// Close drops all groups.
func (b *LocalBroadcaster) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rooms = make(map[string]map[Subscriber]struct{})
	return nil
}
