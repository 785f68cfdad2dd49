// Package presence tracks who is online in each room. The view is in-memory only
// and starts empty on every process start.
package presence

import "sync"

// Registry maps a room name to the ordered list of users currently online.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string][]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string][]string)}
}

// Join adds user to room. Returns false if the user was already present.
func (r *Registry) Join(room, user string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	users := r.rooms[room]
	for _, u := range users {
		if u == user {
			return false
		}
	}
	r.rooms[room] = append(users, user)
	return true
}

// Leave removes user from room. Removing an absent user is a no-op.
func (r *Registry) Leave(room, user string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	users := r.rooms[room]
	for i, u := range users {
		if u != user {
			continue
		}
		users = append(users[:i:i], users[i+1:]...)
		if len(users) == 0 {
			delete(r.rooms, room)
		} else {
			r.rooms[room] = users
		}
		return true
	}
	return false
}

// Snapshot returns a copy of the users online in room, in join order.
func (r *Registry) Snapshot(room string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := r.rooms[room]
	out := make([]string, len(users))
	copy(out, users)
	return out
}

// Contains reports whether user is online in room.
func (r *Registry) Contains(room, user string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.rooms[room] {
		if u == user {
			return true
		}
	}
	return false
}

// Empty reports whether nobody is online in room.
func (r *Registry) Empty(room string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[room]) == 0
}

// Rooms returns the names of rooms with at least one user online.
func (r *Registry) Rooms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.rooms))
	for name := range r.rooms {
		out = append(out, name)
	}
	return out
}
