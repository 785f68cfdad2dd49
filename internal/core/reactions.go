package core

import "sync"

// Tally is a room's reaction counters.
type Tally struct {
	Likes    int64 `json:"likes"`
	Dislikes int64 `json:"dislikes"`
}

// reactions keeps per-room counters. They live as long as the room does.
type reactions struct {
	mu    sync.Mutex
	rooms map[string]Tally
}

func newReactions() *reactions {
	return &reactions{rooms: make(map[string]Tally)}
}

func (r *reactions) add(room string, reaction Reaction) Tally {
	r.mu.Lock()
	defer r.mu.Unlock()

	t := r.rooms[room]
	switch reaction {
	case ReactionLike:
		t.Likes++
	case ReactionDislike:
		t.Dislikes++
	}
	r.rooms[room] = t
	return t
}

func (r *reactions) get(room string) Tally {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rooms[room]
}

func (r *reactions) reset(room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rooms, room)
}
