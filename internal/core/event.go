package core

import (
	"time"

	"github.com/vovakirdan/roomchat/internal/huffman"
)

// EventKind is a notification the core emits to sessions.
type EventKind int

const (
	// EventChat carries a compressed chat message.
	EventChat EventKind = iota
	// EventSystem is a notice from the server (lock announcements, failures, greetings).
	EventSystem
	// EventUserJoined notifies members about a join and carries the new presence list.
	EventUserJoined
	// EventUserLeft notifies members about a leave and carries the new presence list.
	EventUserLeft
	// EventReaction carries the room's updated like/dislike tallies.
	EventReaction
)

func (k EventKind) String() string {
	switch k {
	case EventChat:
		return "chat"
	case EventSystem:
		return "system"
	case EventUserJoined:
		return "user_joined"
	case EventUserLeft:
		return "user_left"
	case EventReaction:
		return "reaction"
	default:
		return "unknown"
	}
}

// Event is published to a room group. It is JSON encoded when the broadcast
// substrate crosses process boundaries.
type Event struct {
	Kind     EventKind       `json:"kind"`
	Room     string          `json:"room"`
	User     string          `json:"user,omitempty"`
	Color    string          `json:"color,omitempty"`
	Text     string          `json:"text,omitempty"`
	Payload  *huffman.Packed `json:"payload,omitempty"`
	Users    []string        `json:"users,omitempty"`
	Likes    int64           `json:"likes,omitempty"`
	Dislikes int64           `json:"dislikes,omitempty"`
	Error    *CoreError      `json:"error,omitempty"`
	SentAt   time.Time       `json:"sent_at"`
}
