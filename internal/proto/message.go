package proto

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Close codes sent when a connection is refused.
const (
	CloseUnauthorized = 4001
	CloseForbidden    = 4003
	CloseRoomNotFound = 4004
)

// Inbound command and reaction values.
const (
	CommandLockRoom = "lock_room"

	ReactionLike    = "like"
	ReactionDislike = "dislike"
)

// Outbound message types.
const (
	TypeChat     = "chat"
	TypeSystem   = "system"
	TypeUserList = "user_list"
	TypeReaction = "reaction"
)

// ErrMalformed is returned for payloads that are not a recognized inbound shape.
var ErrMalformed = errors.New("malformed inbound payload")

// Inbound is a payload from the client. Exactly one field is acted on:
// Command wins over Reaction, which wins over Message. Unknown fields are ignored.
type Inbound struct {
	Command  *string `json:"command,omitempty"`
	Reaction *string `json:"reaction,omitempty"`
	Message  *string `json:"message,omitempty"`
}

// ParseInbound decodes and validates one client payload.
func ParseInbound(data []byte) (Inbound, error) {
	var in Inbound
	if err := json.Unmarshal(data, &in); err != nil {
		return Inbound{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	switch {
	case in.Command != nil:
		if *in.Command != CommandLockRoom {
			return Inbound{}, fmt.Errorf("%w: unknown command %q", ErrMalformed, *in.Command)
		}
		return Inbound{Command: in.Command}, nil
	case in.Reaction != nil:
		if *in.Reaction != ReactionLike && *in.Reaction != ReactionDislike {
			return Inbound{}, fmt.Errorf("%w: unknown reaction %q", ErrMalformed, *in.Reaction)
		}
		return Inbound{Reaction: in.Reaction}, nil
	case in.Message != nil:
		return Inbound{Message: in.Message}, nil
	default:
		return Inbound{}, fmt.Errorf("%w: no command, reaction or message", ErrMalformed)
	}
}

// ChatMessage is a decoded chat line.
type ChatMessage struct {
	Type    string `json:"type"`
	User    string `json:"user"`
	Color   string `json:"color"`
	Message string `json:"message"`
}

// SystemMessage is a server notice. Code is set when the notice reports a failure.
type SystemMessage struct {
	Type    string `json:"type"`
	User    string `json:"user"`
	Color   string `json:"color,omitempty"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// UserList is the room's presence snapshot.
type UserList struct {
	Type  string   `json:"type"`
	Users []string `json:"users"`
}

// ReactionUpdate carries the room's reaction tallies.
type ReactionUpdate struct {
	Type     string `json:"type"`
	Likes    int64  `json:"likes"`
	Dislikes int64  `json:"dislikes"`
}
