package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandChat relays a text message to the room.
	CommandChat CommandKind = iota
	// CommandLockRoom freezes the room's allowlist to who is online plus who was allowed.
	CommandLockRoom
	// CommandReaction increments one of the room's reaction counters.
	CommandReaction
)

// Reaction is a like or dislike signal.
type Reaction string

const (
	ReactionLike    Reaction = "like"
	ReactionDislike Reaction = "dislike"
)

// Valid reports whether r is a known reaction.
func (r Reaction) Valid() bool {
	return r == ReactionLike || r == ReactionDislike
}

// Command represents an action requested by a session.
type Command struct {
	Kind     CommandKind
	Text     string
	Reaction Reaction
}
