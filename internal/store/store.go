package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrRoomExists is returned when creating a room whose name is taken.
	ErrRoomExists = errors.New("room already exists")
	// ErrUserExists is returned when creating a user whose name is taken.
	ErrUserExists = errors.New("user already exists")
)

// User represents a registered or guest user.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	IsGuest      bool
	SessionID    string // For guest user session tracking
	CreatedAt    time.Time
}

// Room represents a chat room with its access state.
type Room struct {
	ID           int64
	Name         string
	CreatedBy    string // normalized username, empty for system rooms
	Locked       bool
	AllowedUsers []string // insertion order
	CreatedAt    time.Time
}

// Allows reports whether user is on the room's allowlist.
func (r *Room) Allows(user string) bool {
	for _, u := range r.AllowedUsers {
		if u == user {
			return true
		}
	}
	return false
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, username, passwordHash string) (*User, error)

	// CreateGuestUser creates a temporary guest user with session ID.
	CreateGuestUser(ctx context.Context, username, sessionID string) (*User, error)

	// GetGuestBySessionID retrieves the guest created for sessionID.
	GetGuestBySessionID(ctx context.Context, sessionID string) (*User, error)

	// UpdatePasswordHash sets a new hash for a registered (non-guest) user.
	UpdatePasswordHash(ctx context.Context, userID int64, passwordHash string) error

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)
}

// RoomStore handles room persistence.
type RoomStore interface {
	// GetRoom retrieves a room with its allowlist. Returns ErrNotFound if absent.
	GetRoom(ctx context.Context, name string) (*Room, error)

	// CreateRoom creates an unlocked room. Returns ErrRoomExists on name clash.
	CreateRoom(ctx context.Context, name, creator string) (*Room, error)

	// DeleteRoom removes a room and its allowlist. Deleting an absent room is not an error.
	DeleteRoom(ctx context.Context, name string) error

	// PersistAllowlist replaces the room's allowlist.
	PersistAllowlist(ctx context.Context, name string, users []string) error

	// SetLocked sets the room's lock flag.
	SetLocked(ctx context.Context, name string, locked bool) error

	// UpdateRoom re-reads the room and applies fn inside one transaction, then
	// writes back the lock flag and allowlist. If fn returns an error nothing is
	// written and the error is returned unchanged.
	UpdateRoom(ctx context.Context, name string, fn func(*Room) error) (*Room, error)

	// ListRooms lists all rooms ordered by creation time, newest first.
	ListRooms(ctx context.Context) ([]*Room, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	RoomStore

	// Close closes the underlying database connection.
	Close() error
}
