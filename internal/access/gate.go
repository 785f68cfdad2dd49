// Package access decides who may join a room and owns the lock transition that
// freezes a room's allowlist.
package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/vovakirdan/roomchat/internal/identity"
	"github.com/vovakirdan/roomchat/internal/store"
)

// Decision is the outcome of an admission check.
type Decision int

const (
	// Rejected means the room is locked and the user is not allowed.
	Rejected Decision = iota
	// Admitted means the user may join.
	Admitted
)

func (d Decision) String() string {
	if d == Admitted {
		return "admitted"
	}
	return "rejected"
}

var (
	// ErrLocked is returned when a locked room refuses a user.
	ErrLocked = errors.New("room is locked")
	// ErrAllowlistWrite is returned alongside Admitted when the user was admitted
	// to an open room but the allowlist append could not be persisted.
	ErrAllowlistWrite = errors.New("allowlist not persisted")
)

// Gate evaluates admission against the durable room state.
type Gate struct {
	rooms store.RoomStore
}

// NewGate creates a gate backed by the given room store.
func NewGate(rooms store.RoomStore) *Gate {
	return &Gate{rooms: rooms}
}

// CheckAndMaybeAdmit applies the admission rules:
//  1. locked and not allowed: Rejected
//  2. open and not allowed: append to the allowlist, Admitted
//  3. allowed: Admitted
//
// The allowlist append goes through store.UpdateRoom so the lock flag is
// re-validated inside the write. A store read failure or missing room is returned
// as an error with Rejected. A failed append still admits the user and returns an
// error wrapping ErrAllowlistWrite.
func (g *Gate) CheckAndMaybeAdmit(ctx context.Context, roomName, rawUser string) (Decision, error) {
	user := identity.Normalize(rawUser)
	if user == "" {
		return Rejected, fmt.Errorf("empty user name")
	}

	room, err := g.rooms.GetRoom(ctx, roomName)
	if err != nil {
		return Rejected, fmt.Errorf("get room: %w", err)
	}
	if room.Allows(user) {
		return Admitted, nil
	}
	if room.Locked {
		return Rejected, nil
	}

	_, err = g.rooms.UpdateRoom(ctx, roomName, func(r *store.Room) error {
		if r.Allows(user) {
			return nil
		}
		if r.Locked {
			return ErrLocked
		}
		r.AllowedUsers = append(r.AllowedUsers, user)
		return nil
	})
	switch {
	case err == nil:
		return Admitted, nil
	case errors.Is(err, ErrLocked):
		// Locked between the read and the write.
		return Rejected, nil
	case errors.Is(err, store.ErrNotFound):
		return Rejected, fmt.Errorf("update room: %w", err)
	default:
		return Admitted, fmt.Errorf("%w: %w", ErrAllowlistWrite, err)
	}
}

// Lock locks the room and merges online into its allowlist in one step. It
// returns the resulting allowlist.
func (g *Gate) Lock(ctx context.Context, roomName string, online []string) ([]string, error) {
	users := identity.NormalizeAll(online)

	room, err := g.rooms.UpdateRoom(ctx, roomName, func(r *store.Room) error {
		for _, u := range users {
			if !r.Allows(u) {
				r.AllowedUsers = append(r.AllowedUsers, u)
			}
		}
		r.Locked = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("lock room: %w", err)
	}
	return room.AllowedUsers, nil
}

// Unlock re-opens a locked room. The allowlist is kept, so a later Lock extends it.
func (g *Gate) Unlock(ctx context.Context, roomName string) error {
	if err := g.rooms.SetLocked(ctx, roomName, false); err != nil {
		return fmt.Errorf("unlock room: %w", err)
	}
	return nil
}
