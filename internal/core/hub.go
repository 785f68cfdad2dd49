package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/access"
	"github.com/vovakirdan/roomchat/internal/huffman"
	"github.com/vovakirdan/roomchat/internal/identity"
	"github.com/vovakirdan/roomchat/internal/lifecycle"
	"github.com/vovakirdan/roomchat/internal/presence"
	"github.com/vovakirdan/roomchat/internal/store"
	"github.com/vovakirdan/roomchat/internal/utils"
)

// DisconnectDebounce is how long a closed connection waits before its user is
// removed from presence. A reconnect inside the window suppresses the leave.
const DisconnectDebounce = 3 * time.Second

// Options configures a Hub. Rooms is required; everything else has a default.
type Options struct {
	Rooms           store.RoomStore
	Broadcaster     Broadcaster
	Clock           clock.Clock
	Compressor      huffman.Compressor
	AutoCreateRooms bool
	Logger          *zerolog.Logger
}

type memberKey struct {
	room string
	user string
}

// pendingLeave is the debounced disconnect of one (room, user). A newer
// disconnect replaces it and a reconnect cancels it.
type pendingLeave struct {
	timer *clock.Timer
}

// Hub coordinates sessions, presence, access control and room lifecycle.
type Hub struct {
	rooms       store.RoomStore
	gate        *access.Gate
	presence    *presence.Registry
	lifecycle   *lifecycle.Manager
	broadcaster Broadcaster
	reactions   *reactions
	compressor  huffman.Compressor
	clock       clock.Clock
	locks       *utils.KeyedMutex
	autoCreate  bool
	pickColor   func() string
	log         *zerolog.Logger

	mu      sync.Mutex
	active  map[memberKey]int
	leaving map[memberKey]*pendingLeave
	stopped bool
}

// NewHub creates a new chat hub instance.
func NewHub(opts Options) *Hub {
	if opts.Broadcaster == nil {
		opts.Broadcaster = NewLocalBroadcaster()
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		nop := zerolog.Nop()
		opts.Logger = &nop
	}

	h := &Hub{
		rooms:       opts.Rooms,
		gate:        access.NewGate(opts.Rooms),
		presence:    presence.NewRegistry(),
		broadcaster: opts.Broadcaster,
		reactions:   newReactions(),
		compressor:  opts.Compressor,
		clock:       opts.Clock,
		locks:       utils.NewKeyedMutex(),
		autoCreate:  opts.AutoCreateRooms,
		pickColor:   randomColor,
		log:         opts.Logger,
		active:      make(map[memberKey]int),
		leaving:     make(map[memberKey]*pendingLeave),
	}
	h.lifecycle = lifecycle.New(h.clock, h.locks, h.presence.Empty, h.deleteRoom, h.log)
	return h
}

// Run blocks until ctx is cancelled, then stops all pending timers.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.Close()
}

// Close stops pending deletions and debounced leaves. Sessions still connected
// are left to the transport.
func (h *Hub) Close() {
	h.mu.Lock()
	h.stopped = true
	for key, p := range h.leaving {
		p.timer.Stop()
		delete(h.leaving, key)
	}
	h.mu.Unlock()

	h.lifecycle.Stop()
}

// Connect admits user into room and returns the live session. On any error no
// presence or timer state has been touched.
func (h *Hub) Connect(ctx context.Context, roomName, rawUser string) (*Session, error) {
	user := identity.Normalize(rawUser)
	if user == "" {
		return nil, ErrAuthRequired
	}
	if roomName == "" {
		return nil, ErrRoomNotFound
	}

	h.locks.Lock(roomName)
	defer h.locks.Unlock(roomName)

	if h.autoCreate {
		if err := h.ensureRoom(ctx, roomName, user); err != nil {
			return nil, err
		}
	}

	decision, err := h.gate.CheckAndMaybeAdmit(ctx, roomName, user)
	var notice *CoreError
	switch {
	case err == nil:
	case errors.Is(err, access.ErrAllowlistWrite):
		h.log.Warn().Err(err).Str("room", roomName).Str("user", user).Msg("admitted without persisting allowlist")
		notice = coreError(ErrCodePersistence, "Your access could not be saved; it may not survive a room lock.")
	case errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, roomName)
	default:
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if decision == access.Rejected {
		return nil, fmt.Errorf("%w: %s", ErrAccessDenied, roomName)
	}

	sess := NewSession(utils.NewID(), roomName, user, h.pickColor(), h.clock.Now())

	key := memberKey{room: roomName, user: user}
	h.presence.Join(roomName, user)
	h.mu.Lock()
	h.active[key]++
	if p, ok := h.leaving[key]; ok {
		p.timer.Stop()
		delete(h.leaving, key)
	}
	h.mu.Unlock()
	h.lifecycle.CancelPendingDeletion(roomName)

	if err := h.broadcaster.Subscribe(roomName, sess); err != nil {
		// Membership stands; the session just cannot hear the group until the
		// substrate recovers.
		h.log.Error().Err(err).Str("room", roomName).Str("session", sess.ID).Msg("subscribe failed")
	}

	sess.Deliver(h.systemEvent(roomName, fmt.Sprintf("You joined as %s", user), nil))
	if notice != nil {
		sess.Deliver(h.systemEvent(roomName, notice.Message, notice))
	}

	h.publish(ctx, roomName, &Event{
		Kind:  EventUserJoined,
		User:  user,
		Color: sess.Color,
		Users: h.presence.Snapshot(roomName),
	})

	h.log.Info().Str("room", roomName).Str("user", user).Str("session", sess.ID).Msg("session connected")
	return sess, nil
}

func (h *Hub) ensureRoom(ctx context.Context, roomName, creator string) error {
	_, err := h.rooms.GetRoom(ctx, roomName)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if _, err := h.rooms.CreateRoom(ctx, roomName, creator); err != nil && !errors.Is(err, store.ErrRoomExists) {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}

// Handle applies one inbound command from s.
func (h *Hub) Handle(ctx context.Context, s *Session, cmd Command) {
	select {
	case <-s.Done():
		return
	default:
	}

	switch cmd.Kind {
	case CommandLockRoom:
		h.lockRoom(ctx, s)
	case CommandReaction:
		if !cmd.Reaction.Valid() {
			h.log.Warn().Str("room", s.Room).Str("reaction", string(cmd.Reaction)).Msg("unknown reaction ignored")
			return
		}
		tally := h.reactions.add(s.Room, cmd.Reaction)
		h.publish(ctx, s.Room, &Event{
			Kind:     EventReaction,
			User:     s.User,
			Likes:    tally.Likes,
			Dislikes: tally.Dislikes,
		})
	case CommandChat:
		text := strings.TrimSpace(cmd.Text)
		if text == "" {
			return
		}
		packed := h.compressor.Pack(text)
		h.publish(ctx, s.Room, &Event{
			Kind:    EventChat,
			User:    s.User,
			Color:   s.Color,
			Payload: &packed,
		})
	default:
		h.log.Warn().Int("kind", int(cmd.Kind)).Msg("unknown command ignored")
	}
}

func (h *Hub) lockRoom(ctx context.Context, s *Session) {
	h.locks.Lock(s.Room)
	defer h.locks.Unlock(s.Room)

	allowed, err := h.gate.Lock(ctx, s.Room, h.presence.Snapshot(s.Room))
	if err != nil {
		h.log.Error().Err(err).Str("room", s.Room).Str("user", s.User).Msg("lock room failed")
		s.Deliver(h.systemEvent(s.Room, "Could not lock the room. Please try again.",
			coreError(ErrCodePersistence, err.Error())))
		return
	}

	h.log.Info().Str("room", s.Room).Str("user", s.User).Strs("allowed", allowed).Msg("room locked")
	h.publish(ctx, s.Room, h.systemEvent(s.Room,
		fmt.Sprintf("Room locked by %s. Allowed users: %s", s.User, strings.Join(allowed, ", ")), nil))
}

// Disconnect detaches s from its room. The user leaves presence
// DisconnectDebounce after their latest disconnect unless they reconnect or
// another session of theirs is still active by then.
// Calling Disconnect twice is a no-op.
func (h *Hub) Disconnect(s *Session) {
	s.close(nil)
	// Kicked sessions are already closed but still need their bookkeeping undone.
	if !s.detached.CompareAndSwap(false, true) {
		return
	}

	h.broadcaster.Unsubscribe(s.Room, s)

	key := memberKey{room: s.Room, user: s.User}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.active[key]--
	if h.stopped {
		return
	}

	if old, ok := h.leaving[key]; ok {
		old.timer.Stop()
	}
	p := &pendingLeave{}
	p.timer = h.clock.AfterFunc(DisconnectDebounce, func() { h.finishLeave(key, p) })
	h.leaving[key] = p

	h.log.Debug().Str("room", s.Room).Str("user", s.User).Str("session", s.ID).Msg("session disconnected")
}

func (h *Hub) finishLeave(key memberKey, p *pendingLeave) {
	h.locks.Lock(key.room)
	defer h.locks.Unlock(key.room)

	h.mu.Lock()
	if h.leaving[key] != p {
		h.mu.Unlock()
		return
	}
	delete(h.leaving, key)
	n := h.active[key]
	if n <= 0 {
		delete(h.active, key)
	}
	h.mu.Unlock()

	if n > 0 {
		h.log.Debug().Str("room", key.room).Str("user", key.user).Msg("disconnect debounced")
		return
	}
	if !h.presence.Leave(key.room, key.user) {
		return
	}

	snapshot := h.presence.Snapshot(key.room)
	h.publish(context.Background(), key.room, &Event{
		Kind:  EventUserLeft,
		User:  key.user,
		Users: snapshot,
	})
	h.log.Info().Str("room", key.room).Str("user", key.user).Msg("user left")

	if len(snapshot) == 0 {
		h.lifecycle.ScheduleDeletionIfEmpty(key.room)
	}
}

// deleteRoom runs under the room lock once the grace window has expired.
func (h *Hub) deleteRoom(ctx context.Context, room string) error {
	h.reactions.reset(room)
	if err := h.rooms.DeleteRoom(ctx, room); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}

// Online returns the users currently present in room.
func (h *Hub) Online(room string) []string {
	return h.presence.Snapshot(room)
}

// Reactions returns the room's reaction tallies.
func (h *Hub) Reactions(room string) Tally {
	return h.reactions.get(room)
}

// DeletionPending reports whether room is counting down to deletion.
func (h *Hub) DeletionPending(room string) bool {
	return h.lifecycle.Pending(room)
}

// Unlock re-opens a locked room and tells its members.
func (h *Hub) Unlock(ctx context.Context, room, by string) error {
	h.locks.Lock(room)
	defer h.locks.Unlock(room)

	if err := h.gate.Unlock(ctx, room); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrRoomNotFound, room)
		}
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	h.publish(ctx, room, h.systemEvent(room, fmt.Sprintf("Room unlocked by %s", by), nil))
	return nil
}

func (h *Hub) systemEvent(room, text string, cause *CoreError) *Event {
	return &Event{
		Kind:   EventSystem,
		Room:   room,
		User:   SystemUser,
		Color:  SystemColor,
		Text:   text,
		Error:  cause,
		SentAt: h.clock.Now(),
	}
}

func (h *Hub) publish(ctx context.Context, room string, ev *Event) {
	ev.Room = room
	if ev.SentAt.IsZero() {
		ev.SentAt = h.clock.Now()
	}
	if err := h.broadcaster.Publish(ctx, room, ev); err != nil {
		h.log.Error().Err(err).Str("room", room).Str("event", ev.Kind.String()).Msg("publish failed")
	}
}
