package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"testing"

	"github.com/vovakirdan/roomchat/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateAndGetRoom(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	room, err := s.CreateRoom(ctx, "demo", "alice")
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if room.Name != "demo" || room.CreatedBy != "alice" || room.Locked {
		t.Fatalf("unexpected room: %+v", room)
	}
	if len(room.AllowedUsers) != 0 {
		t.Fatalf("new room should have empty allowlist, got %v", room.AllowedUsers)
	}

	if _, err := s.CreateRoom(ctx, "demo", "bob"); !errors.Is(err, store.ErrRoomExists) {
		t.Fatalf("expected ErrRoomExists, got %v", err)
	}

	if _, err := s.GetRoom(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAllowlistAndLock(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateRoom(ctx, "demo", ""); err != nil {
		t.Fatalf("create room: %v", err)
	}

	if err := s.PersistAllowlist(ctx, "demo", []string{"bob", "alice", "bob"}); err != nil {
		t.Fatalf("persist allowlist: %v", err)
	}
	if err := s.SetLocked(ctx, "demo", true); err != nil {
		t.Fatalf("set locked: %v", err)
	}

	room, err := s.GetRoom(ctx, "demo")
	if err != nil {
		t.Fatalf("get room: %v", err)
	}
	if !room.Locked {
		t.Fatalf("room should be locked")
	}
	if want := []string{"bob", "alice"}; !reflect.DeepEqual(room.AllowedUsers, want) {
		t.Fatalf("allowlist = %v, want %v", room.AllowedUsers, want)
	}
	if !room.Allows("alice") || room.Allows("carol") {
		t.Fatalf("Allows gave wrong answer for %v", room.AllowedUsers)
	}

	if err := s.SetLocked(ctx, "ghost", true); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing room, got %v", err)
	}
	if err := s.PersistAllowlist(ctx, "ghost", []string{"a"}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing room, got %v", err)
	}
}

func TestUpdateRoom(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateRoom(ctx, "demo", ""); err != nil {
		t.Fatalf("create room: %v", err)
	}

	updated, err := s.UpdateRoom(ctx, "demo", func(r *store.Room) error {
		r.AllowedUsers = append(r.AllowedUsers, "alice")
		r.Locked = true
		return nil
	})
	if err != nil {
		t.Fatalf("update room: %v", err)
	}
	if !updated.Locked || !reflect.DeepEqual(updated.AllowedUsers, []string{"alice"}) {
		t.Fatalf("unexpected updated room: %+v", updated)
	}

	// A failing mutation must not write anything.
	boom := errors.New("boom")
	_, err = s.UpdateRoom(ctx, "demo", func(r *store.Room) error {
		r.AllowedUsers = append(r.AllowedUsers, "mallory")
		r.Locked = false
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected mutation error, got %v", err)
	}

	room, err := s.GetRoom(ctx, "demo")
	if err != nil {
		t.Fatalf("get room: %v", err)
	}
	if !room.Locked || room.Allows("mallory") {
		t.Fatalf("rolled back update leaked: %+v", room)
	}

	if _, err := s.UpdateRoom(ctx, "ghost", func(*store.Room) error { return nil }); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteRoomIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateRoom(ctx, "demo", ""); err != nil {
		t.Fatalf("create room: %v", err)
	}
	if err := s.PersistAllowlist(ctx, "demo", []string{"alice"}); err != nil {
		t.Fatalf("persist allowlist: %v", err)
	}

	if err := s.DeleteRoom(ctx, "demo"); err != nil {
		t.Fatalf("delete room: %v", err)
	}
	if err := s.DeleteRoom(ctx, "demo"); err != nil {
		t.Fatalf("second delete should be a no-op, got %v", err)
	}
	if _, err := s.GetRoom(ctx, "demo"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}

	// Recreating the room must not resurrect the old allowlist.
	room, err := s.CreateRoom(ctx, "demo", "")
	if err != nil {
		t.Fatalf("recreate room: %v", err)
	}
	if len(room.AllowedUsers) != 0 || room.Locked {
		t.Fatalf("recreated room carries stale state: %+v", room)
	}
}

func TestListRooms(t *testing.T) {
	s, err := NewWithSetup(":memory:", func(db *sql.DB) error {
		_, err := db.Exec(`INSERT INTO rooms (name, created_by) VALUES ('general', '')`)
		return err
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	if _, err := s.CreateRoom(ctx, "demo", "alice"); err != nil {
		t.Fatalf("create room: %v", err)
	}
	if err := s.PersistAllowlist(ctx, "demo", []string{"alice"}); err != nil {
		t.Fatalf("persist allowlist: %v", err)
	}

	rooms, err := s.ListRooms(ctx)
	if err != nil {
		t.Fatalf("list rooms: %v", err)
	}
	if len(rooms) != 2 {
		t.Fatalf("expected 2 rooms, got %d", len(rooms))
	}
	byName := make(map[string]*store.Room)
	for _, r := range rooms {
		byName[r.Name] = r
	}
	if byName["general"] == nil || byName["demo"] == nil {
		t.Fatalf("missing rooms in %v", byName)
	}
	if !byName["demo"].Allows("alice") {
		t.Fatalf("allowlist not loaded for listed room")
	}
}

func TestUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "alice", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := s.CreateUser(ctx, "alice", "hash"); !errors.Is(err, store.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}

	got, err := s.GetUserByUsername(ctx, "alice")
	if err != nil || got.ID != u.ID {
		t.Fatalf("get by username: %+v %v", got, err)
	}

	guest, err := s.CreateGuestUser(ctx, "guest_1234", "session-1")
	if err != nil {
		t.Fatalf("create guest: %v", err)
	}
	if !guest.IsGuest || guest.SessionID != "session-1" {
		t.Fatalf("unexpected guest: %+v", guest)
	}

	if _, err := s.GetUserByID(ctx, 999); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	resumed, err := s.GetGuestBySessionID(ctx, "session-1")
	if err != nil || resumed.ID != guest.ID {
		t.Fatalf("get guest by session: %+v %v", resumed, err)
	}
	if _, err := s.GetGuestBySessionID(ctx, "session-unknown"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown session, got %v", err)
	}
	if _, err := s.GetGuestBySessionID(ctx, ""); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for empty session, got %v", err)
	}

	if err := s.UpdatePasswordHash(ctx, u.ID, "new-hash"); err != nil {
		t.Fatalf("update password: %v", err)
	}
	got, err = s.GetUserByID(ctx, u.ID)
	if err != nil || got.PasswordHash != "new-hash" {
		t.Fatalf("password not updated: %+v %v", got, err)
	}
	if err := s.UpdatePasswordHash(ctx, guest.ID, "hash"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("guests have no password to update, got %v", err)
	}
}
