package core

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/vovakirdan/roomchat/internal/store"
	"github.com/vovakirdan/roomchat/internal/store/sqlite"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// noEvent drains ch for a short while and fails if an event of kind shows up.
func noEvent(t *testing.T, ch <-chan *Event, kind EventKind) {
	t.Helper()

	deadline := time.Now().Add(100 * time.Millisecond)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind {
				t.Fatalf("unexpected %v event: %+v", kind, ev)
			}
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
}

// waitFor polls cond because mock timer callbacks run on their own goroutine.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

type testHub struct {
	*Hub
	clock *clock.Mock
	store *sqlite.SQLiteStore
}

func newTestHub(t *testing.T, rooms ...string) *testHub {
	t.Helper()
	return newTestHubWithStore(t, nil, rooms...)
}

// newTestHubWithStore builds a hub over an in-memory store. wrap, if set, may
// decorate the room store the hub sees.
func newTestHubWithStore(t *testing.T, wrap func(store.RoomStore) store.RoomStore, rooms ...string) *testHub {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	for _, name := range rooms {
		if _, err := st.CreateRoom(context.Background(), name, ""); err != nil {
			t.Fatalf("create room %s: %v", name, err)
		}
	}

	var rs store.RoomStore = st
	if wrap != nil {
		rs = wrap(st)
	}

	clk := clock.NewMock()
	hub := NewHub(Options{Rooms: rs, Clock: clk})
	t.Cleanup(hub.Close)

	return &testHub{Hub: hub, clock: clk, store: st}
}

func (h *testHub) connect(t *testing.T, room, user string) *Session {
	t.Helper()

	s, err := h.Connect(context.Background(), room, user)
	if err != nil {
		t.Fatalf("connect %s to %s: %v", user, room, err)
	}
	return s
}

func (h *testHub) roomExists(t *testing.T, room string) bool {
	t.Helper()

	_, err := h.store.GetRoom(context.Background(), room)
	return err == nil
}
