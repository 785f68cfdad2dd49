package http

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/auth"
	"github.com/vovakirdan/roomchat/internal/config"
	"github.com/vovakirdan/roomchat/internal/core"
	"github.com/vovakirdan/roomchat/internal/store"
	"github.com/vovakirdan/roomchat/internal/store/sqlite"
)

type testEnv struct {
	ts    *httptest.Server
	store store.Store
	auth  *auth.Service
	hub   *core.Hub
	clock *clock.Mock
}

// createTestStore creates an in-memory SQLite store with the default room.
func createTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	if _, err := st.CreateRoom(context.Background(), "general", ""); err != nil {
		t.Fatalf("failed to create general room: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// createTestAuthService creates an auth service for testing.
func createTestAuthService(t *testing.T, st store.Store, jwtSecret string) *auth.Service {
	t.Helper()

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(jwtSecret),
		Issuer:   "test",
		Audience: "test",
		TTL:      24 * time.Hour,
	}

	return auth.NewService(st, jwtConfig)
}

func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()

	st := createTestStore(t)
	authService := createTestAuthService(t, st, "test-secret")

	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.ReadHeaderTimeout = time.Second
	cfg.ShutdownTimeout = time.Second
	cfg.MaxMessageBytes = 1 << 20
	if mutate != nil {
		mutate(&cfg)
	}

	disabledLogger := zerolog.New(nil)
	clk := clock.NewMock()
	hub := core.NewHub(core.Options{
		Rooms:           st,
		Clock:           clk,
		AutoCreateRooms: cfg.AutoCreateRooms,
		Logger:          &disabledLogger,
	})
	t.Cleanup(hub.Close)

	server := NewServer(hub, authService, st, &cfg, &disabledLogger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, store: st, auth: authService, hub: hub, clock: clk}
}

func (e *testEnv) register(t *testing.T, username string) string {
	t.Helper()

	token, err := e.auth.Register(context.Background(), username, "password123")
	if err != nil {
		t.Fatalf("failed to register %s: %v", username, err)
	}
	return token
}

func (e *testEnv) dial(t *testing.T, ctx context.Context, room, token string) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws/chat/" + room
	if token != "" {
		wsURL += "?token=" + token
	}

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", room, err)
	}
	t.Cleanup(func() { _ = conn.CloseNow() })
	return conn
}

// readType reads frames until one with the given type arrives.
func readType(t *testing.T, ctx context.Context, conn *websocket.Conn, typ string) map[string]any {
	t.Helper()

	for {
		var frame map[string]any
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			t.Fatalf("waiting for %q frame: %v", typ, err)
		}
		if frame["type"] == typ {
			return frame
		}
	}
}

// expectClose reads until the server closes the connection and checks the code.
func expectClose(t *testing.T, ctx context.Context, conn *websocket.Conn, want websocket.StatusCode) {
	t.Helper()

	for {
		_, _, err := conn.Read(ctx)
		if err == nil {
			continue
		}
		if got := websocket.CloseStatus(err); got != want {
			t.Fatalf("close status = %d, want %d (err: %v)", got, want, err)
		}
		return
	}
}

func usersOf(frame map[string]any) []string {
	raw, _ := frame["users"].([]any)
	users := make([]string, 0, len(raw))
	for _, u := range raw {
		s, _ := u.(string)
		users = append(users, s)
	}
	return users
}
