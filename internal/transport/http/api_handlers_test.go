package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAccountEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(t, http.MethodPost, "/api/register", "", `{"username":"Alice","password":"password123"}`)
	if resp.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var registered AuthResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &registered); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	if registered.Username != "alice" || registered.Token == "" {
		t.Fatalf("unexpected register response: %+v", registered)
	}

	// Same account under a different case.
	resp = env.do(t, http.MethodPost, "/api/register", "", `{"username":"ALICE","password":"password123"}`)
	if resp.Code != http.StatusConflict {
		t.Fatalf("duplicate register: expected 409, got %d", resp.Code)
	}

	resp = env.do(t, http.MethodPost, "/api/register", "", `{"username":"bob","password":"123"}`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("short password: expected 400, got %d", resp.Code)
	}

	resp = env.do(t, http.MethodPost, "/api/login", "", `{"username":"alice","password":"wrong-password"}`)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("bad login: expected 401, got %d", resp.Code)
	}

	resp = env.do(t, http.MethodPost, "/api/login", "", `{"username":"alice","password":"password123"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var loggedIn AuthResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &loggedIn); err != nil {
		t.Fatalf("decode login response: %v", err)
	}

	resp = env.do(t, http.MethodGet, "/api/me", loggedIn.Token, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("me: expected 200, got %d", resp.Code)
	}
	var me MeResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &me); err != nil {
		t.Fatalf("decode me response: %v", err)
	}
	if me.Username != "alice" || me.IsGuest || me.UserID == 0 {
		t.Fatalf("unexpected me response: %+v", me)
	}

	resp = env.do(t, http.MethodGet, "/api/me", "", "")
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("me without token: expected 401, got %d", resp.Code)
	}
	if resp.Header().Get(headerRequestID) == "" {
		t.Fatalf("expected a request id header")
	}
}

func TestGuestLogin(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(t, http.MethodPost, "/api/guest", "", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("guest: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var guest AuthResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &guest); err != nil {
		t.Fatalf("decode guest response: %v", err)
	}
	if !strings.HasPrefix(guest.Username, "user") {
		t.Fatalf("unexpected guest name %q", guest.Username)
	}
	if cookie := resp.Header().Get("Set-Cookie"); !strings.Contains(cookie, guestCookieName+"=") {
		t.Fatalf("expected guest session cookie, got %q", cookie)
	}

	resp = env.do(t, http.MethodGet, "/api/me", guest.Token, "")
	var me MeResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &me); err != nil {
		t.Fatalf("decode me response: %v", err)
	}
	if !me.IsGuest || me.Username != guest.Username {
		t.Fatalf("unexpected guest identity: %+v", me)
	}
}

func TestGuestLoginResumesCookieSession(t *testing.T) {
	env := newTestEnv(t, nil)

	first := env.do(t, http.MethodPost, "/api/guest", "", "")
	if first.Code != http.StatusOK {
		t.Fatalf("guest: expected 200, got %d", first.Code)
	}
	var created AuthResponse
	if err := json.Unmarshal(first.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode guest response: %v", err)
	}

	guestWithCookies := func(cookies ...*http.Cookie) AuthResponse {
		t.Helper()
		req := httptest.NewRequest(http.MethodPost, "/api/guest", nil)
		for _, c := range cookies {
			req.AddCookie(c)
		}
		resp := httptest.NewRecorder()
		env.ts.Config.Handler.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("guest: expected 200, got %d: %s", resp.Code, resp.Body.String())
		}
		var out AuthResponse
		if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode guest response: %v", err)
		}
		return out
	}

	resumed := guestWithCookies(first.Result().Cookies()...)
	if resumed.Username != created.Username {
		t.Fatalf("returning guest got %q, want %q", resumed.Username, created.Username)
	}

	fresh := guestWithCookies(&http.Cookie{Name: guestCookieName, Value: "stale-session"})
	if fresh.Username == created.Username || !strings.HasPrefix(fresh.Username, "user") {
		t.Fatalf("stale cookie should yield a new guest, got %q", fresh.Username)
	}
}

func TestChangePasswordEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.register(t, "dave")

	resp := env.do(t, http.MethodPost, "/api/password", "", `{"old_password":"password123","new_password":"newpassword"}`)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("without token: expected 401, got %d", resp.Code)
	}

	resp = env.do(t, http.MethodPost, "/api/password", token, `{"old_password":"wrong-password","new_password":"newpassword"}`)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("wrong old password: expected 401, got %d", resp.Code)
	}

	resp = env.do(t, http.MethodPost, "/api/password", token, `{"old_password":"password123","new_password":"123"}`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("short new password: expected 400, got %d", resp.Code)
	}

	resp = env.do(t, http.MethodPost, "/api/password", token, `{"old_password":"password123","new_password":"newpassword"}`)
	if resp.Code != http.StatusNoContent {
		t.Fatalf("change password: expected 204, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = env.do(t, http.MethodPost, "/api/login", "", `{"username":"dave","password":"newpassword"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("login with new password: expected 200, got %d", resp.Code)
	}
}
