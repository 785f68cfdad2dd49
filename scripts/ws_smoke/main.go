package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/roomchat/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	base := flag.String("base", "http://localhost:8080", "server base URL")
	user := flag.String("user", "", "username to log in with (guest when empty)")
	password := flag.String("password", "", "password for -user")
	room := flag.String("room", "general", "room name")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	token, name, err := obtainToken(ctx, *base, *user, *password)
	if err != nil {
		return err
	}
	fmt.Printf("Authenticated as %s\n", name)

	wsURL := strings.Replace(*base, "http", "ws", 1) + "/ws/chat/" + url.PathEscape(*room) + "?token=" + url.QueryEscape(token)
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	if err := wsjson.Write(ctx, conn, proto.Inbound{Message: text}); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	for {
		var frame map[string]any
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			if status := websocket.CloseStatus(err); status != -1 {
				return fmt.Errorf("server closed connection with status %d", status)
			}
			return fmt.Errorf("read: %w", err)
		}

		switch frame["type"] {
		case proto.TypeChat:
			fmt.Printf("Chat: user=%v color=%v message=%q\n", frame["user"], frame["color"], frame["message"])
			if frame["user"] == name && frame["message"] == strings.TrimSpace(*text) {
				return nil
			}
		case proto.TypeSystem:
			fmt.Printf("System: %v\n", frame["message"])
		case proto.TypeUserList:
			fmt.Printf("Users: %v\n", frame["users"])
		case proto.TypeReaction:
			fmt.Printf("Reactions: likes=%v dislikes=%v\n", frame["likes"], frame["dislikes"])
		default:
			fmt.Printf("Unknown frame: %v\n", frame)
		}
	}
}

type authResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Error    string `json:"error"`
}

func obtainToken(ctx context.Context, base, user, password string) (string, string, error) {
	path := "/api/guest"
	var body []byte
	if user != "" {
		path = "/api/login"
		body, _ = json.Marshal(map[string]string{"username": user, "password": password})
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+path, bytes.NewReader(body))
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("%s: %w", path, err)
	}
	defer resp.Body.Close()

	var out authResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", "", fmt.Errorf("decode %s response: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", "", fmt.Errorf("%s: status %d: %s", path, resp.StatusCode, out.Error)
	}
	return out.Token, out.Username, nil
}
