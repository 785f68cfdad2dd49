package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/roomchat/internal/auth"
	"github.com/vovakirdan/roomchat/internal/config"
	"github.com/vovakirdan/roomchat/internal/core"
	"github.com/vovakirdan/roomchat/internal/proto"
)

const writeTimeout = 5 * time.Second

// WSHandler upgrades HTTP connections and bridges them to core sessions.
type WSHandler struct {
	hub             *core.Hub
	authService     *auth.Service
	maxMessageBytes int64
	ratePerMinute   int
	log             *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, authService *auth.Service, cfg *config.Config, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{
		hub:             hub,
		authService:     authService,
		maxMessageBytes: cfg.MaxMessageBytes,
		ratePerMinute:   cfg.MaxMessagesPerMinute,
		log:             logger,
	}
}

// ServeChat runs one chat session.
// GET /ws/chat/:room?token=...
//
// Refused connections are still upgraded so the client gets a close code it can
// branch on: 4001 unauthorized, 4003 room locked, 4004 room not found, 1013 when
// the store is unavailable.
func (h *WSHandler) ServeChat(c *gin.Context) {
	roomName := c.Param("room")
	username, authErr := h.authenticate(c.Request)

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.CloseNow()

	if h.maxMessageBytes > 0 {
		conn.SetReadLimit(h.maxMessageBytes)
	}

	if authErr != nil {
		h.log.Debug().Err(authErr).Str("room", roomName).Msg("ws connection without valid token")
		_ = conn.Close(proto.CloseUnauthorized, "authentication required")
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	sess, err := h.hub.Connect(ctx, roomName, username)
	if err != nil {
		status, reason := rejectStatus(err)
		h.log.Info().Err(err).Str("room", roomName).Str("user", username).Str("code", core.ErrorCode(err)).Int("status", int(status)).Msg("ws connection refused")
		_ = conn.Close(status, reason)
		return
	}
	defer h.hub.Disconnect(sess)

	limiter := newRateLimiter(h.ratePerMinute)
	limiter.startReset(ctx.Done())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return h.readLoop(gctx, conn, sess, limiter) })
	g.Go(func() error { return h.writeLoop(gctx, conn, sess) })
	err = g.Wait()

	status := websocket.StatusNormalClosure
	reason := "closing"
	switch {
	case errors.Is(err, core.ErrSlowConsumer):
		status = websocket.StatusPolicyViolation
		reason = "too slow"
		h.log.Warn().Str("session", sess.ID).Str("user", sess.User).Msg("kicked slow consumer")
	case err != nil && !errors.Is(err, context.Canceled):
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = "connection error"
			h.log.Warn().Err(err).Str("session", sess.ID).Msg("ws connection closed with error")
		}
	}

	_ = conn.Close(status, reason)
}

func (h *WSHandler) authenticate(r *stdhttp.Request) (string, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		var err error
		if token, err = bearerToken(r); err != nil {
			return "", err
		}
	}

	claims, err := h.authService.ValidateToken(token)
	if err != nil {
		return "", err
	}
	return claims.Username, nil
}

func rejectStatus(err error) (websocket.StatusCode, string) {
	switch {
	case errors.Is(err, core.ErrAuthRequired):
		return proto.CloseUnauthorized, "authentication required"
	case errors.Is(err, core.ErrAccessDenied):
		return proto.CloseForbidden, "room is locked"
	case errors.Is(err, core.ErrRoomNotFound):
		return proto.CloseRoomNotFound, "room not found"
	case errors.Is(err, core.ErrPersistence):
		return websocket.StatusTryAgainLater, "store unavailable"
	default:
		return websocket.StatusInternalError, "internal error"
	}
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, sess *core.Session, limiter *rateLimiter) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		if !limiter.allow() {
			h.log.Debug().Str("session", sess.ID).Msg("inbound payload rate limited")
			sess.Deliver(&core.Event{
				Kind:  core.EventSystem,
				Room:  sess.Room,
				User:  core.SystemUser,
				Color: core.SystemColor,
				Text:  "You are sending messages too fast.",
				Error: &core.CoreError{Code: core.ErrCodeRateLimited, Message: "rate limit exceeded"},
			})
			continue
		}

		inbound, err := proto.ParseInbound(data)
		if err != nil {
			err = errors.Join(core.ErrMalformedPayload, err)
			h.log.Warn().Err(err).Str("session", sess.ID).Str("code", core.ErrorCode(err)).Msg("ignoring inbound payload")
			continue
		}

		h.hub.Handle(ctx, sess, inboundToCommand(inbound))
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, sess *core.Session) error {
	for {
		select {
		case event := <-sess.Events:
			frames, err := outboundFromEvent(event)
			if err != nil {
				h.log.Warn().Err(err).Str("session", sess.ID).Str("event", event.Kind.String()).Str("code", core.ErrorCode(err)).Msg("dropping undeliverable event")
				continue
			}
			for _, frame := range frames {
				if err := h.write(ctx, conn, frame); err != nil {
					h.log.Error().Err(err).Str("session", sess.ID).Msg("write ws event")
					return err
				}
			}
		case <-sess.Done():
			if err := sess.Err(); err != nil {
				return err
			}
			return context.Canceled
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) write(ctx context.Context, conn *websocket.Conn, v any) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, v)
}
