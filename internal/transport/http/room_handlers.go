package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/core"
	"github.com/vovakirdan/roomchat/internal/identity"
	"github.com/vovakirdan/roomchat/internal/store"
)

// RoomHandlers provides HTTP handlers for room management endpoints.
type RoomHandlers struct {
	store store.RoomStore
	hub   *core.Hub
	log   *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(st store.RoomStore, hub *core.Hub, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{
		store: st,
		hub:   hub,
		log:   logger,
	}
}

// CreateRoomRequest represents the create room request body.
type CreateRoomRequest struct {
	Name string `json:"name" binding:"required,min=1,max=64"`
}

// RoomResponse represents a room in API responses.
type RoomResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	CreatedBy string `json:"created_by,omitempty"`
	Locked    bool   `json:"locked"`
	Online    int    `json:"online"`
	CreatedAt string `json:"created_at"`
}

// RoomDetailResponse adds access and live state to RoomResponse.
type RoomDetailResponse struct {
	RoomResponse
	AllowedUsers    []string `json:"allowed_users"`
	OnlineUsers     []string `json:"online_users"`
	Likes           int64    `json:"likes"`
	Dislikes        int64    `json:"dislikes"`
	DeletionPending bool     `json:"deletion_pending"`
}

func (h *RoomHandlers) roomResponse(room *store.Room) RoomResponse {
	return RoomResponse{
		ID:        room.ID,
		Name:      room.Name,
		CreatedBy: room.CreatedBy,
		Locked:    room.Locked,
		Online:    len(h.hub.Online(room.Name)),
		CreatedAt: room.CreatedAt.Format(time.RFC3339),
	}
}

// CreateRoom handles room creation.
// POST /api/rooms
func (h *RoomHandlers) CreateRoom(c *gin.Context) {
	username, ok := usernameFromContext(c, h.log)
	if !ok {
		return
	}

	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create room request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" || strings.ContainsAny(name, "/?#") {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid room name"})
		return
	}

	room, err := h.store.CreateRoom(c.Request.Context(), name, username)
	if err != nil {
		if errors.Is(err, store.ErrRoomExists) {
			c.JSON(http.StatusConflict, ErrorResponse{Error: "room with this name already exists"})
			return
		}
		h.log.Error().Err(err).Str("room_name", name).Msg("failed to create room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Str("room_name", room.Name).Int64("room_id", room.ID).Str("created_by", username).Msg("room created successfully")
	c.JSON(http.StatusCreated, h.roomResponse(room))
}

// ListRooms handles listing rooms.
// GET /api/rooms
func (h *RoomHandlers) ListRooms(c *gin.Context) {
	rooms, err := h.store.ListRooms(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list rooms")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]RoomResponse, 0, len(rooms))
	for _, room := range rooms {
		response = append(response, h.roomResponse(room))
	}

	h.log.Debug().Int("room_count", len(rooms)).Msg("rooms listed successfully")
	c.JSON(http.StatusOK, response)
}

// GetRoom returns a room with its allowlist, presence and reaction tallies.
// GET /api/rooms/:name
func (h *RoomHandlers) GetRoom(c *gin.Context) {
	name := c.Param("name")

	room, err := h.store.GetRoom(c.Request.Context(), name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
			return
		}
		h.log.Error().Err(err).Str("room_name", name).Msg("failed to get room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	allowed := room.AllowedUsers
	if allowed == nil {
		allowed = []string{}
	}
	online := h.hub.Online(room.Name)
	if online == nil {
		online = []string{}
	}
	tally := h.hub.Reactions(room.Name)

	c.JSON(http.StatusOK, RoomDetailResponse{
		RoomResponse:    h.roomResponse(room),
		AllowedUsers:    allowed,
		OnlineUsers:     online,
		Likes:           tally.Likes,
		Dislikes:        tally.Dislikes,
		DeletionPending: h.hub.DeletionPending(room.Name),
	})
}

// UnlockRoom re-opens a locked room. Only the room's creator may do this.
// POST /api/rooms/:name/unlock
func (h *RoomHandlers) UnlockRoom(c *gin.Context) {
	username, ok := usernameFromContext(c, h.log)
	if !ok {
		return
	}
	name := c.Param("name")
	ctx := c.Request.Context()

	room, err := h.store.GetRoom(ctx, name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
			return
		}
		h.log.Error().Err(err).Str("room_name", name).Msg("failed to get room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	if room.CreatedBy == "" || room.CreatedBy != username {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "only the room creator can unlock it"})
		return
	}

	if err := h.hub.Unlock(ctx, name, username); err != nil {
		if errors.Is(err, core.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
			return
		}
		h.log.Error().Err(err).Str("room_name", name).Msg("failed to unlock room")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "room could not be unlocked"})
		return
	}

	h.log.Info().Str("room_name", name).Str("by", username).Msg("room unlocked")
	c.Status(http.StatusNoContent)
}

func usernameFromContext(c *gin.Context, logger *zerolog.Logger) (string, bool) {
	value, exists := c.Get(ContextKeyUsername)
	if !exists {
		logger.Error().Msg("username not found in context")
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return "", false
	}

	username, ok := value.(string)
	if !ok {
		logger.Error().Msg("invalid username type in context")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return "", false
	}
	return identity.Normalize(username), true
}
