package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/auth"
	"github.com/vovakirdan/roomchat/internal/identity"
)

const (
	guestCookieName = "guest_session"
	guestCookieTTL  = 7 * 24 * time.Hour
)

// APIHandlers serves account endpoints: register, login, guest and whoami.
type APIHandlers struct {
	authService *auth.Service
	log         *zerolog.Logger
}

// NewAPIHandlers creates a new API handlers instance.
func NewAPIHandlers(authService *auth.Service, logger *zerolog.Logger) *APIHandlers {
	return &APIHandlers{
		authService: authService,
		log:         logger,
	}
}

// CredentialsRequest is the body of register and login.
type CredentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse carries a token and the normalized name the chat will show.
type AuthResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// MeResponse describes the caller's identity.
type MeResponse struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	IsGuest  bool   `json:"is_guest"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// authFailure maps auth service errors to a status and a client-safe message.
func authFailure(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrUserExists):
		return http.StatusConflict, "user already exists"
	case errors.Is(err, auth.ErrInvalidUsername), errors.Is(err, auth.ErrInvalidPassword):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid credentials"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func (h *APIHandlers) bindCredentials(c *gin.Context) (CredentialsRequest, bool) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Str("path", c.FullPath()).Msg("invalid credentials body")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return req, false
	}
	return req, true
}

// Register handles user registration.
// POST /api/register
func (h *APIHandlers) Register(c *gin.Context) {
	req, ok := h.bindCredentials(c)
	if !ok {
		return
	}
	username := identity.Normalize(req.Username)

	token, err := h.authService.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		status, msg := authFailure(err)
		if status == http.StatusInternalServerError {
			h.log.Error().Err(err).Str("username", username).Msg("failed to register user")
		}
		c.JSON(status, ErrorResponse{Error: msg})
		return
	}

	h.log.Info().Str("username", username).Msg("user registered")
	c.JSON(http.StatusCreated, AuthResponse{Token: token, Username: username})
}

// Login handles user login.
// POST /api/login
func (h *APIHandlers) Login(c *gin.Context) {
	req, ok := h.bindCredentials(c)
	if !ok {
		return
	}
	username := identity.Normalize(req.Username)

	token, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		status, msg := authFailure(err)
		if status == http.StatusInternalServerError {
			h.log.Error().Err(err).Str("username", username).Msg("failed to login user")
		}
		c.JSON(status, ErrorResponse{Error: msg})
		return
	}

	h.log.Info().Str("username", username).Msg("user logged in")
	c.JSON(http.StatusOK, AuthResponse{Token: token, Username: username})
}

// GuestLogin returns a token for a guest. A browser that still carries its
// guest_session cookie gets its previous guest name back; otherwise a new guest
// is created.
// POST /api/guest
func (h *APIHandlers) GuestLogin(c *gin.Context) {
	ctx := c.Request.Context()

	if sessionID, err := c.Cookie(guestCookieName); err == nil && sessionID != "" {
		token, username, err := h.authService.ResumeGuest(ctx, sessionID)
		switch {
		case err == nil:
			h.log.Info().Str("session_id", sessionID).Str("username", username).Msg("guest resumed")
			c.JSON(http.StatusOK, AuthResponse{Token: token, Username: username})
			return
		case errors.Is(err, auth.ErrInvalidCredentials):
			h.log.Debug().Str("session_id", sessionID).Msg("unknown guest session, creating a new guest")
		default:
			h.log.Error().Err(err).Msg("failed to resume guest")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
			return
		}
	}

	token, sessionID, username, err := h.authService.CreateGuestUser(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to create guest user")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(guestCookieName, sessionID, int(guestCookieTTL.Seconds()), "/", "", c.Request.TLS != nil, true)

	h.log.Info().Str("session_id", sessionID).Str("username", username).Msg("guest user created")
	c.JSON(http.StatusOK, AuthResponse{Token: token, Username: username})
}

// ChangePasswordRequest is the body of a password change.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// ChangePassword replaces the caller's password. Issued tokens stay valid.
// POST /api/password
func (h *APIHandlers) ChangePassword(c *gin.Context) {
	username, ok := usernameFromContext(c, h.log)
	if !ok {
		return
	}

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid change password body")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if err := h.authService.ChangePassword(c.Request.Context(), username, req.OldPassword, req.NewPassword); err != nil {
		status, msg := authFailure(err)
		if status == http.StatusInternalServerError {
			h.log.Error().Err(err).Str("username", username).Msg("failed to change password")
		}
		c.JSON(status, ErrorResponse{Error: msg})
		return
	}

	h.log.Info().Str("username", username).Msg("password changed")
	c.Status(http.StatusNoContent)
}

// Me returns the identity carried by the caller's token.
// GET /api/me
func (h *APIHandlers) Me(c *gin.Context) {
	username, ok := usernameFromContext(c, h.log)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, MeResponse{
		UserID:   c.GetInt64(ContextKeyUserID),
		Username: username,
		IsGuest:  c.GetBool(ContextKeyIsGuest),
	})
}
