package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/vovakirdan/roomchat/internal/identity"
	"github.com/vovakirdan/roomchat/internal/store"
)

var (
	// ErrInvalidCredentials is returned when username/password don't match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists is returned when trying to register with existing username.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidUsername is returned when username doesn't meet constraints.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrInvalidPassword is returned when password doesn't meet constraints.
	ErrInvalidPassword = errors.New("invalid password")
)

const guestAttempts = 3

// Service provides authentication operations.
type Service struct {
	store     store.UserStore
	jwtConfig *JWTConfig
}

// NewService creates a new authentication service.
func NewService(userStore store.UserStore, jwtConfig *JWTConfig) *Service {
	return &Service{
		store:     userStore,
		jwtConfig: jwtConfig,
	}
}

// Register creates a new user with hashed password and returns a JWT token.
// Usernames are stored normalized, so "Alice" and "alice" are the same account.
func (s *Service) Register(ctx context.Context, username, password string) (string, error) {
	username = identity.Normalize(username)
	if n := utf8.RuneCountInString(username); n < 3 || n > 32 {
		return "", ErrInvalidUsername
	}
	hashedPassword, err := HashPassword(password)
	if err != nil {
		return "", err
	}

	user, err := s.store.CreateUser(ctx, username, hashedPassword)
	if err != nil {
		if errors.Is(err, store.ErrUserExists) {
			return "", ErrUserExists
		}
		return "", fmt.Errorf("create user: %w", err)
	}

	token, err := GenerateToken(s.jwtConfig, user.ID, user.Username, false)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	return token, nil
}

// Login validates credentials and returns a JWT token.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.store.GetUserByUsername(ctx, identity.Normalize(username))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("get user: %w", err)
	}
	if user.IsGuest {
		return "", ErrInvalidCredentials
	}
	if err := CheckPassword(user.PasswordHash, password); err != nil {
		return "", err
	}

	token, err := GenerateToken(s.jwtConfig, user.ID, user.Username, false)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	return token, nil
}

// CreateGuestUser creates a temporary guest user named "user" plus six random
// hex digits and returns a JWT token, the guest session ID and the chosen name.
func (s *Service) CreateGuestUser(ctx context.Context) (token, sessionID, username string, err error) {
	sessionID, err = generateSessionID()
	if err != nil {
		return "", "", "", fmt.Errorf("generate session ID: %w", err)
	}

	var user *store.User
	for range guestAttempts {
		username, err = generateGuestName()
		if err != nil {
			return "", "", "", fmt.Errorf("generate guest name: %w", err)
		}
		user, err = s.store.CreateGuestUser(ctx, username, sessionID)
		if !errors.Is(err, store.ErrUserExists) {
			break
		}
	}
	if err != nil {
		return "", "", "", fmt.Errorf("create guest user: %w", err)
	}

	token, err = GenerateToken(s.jwtConfig, user.ID, user.Username, true)
	if err != nil {
		return "", "", "", fmt.Errorf("generate token: %w", err)
	}

	return token, sessionID, user.Username, nil
}

// ResumeGuest issues a fresh token for the guest created under sessionID, so a
// returning browser keeps its guest name. Unknown sessions are ErrInvalidCredentials.
func (s *Service) ResumeGuest(ctx context.Context, sessionID string) (token, username string, err error) {
	user, err := s.store.GetGuestBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", "", ErrInvalidCredentials
		}
		return "", "", fmt.Errorf("get guest: %w", err)
	}

	token, err = GenerateToken(s.jwtConfig, user.ID, user.Username, true)
	if err != nil {
		return "", "", fmt.Errorf("generate token: %w", err)
	}
	return token, user.Username, nil
}

// ChangePassword replaces the password of a registered user after checking the
// current one. Guests have no password and get ErrInvalidCredentials.
func (s *Service) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error {
	user, err := s.store.GetUserByUsername(ctx, identity.Normalize(username))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("get user: %w", err)
	}
	if user.IsGuest {
		return ErrInvalidCredentials
	}
	if err := CheckPassword(user.PasswordHash, oldPassword); err != nil {
		return err
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.store.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// ValidateToken validates a JWT token and returns the claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	return ValidateToken(s.jwtConfig, tokenString)
}

// generateSessionID generates a random session ID for guest users.
func generateSessionID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// generateGuestName returns "user" followed by six random hex digits.
func generateGuestName() (string, error) {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "user" + hex.EncodeToString(b), nil
}
