package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func testJWTConfig() *JWTConfig {
	return &JWTConfig{
		Secret:   []byte("jwt-test-secret"),
		Issuer:   "roomchat",
		Audience: "roomchat-clients",
		TTL:      time.Hour,
	}
}

func TestValidateToken_RoundTripNormalizesUsername(t *testing.T) {
	cfg := testJWTConfig()

	token, err := GenerateToken(cfg, 7, "Alice", false)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	claims, err := ValidateToken(cfg, token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if claims.UserID != 7 || claims.Username != "alice" || claims.ID == "" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestValidateToken_Rejects(t *testing.T) {
	cfg := testJWTConfig()

	expiredCfg := *cfg
	expiredCfg.TTL = -time.Minute
	expired, err := GenerateToken(&expiredCfg, 1, "alice", false)
	if err != nil {
		t.Fatalf("generate expired token: %v", err)
	}

	otherSecret := *cfg
	otherSecret.Secret = []byte("someone-elses-secret")
	forged, err := GenerateToken(&otherSecret, 1, "alice", false)
	if err != nil {
		t.Fatalf("generate forged token: %v", err)
	}

	anonymous, err := GenerateToken(cfg, 1, "   ", false)
	if err != nil {
		t.Fatalf("generate anonymous token: %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "not-a-token"},
		{name: "expired", token: expired},
		{name: "wrong secret", token: forged},
		{name: "blank username", token: anonymous},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ValidateToken(cfg, tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := CheckPassword(hash, "correct horse"); err != nil {
		t.Fatalf("matching password rejected: %v", err)
	}
	if err := CheckPassword(hash, "battery staple"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if err := CheckPassword("", "anything"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("empty hash must never match, got %v", err)
	}

	if _, err := HashPassword("short"); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword for short password, got %v", err)
	}
	if _, err := HashPassword(strings.Repeat("x", 73)); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword for long password, got %v", err)
	}
}
