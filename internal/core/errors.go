package core

import (
	"errors"

	"github.com/vovakirdan/roomchat/internal/huffman"
)

// Error codes for domain errors.
const (
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeRoomNotFound = "room_not_found"
	ErrCodeForbidden    = "forbidden"
	ErrCodePersistence  = "persistence_error"
	ErrCodeMalformed    = "malformed_payload"
	ErrCodeCodec        = "codec_error"
	ErrCodeRateLimited  = "rate_limited"
	ErrCodeInternal     = "internal_error"
)

var (
	// ErrAuthRequired is returned when a connection has no resolvable user.
	ErrAuthRequired = errors.New("authentication required")
	// ErrRoomNotFound is returned when the requested room does not exist.
	ErrRoomNotFound = errors.New("room not found")
	// ErrAccessDenied is returned when a locked room refuses the user.
	ErrAccessDenied = errors.New("access denied: room is locked")
	// ErrPersistence is returned when the durable store is unavailable.
	ErrPersistence = errors.New("persistence error")
	// ErrMalformedPayload is returned when an inbound message cannot be parsed.
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrSlowConsumer is the reason a session is closed when its outbox overflows.
	ErrSlowConsumer = errors.New("slow consumer")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

// ErrorCode maps an error from the core taxonomy to its code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrAuthRequired):
		return ErrCodeUnauthorized
	case errors.Is(err, ErrRoomNotFound):
		return ErrCodeRoomNotFound
	case errors.Is(err, ErrAccessDenied):
		return ErrCodeForbidden
	case errors.Is(err, ErrPersistence):
		return ErrCodePersistence
	case errors.Is(err, ErrMalformedPayload):
		return ErrCodeMalformed
	case errors.Is(err, huffman.ErrCodec):
		return ErrCodeCodec
	default:
		return ErrCodeInternal
	}
}
