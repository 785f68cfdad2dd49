package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/vovakirdan/roomchat/internal/huffman"
)

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "auth", err: ErrAuthRequired, want: ErrCodeUnauthorized},
		{name: "wrapped room", err: fmt.Errorf("%w: demo", ErrRoomNotFound), want: ErrCodeRoomNotFound},
		{name: "locked", err: fmt.Errorf("%w: demo", ErrAccessDenied), want: ErrCodeForbidden},
		{name: "store", err: fmt.Errorf("%w: %w", ErrPersistence, errors.New("disk full")), want: ErrCodePersistence},
		{name: "malformed", err: errors.Join(ErrMalformedPayload, errors.New("bad json")), want: ErrCodeMalformed},
		{name: "codec", err: fmt.Errorf("%w: trailing bits", huffman.ErrCodec), want: ErrCodeCodec},
		{name: "other", err: errors.New("boom"), want: ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorCode(tt.err); got != tt.want {
				t.Fatalf("ErrorCode(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}
