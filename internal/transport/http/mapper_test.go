package http

import (
	"errors"
	"testing"

	"github.com/vovakirdan/roomchat/internal/core"
	"github.com/vovakirdan/roomchat/internal/huffman"
	"github.com/vovakirdan/roomchat/internal/proto"
)

func TestOutboundChatDecodesPayload(t *testing.T) {
	packed := huffman.Compressor{}.Pack("hello there")
	if !packed.Encoded {
		t.Fatalf("expected encoded payload")
	}

	frames, err := outboundFromEvent(&core.Event{Kind: core.EventChat, User: "bob", Color: "#00FF00", Payload: &packed})
	if err != nil {
		t.Fatalf("outbound: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("expected one frame, got %d", len(frames))
	}
	chat, ok := frames[0].(proto.ChatMessage)
	if !ok || chat.Message != "hello there" || chat.User != "bob" || chat.Color != "#00FF00" {
		t.Fatalf("unexpected frame: %+v", frames[0])
	}
}

func TestOutboundChatCorruptPayload(t *testing.T) {
	packed := huffman.Compressor{}.Pack("hello there")
	packed.Codes = huffman.Table{"x": "0"}

	_, err := outboundFromEvent(&core.Event{Kind: core.EventChat, User: "bob", Payload: &packed})
	if !errors.Is(err, huffman.ErrCodec) {
		t.Fatalf("expected codec error, got %v", err)
	}

	_, err = outboundFromEvent(&core.Event{Kind: core.EventChat, User: "bob"})
	if !errors.Is(err, huffman.ErrCodec) {
		t.Fatalf("expected codec error for missing payload, got %v", err)
	}
}

func TestOutboundMembershipEvents(t *testing.T) {
	frames, err := outboundFromEvent(&core.Event{Kind: core.EventUserLeft, User: "bob", Users: nil})
	if err != nil {
		t.Fatalf("outbound: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("expected notice and user list, got %d frames", len(frames))
	}
	notice := frames[0].(proto.SystemMessage)
	if notice.Message != "bob left the room" || notice.User != core.SystemUser {
		t.Fatalf("unexpected notice: %+v", notice)
	}
	list := frames[1].(proto.UserList)
	if list.Users == nil || len(list.Users) != 0 {
		t.Fatalf("empty user list should encode as [], got %#v", list.Users)
	}
}

func TestInboundToCommand(t *testing.T) {
	lock := proto.CommandLockRoom
	like := proto.ReactionLike
	text := "hi"

	if cmd := inboundToCommand(proto.Inbound{Command: &lock, Message: &text}); cmd.Kind != core.CommandLockRoom {
		t.Fatalf("command must win, got %v", cmd.Kind)
	}
	if cmd := inboundToCommand(proto.Inbound{Reaction: &like, Message: &text}); cmd.Kind != core.CommandReaction || cmd.Reaction != core.ReactionLike {
		t.Fatalf("reaction must win over message, got %+v", cmd)
	}
	if cmd := inboundToCommand(proto.Inbound{Message: &text}); cmd.Kind != core.CommandChat || cmd.Text != "hi" {
		t.Fatalf("unexpected chat command: %+v", cmd)
	}
}
