package http

import (
	"fmt"

	"github.com/vovakirdan/roomchat/internal/core"
	"github.com/vovakirdan/roomchat/internal/huffman"
	"github.com/vovakirdan/roomchat/internal/proto"
)

func inboundToCommand(inbound proto.Inbound) core.Command {
	switch {
	case inbound.Command != nil:
		return core.Command{Kind: core.CommandLockRoom}
	case inbound.Reaction != nil:
		return core.Command{Kind: core.CommandReaction, Reaction: core.Reaction(*inbound.Reaction)}
	default:
		var text string
		if inbound.Message != nil {
			text = *inbound.Message
		}
		return core.Command{Kind: core.CommandChat, Text: text}
	}
}

// outboundFromEvent renders one core event as the frames a client sees. Chat
// payloads are decoded here, so a codec failure drops only this message.
func outboundFromEvent(event *core.Event) ([]any, error) {
	switch event.Kind {
	case core.EventChat:
		if event.Payload == nil {
			return nil, fmt.Errorf("%w: chat event without payload", huffman.ErrCodec)
		}
		text, err := huffman.Unpack(*event.Payload)
		if err != nil {
			return nil, err
		}
		return []any{proto.ChatMessage{
			Type:    proto.TypeChat,
			User:    event.User,
			Color:   event.Color,
			Message: text,
		}}, nil
	case core.EventSystem:
		msg := proto.SystemMessage{
			Type:    proto.TypeSystem,
			User:    core.SystemUser,
			Color:   event.Color,
			Message: event.Text,
		}
		if event.Error != nil {
			msg.Code = event.Error.Code
		}
		return []any{msg}, nil
	case core.EventUserJoined:
		return []any{
			systemNotice(fmt.Sprintf("%s joined the room", event.User)),
			userList(event.Users),
		}, nil
	case core.EventUserLeft:
		return []any{
			systemNotice(fmt.Sprintf("%s left the room", event.User)),
			userList(event.Users),
		}, nil
	case core.EventReaction:
		return []any{proto.ReactionUpdate{
			Type:     proto.TypeReaction,
			Likes:    event.Likes,
			Dislikes: event.Dislikes,
		}}, nil
	default:
		return nil, fmt.Errorf("unknown event kind %d", event.Kind)
	}
}

func systemNotice(text string) proto.SystemMessage {
	return proto.SystemMessage{
		Type:    proto.TypeSystem,
		User:    core.SystemUser,
		Color:   core.SystemColor,
		Message: text,
	}
}

func userList(users []string) proto.UserList {
	if users == nil {
		users = []string{}
	}
	return proto.UserList{Type: proto.TypeUserList, Users: users}
}
