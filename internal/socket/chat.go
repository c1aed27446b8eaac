package socket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/cuongbtq/social-backbone/internal/domain"
	"github.com/cuongbtq/social-backbone/internal/gateway"
)

const (
	EventMessageReceived = "message received"
	EventChatList        = "chat list"
	EventMessageRead     = "message read"

	// EventJoinRoom is sent by clients opening a conversation.
	EventJoinRoom = "join room"
)

type ChatHandler struct {
	base
}

func NewChatHandler(gw Gateway, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{base: newBase(gw, logger, "chat")}
}

type joinRoomRequest struct {
	ConversationID string `json:"conversationId"`
}

func (h *ChatHandler) Listen() {
	h.listen(func(c *gateway.Conn) {
		c.On(EventJoinRoom, func(ctx context.Context, c *gateway.Conn, data json.RawMessage) error {
			var req joinRoomRequest
			if err := decode(data, &req); err != nil {
				return err
			}
			if req.ConversationID == "" {
				return errors.New("conversationId is required")
			}
			c.Join(domain.ChatRoom(req.ConversationID))
			return nil
		})
	})
}

func (h *ChatHandler) BroadcastMessage(ctx context.Context, msg domain.ChatMessage) error {
	return h.broadcast(ctx, gateway.Room(domain.ChatRoom(msg.ConversationID)), EventMessageReceived, msg)
}

// BroadcastChatList refreshes the conversation list of both participants.
func (h *ChatHandler) BroadcastChatList(ctx context.Context, msg domain.ChatMessage) error {
	for _, id := range []string{msg.SenderID, msg.ReceiverID} {
		if err := h.broadcast(ctx, gateway.Room(domain.UserRoom(id)), EventChatList, msg); err != nil {
			return err
		}
	}
	return nil
}

func (h *ChatHandler) BroadcastMessageRead(ctx context.Context, read domain.MessagesRead) error {
	return h.broadcast(ctx, gateway.Room(domain.ChatRoom(read.ConversationID)), EventMessageRead, read)
}
