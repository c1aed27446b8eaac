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
	EventUserAdded   = "user added"
	EventUserUpdated = "update user"
	EventBlocked     = "blocked user"
	EventUnblocked   = "unblocked user"

	// EventSetup is sent by clients after connecting to join their user room.
	EventSetup = "setup"
)

type UserHandler struct {
	base
}

func NewUserHandler(gw Gateway, logger *slog.Logger) *UserHandler {
	return &UserHandler{base: newBase(gw, logger, "user")}
}

type setupRequest struct {
	UserID string `json:"userId"`
}

func (h *UserHandler) Listen() {
	h.listen(func(c *gateway.Conn) {
		c.On(EventSetup, func(ctx context.Context, c *gateway.Conn, data json.RawMessage) error {
			var req setupRequest
			if err := decode(data, &req); err != nil {
				return err
			}
			if req.UserID == "" {
				return errors.New("userId is required")
			}
			c.Join(domain.UserRoom(req.UserID))
			return nil
		})
	})
}

// BroadcastUserAdded announces a new user to every client. Only the public
// fields leave the process.
func (h *UserHandler) BroadcastUserAdded(ctx context.Context, user domain.User) error {
	return h.broadcast(ctx, gateway.Global, EventUserAdded, user.Public())
}

func (h *UserHandler) BroadcastUserUpdated(ctx context.Context, update domain.UserUpdate) error {
	return h.broadcast(ctx, gateway.Global, EventUserUpdated, update)
}

// BroadcastBlocked notifies both users' rooms.
func (h *UserHandler) BroadcastBlocked(ctx context.Context, block domain.BlockUser) error {
	event := EventBlocked
	if !block.Blocked {
		event = EventUnblocked
	}
	for _, id := range []string{block.UserID, block.BlockedUserID} {
		if err := h.broadcast(ctx, gateway.Room(domain.UserRoom(id)), event, block); err != nil {
			return err
		}
	}
	return nil
}
