package socket

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/cuongbtq/social-backbone/internal/domain"
	"github.com/cuongbtq/social-backbone/internal/gateway"
)

const (
	EventFollowerAdded   = "add follower"
	EventFollowerRemoved = "remove follower"

	// EventUnfollow is sent by clients and relayed as EventFollowerRemoved.
	EventUnfollow = "unfollow user"
)

type FollowerHandler struct {
	base
}

func NewFollowerHandler(gw Gateway, logger *slog.Logger) *FollowerHandler {
	return &FollowerHandler{base: newBase(gw, logger, "follower")}
}

func (h *FollowerHandler) Listen() {
	h.listen(func(c *gateway.Conn) {
		c.On(EventUnfollow, func(ctx context.Context, c *gateway.Conn, data json.RawMessage) error {
			var f domain.Follow
			if err := decode(data, &f); err != nil {
				return err
			}
			return h.BroadcastFollowerRemoved(ctx, f)
		})
	})
}

func (h *FollowerHandler) BroadcastFollowerAdded(ctx context.Context, f domain.Follow) error {
	return h.broadcast(ctx, gateway.Global, EventFollowerAdded, f)
}

func (h *FollowerHandler) BroadcastFollowerRemoved(ctx context.Context, f domain.Follow) error {
	return h.broadcast(ctx, gateway.Global, EventFollowerRemoved, f)
}
