package socket

import (
	"context"
	"log/slog"

	"github.com/cuongbtq/social-backbone/internal/domain"
	"github.com/cuongbtq/social-backbone/internal/gateway"
)

const (
	EventPostAdded    = "add post"
	EventPostUpdated  = "update post"
	EventPostDeleted  = "delete post"
	EventPostReaction = "update reaction"
)

type PostHandler struct {
	base
}

func NewPostHandler(gw Gateway, logger *slog.Logger) *PostHandler {
	return &PostHandler{base: newBase(gw, logger, "post")}
}

func (h *PostHandler) Listen() {
	h.listen(nil)
}

func (h *PostHandler) BroadcastAdded(ctx context.Context, post domain.Post) error {
	return h.broadcast(ctx, gateway.Global, EventPostAdded, post)
}

func (h *PostHandler) BroadcastUpdated(ctx context.Context, post domain.Post) error {
	return h.broadcast(ctx, gateway.Global, EventPostUpdated, post)
}

func (h *PostHandler) BroadcastDeleted(ctx context.Context, postID string) error {
	return h.broadcast(ctx, gateway.Global, EventPostDeleted, map[string]string{"postId": postID})
}

func (h *PostHandler) BroadcastReaction(ctx context.Context, reaction domain.Reaction) error {
	return h.broadcast(ctx, gateway.Global, EventPostReaction, reaction)
}
