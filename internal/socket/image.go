package socket

import (
	"context"
	"log/slog"

	"github.com/cuongbtq/social-backbone/internal/domain"
	"github.com/cuongbtq/social-backbone/internal/gateway"
)

const (
	EventImageAdded   = "add image"
	EventImageRemoved = "remove image"
)

type ImageHandler struct {
	base
}

func NewImageHandler(gw Gateway, logger *slog.Logger) *ImageHandler {
	return &ImageHandler{base: newBase(gw, logger, "image")}
}

func (h *ImageHandler) Listen() {
	h.listen(nil)
}

func (h *ImageHandler) BroadcastImageAdded(ctx context.Context, img domain.Image) error {
	return h.broadcast(ctx, gateway.Global, EventImageAdded, img)
}

func (h *ImageHandler) BroadcastImageRemoved(ctx context.Context, ref domain.RemoveImage) error {
	return h.broadcast(ctx, gateway.Global, EventImageRemoved, ref)
}
