package socket

import (
	"context"
	"log/slog"

	"github.com/cuongbtq/social-backbone/internal/domain"
	"github.com/cuongbtq/social-backbone/internal/gateway"
)

const (
	EventNotificationInserted = "insert notification"
	EventNotificationUpdated  = "update notification"
	EventNotificationDeleted  = "delete notification"
)

// NotificationHandler only ever addresses the receiver's user room.
type NotificationHandler struct {
	base
}

func NewNotificationHandler(gw Gateway, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{base: newBase(gw, logger, "notification")}
}

func (h *NotificationHandler) Listen() {
	h.listen(nil)
}

func (h *NotificationHandler) BroadcastInserted(ctx context.Context, n domain.Notification) error {
	return h.broadcast(ctx, gateway.Room(domain.UserRoom(n.UserTo)), EventNotificationInserted, n)
}

func (h *NotificationHandler) BroadcastUpdated(ctx context.Context, ref domain.NotificationRef) error {
	return h.broadcast(ctx, gateway.Room(domain.UserRoom(ref.UserTo)), EventNotificationUpdated, ref)
}

func (h *NotificationHandler) BroadcastDeleted(ctx context.Context, ref domain.NotificationRef) error {
	return h.broadcast(ctx, gateway.Room(domain.UserRoom(ref.UserTo)), EventNotificationDeleted, ref)
}
