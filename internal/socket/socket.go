// Package socket holds the per-domain gateway handlers. Each handler attaches
// its connection listeners on Listen and exposes typed broadcast helpers for
// workers; none of them carries business logic.
package socket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/social-backbone/internal/gateway"
)

// Gateway is the part of *gateway.Server the handlers use.
type Gateway interface {
	OnConnect(h gateway.ConnectHandler)
	Broadcast(ctx context.Context, scope gateway.Scope, event string, payload any) error
}

type Listener interface {
	Listen()
}

type base struct {
	gw     Gateway
	logger *slog.Logger
}

func newBase(gw Gateway, logger *slog.Logger, name string) base {
	return base{gw: gw, logger: logger.With(slog.String("handler", name))}
}

// listen logs every connection and hands it to attach.
func (b base) listen(attach func(c *gateway.Conn)) {
	b.gw.OnConnect(func(c *gateway.Conn) {
		b.logger.Debug("Socket handler attached", slog.String("conn_id", c.ID))
		if attach != nil {
			attach(c)
		}
	})
}

func (b base) broadcast(ctx context.Context, scope gateway.Scope, event string, payload any) error {
	if err := b.gw.Broadcast(ctx, scope, event, payload); err != nil {
		return fmt.Errorf("failed to broadcast %q: %w", event, err)
	}
	return nil
}

func decode(data json.RawMessage, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}

// Handlers groups the six handlers of one gateway.
type Handlers struct {
	Post         *PostHandler
	Image        *ImageHandler
	Follower     *FollowerHandler
	User         *UserHandler
	Chat         *ChatHandler
	Notification *NotificationHandler
}

func NewHandlers(gw Gateway, logger *slog.Logger) *Handlers {
	return &Handlers{
		Post:         NewPostHandler(gw, logger),
		Image:        NewImageHandler(gw, logger),
		Follower:     NewFollowerHandler(gw, logger),
		User:         NewUserHandler(gw, logger),
		Chat:         NewChatHandler(gw, logger),
		Notification: NewNotificationHandler(gw, logger),
	}
}

// ListenAll attaches every handler to the gateway.
func (h *Handlers) ListenAll() {
	for _, l := range []Listener{h.Post, h.Image, h.Follower, h.User, h.Chat, h.Notification} {
		l.Listen()
	}
}
