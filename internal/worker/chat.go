package worker

import (
	"context"

	"github.com/cuongbtq/social-backbone/internal/domain"
)

func (w *Worker) addChatMessage(ctx context.Context, msg domain.ChatMessage) error {
	if err := w.store.AddMessage(ctx, msg); err != nil {
		return err
	}
	if err := w.sockets.Chat.BroadcastMessage(ctx, msg); err != nil {
		return broadcastFailed(err)
	}
	return broadcastFailed(w.sockets.Chat.BroadcastChatList(ctx, msg))
}

func (w *Worker) markMessagesRead(ctx context.Context, read domain.MessagesRead) error {
	if err := w.store.MarkMessagesRead(ctx, read); err != nil {
		return err
	}
	return broadcastFailed(w.sockets.Chat.BroadcastMessageRead(ctx, read))
}
