package worker

import (
	"context"

	"github.com/cuongbtq/social-backbone/internal/domain"
)

func (w *Worker) addPost(ctx context.Context, post domain.Post) error {
	if err := w.store.UpsertPost(ctx, post); err != nil {
		return err
	}
	return broadcastFailed(w.sockets.Post.BroadcastAdded(ctx, post))
}

func (w *Worker) updatePost(ctx context.Context, post domain.Post) error {
	if err := w.store.UpsertPost(ctx, post); err != nil {
		return err
	}
	return broadcastFailed(w.sockets.Post.BroadcastUpdated(ctx, post))
}

func (w *Worker) deletePost(ctx context.Context, req domain.DeletePost) error {
	if err := w.store.DeletePost(ctx, req.PostID, req.UserID); err != nil {
		return err
	}
	return broadcastFailed(w.sockets.Post.BroadcastDeleted(ctx, req.PostID))
}
