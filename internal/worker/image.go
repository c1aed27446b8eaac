package worker

import (
	"context"
	"fmt"

	"github.com/cuongbtq/social-backbone/internal/domain"
)

func (w *Worker) addImage(ctx context.Context, img domain.Image) error {
	if err := w.store.UpsertImage(ctx, img); err != nil {
		return err
	}
	return broadcastFailed(w.sockets.Image.BroadcastImageAdded(ctx, img))
}

func (w *Worker) updateProfileImage(ctx context.Context, req domain.UpdateProfileImage) error {
	if err := w.store.UpdateProfilePicture(ctx, req.UserID, req.URL); err != nil {
		return fmt.Errorf("profile picture of %s: %w", req.UserID, err)
	}
	update := domain.UserUpdate{UserID: req.UserID, Field: "profilePicture", Value: req.URL}
	return broadcastFailed(w.sockets.User.BroadcastUserUpdated(ctx, update))
}

func (w *Worker) removeImage(ctx context.Context, req domain.RemoveImage) error {
	if err := w.store.DeleteImage(ctx, req.UserID, req.ImageID); err != nil {
		return err
	}
	return broadcastFailed(w.sockets.Image.BroadcastImageRemoved(ctx, req))
}
