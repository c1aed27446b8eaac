package worker

import (
	"context"
	"fmt"

	"github.com/cuongbtq/social-backbone/internal/domain"
)

func (w *Worker) addUser(ctx context.Context, user domain.User) error {
	if err := w.store.UpsertUser(ctx, user); err != nil {
		return err
	}
	return broadcastFailed(w.sockets.User.BroadcastUserAdded(ctx, user))
}

func (w *Worker) updateSocialLinks(ctx context.Context, req domain.UpdateSocialLinks) error {
	if err := w.store.UpdateSocialLinks(ctx, req.UserID, req.Links); err != nil {
		return fmt.Errorf("social links of %s: %w", req.UserID, err)
	}
	update := domain.UserUpdate{UserID: req.UserID, Field: "social", Value: req.Links}
	return broadcastFailed(w.sockets.User.BroadcastUserUpdated(ctx, update))
}

func (w *Worker) updateBasicInfo(ctx context.Context, req domain.UpdateBasicInfo) error {
	if err := w.store.UpdateBasicInfo(ctx, req.UserID, req.Info); err != nil {
		return fmt.Errorf("basic info of %s: %w", req.UserID, err)
	}
	update := domain.UserUpdate{UserID: req.UserID, Field: "info", Value: req.Info}
	return broadcastFailed(w.sockets.User.BroadcastUserUpdated(ctx, update))
}

// Settings changes are private to the user and are not broadcast.
func (w *Worker) updateNotificationSettings(ctx context.Context, req domain.UpdateNotificationSettings) error {
	if err := w.store.UpdateNotificationSettings(ctx, req.UserID, req.Settings); err != nil {
		return fmt.Errorf("notification settings of %s: %w", req.UserID, err)
	}
	return nil
}
