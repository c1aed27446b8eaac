package worker

import (
	"context"

	"github.com/cuongbtq/social-backbone/internal/domain"
)

func (w *Worker) addFollower(ctx context.Context, f domain.Follow) error {
	if err := w.store.AddFollower(ctx, f); err != nil {
		return err
	}
	return broadcastFailed(w.sockets.Follower.BroadcastFollowerAdded(ctx, f))
}

func (w *Worker) removeFollower(ctx context.Context, f domain.Follow) error {
	if err := w.store.RemoveFollower(ctx, f); err != nil {
		return err
	}
	return broadcastFailed(w.sockets.Follower.BroadcastFollowerRemoved(ctx, f))
}

// blockUser handles both block and unblock; Blocked selects which.
func (w *Worker) blockUser(ctx context.Context, b domain.BlockUser) error {
	if err := w.store.SetBlocked(ctx, b); err != nil {
		return err
	}
	return broadcastFailed(w.sockets.User.BroadcastBlocked(ctx, b))
}
