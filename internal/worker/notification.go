package worker

import (
	"context"
	"errors"
	"log/slog"

	"github.com/cuongbtq/social-backbone/internal/domain"
	"github.com/cuongbtq/social-backbone/internal/email"
)

const defaultNotificationSubject = "You have a new notification"

// insertNotification stores and pushes the notification, then queues an
// email when the receiver has one and allows this notification type.
func (w *Worker) insertNotification(ctx context.Context, req domain.InsertNotification) error {
	n := req.Notification
	if err := w.store.UpsertNotification(ctx, n); err != nil {
		return err
	}
	if err := w.sockets.Notification.BroadcastInserted(ctx, n); err != nil {
		return broadcastFailed(err)
	}

	if req.ReceiverEmail == "" {
		return nil
	}

	settings, err := w.store.GetNotificationSettings(ctx, n.UserTo)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		settings = domain.DefaultNotificationSettings()
	case err != nil:
		return err
	}
	if !settings.Allows(n.Type) {
		w.logger.Debug("Notification email disabled by receiver",
			slog.String("user_to", n.UserTo),
			slog.String("type", n.Type),
		)
		return nil
	}

	header := req.Header
	if header == "" {
		header = defaultNotificationSubject
	}
	html, err := w.renderer.Notification(email.NotificationParams{
		Username: req.ReceiverUsername,
		Header:   header,
		Message:  n.Message,
		ImageURL: req.ImageURL,
	})
	if err != nil {
		return err
	}

	return w.producer.NotificationEmail(ctx, domain.Email{
		To:      req.ReceiverEmail,
		Subject: header,
		HTML:    html,
	})
}

func (w *Worker) updateNotification(ctx context.Context, ref domain.NotificationRef) error {
	if err := w.store.MarkNotificationRead(ctx, ref.NotificationID); err != nil {
		return err
	}
	return broadcastFailed(w.sockets.Notification.BroadcastUpdated(ctx, ref))
}

func (w *Worker) deleteNotification(ctx context.Context, ref domain.NotificationRef) error {
	if err := w.store.DeleteNotification(ctx, ref.NotificationID); err != nil {
		return err
	}
	return broadcastFailed(w.sockets.Notification.BroadcastDeleted(ctx, ref))
}

func (w *Worker) sendEmail(ctx context.Context, msg domain.Email) error {
	return w.sender.Send(ctx, msg)
}
