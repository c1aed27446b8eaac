// Package storage persists what the workers write. Every write is keyed by
// entity id so a redelivered job leaves the same state behind.
package storage

import (
	"context"

	"github.com/cuongbtq/social-backbone/internal/domain"
)

// Store is the persistence collaborator of the workers.
type Store interface {
	UpsertUser(ctx context.Context, u domain.User) error
	UpdateSocialLinks(ctx context.Context, userID string, links domain.SocialLinks) error
	UpdateBasicInfo(ctx context.Context, userID string, info domain.BasicInfo) error
	UpdateNotificationSettings(ctx context.Context, userID string, settings domain.NotificationSettings) error
	GetNotificationSettings(ctx context.Context, userID string) (domain.NotificationSettings, error)
	UpdateProfilePicture(ctx context.Context, userID, url string) error

	UpsertPost(ctx context.Context, p domain.Post) error
	DeletePost(ctx context.Context, postID, userID string) error

	AddFollower(ctx context.Context, f domain.Follow) error
	RemoveFollower(ctx context.Context, f domain.Follow) error
	SetBlocked(ctx context.Context, b domain.BlockUser) error

	AddMessage(ctx context.Context, m domain.ChatMessage) error
	MarkMessagesRead(ctx context.Context, r domain.MessagesRead) error

	UpsertNotification(ctx context.Context, n domain.Notification) error
	MarkNotificationRead(ctx context.Context, notificationID string) error
	DeleteNotification(ctx context.Context, notificationID string) error

	UpsertImage(ctx context.Context, img domain.Image) error
	DeleteImage(ctx context.Context, userID, imageID string) error
}
