package worker

import (
	"context"
	"fmt"

	"github.com/cuongbtq/social-backbone/internal/domain"
	"github.com/cuongbtq/social-backbone/internal/queue"
)

type processor struct {
	queue string
	job   string
	fn    queue.WorkerFunc
}

// processors lists the worker of every job in domain.Jobs.
func (w *Worker) processors() []processor {
	return []processor{
		{domain.QueueUser, domain.JobAddUser, validated(w.addUser)},
		{domain.QueueUser, domain.JobUpdateSocialLinks, validated(w.updateSocialLinks)},
		{domain.QueueUser, domain.JobUpdateBasicInfo, validated(w.updateBasicInfo)},
		{domain.QueueUser, domain.JobUpdateNotificationSettings, validated(w.updateNotificationSettings)},

		{domain.QueuePost, domain.JobAddPost, validated(w.addPost)},
		{domain.QueuePost, domain.JobUpdatePost, validated(w.updatePost)},
		{domain.QueuePost, domain.JobDeletePost, validated(w.deletePost)},

		{domain.QueueFollower, domain.JobAddFollower, validated(w.addFollower)},
		{domain.QueueFollower, domain.JobRemoveFollower, validated(w.removeFollower)},
		{domain.QueueFollower, domain.JobBlockUser, validated(w.blockUser)},

		{domain.QueueChat, domain.JobAddChatMessage, validated(w.addChatMessage)},
		{domain.QueueChat, domain.JobMarkMessagesAsRead, validated(w.markMessagesRead)},

		{domain.QueueNotification, domain.JobInsertNotification, validated(w.insertNotification)},
		{domain.QueueNotification, domain.JobUpdateNotification, validated(w.updateNotification)},
		{domain.QueueNotification, domain.JobDeleteNotification, validated(w.deleteNotification)},

		{domain.QueueEmail, domain.JobNotificationEmail, validated(w.sendEmail)},
		{domain.QueueEmail, domain.JobForgotPasswordEmail, validated(w.sendEmail)},
		{domain.QueueEmail, domain.JobResetPasswordEmail, validated(w.sendEmail)},

		{domain.QueueImage, domain.JobAddImage, validated(w.addImage)},
		{domain.QueueImage, domain.JobUpdateProfileImage, validated(w.updateProfileImage)},
		{domain.QueueImage, domain.JobRemoveImage, validated(w.removeImage)},
	}
}

type validator interface {
	Validate() error
}

// validated decodes the payload and rejects it without retry when its
// Validate method fails.
func validated[T validator](fn func(ctx context.Context, payload T) error) queue.WorkerFunc {
	return queue.Typed(func(ctx context.Context, payload T) error {
		if err := payload.Validate(); err != nil {
			return queue.Permanent(fmt.Errorf("%w: %v", queue.ErrInvalidPayload, err))
		}
		return fn(ctx, payload)
	})
}

// broadcastFailed marks a broadcast failure permanent. The gateway only
// returns encoding errors, which a redelivery cannot fix.
func broadcastFailed(err error) error {
	if err == nil {
		return nil
	}
	return queue.Permanent(err)
}
