// Package domain holds the entities, job payloads and queue names shared by
// producers, workers and socket handlers.
package domain

// Queue names.
const (
	QueueUser         = "user"
	QueuePost         = "post"
	QueueFollower     = "follower"
	QueueChat         = "chat"
	QueueNotification = "notification"
	QueueEmail        = "email"
	QueueImage        = "image"
)

// Job names.
const (
	JobAddUser                    = "addUserToDB"
	JobUpdateSocialLinks          = "updateSocialLinksInDB"
	JobUpdateBasicInfo            = "updateBasicInfoInDB"
	JobUpdateNotificationSettings = "updateNotificationSettings"

	JobAddPost    = "addPostToDB"
	JobUpdatePost = "updatePostInDB"
	JobDeletePost = "deletePostFromDB"

	JobAddFollower    = "addFollowerToDB"
	JobRemoveFollower = "removeFollowerFromDB"
	JobBlockUser      = "blockUserInDB"

	JobAddChatMessage     = "addChatMessageToDB"
	JobMarkMessagesAsRead = "markMessagesAsReadInDB"

	JobInsertNotification = "insertNotification"
	JobUpdateNotification = "updateNotification"
	JobDeleteNotification = "deleteNotification"

	JobNotificationEmail   = "notificationEmail"
	JobForgotPasswordEmail = "forgotPasswordEmail"
	JobResetPasswordEmail  = "resetPasswordEmail"

	JobAddImage           = "addImageToDB"
	JobUpdateProfileImage = "updateProfileImageInDB"
	JobRemoveImage        = "removeImageFromDB"
)

// Jobs lists the job names of every queue.
var Jobs = map[string][]string{
	QueueUser:         {JobAddUser, JobUpdateSocialLinks, JobUpdateBasicInfo, JobUpdateNotificationSettings},
	QueuePost:         {JobAddPost, JobUpdatePost, JobDeletePost},
	QueueFollower:     {JobAddFollower, JobRemoveFollower, JobBlockUser},
	QueueChat:         {JobAddChatMessage, JobMarkMessagesAsRead},
	QueueNotification: {JobInsertNotification, JobUpdateNotification, JobDeleteNotification},
	QueueEmail:        {JobNotificationEmail, JobForgotPasswordEmail, JobResetPasswordEmail},
	QueueImage:        {JobAddImage, JobUpdateProfileImage, JobRemoveImage},
}

// KnownJob reports whether jobName belongs to queueName.
func KnownJob(queueName, jobName string) bool {
	for _, j := range Jobs[queueName] {
		if j == jobName {
			return true
		}
	}
	return false
}

// UserRoom is the room every connection of userID joins on setup.
func UserRoom(userID string) string {
	return "user:" + userID
}

// ChatRoom is the room of one conversation.
func ChatRoom(conversationID string) string {
	return "chat:" + conversationID
}
