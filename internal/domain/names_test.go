package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobs(t *testing.T) {
	assert.Len(t, Jobs, 7)
	assert.Equal(t, []string{JobAddUser, JobUpdateSocialLinks, JobUpdateBasicInfo, JobUpdateNotificationSettings}, Jobs[QueueUser])

	assert.True(t, KnownJob(QueueUser, JobAddUser))
	assert.False(t, KnownJob(QueueUser, JobAddPost))
	assert.False(t, KnownJob("unknown", JobAddUser))
}

func TestRooms(t *testing.T) {
	assert.Equal(t, "user:u1", UserRoom("u1"))
	assert.Equal(t, "chat:c1", ChatRoom("c1"))
}

func TestNotificationSettings_Allows(t *testing.T) {
	tests := []struct {
		name     string
		settings NotificationSettings
		kind     string
		want     bool
	}{
		{name: "defaults allow messages", settings: DefaultNotificationSettings(), kind: NotificationMessage, want: true},
		{name: "reactions disabled", settings: NotificationSettings{Messages: true}, kind: NotificationReaction, want: false},
		{name: "follows enabled", settings: NotificationSettings{Follows: true}, kind: NotificationFollow, want: true},
		{name: "unknown kind allowed", settings: NotificationSettings{}, kind: "mention", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.settings.Allows(tt.kind))
		})
	}
}

func TestValidate(t *testing.T) {
	assert.ErrorIs(t, User{}.Validate(), ErrMissingID)
	assert.NoError(t, User{ID: "u1"}.Validate())
	assert.ErrorIs(t, Post{ID: "p1"}.Validate(), ErrMissingID)
	assert.ErrorIs(t, Follow{FollowerID: "a"}.Validate(), ErrMissingID)
	assert.ErrorIs(t, ChatMessage{ID: "m1"}.Validate(), ErrMissingID)
	assert.ErrorIs(t, Notification{ID: "n1"}.Validate(), ErrMissingID)
	assert.ErrorIs(t, Email{Subject: "Hello"}.Validate(), ErrMissingRecipient)
	assert.NotErrorIs(t, Email{}.Validate(), ErrMissingID)
	assert.NoError(t, Email{To: "a@b.com"}.Validate())
	assert.NoError(t, Image{ID: "i1", UserID: "u1"}.Validate())
}

func TestValidate_Requests(t *testing.T) {
	assert.ErrorIs(t, BlockUser{UserID: "u1"}.Validate(), ErrMissingID)
	assert.NoError(t, BlockUser{UserID: "u1", BlockedUserID: "u2"}.Validate())
	assert.ErrorIs(t, DeletePost{PostID: "p1"}.Validate(), ErrMissingID)
	assert.ErrorIs(t, MessagesRead{ConversationID: "c1", SenderID: "u1"}.Validate(), ErrMissingID)
	assert.ErrorIs(t, InsertNotification{Notification: Notification{UserTo: "u2"}}.Validate(), ErrMissingID)
	assert.NoError(t, NotificationRef{NotificationID: "n1", UserTo: "u2"}.Validate())
	assert.ErrorIs(t, RemoveImage{UserID: "u1"}.Validate(), ErrMissingID)
	assert.ErrorIs(t, UpdateSocialLinks{}.Validate(), ErrMissingID)
}
