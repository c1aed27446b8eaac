package domain

import "time"

type SocialLinks struct {
	Facebook  string `json:"facebook" db:"facebook"`
	Instagram string `json:"instagram" db:"instagram"`
	Twitter   string `json:"twitter" db:"twitter"`
	Youtube   string `json:"youtube" db:"youtube"`
}

type BasicInfo struct {
	Quote    string `json:"quote" db:"quote"`
	Work     string `json:"work" db:"work"`
	School   string `json:"school" db:"school"`
	Location string `json:"location" db:"location"`
}

// NotificationSettings decides which notifications also go out by email.
type NotificationSettings struct {
	Messages  bool `json:"messages" db:"messages"`
	Reactions bool `json:"reactions" db:"reactions"`
	Comments  bool `json:"comments" db:"comments"`
	Follows   bool `json:"follows" db:"follows"`
}

// DefaultNotificationSettings enables every notification email.
func DefaultNotificationSettings() NotificationSettings {
	return NotificationSettings{Messages: true, Reactions: true, Comments: true, Follows: true}
}

// Allows reports whether a notification of type kind may be emailed.
func (s NotificationSettings) Allows(kind string) bool {
	switch kind {
	case NotificationMessage:
		return s.Messages
	case NotificationReaction:
		return s.Reactions
	case NotificationComment:
		return s.Comments
	case NotificationFollow:
		return s.Follows
	default:
		return true
	}
}

type User struct {
	ID             string    `json:"id"`
	Username       string    `json:"username,omitempty"`
	Email          string    `json:"email,omitempty"`
	AvatarColor    string    `json:"avatarColor,omitempty"`
	ProfilePicture string    `json:"profilePicture,omitempty"`
	CreatedAt      time.Time `json:"createdAt,omitempty"`
}

func (u User) Validate() error {
	if u.ID == "" {
		return ErrMissingID
	}
	return nil
}

// PublicUser is the part of a user every client may see.
type PublicUser struct {
	ID             string `json:"id"`
	Username       string `json:"username,omitempty"`
	AvatarColor    string `json:"avatarColor,omitempty"`
	ProfilePicture string `json:"profilePicture,omitempty"`
}

func (u User) Public() PublicUser {
	return PublicUser{
		ID:             u.ID,
		Username:       u.Username,
		AvatarColor:    u.AvatarColor,
		ProfilePicture: u.ProfilePicture,
	}
}

type UpdateSocialLinks struct {
	UserID string      `json:"userId"`
	Links  SocialLinks `json:"links"`
}

type UpdateBasicInfo struct {
	UserID string    `json:"userId"`
	Info   BasicInfo `json:"info"`
}

type UpdateNotificationSettings struct {
	UserID   string               `json:"userId"`
	Settings NotificationSettings `json:"settings"`
}

// UserUpdate is broadcast after any profile change.
type UserUpdate struct {
	UserID string `json:"userId"`
	Field  string `json:"field"`
	Value  any    `json:"value"`
}

// BlockUser blocks or unblocks BlockedUserID for UserID.
type BlockUser struct {
	UserID        string `json:"userId"`
	BlockedUserID string `json:"blockedUserId"`
	Blocked       bool   `json:"blocked"`
}

func (u UpdateSocialLinks) Validate() error {
	return requireIDs(u.UserID)
}

func (u UpdateBasicInfo) Validate() error {
	return requireIDs(u.UserID)
}

func (u UpdateNotificationSettings) Validate() error {
	return requireIDs(u.UserID)
}

func (b BlockUser) Validate() error {
	return requireIDs(b.UserID, b.BlockedUserID)
}
