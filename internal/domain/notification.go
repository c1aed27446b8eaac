package domain

import "time"

// Notification types.
const (
	NotificationMessage  = "messages"
	NotificationReaction = "reactions"
	NotificationComment  = "comments"
	NotificationFollow   = "follows"
)

type Notification struct {
	ID        string    `json:"id" db:"id"`
	UserTo    string    `json:"userTo" db:"user_to"`
	UserFrom  string    `json:"userFrom" db:"user_from"`
	Message   string    `json:"message" db:"message"`
	Type      string    `json:"notificationType" db:"notification_type"`
	EntityID  string    `json:"entityId,omitempty" db:"entity_id"`
	Read      bool      `json:"read" db:"read"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

func (n Notification) Validate() error {
	if n.ID == "" || n.UserTo == "" {
		return ErrMissingID
	}
	return nil
}

// InsertNotification carries what the email step needs next to the
// notification itself.
type InsertNotification struct {
	Notification     Notification `json:"notification"`
	ReceiverUsername string       `json:"receiverUsername,omitempty"`
	ReceiverEmail    string       `json:"receiverEmail,omitempty"`
	Header           string       `json:"header,omitempty"`
	ImageURL         string       `json:"imageUrl,omitempty"`
}

// NotificationRef addresses one notification of one user.
type NotificationRef struct {
	NotificationID string `json:"notificationId"`
	UserTo         string `json:"userTo"`
}

func (n InsertNotification) Validate() error {
	return n.Notification.Validate()
}

func (r NotificationRef) Validate() error {
	return requireIDs(r.NotificationID, r.UserTo)
}
