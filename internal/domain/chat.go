package domain

import "time"

type ChatMessage struct {
	ID               string    `json:"id" db:"id"`
	ConversationID   string    `json:"conversationId" db:"conversation_id"`
	SenderID         string    `json:"senderId" db:"sender_id"`
	ReceiverID       string    `json:"receiverId" db:"receiver_id"`
	SenderUsername   string    `json:"senderUsername,omitempty" db:"sender_username"`
	ReceiverUsername string    `json:"receiverUsername,omitempty" db:"receiver_username"`
	Body             string    `json:"body" db:"body"`
	GifURL           string    `json:"gifUrl,omitempty" db:"gif_url"`
	IsRead           bool      `json:"isRead" db:"is_read"`
	CreatedAt        time.Time `json:"createdAt" db:"created_at"`
}

func (m ChatMessage) Validate() error {
	if m.ID == "" || m.ConversationID == "" || m.SenderID == "" || m.ReceiverID == "" {
		return ErrMissingID
	}
	return nil
}

// MessagesRead marks every message from SenderID to ReceiverID as read.
type MessagesRead struct {
	ConversationID string `json:"conversationId"`
	SenderID       string `json:"senderId"`
	ReceiverID     string `json:"receiverId"`
}

func (r MessagesRead) Validate() error {
	return requireIDs(r.ConversationID, r.SenderID, r.ReceiverID)
}
