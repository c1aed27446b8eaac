package domain

import "time"

type Post struct {
	ID           string    `json:"id" db:"id"`
	UserID       string    `json:"userId" db:"user_id"`
	Username     string    `json:"username" db:"username"`
	Text         string    `json:"post" db:"body"`
	BgColor      string    `json:"bgColor,omitempty" db:"bg_color"`
	Privacy      string    `json:"privacy,omitempty" db:"privacy"`
	Feelings     string    `json:"feelings,omitempty" db:"feelings"`
	ImageID      string    `json:"imgId,omitempty" db:"image_id"`
	ImageVersion string    `json:"imgVersion,omitempty" db:"image_version"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

func (p Post) Validate() error {
	if p.ID == "" || p.UserID == "" {
		return ErrMissingID
	}
	return nil
}

type DeletePost struct {
	PostID string `json:"postId"`
	UserID string `json:"userId"`
}

// Reaction is broadcast when a post's reactions change.
type Reaction struct {
	PostID string         `json:"postId"`
	UserID string         `json:"userId"`
	Type   string         `json:"type"`
	Counts map[string]int `json:"reactions,omitempty"`
}

func (d DeletePost) Validate() error {
	return requireIDs(d.PostID, d.UserID)
}
