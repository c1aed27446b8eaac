package domain

import "time"

type Image struct {
	ID        string    `json:"imgId" db:"id"`
	UserID    string    `json:"userId" db:"user_id"`
	Version   string    `json:"imgVersion,omitempty" db:"version"`
	URL       string    `json:"url,omitempty" db:"url"`
	BgImage   bool      `json:"bgImage" db:"bg_image"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

func (i Image) Validate() error {
	if i.ID == "" || i.UserID == "" {
		return ErrMissingID
	}
	return nil
}

type UpdateProfileImage struct {
	UserID string `json:"userId"`
	URL    string `json:"url"`
}

type RemoveImage struct {
	UserID  string `json:"userId"`
	ImageID string `json:"imgId"`
}

func (u UpdateProfileImage) Validate() error {
	return requireIDs(u.UserID)
}

func (r RemoveImage) Validate() error {
	return requireIDs(r.UserID, r.ImageID)
}
