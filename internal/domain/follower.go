package domain

// Follow links a follower to the user being followed.
type Follow struct {
	FollowerID string `json:"followerId" db:"follower_id"`
	FolloweeID string `json:"followeeId" db:"followee_id"`
	Username   string `json:"username,omitempty" db:"-"`
}

func (f Follow) Validate() error {
	if f.FollowerID == "" || f.FolloweeID == "" {
		return ErrMissingID
	}
	return nil
}
