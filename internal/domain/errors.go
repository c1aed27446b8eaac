package domain

import "errors"

var (
	// ErrNotFound is returned when an entity does not exist in storage
	ErrNotFound = errors.New("not found")

	// ErrMissingID is returned by Validate when a payload lacks its key
	ErrMissingID = errors.New("missing id")

	// ErrMissingRecipient is returned by Validate when an email has no address
	ErrMissingRecipient = errors.New("missing recipient")
)

func requireIDs(ids ...string) error {
	for _, id := range ids {
		if id == "" {
			return ErrMissingID
		}
	}
	return nil
}
