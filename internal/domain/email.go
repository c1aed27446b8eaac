package domain

// Email is a rendered message ready to send.
type Email struct {
	To      string `json:"receiverEmail"`
	Subject string `json:"subject"`
	HTML    string `json:"template"`
}

func (e Email) Validate() error {
	if e.To == "" {
		return ErrMissingRecipient
	}
	return nil
}
