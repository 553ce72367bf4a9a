package auth

import "github.com/odyssey-erp/profitboard/internal/shared"

// Identity is the authenticated user as seen by the rest of the application.
type Identity = shared.Identity

// Credential is one configured account.
type Credential struct {
	Username     string
	DisplayName  string `validate:"required"`
	Email        string `validate:"omitempty,email"`
	PasswordHash string `validate:"required,startswith=$2"`
}

// Identity strips the secret material from a credential.
func (c Credential) Identity() Identity {
	name := c.DisplayName
	if name == "" {
		name = c.Username
	}
	return Identity{Username: c.Username, DisplayName: name, Email: c.Email}
}
