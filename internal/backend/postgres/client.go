package postgres

import "github.com/suanfamama/atelier/internal/backend"

// Client joins the local auth backend and the store into a backend.Client.
type Client struct {
	*LocalAuth
	*Store
}

var _ backend.Client = (*Client)(nil)

// NewClient creates a client over db.
func NewClient(db DB, tokens *TokenIssuer, mailer ResetMailer, config AuthConfig) *Client {
	return &Client{
		LocalAuth: NewLocalAuth(db, tokens, mailer, config),
		Store:     NewStore(db),
	}
}
