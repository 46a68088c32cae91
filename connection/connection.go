// Package connection stores the provider credentials of each user.
package connection

import (
	"context"

	"github.com/inboxkit/courier/driver"
)

// Connection links a user to a provider account.
type Connection struct {
	UserID       string `db:"user_id" json:"userID"`
	ProviderID   string `db:"provider_id" json:"providerID"`
	AccessToken  string `db:"access_token" json:"accessToken"`
	RefreshToken string `db:"refresh_token" json:"refreshToken"`
}

// Usable returns whether the connection holds both tokens.
// A connection that is not usable must be re-established by the user.
func (c Connection) Usable() bool {
	return c.AccessToken != "" && c.RefreshToken != ""
}

// Credentials returns the credentials a driver authenticates with.
func (c Connection) Credentials() driver.Credentials {
	return driver.Credentials{
		Username:     c.UserID,
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
	}
}

// Finder looks up the connection of a user.
type Finder interface {
	FindConnection(ctx context.Context, userID string) (Connection, bool, error)
}

// Store is a Finder that can also record connections.
type Store interface {
	Finder

	SaveConnection(ctx context.Context, conn Connection) error
	DeleteConnection(ctx context.Context, userID string) error
	Close() error
}
