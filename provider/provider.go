// Package provider selects and constructs the driver of a mail provider.
package provider

import (
	"context"
	"fmt"

	"github.com/inboxkit/courier/driver"
	"github.com/inboxkit/courier/driver/dummy"
	"github.com/inboxkit/courier/driver/gmail"
	"github.com/inboxkit/courier/driver/imap"
)

// ID identifies a provider variant.
type ID string

const (
	Google ID = "google"
	IMAP   ID = "imap"
	Dummy  ID = "dummy"
)

// Factory builds drivers for the providers it was configured with.
type Factory struct {
	gmail gmail.Config
	imap  *imap.Config
	dummy *dummy.Dummy
}

type Option func(*Factory)

// WithGmail sets the OAuth client used by Gmail drivers.
func WithGmail(cfg gmail.Config) Option {
	return func(f *Factory) {
		f.gmail = cfg
	}
}

// WithIMAP enables the IMAP provider.
func WithIMAP(cfg imap.Config) Option {
	return func(f *Factory) {
		f.imap = &cfg
	}
}

// WithDummy enables the in-memory provider backed by the given fake.
func WithDummy(conn *dummy.Dummy) Option {
	return func(f *Factory) {
		f.dummy = conn
	}
}

func NewFactory(opts ...Option) *Factory {
	f := &Factory{}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Supports returns whether the factory can build drivers for the provider.
func (f *Factory) Supports(providerID string) bool {
	switch ID(providerID) {
	case Google:
		return true

	case IMAP:
		return f.imap != nil

	case Dummy:
		return f.dummy != nil

	default:
		return false
	}
}

// New returns a driver for the provider authenticated with the given credentials.
// It fails with driver.ErrUnsupportedProvider for unknown providers and with driver.ErrUnauthorized
// when the credentials are incomplete. No network request is made.
func (f *Factory) New(ctx context.Context, providerID string, creds driver.Credentials) (driver.Driver, error) {
	if !f.Supports(providerID) {
		return nil, fmt.Errorf("provider %q: %w", providerID, driver.ErrUnsupportedProvider)
	}

	if !creds.Valid() {
		return nil, fmt.Errorf("provider %q: missing tokens: %w", providerID, driver.ErrUnauthorized)
	}

	var (
		drv driver.Driver
		err error
	)

	switch ID(providerID) {
	case Google:
		drv, err = gmail.New(ctx, f.gmail, creds)

	case IMAP:
		drv, err = imap.New(*f.imap, creds)

	case Dummy:
		drv = f.dummy.Driver(creds)
	}

	if err != nil {
		return nil, fmt.Errorf("provider %q: %w", providerID, err)
	}

	return drv, nil
}
