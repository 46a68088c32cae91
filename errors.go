package courier

import (
	"errors"

	"github.com/inboxkit/courier/driver"
	"github.com/inboxkit/courier/internal/action"
	"github.com/inboxkit/courier/internal/ledger"
)

var (
	ErrNoConnection   = errors.New("user has no provider connection")
	ErrMissingTokens  = errors.New("provider connection has no tokens")
	ErrClosed         = errors.New("coordinator is closed")
	ErrNoThreads      = errors.New("action has no threads")
	ErrInvalidParams  = action.ErrInvalidParams
	ErrConflict       = ledger.ErrConflict
	ErrNoSuchAction   = ledger.ErrNoSuchAction
	ErrNotCancellable = ledger.ErrNotCancellable
)

// IsReconnectRequired returns true if the user must re-establish the provider connection.
func IsReconnectRequired(err error) bool {
	return errors.Is(err, driver.ErrUnauthorized)
}

// IsNoConnection returns true if the user never connected a provider.
func IsNoConnection(err error) bool {
	return errors.Is(err, ErrNoConnection)
}

// IsNotFound returns true if the provider no longer knows the thread.
func IsNotFound(err error) bool {
	return errors.Is(err, driver.ErrNotFound)
}

// IsUnsupportedProvider returns true if the user's provider cannot be driven.
func IsUnsupportedProvider(err error) bool {
	return errors.Is(err, driver.ErrUnsupportedProvider)
}

// IsInvalidRequest returns true if the action was rejected before anything was applied.
func IsInvalidRequest(err error) bool {
	return errors.Is(err, ErrInvalidParams) || errors.Is(err, ErrNoThreads)
}
