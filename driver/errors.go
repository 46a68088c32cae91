package driver

import (
	"context"
	"errors"
	"net"
)

var (
	// ErrUnauthorized is returned when the provider rejects the credentials. The user must reconnect.
	ErrUnauthorized = errors.New("credentials rejected by provider")

	// ErrNotFound is returned when the entity does not exist for this account.
	ErrNotFound = errors.New("no such entity at provider")

	// ErrTransient is returned on network failures, timeouts and 5xx responses. It may be retried.
	ErrTransient = errors.New("transient provider failure")

	// ErrPermanent is returned when the provider refuses the operation for a non-retryable reason.
	ErrPermanent = errors.New("permanent provider failure")

	// ErrUnsupportedProvider is returned by factories that cannot build a driver for a provider id.
	ErrUnsupportedProvider = errors.New("unsupported provider")

	// ErrBatchTooLarge is returned when more ids than MaxBatchSize are passed to a batched operation.
	ErrBatchTooLarge = errors.New("batch exceeds driver maximum")
)

// Kind returns the taxonomy sentinel of err.
// Context deadlines and network errors are transient; anything unknown is permanent.
func Kind(err error) error {
	switch {
	case err == nil:
		return nil

	case errors.Is(err, ErrUnauthorized):
		return ErrUnauthorized

	case errors.Is(err, ErrNotFound):
		return ErrNotFound

	case errors.Is(err, ErrTransient):
		return ErrTransient

	case errors.Is(err, ErrUnsupportedProvider):
		return ErrUnsupportedProvider

	case errors.Is(err, ErrPermanent):
		return ErrPermanent

	case errors.Is(err, context.DeadlineExceeded):
		return ErrTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrTransient
	}

	return ErrPermanent
}

// IsRetryable returns whether err may succeed if the operation is attempted again.
func IsRetryable(err error) bool {
	return Kind(err) == ErrTransient
}
