package gmail

import (
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"

	"github.com/inboxkit/courier/driver"
)

// wrapError annotates err with the driver error kind matching the API response.
func wrapError(op string, err error) error {
	return fmt.Errorf("%v: %w: %w", op, kindOf(err), err)
}

func kindOf(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return driver.ErrUnauthorized
	}

	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return driver.Kind(err)
	}

	switch {
	case apiErr.Code == http.StatusUnauthorized:
		return driver.ErrUnauthorized

	case apiErr.Code == http.StatusNotFound:
		return driver.ErrNotFound

	case apiErr.Code == http.StatusTooManyRequests, apiErr.Code >= http.StatusInternalServerError:
		return driver.ErrTransient

	case apiErr.Code == http.StatusForbidden && isRateLimited(apiErr):
		return driver.ErrTransient

	default:
		return driver.ErrPermanent
	}
}

func isRateLimited(apiErr *googleapi.Error) bool {
	for _, item := range apiErr.Errors {
		switch item.Reason {
		case "rateLimitExceeded", "userRateLimitExceeded":
			return true
		}
	}

	return false
}
