// Package driver defines the uniform operation set the coordinator uses to talk to a mail provider.
package driver

//go:generate mockgen -destination mock_driver/mock_driver.go -package mock_driver github.com/inboxkit/courier/driver Driver

import "context"

// Driver exposes one provider's API for a single set of credentials.
// A driver never mutates local state and is cheap to build; callers construct a fresh one for every
// operation so that an expired token is never reused.
type Driver interface {
	// Get returns the normalized thread with the given ID.
	Get(ctx context.Context, id ThreadID) (Thread, error)

	// MarkAsRead marks every message of the thread as read. Marking a read thread again succeeds.
	MarkAsRead(ctx context.Context, id ThreadID) error

	// Count returns the current total/unread counters of the account's labels.
	Count(ctx context.Context) (Counts, error)

	// Label adds or removes the given label on the thread.
	Label(ctx context.Context, id ThreadID, labelID LabelID, add bool) error

	// Move moves the threads to the given destination folder.
	Move(ctx context.Context, ids []ThreadID, destination LabelID) error

	// BatchModify applies the given label changes to all the threads.
	BatchModify(ctx context.Context, ids []ThreadID, changes Changes) error

	// MaxBatchSize is the maximum number of ids accepted by the batched operations.
	MaxBatchSize() int
}

// Credentials are the tokens a driver authenticates with.
type Credentials struct {
	// Username is the account the tokens belong to. Only protocols that log in by name need it.
	Username string

	AccessToken  string
	RefreshToken string
}

// Valid returns whether both tokens are present.
func (c Credentials) Valid() bool {
	return c.AccessToken != "" && c.RefreshToken != ""
}
