package limits

import (
	"errors"
	"fmt"
	"math"
)

// Actions contains configurable upper limits enforced when actions are submitted.
type Actions struct {
	maxThreadsPerAction int64
	maxPendingPerUser   int64
}

func (a Actions) CheckThreadCount(threadCount int) error {
	if int64(threadCount) > a.maxThreadsPerAction {
		return fmt.Errorf("%w: %v threads, at most %v", ErrMaxThreadsPerActionReached, threadCount, a.maxThreadsPerAction)
	}

	return nil
}

func (a Actions) CheckPendingCount(existingCount int, newCount int) error {
	nextCount := int64(existingCount) + int64(newCount)

	if nextCount > a.maxPendingPerUser || nextCount < int64(existingCount) {
		return ErrMaxPendingActionsReached
	}

	return nil
}

func DefaultLimits() Actions {
	return Actions{
		maxThreadsPerAction: math.MaxInt32,
		maxPendingPerUser:   math.MaxInt32,
	}
}

// NewActionLimits returns the given limits. A zero value leaves the corresponding limit unbounded.
func NewActionLimits(maxThreadsPerAction, maxPendingPerUser uint32) Actions {
	limits := DefaultLimits()

	if maxThreadsPerAction > 0 {
		limits.maxThreadsPerAction = int64(maxThreadsPerAction)
	}

	if maxPendingPerUser > 0 {
		limits.maxPendingPerUser = int64(maxPendingPerUser)
	}

	return limits
}

var ErrMaxThreadsPerActionReached = errors.New("max threads per action reached")
var ErrMaxPendingActionsReached = errors.New("max pending actions reached")

func IsLimitErr(err error) bool {
	return errors.Is(err, ErrMaxThreadsPerActionReached) ||
		errors.Is(err, ErrMaxPendingActionsReached)
}
