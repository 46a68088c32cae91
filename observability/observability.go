// Package observability forwards failure metrics to a sender hooked into the coordinator.
package observability

// ErrorType groups metrics so that senders can rate limit each group on its own.
type ErrorType int

const (
	ActionError ErrorType = iota
	SyncError
	OtherError
)

func (t ErrorType) String() string {
	switch t {
	case ActionError:
		return "action"

	case SyncError:
		return "sync"

	default:
		return "other"
	}
}

type Sender interface {
	AddMetrics(metrics ...map[string]interface{})
	AddDistinctMetrics(errType ErrorType, metrics ...map[string]interface{})
}
