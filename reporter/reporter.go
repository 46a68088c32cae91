// Package reporter forwards unexpected failures to an external reporting tool.
package reporter

type Context = map[string]any

// Reporter represents an external reporting tool which can be hooked into the coordinator to report
// provider rejections and drifts of the local view.
type Reporter interface {
	ReportExceptionWithContext(any, Context) error
	ReportMessageWithContext(string, Context) error
}
