// Package logging annotates goroutines with pprof labels so they can be told apart in profiles.
package logging

import (
	"context"
	"fmt"
	"runtime"
	"runtime/pprof"
	"strconv"
)

// Labels are extra pprof labels attached to an annotated goroutine.
type Labels = map[string]any

// Well-known label keys.
const (
	UserIDKey   = "userID"
	ActionIDKey = "actionID"
	TypeKey     = "type"
)

func GoAnnotate(ctx context.Context, fn func(context.Context), labelMap ...Labels) {
	go pprof.Do(ctx, getLabels(labelMap...), fn)
}

func DoAnnotate(ctx context.Context, fn func(context.Context), labelMap ...Labels) {
	pprof.Do(ctx, getLabels(labelMap...), fn)
}

func getLabels(labelMap ...Labels) pprof.LabelSet {
	// Get the caller's stack frame.
	pc, file, line, ok := runtime.Caller(2)
	if !ok {
		panic("failed to get caller's stack frame")
	}

	labels := []string{"fn", runtime.FuncForPC(pc).Name(), "file", file, "line", strconv.Itoa(line)}

	for _, labelMap := range labelMap {
		for key, val := range labelMap {
			labels = append(labels, key, fmt.Sprintf("%v", val))
		}
	}

	return pprof.Labels(labels...)
}
