package reporter

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

type recordingReporter struct {
	exceptions []any
	messages   []string
	contexts   []Context
	err        error
}

func (r *recordingReporter) ReportExceptionWithContext(info any, context Context) error {
	r.exceptions = append(r.exceptions, info)
	r.contexts = append(r.contexts, context)

	return r.err
}

func (r *recordingReporter) ReportMessageWithContext(message string, context Context) error {
	r.messages = append(r.messages, message)
	r.contexts = append(r.contexts, context)

	return r.err
}

func TestReport(t *testing.T) {
	rep := &recordingReporter{}
	ctx := NewContextWithReporter(context.Background(), rep)

	ExceptionWithContext(ctx, "rejected", Context{"type": "MOVE"})
	MessageWithContext(ctx, "outdated", Context{"threads": 2})

	require.Equal(t, []any{"rejected"}, rep.exceptions)
	require.Equal(t, []string{"outdated"}, rep.messages)
	require.Equal(t, []Context{{"type": "MOVE"}, {"threads": 2}}, rep.contexts)
}

func TestReport_NoReporter(t *testing.T) {
	require.NotPanics(t, func() {
		ExceptionWithContext(context.Background(), "rejected", nil)
		MessageWithContext(NewContextWithReporter(context.Background(), nil), "outdated", nil)
	})
}

func TestReport_FailureIsLogged(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()

	ctx := NewContextWithReporter(context.Background(), &recordingReporter{err: errors.New("offline")})

	MessageWithContext(ctx, "outdated", nil)

	require.Len(t, hook.Entries, 1)
	require.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
}

func TestLogReporter(t *testing.T) {
	log, hook := test.NewNullLogger()

	rep := NewLogReporter(log)

	require.NoError(t, rep.ReportExceptionWithContext("rejected", Context{"type": "STAR"}))
	require.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	require.Equal(t, "STAR", hook.LastEntry().Data["type"])
	require.Equal(t, "rejected", hook.LastEntry().Data["exception"])

	require.NoError(t, rep.ReportMessageWithContext("outdated", Context{"threads": 3}))
	require.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	require.Equal(t, "outdated", hook.LastEntry().Message)
}
