package reporter

import (
	"context"

	"github.com/sirupsen/logrus"
)

func ExceptionWithContext(ctx context.Context, message string, context Context) {
	report(ctx, func(reporter Reporter) error {
		return reporter.ReportExceptionWithContext(message, context)
	})
}

func MessageWithContext(ctx context.Context, message string, context Context) {
	report(ctx, func(reporter Reporter) error {
		return reporter.ReportMessageWithContext(message, context)
	})
}

func report(ctx context.Context, fn func(Reporter) error) {
	reporter, ok := reporterFromContext(ctx)
	if !ok {
		return
	}

	if err := fn(reporter); err != nil {
		logrus.WithError(err).Error("Failed to report")
	}
}
