package reporter

import "github.com/sirupsen/logrus"

// LogReporter reports to the process log. It is used when no reporting tool is configured.
type LogReporter struct {
	log logrus.FieldLogger
}

func NewLogReporter(log logrus.FieldLogger) *LogReporter {
	return &LogReporter{log: log.WithField("pkg", "reporter")}
}

func (r *LogReporter) ReportExceptionWithContext(info any, context Context) error {
	r.log.WithFields(logrus.Fields(context)).WithField("exception", info).Error("Exception reported")
	return nil
}

func (r *LogReporter) ReportMessageWithContext(message string, context Context) error {
	r.log.WithFields(logrus.Fields(context)).Warn(message)
	return nil
}
