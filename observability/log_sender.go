package observability

import (
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// LogSender writes metrics to the process log. Distinct metrics are logged once per error type and name.
type LogSender struct {
	log logrus.FieldLogger

	seen     map[ErrorType]map[string]struct{}
	seenLock sync.Mutex
}

func NewLogSender(log logrus.FieldLogger) *LogSender {
	return &LogSender{
		log:  log.WithField("pkg", "observability"),
		seen: make(map[ErrorType]map[string]struct{}),
	}
}

func (s *LogSender) AddMetrics(metrics ...map[string]interface{}) {
	for _, metric := range metrics {
		s.log.WithFields(logrus.Fields(metric)).Info("Metric")
	}
}

func (s *LogSender) AddDistinctMetrics(errType ErrorType, metrics ...map[string]interface{}) {
	s.seenLock.Lock()
	defer s.seenLock.Unlock()

	if s.seen[errType] == nil {
		s.seen[errType] = make(map[string]struct{})
	}

	for _, metric := range metrics {
		key := distinctKey(metric)

		if _, ok := s.seen[errType][key]; ok {
			continue
		}

		s.seen[errType][key] = struct{}{}

		s.log.WithFields(logrus.Fields(metric)).WithField("errorGroup", errType.String()).Info("Metric")
	}
}

// distinctKey identifies a metric by its name and labels, ignoring when it was generated.
func distinctKey(metric map[string]interface{}) string {
	var labels map[string]string

	if data, ok := metric["Data"].(map[string]interface{}); ok {
		labels, _ = data["Labels"].(map[string]string)
	}

	keys := maps.Keys(labels)
	slices.Sort(keys)

	var b strings.Builder

	fmt.Fprint(&b, metric["Name"])

	for _, k := range keys {
		fmt.Fprintf(&b, ",%v=%v", k, labels[k])
	}

	return b.String()
}
