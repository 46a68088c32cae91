package observability_test

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/inboxkit/courier/observability"
	"github.com/inboxkit/courier/observability/metrics"
)

type recordingSender struct {
	distinct map[observability.ErrorType][]map[string]interface{}
}

func (s *recordingSender) AddMetrics(...map[string]interface{}) {}

func (s *recordingSender) AddDistinctMetrics(errType observability.ErrorType, metrics ...map[string]interface{}) {
	if s.distinct == nil {
		s.distinct = make(map[observability.ErrorType][]map[string]interface{})
	}

	s.distinct[errType] = append(s.distinct[errType], metrics...)
}

func TestAddMetric(t *testing.T) {
	sender := &recordingSender{}
	ctx := observability.NewContextWithObservabilitySender(context.Background(), sender)

	observability.AddActionMetric(ctx, metrics.GenerateActionFailedMetric("MOVE", "permanent"))
	observability.AddSyncMetric(ctx, metrics.GenerateReconcileFailedMetric(), metrics.GenerateCountRefreshFailedMetric())
	observability.AddOtherMetric(context.Background(), metrics.GenerateReconcileFailedMetric())

	require.Len(t, sender.distinct[observability.ActionError], 1)
	require.Len(t, sender.distinct[observability.SyncError], 2)
	require.Empty(t, sender.distinct[observability.OtherError])
}

func TestLogSender(t *testing.T) {
	log, hook := test.NewNullLogger()

	sender := observability.NewLogSender(log)

	sender.AddDistinctMetrics(observability.ActionError, metrics.GenerateActionFailedMetric("MOVE", "permanent"))
	sender.AddDistinctMetrics(observability.ActionError, metrics.GenerateActionFailedMetric("MOVE", "permanent"))
	sender.AddDistinctMetrics(observability.ActionError, metrics.GenerateActionFailedMetric("STAR", "permanent"))
	sender.AddDistinctMetrics(observability.SyncError, metrics.GenerateActionFailedMetric("MOVE", "permanent"))

	require.Len(t, hook.AllEntries(), 3)
	require.Equal(t, "sync", hook.LastEntry().Data["errorGroup"])

	sender.AddMetrics(metrics.GenerateAllMetrics()...)
	require.Len(t, hook.AllEntries(), 3+len(metrics.GenerateAllMetrics()))
}
