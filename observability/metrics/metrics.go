package metrics

import "time"

const schemaName = "courier_action_failures_total"
const schemaVersion = 1

func generateFailureMetric(errorType string, labels map[string]string) map[string]interface{} {
	values := map[string]string{"errorType": errorType}

	for k, v := range labels {
		values[k] = v
	}

	return map[string]interface{}{
		"Name":      schemaName,
		"Version":   schemaVersion,
		"Timestamp": time.Now().Unix(),
		"Data": map[string]interface{}{
			"Value":  1,
			"Labels": values,
		},
	}
}

// GenerateActionFailedMetric counts an action rolled back because the provider rejected it.
func GenerateActionFailedMetric(actionType, kind string) map[string]interface{} {
	return generateFailureMetric("actionFailed", map[string]string{"actionType": actionType, "kind": kind})
}

func GenerateActionInterruptedMetric(actionType string) map[string]interface{} {
	return generateFailureMetric("actionInterrupted", map[string]string{"actionType": actionType})
}

func GenerateReconcileFailedMetric() map[string]interface{} {
	return generateFailureMetric("reconcileFailed", nil)
}

func GenerateCountRefreshFailedMetric() map[string]interface{} {
	return generateFailureMetric("countRefreshFailed", nil)
}

func GenerateAllMetrics() []map[string]interface{} {
	var metrics []map[string]interface{}
	metrics = append(metrics,
		GenerateReconcileFailedMetric(),
		GenerateCountRefreshFailedMetric(),
	)

	for _, actionType := range []string{"MOVE", "STAR", "READ", "LABEL", "IMPORTANT"} {
		metrics = append(metrics,
			GenerateActionFailedMetric(actionType, "transient"),
			GenerateActionFailedMetric(actionType, "permanent"),
			GenerateActionFailedMetric(actionType, "unauthorized"),
			GenerateActionInterruptedMetric(actionType),
		)
	}

	return metrics
}
