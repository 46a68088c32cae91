package observability

import "context"

func AddActionMetric(ctx context.Context, metric ...map[string]interface{}) {
	addDistinct(ctx, ActionError, metric...)
}

func AddSyncMetric(ctx context.Context, metric ...map[string]interface{}) {
	addDistinct(ctx, SyncError, metric...)
}

func AddOtherMetric(ctx context.Context, metric ...map[string]interface{}) {
	addDistinct(ctx, OtherError, metric...)
}

func addDistinct(ctx context.Context, errType ErrorType, metric ...map[string]interface{}) {
	sender, ok := senderFromContext(ctx)
	if !ok {
		return
	}

	sender.AddDistinctMetrics(errType, metric...)
}
