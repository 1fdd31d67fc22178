package analysis

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	strategyMetricsOnce sync.Once
	strategyCounter     metric.Int64Counter
)

func ensureStrategyMetrics() {
	strategyMetricsOnce.Do(func() {
		meter := otel.Meter("github.com/careconnect/backend/analysis")
		counter, err := meter.Int64Counter(
			"insights.analysis.strategy.count",
			metric.WithDescription("Number of analyses served per strategy"),
		)
		if err != nil {
			return
		}
		strategyCounter = counter
	})
}

func recordStrategy(ctx context.Context, strategy string, fellBack bool) {
	ensureStrategyMetrics()
	if strategyCounter == nil {
		return
	}
	strategyCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("analysis.strategy", strategy),
		attribute.Bool("analysis.fallback", fellBack),
	))
}
