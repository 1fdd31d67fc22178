package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitMetrics_NoopProvider(t *testing.T) {
	metrics, err := InitMetrics()
	require.NoError(t, err)

	ctx := context.Background()
	assert.NotPanics(t, func() {
		RecordRequestMetric(ctx, metrics, "GET", "/health", 200, time.Millisecond)
		RecordExtraction(ctx, metrics, "ocr")
		RecordInsight(ctx, metrics, "high", "ocr-v1-hf", time.Second)
		RecordCacheHit(ctx, metrics, "patient:1")
	})
}

func TestRecorders_TolerateNilMetrics(t *testing.T) {
	ctx := context.Background()
	assert.NotPanics(t, func() {
		RecordRequestMetric(ctx, nil, "GET", "/", 200, 0)
		RecordDBMetric(ctx, nil, "insert", 0)
		RecordCacheMiss(ctx, nil, "k")
		RecordExtraction(ctx, nil, "digital")
		RecordInsight(ctx, nil, "low", "x", 0)
	})
}

func TestLoggerFromContext_WithoutSpan(t *testing.T) {
	logger := LoggerFromContext(context.Background())
	require.NotNil(t, logger)
	assert.NotNil(t, PatientLogger(context.Background(), "p1"))
}
