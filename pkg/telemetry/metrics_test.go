package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func setupTelemetryForMetrics(t *testing.T) func() {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	cfg := &Config{
		Enabled:        true,
		ServiceName:    "libero-vino-test",
		ServiceVersion: "1.0.0",
		Environment:    "test",
		CollectorAddr:  "localhost:4317",
	}

	_, err := Init(ctx, cfg)
	require.NoError(t, err)
	cancel()

	return func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer shutdownCancel()
		_ = Shutdown(shutdownCtx)
	}
}

func setupTelemetryDisabled(t *testing.T) func() {
	ctx := context.Background()
	cfg := &Config{
		Enabled:     false,
		ServiceName: "libero-vino-test",
	}

	_, err := Init(ctx, cfg)
	require.NoError(t, err)

	return func() {
		_ = Shutdown(ctx)
	}
}

func TestNewCounter_Disabled(t *testing.T) {
	cleanup := setupTelemetryDisabled(t)
	defer cleanup()

	counter, err := NewCounter(MetricOpts{
		Name:        "webhooks_received_total",
		Description: "Total webhooks received",
		Unit:        "1",
	})
	require.NoError(t, err)
	assert.NotNil(t, counter)
}

func TestCounter_Add_Disabled(t *testing.T) {
	cleanup := setupTelemetryDisabled(t)
	defer cleanup()

	counter, err := NewCounter(MetricOpts{
		Name:        "enrollments_total",
		Description: "Total club enrollments created",
		Unit:        "1",
	})
	require.NoError(t, err)

	ctx := context.Background()

	// Should not panic
	counter.Add(ctx, 5)
	counter.Add(ctx, 10, attribute.String("crm.type", "commerce7"))
}

func TestCounter_Inc_Disabled(t *testing.T) {
	cleanup := setupTelemetryDisabled(t)
	defer cleanup()

	counter, err := NewCounter(MetricOpts{
		Name:        "sessions_created_total",
		Description: "Total sessions created",
		Unit:        "1",
	})
	require.NoError(t, err)

	ctx := context.Background()

	// Should not panic
	counter.Inc(ctx)
	counter.Inc(ctx, attribute.String("crm.type", "shopify"))
}

func TestNewGauge_Disabled(t *testing.T) {
	cleanup := setupTelemetryDisabled(t)
	defer cleanup()

	gauge, err := NewGauge(MetricOpts{
		Name:        "sync_workflows_pending",
		Description: "Pending sync workflows",
		Unit:        "1",
	})
	require.NoError(t, err)
	assert.NotNil(t, gauge)
}

func TestGauge_Record_Disabled(t *testing.T) {
	cleanup := setupTelemetryDisabled(t)
	defer cleanup()

	gauge, err := NewGauge(MetricOpts{
		Name:        "active_clients",
		Description: "Installed clients",
		Unit:        "1",
	})
	require.NoError(t, err)

	ctx := context.Background()

	// Should not panic
	gauge.Record(ctx, 42)
	gauge.Record(ctx, 100, attribute.String("environment", "test"))
}

func TestNewHistogram_Disabled(t *testing.T) {
	cleanup := setupTelemetryDisabled(t)
	defer cleanup()

	histogram, err := NewHistogram(MetricOpts{
		Name:        "webhook_dispatch_duration",
		Description: "Webhook dispatch latency",
		Unit:        "ms",
	})
	require.NoError(t, err)
	assert.NotNil(t, histogram)
}

func TestHistogram_Record_Disabled(t *testing.T) {
	cleanup := setupTelemetryDisabled(t)
	defer cleanup()

	histogram, err := NewHistogram(MetricOpts{
		Name:        "crm_request_duration",
		Description: "CRM platform call latency",
		Unit:        "ms",
	})
	require.NoError(t, err)

	ctx := context.Background()

	// Should not panic
	histogram.Record(ctx, 123.45)
	histogram.Record(ctx, 67.89, attribute.String("crm.type", "commerce7"))
}

func TestNewHistogramWithBuckets_Disabled(t *testing.T) {
	cleanup := setupTelemetryDisabled(t)
	defer cleanup()

	boundaries := []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	histogram, err := NewHistogramWithBuckets(MetricOpts{
		Name:        "qualification_duration",
		Description: "Tier qualification evaluation time",
		Unit:        "s",
	}, boundaries)
	require.NoError(t, err)
	assert.NotNil(t, histogram)

	ctx := context.Background()

	// Should not panic
	histogram.Record(ctx, 0.1)
	histogram.Record(ctx, 1.5, attribute.String("stage.id", "stage_1"))
}

func TestNewUpDownCounter_Disabled(t *testing.T) {
	cleanup := setupTelemetryDisabled(t)
	defer cleanup()

	counter, err := NewUpDownCounter(MetricOpts{
		Name:        "webhooks_in_flight",
		Description: "Webhooks currently being processed",
		Unit:        "1",
	})
	require.NoError(t, err)
	assert.NotNil(t, counter)
}

func TestUpDownCounter_Add_Disabled(t *testing.T) {
	cleanup := setupTelemetryDisabled(t)
	defer cleanup()

	counter, err := NewUpDownCounter(MetricOpts{
		Name:        "sync_in_flight",
		Description: "Sync workflows in flight",
		Unit:        "1",
	})
	require.NoError(t, err)

	ctx := context.Background()

	// Should not panic
	counter.Add(ctx, 5)
	counter.Add(ctx, -3)
	counter.Add(ctx, 10, attribute.String("crm.type", "commerce7"))
}

func TestUpDownCounter_IncDec_Disabled(t *testing.T) {
	cleanup := setupTelemetryDisabled(t)
	defer cleanup()

	counter, err := NewUpDownCounter(MetricOpts{
		Name:        "memberships_open",
		Description: "Open club memberships",
		Unit:        "1",
	})
	require.NoError(t, err)

	ctx := context.Background()

	// Should not panic
	counter.Inc(ctx)
	counter.Dec(ctx)
	counter.Inc(ctx, attribute.String("tenant.id", "silver-oak"))
	counter.Dec(ctx, attribute.String("tenant.id", "silver-oak"))
}

func TestAttributeHelpers(t *testing.T) {
	tests := []struct {
		name     string
		attrFunc func() attribute.KeyValue
		expected attribute.KeyValue
	}{
		{
			name: "ServiceAttr",
			attrFunc: func() attribute.KeyValue {
				return ServiceAttr("libero-vino")
			},
			expected: attribute.String(AttrServiceName, "libero-vino"),
		},
		{
			name: "EnvironmentAttr",
			attrFunc: func() attribute.KeyValue {
				return EnvironmentAttr("production")
			},
			expected: attribute.String(AttrEnvironment, "production"),
		},
		{
			name: "MethodAttr",
			attrFunc: func() attribute.KeyValue {
				return MethodAttr("POST")
			},
			expected: attribute.String(AttrMethod, "POST"),
		},
		{
			name: "PathAttr",
			attrFunc: func() attribute.KeyValue {
				return PathAttr("/webhooks/c7")
			},
			expected: attribute.String(AttrPath, "/webhooks/c7"),
		},
		{
			name: "StatusCodeAttr",
			attrFunc: func() attribute.KeyValue {
				return StatusCodeAttr(200)
			},
			expected: attribute.Int(AttrStatusCode, 200),
		},
		{
			name: "ErrorTypeAttr",
			attrFunc: func() attribute.KeyValue {
				return ErrorTypeAttr("unknown_tenant")
			},
			expected: attribute.String(AttrErrorType, "unknown_tenant"),
		},
		{
			name: "TenantIDAttr",
			attrFunc: func() attribute.KeyValue {
				return TenantIDAttr("silver-oak")
			},
			expected: attribute.String(AttrTenantID, "silver-oak"),
		},
		{
			name: "ClientIDAttr",
			attrFunc: func() attribute.KeyValue {
				return ClientIDAttr("client_456")
			},
			expected: attribute.String(AttrClientID, "client_456"),
		},
		{
			name: "CRMTypeAttr",
			attrFunc: func() attribute.KeyValue {
				return CRMTypeAttr("commerce7")
			},
			expected: attribute.String(AttrCRMType, "commerce7"),
		},
		{
			name: "WebhookTopicAttr",
			attrFunc: func() attribute.KeyValue {
				return WebhookTopicAttr("orders/create")
			},
			expected: attribute.String(AttrWebhookTopic, "orders/create"),
		},
		{
			name: "StageIDAttr",
			attrFunc: func() attribute.KeyValue {
				return StageIDAttr("stage_789")
			},
			expected: attribute.String(AttrStageID, "stage_789"),
		},
		{
			name: "SyncStatusAttr",
			attrFunc: func() attribute.KeyValue {
				return SyncStatusAttr("completed")
			},
			expected: attribute.String(AttrSyncStatus, "completed"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.attrFunc()
			assert.Equal(t, tt.expected.Key, got.Key)
			assert.Equal(t, tt.expected.Value, got.Value)
		})
	}
}

func TestMetricConstants(t *testing.T) {
	assert.Equal(t, "service.name", AttrServiceName)
	assert.Equal(t, "environment", AttrEnvironment)
	assert.Equal(t, "http.method", AttrMethod)
	assert.Equal(t, "http.path", AttrPath)
	assert.Equal(t, "http.status_code", AttrStatusCode)
	assert.Equal(t, "error.type", AttrErrorType)
	assert.Equal(t, "tenant.id", AttrTenantID)
	assert.Equal(t, "client.id", AttrClientID)
	assert.Equal(t, "crm.type", AttrCRMType)
	assert.Equal(t, "webhook.topic", AttrWebhookTopic)
	assert.Equal(t, "stage.id", AttrStageID)
	assert.Equal(t, "sync.status", AttrSyncStatus)
}
