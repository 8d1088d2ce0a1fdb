package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricOpts holds common options for creating metrics
type MetricOpts struct {
	Name        string
	Description string
	Unit        string
}

// Counter wraps an Int64Counter
type Counter struct {
	counter metric.Int64Counter
}

// NewCounter creates a new counter metric
func NewCounter(opts MetricOpts) (*Counter, error) {
	counter, err := GetMeter().Int64Counter(
		opts.Name,
		metric.WithDescription(opts.Description),
		metric.WithUnit(opts.Unit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create counter %s: %w", opts.Name, err)
	}
	return &Counter{counter: counter}, nil
}

// Add increments the counter by the given value
func (c *Counter) Add(ctx context.Context, value int64, attrs ...attribute.KeyValue) {
	c.counter.Add(ctx, value, metric.WithAttributes(attrs...))
}

// Inc increments the counter by 1
func (c *Counter) Inc(ctx context.Context, attrs ...attribute.KeyValue) {
	c.Add(ctx, 1, attrs...)
}

// Gauge wraps an Int64Gauge
type Gauge struct {
	gauge metric.Int64Gauge
}

// NewGauge creates a new gauge metric
func NewGauge(opts MetricOpts) (*Gauge, error) {
	gauge, err := GetMeter().Int64Gauge(
		opts.Name,
		metric.WithDescription(opts.Description),
		metric.WithUnit(opts.Unit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gauge %s: %w", opts.Name, err)
	}
	return &Gauge{gauge: gauge}, nil
}

// Record sets the gauge to the given value
func (g *Gauge) Record(ctx context.Context, value int64, attrs ...attribute.KeyValue) {
	g.gauge.Record(ctx, value, metric.WithAttributes(attrs...))
}

// NewGaugeWithCallback creates an observable gauge with a callback function
func NewGaugeWithCallback(opts MetricOpts, callback func(ctx context.Context) int64, attrs ...attribute.KeyValue) error {
	gauge, err := GetMeter().Int64ObservableGauge(
		opts.Name,
		metric.WithDescription(opts.Description),
		metric.WithUnit(opts.Unit),
	)
	if err != nil {
		return fmt.Errorf("failed to create observable gauge %s: %w", opts.Name, err)
	}

	_, err = GetMeter().RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			o.ObserveInt64(gauge, callback(ctx), metric.WithAttributes(attrs...))
			return nil
		},
		gauge,
	)
	if err != nil {
		return fmt.Errorf("failed to register callback for %s: %w", opts.Name, err)
	}
	return nil
}

// Histogram wraps a Float64Histogram
type Histogram struct {
	histogram metric.Float64Histogram
}

// NewHistogram creates a new histogram metric
func NewHistogram(opts MetricOpts) (*Histogram, error) {
	histogram, err := GetMeter().Float64Histogram(
		opts.Name,
		metric.WithDescription(opts.Description),
		metric.WithUnit(opts.Unit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create histogram %s: %w", opts.Name, err)
	}
	return &Histogram{histogram: histogram}, nil
}

// NewHistogramWithBuckets creates a histogram with explicit bucket boundaries
func NewHistogramWithBuckets(opts MetricOpts, buckets []float64) (*Histogram, error) {
	histogram, err := GetMeter().Float64Histogram(
		opts.Name,
		metric.WithDescription(opts.Description),
		metric.WithUnit(opts.Unit),
		metric.WithExplicitBucketBoundaries(buckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create histogram %s: %w", opts.Name, err)
	}
	return &Histogram{histogram: histogram}, nil
}

// Record records a value in the histogram
func (h *Histogram) Record(ctx context.Context, value float64, attrs ...attribute.KeyValue) {
	h.histogram.Record(ctx, value, metric.WithAttributes(attrs...))
}

// UpDownCounter wraps an Int64UpDownCounter
type UpDownCounter struct {
	counter metric.Int64UpDownCounter
}

// NewUpDownCounter creates a new up/down counter metric
func NewUpDownCounter(opts MetricOpts) (*UpDownCounter, error) {
	counter, err := GetMeter().Int64UpDownCounter(
		opts.Name,
		metric.WithDescription(opts.Description),
		metric.WithUnit(opts.Unit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create updown counter %s: %w", opts.Name, err)
	}
	return &UpDownCounter{counter: counter}, nil
}

// Add adds the given value to the counter (can be negative)
func (u *UpDownCounter) Add(ctx context.Context, value int64, attrs ...attribute.KeyValue) {
	u.counter.Add(ctx, value, metric.WithAttributes(attrs...))
}

// Inc increments the counter by 1
func (u *UpDownCounter) Inc(ctx context.Context, attrs ...attribute.KeyValue) {
	u.Add(ctx, 1, attrs...)
}

// Dec decrements the counter by 1
func (u *UpDownCounter) Dec(ctx context.Context, attrs ...attribute.KeyValue) {
	u.Add(ctx, -1, attrs...)
}

// Common attribute keys used across services
const (
	AttrServiceName  = "service.name"
	AttrEnvironment  = "environment"
	AttrMethod       = "http.method"
	AttrPath         = "http.path"
	AttrStatusCode   = "http.status_code"
	AttrErrorType    = "error.type"
	AttrTenantID     = "tenant.id"
	AttrClientID     = "client.id"
	AttrCRMType      = "crm.type"
	AttrWebhookTopic = "webhook.topic"
	AttrStageID      = "stage.id"
	AttrSyncStatus   = "sync.status"
)

// ServiceAttr returns a service name attribute
func ServiceAttr(name string) attribute.KeyValue {
	return attribute.String(AttrServiceName, name)
}

// EnvironmentAttr returns an environment attribute
func EnvironmentAttr(env string) attribute.KeyValue {
	return attribute.String(AttrEnvironment, env)
}

// MethodAttr returns an HTTP method attribute
func MethodAttr(method string) attribute.KeyValue {
	return attribute.String(AttrMethod, method)
}

// PathAttr returns an HTTP path attribute
func PathAttr(path string) attribute.KeyValue {
	return attribute.String(AttrPath, path)
}

// StatusCodeAttr returns an HTTP status code attribute
func StatusCodeAttr(code int) attribute.KeyValue {
	return attribute.Int(AttrStatusCode, code)
}

// ErrorTypeAttr returns an error type attribute
func ErrorTypeAttr(errType string) attribute.KeyValue {
	return attribute.String(AttrErrorType, errType)
}

// TenantIDAttr returns a tenant ID attribute
func TenantIDAttr(tenantID string) attribute.KeyValue {
	return attribute.String(AttrTenantID, tenantID)
}

// ClientIDAttr returns a client ID attribute
func ClientIDAttr(clientID string) attribute.KeyValue {
	return attribute.String(AttrClientID, clientID)
}

// CRMTypeAttr returns a CRM platform attribute
func CRMTypeAttr(crmType string) attribute.KeyValue {
	return attribute.String(AttrCRMType, crmType)
}

// WebhookTopicAttr returns a webhook topic attribute
func WebhookTopicAttr(topic string) attribute.KeyValue {
	return attribute.String(AttrWebhookTopic, topic)
}

// StageIDAttr returns a stage ID attribute
func StageIDAttr(stageID string) attribute.KeyValue {
	return attribute.String(AttrStageID, stageID)
}

// SyncStatusAttr returns a sync workflow status attribute
func SyncStatusAttr(status string) attribute.KeyValue {
	return attribute.String(AttrSyncStatus, status)
}
