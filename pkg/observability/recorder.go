package observability

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	globalMetrics Metrics
	metricsMu     sync.RWMutex
)

type Metrics interface {
	RecordQuery(ctx context.Context, pipeline string, duration time.Duration, err error)
	RecordRetrieval(ctx context.Context, duration time.Duration, err error)
	RecordToolExecution(ctx context.Context, tool string, duration time.Duration, err error)
	RecordLLMCall(ctx context.Context, model string, duration time.Duration, inputTokens, outputTokens int, err error)
}

type PrometheusMetrics struct {
	queryDuration    metric.Float64Histogram
	queryTotal       metric.Int64Counter
	queryErrorsTotal metric.Int64Counter

	retrievalDuration    metric.Float64Histogram
	retrievalErrorsTotal metric.Int64Counter

	toolDuration    metric.Float64Histogram
	toolCallsTotal  metric.Int64Counter
	toolErrorsTotal metric.Int64Counter

	llmDuration     metric.Float64Histogram
	llmInputTokens  metric.Int64Counter
	llmOutputTokens metric.Int64Counter
	llmErrorsTotal  metric.Int64Counter
}

func NewPrometheusMetrics(
	queryDuration metric.Float64Histogram,
	queryTotal metric.Int64Counter,
	queryErrorsTotal metric.Int64Counter,
	retrievalDuration metric.Float64Histogram,
	retrievalErrorsTotal metric.Int64Counter,
	toolDuration metric.Float64Histogram,
	toolCallsTotal metric.Int64Counter,
	toolErrorsTotal metric.Int64Counter,
	llmDuration metric.Float64Histogram,
	llmInputTokens metric.Int64Counter,
	llmOutputTokens metric.Int64Counter,
	llmErrorsTotal metric.Int64Counter,
) *PrometheusMetrics {
	return &PrometheusMetrics{
		queryDuration:        queryDuration,
		queryTotal:           queryTotal,
		queryErrorsTotal:     queryErrorsTotal,
		retrievalDuration:    retrievalDuration,
		retrievalErrorsTotal: retrievalErrorsTotal,
		toolDuration:         toolDuration,
		toolCallsTotal:       toolCallsTotal,
		toolErrorsTotal:      toolErrorsTotal,
		llmDuration:          llmDuration,
		llmInputTokens:       llmInputTokens,
		llmOutputTokens:      llmOutputTokens,
		llmErrorsTotal:       llmErrorsTotal,
	}
}

func (m *PrometheusMetrics) RecordQuery(ctx context.Context, pipeline string, duration time.Duration, err error) {
	if m == nil || m.queryDuration == nil || m.queryTotal == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("pipeline", pipeline),
	}

	m.queryDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.queryTotal.Add(ctx, 1, metric.WithAttributes(attrs...))

	if err != nil && m.queryErrorsTotal != nil {
		m.queryErrorsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func (m *PrometheusMetrics) RecordRetrieval(ctx context.Context, duration time.Duration, err error) {
	if m == nil || m.retrievalDuration == nil {
		return
	}

	m.retrievalDuration.Record(ctx, duration.Seconds())

	if err != nil && m.retrievalErrorsTotal != nil {
		m.retrievalErrorsTotal.Add(ctx, 1)
	}
}

func (m *PrometheusMetrics) RecordToolExecution(ctx context.Context, tool string, duration time.Duration, err error) {
	if m == nil || m.toolDuration == nil || m.toolCallsTotal == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("tool", tool),
	}

	m.toolDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.toolCallsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))

	if err != nil && m.toolErrorsTotal != nil {
		m.toolErrorsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func (m *PrometheusMetrics) RecordLLMCall(ctx context.Context, model string, duration time.Duration, inputTokens, outputTokens int, err error) {
	if m == nil || m.llmDuration == nil || m.llmInputTokens == nil || m.llmOutputTokens == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("model", model),
	}

	m.llmDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.llmInputTokens.Add(ctx, int64(inputTokens), metric.WithAttributes(attrs...))
	m.llmOutputTokens.Add(ctx, int64(outputTokens), metric.WithAttributes(attrs...))

	if err != nil && m.llmErrorsTotal != nil {
		m.llmErrorsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func SetGlobalMetrics(m Metrics) {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	globalMetrics = m
}

func GetGlobalMetrics() Metrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return globalMetrics
}
