package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// ChatMetrics records the advice pipeline counters
type ChatMetrics struct {
	exchanges   metric.Int64Counter
	escalations metric.Int64Counter
	responses   metric.Int64Counter
	generation  metric.Float64Histogram
}

// NewChatMetrics registers the pipeline instruments on meter
func NewChatMetrics(meter metric.Meter) (*ChatMetrics, error) {
	exchanges, err := meter.Int64Counter("chat_exchanges_total",
		metric.WithDescription("Persisted chat exchanges by risk tier"))
	if err != nil {
		return nil, err
	}
	escalations, err := meter.Int64Counter("chat_escalations_total",
		metric.WithDescription("Session escalations by trigger"))
	if err != nil {
		return nil, err
	}
	responses, err := meter.Int64Counter("chat_responses_total",
		metric.WithDescription("Bot responses by source"))
	if err != nil {
		return nil, err
	}
	generation, err := meter.Float64Histogram("generation_latency_seconds",
		metric.WithDescription("Latency of generation backend calls"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	return &ChatMetrics{
		exchanges:   exchanges,
		escalations: escalations,
		responses:   responses,
		generation:  generation,
	}, nil
}

// NopChatMetrics records nothing
func NopChatMetrics() *ChatMetrics {
	m, _ := NewChatMetrics(noop.NewMeterProvider().Meter("nop"))
	return m
}

func (m *ChatMetrics) RecordExchange(ctx context.Context, risk string) {
	m.exchanges.Add(ctx, 1, metric.WithAttributes(attribute.String("risk_level", risk)))
}

func (m *ChatMetrics) RecordEscalation(ctx context.Context, trigger string) {
	m.escalations.Add(ctx, 1, metric.WithAttributes(attribute.String("trigger", trigger)))
}

func (m *ChatMetrics) RecordResponse(ctx context.Context, source string) {
	m.responses.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

func (m *ChatMetrics) ObserveGeneration(ctx context.Context, backend string, d time.Duration, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	m.generation.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("backend", backend),
		attribute.String("outcome", outcome),
	))
}
