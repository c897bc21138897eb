package dispatch

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Dedicated counters per outcome so "third party sends garbage" and "we
// misconfigured a service" are distinguishable without grepping logs.
type dispatchMetrics struct {
	requests  metric.Int64Counter
	delivered metric.Int64Counter
	ignored   metric.Int64Counter
	failed    metric.Int64Counter
}

func newDispatchMetrics() dispatchMetrics {
	meter := otel.Meter("github.com/notifico/notifico/internal/dispatch")
	requests, _ := meter.Int64Counter("notifico.dispatch.requests")
	delivered, _ := meter.Int64Counter("notifico.dispatch.delivered")
	ignored, _ := meter.Int64Counter("notifico.dispatch.ignored")
	failed, _ := meter.Int64Counter("notifico.dispatch.failed")
	return dispatchMetrics{
		requests:  requests,
		delivered: delivered,
		ignored:   ignored,
		failed:    failed,
	}
}

func (m dispatchMetrics) recordRequest(ctx context.Context) {
	m.requests.Add(ctx, 1)
}

func (m dispatchMetrics) recordDelivered(ctx context.Context, service string) {
	m.delivered.Add(ctx, 1, metric.WithAttributes(attribute.String("service", service)))
}

func (m dispatchMetrics) recordIgnored(ctx context.Context, reason string) {
	m.ignored.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m dispatchMetrics) recordFailed(ctx context.Context, reason string) {
	m.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
