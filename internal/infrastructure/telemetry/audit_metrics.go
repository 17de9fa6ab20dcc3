package telemetry

import (
	"context"
	"fmt"

	"github.com/assetaudit/backend/internal/domain/audit"
	"github.com/assetaudit/backend/internal/domain/shared"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AuditMetrics turns audit lifecycle events into OTel instruments.
// It is registered on the event bus like any other handler.
type AuditMetrics struct {
	started      metric.Int64Counter
	completed    metric.Int64Counter
	cancelled    metric.Int64Counter
	scans        metric.Int64Counter
	foundRatio   metric.Float64Histogram
	missingCount metric.Int64Histogram
}

var _ shared.EventHandler = (*AuditMetrics)(nil)

// NewAuditMetrics creates the audit instruments on meter
func NewAuditMetrics(meter metric.Meter) (*AuditMetrics, error) {
	m := &AuditMetrics{}
	var err error
	if m.started, err = meter.Int64Counter("audit.sessions.started",
		metric.WithDescription("Audits started"), metric.WithUnit("{session}")); err != nil {
		return nil, fmt.Errorf("audit.sessions.started: %w", err)
	}
	if m.completed, err = meter.Int64Counter("audit.sessions.completed",
		metric.WithDescription("Audits completed"), metric.WithUnit("{session}")); err != nil {
		return nil, fmt.Errorf("audit.sessions.completed: %w", err)
	}
	if m.cancelled, err = meter.Int64Counter("audit.sessions.cancelled",
		metric.WithDescription("Audits cancelled"), metric.WithUnit("{session}")); err != nil {
		return nil, fmt.Errorf("audit.sessions.cancelled: %w", err)
	}
	if m.scans, err = meter.Int64Counter("audit.scans.recorded",
		metric.WithDescription("Durable scan rows committed"), metric.WithUnit("{scan}")); err != nil {
		return nil, fmt.Errorf("audit.scans.recorded: %w", err)
	}
	if m.foundRatio, err = meter.Float64Histogram("audit.completion.found_ratio",
		metric.WithDescription("Share of expected assets found at completion"),
		metric.WithExplicitBucketBoundaries(0.25, 0.5, 0.75, 0.9, 0.95, 0.99, 1)); err != nil {
		return nil, fmt.Errorf("audit.completion.found_ratio: %w", err)
	}
	if m.missingCount, err = meter.Int64Histogram("audit.completion.missing",
		metric.WithDescription("Missing assets at completion"), metric.WithUnit("{asset}")); err != nil {
		return nil, fmt.Errorf("audit.completion.missing: %w", err)
	}
	return m, nil
}

// EventTypes implements shared.EventHandler
func (m *AuditMetrics) EventTypes() []string {
	return []string{
		audit.EventTypeAuditSessionStarted,
		audit.EventTypeAuditScanRecorded,
		audit.EventTypeAuditSessionCompleted,
		audit.EventTypeAuditSessionCancelled,
	}
}

// Handle implements shared.EventHandler
func (m *AuditMetrics) Handle(ctx context.Context, event shared.DomainEvent) error {
	switch e := event.(type) {
	case *audit.AuditSessionStartedEvent:
		m.started.Add(ctx, 1, metric.WithAttributes(attribute.String("context_type", e.ContextType.String())))
	case *audit.AuditScanRecordedEvent:
		m.scans.Add(ctx, 1, metric.WithAttributes(attribute.Bool("expected", e.IsExpected)))
	case *audit.AuditSessionCompletedEvent:
		m.completed.Add(ctx, 1)
		if e.Counts.Expected > 0 {
			m.foundRatio.Record(ctx, float64(e.Counts.Found)/float64(e.Counts.Expected))
		}
		m.missingCount.Record(ctx, int64(e.Counts.Missing))
	case *audit.AuditSessionCancelledEvent:
		m.cancelled.Add(ctx, 1)
	}
	return nil
}
