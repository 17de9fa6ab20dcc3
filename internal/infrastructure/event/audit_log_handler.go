package event

import (
	"context"

	"github.com/assetaudit/backend/internal/domain/audit"
	"github.com/assetaudit/backend/internal/domain/shared"
	"github.com/assetaudit/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// AuditActivityLogger writes one structured entry per audit lifecycle event
type AuditActivityLogger struct {
	logger *zap.Logger
}

// NewAuditActivityLogger creates the handler
func NewAuditActivityLogger(l *zap.Logger) *AuditActivityLogger {
	return &AuditActivityLogger{logger: l.Named("audit")}
}

// EventTypes implements shared.EventHandler
func (h *AuditActivityLogger) EventTypes() []string {
	return []string{
		audit.EventTypeAuditSessionStarted,
		audit.EventTypeAuditScanRecorded,
		audit.EventTypeAuditSessionCompleted,
		audit.EventTypeAuditSessionCancelled,
	}
}

// Handle implements shared.EventHandler
func (h *AuditActivityLogger) Handle(ctx context.Context, ev shared.DomainEvent) error {
	l := logger.Enrich(ctx, h.logger).With(
		zap.String("audit_session_id", ev.AggregateID().String()),
		zap.String("tenant_id", ev.TenantID().String()),
	)
	switch e := ev.(type) {
	case *audit.AuditSessionStartedEvent:
		l.Info("Audit started",
			zap.String("name", e.Name),
			zap.String("context_type", e.ContextType.String()),
			zap.String("context_name", e.ContextName),
			zap.Int("expected", e.ExpectedAssetCount),
		)
	case *audit.AuditScanRecordedEvent:
		l.Debug("Scan recorded",
			zap.String("asset_id", e.AssetID.String()),
			zap.String("qr_id", e.QRID),
			zap.Bool("expected", e.IsExpected),
			zap.Int("found", e.Counts.Found),
			zap.Int("unexpected", e.Counts.Unexpected),
		)
	case *audit.AuditSessionCompletedEvent:
		l.Info("Audit completed",
			zap.Int("expected", e.Counts.Expected),
			zap.Int("found", e.Counts.Found),
			zap.Int("missing", e.Counts.Missing),
			zap.Int("unexpected", e.Counts.Unexpected),
			zap.Int("attachments", e.AttachmentCount),
		)
	case *audit.AuditSessionCancelledEvent:
		l.Info("Audit cancelled", zap.String("reason", e.Reason))
	default:
		l.Debug("Unhandled audit event", zap.String("event_type", ev.EventType()))
	}
	return nil
}

var _ shared.EventHandler = (*AuditActivityLogger)(nil)
