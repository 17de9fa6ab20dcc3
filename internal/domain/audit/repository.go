package audit

import (
	"context"

	"github.com/assetaudit/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// AuditSessionRepository persists audit sessions with their expected assets and attachments
type AuditSessionRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*AuditSession, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]AuditSession, error)
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error)
	// Save creates or updates the session; expected assets are written only on create
	Save(ctx context.Context, session *AuditSession) error
}

// AuditScanRepository stores durable scans
type AuditScanRepository interface {
	// Record inserts the scan unless a row for the same (session, asset) exists,
	// then recomputes the session counters in the same transaction.
	// Fails with INVALID_STATE when the session is no longer active.
	Record(ctx context.Context, scan *AuditScan) (*RecordResult, error)
	FindBySessionAndAsset(ctx context.Context, tenantID, sessionID, assetID uuid.UUID) (*AuditScan, error)
	// FindBySession returns scans in scan order joined with asset summaries
	FindBySession(ctx context.Context, tenantID, sessionID uuid.UUID) ([]ScanWithAsset, error)
}
