package auditsession

import (
	"context"

	appaudit "github.com/assetaudit/backend/internal/application/audit"
	"github.com/google/uuid"
)

// ServiceBackend runs the engine in-process against the audit service,
// acting for one tenant and operator.
type ServiceBackend struct {
	service  *appaudit.Service
	tenantID uuid.UUID
	userID   *uuid.UUID
}

// NewServiceBackend creates a backend bound to tenantID; userID may be nil
func NewServiceBackend(service *appaudit.Service, tenantID uuid.UUID, userID *uuid.UUID) *ServiceBackend {
	return &ServiceBackend{service: service, tenantID: tenantID, userID: userID}
}

func (b *ServiceBackend) ResolveCode(ctx context.Context, code string) (*appaudit.CodeResolution, error) {
	return b.service.ResolveCode(ctx, b.tenantID, code)
}

func (b *ServiceBackend) RecordScan(ctx context.Context, sessionID uuid.UUID, req appaudit.RecordScanRequest) (*appaudit.RecordScanResponse, error) {
	return b.service.RecordScan(ctx, b.tenantID, sessionID, req, b.userID)
}

func (b *ServiceBackend) CompleteAudit(ctx context.Context, sessionID uuid.UUID, in appaudit.CompleteAuditInput) (*appaudit.AuditResponse, error) {
	return b.service.CompleteAudit(ctx, b.tenantID, sessionID, in, b.userID)
}

func (b *ServiceBackend) GetAudit(ctx context.Context, sessionID uuid.UUID) (*appaudit.AuditResponse, error) {
	return b.service.GetAudit(ctx, b.tenantID, sessionID)
}

func (b *ServiceBackend) ListExpectedAssets(ctx context.Context, sessionID uuid.UUID) ([]appaudit.ExpectedAssetResponse, error) {
	return b.service.ListExpectedAssets(ctx, b.tenantID, sessionID)
}

func (b *ServiceBackend) ListScans(ctx context.Context, sessionID uuid.UUID) ([]appaudit.ScanResponse, error) {
	return b.service.ListScans(ctx, b.tenantID, sessionID)
}

var _ Backend = (*ServiceBackend)(nil)
