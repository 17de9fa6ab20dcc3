package audit

import (
	"strings"
	"time"

	"github.com/assetaudit/backend/internal/domain/asset"
	"github.com/assetaudit/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// AuditScan is the durable record of one asset seen during an audit.
// There is at most one row per (AuditSessionID, AssetID).
type AuditScan struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	AuditSessionID uuid.UUID
	QRID           string
	AssetID        uuid.UUID
	IsExpected     bool
	ScannedBy      *uuid.UUID
	ScannedAt      time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewAuditScan creates a scan record for a resolved asset
func NewAuditScan(tenantID, sessionID uuid.UUID, qrID string, assetID uuid.UUID, isExpected bool) (*AuditScan, error) {
	qrID = strings.TrimSpace(qrID)
	if qrID == "" {
		return nil, shared.NewDomainError("INVALID_CODE", "Scanned code cannot be empty")
	}
	if assetID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ASSET", "Asset id is required")
	}
	if sessionID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_AUDIT", "Audit session id is required")
	}
	now := time.Now()
	return &AuditScan{
		ID:             uuid.New(),
		TenantID:       tenantID,
		AuditSessionID: sessionID,
		QRID:           qrID,
		AssetID:        assetID,
		IsExpected:     isExpected,
		ScannedAt:      now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// ScanWithAsset is a durable scan joined with the asset summary, used to resume a session
type ScanWithAsset struct {
	AuditScan
	Asset asset.Summary
}

// RecordResult is what the durable store reports for an idempotent scan write
type RecordResult struct {
	Scan    *AuditScan
	Created bool // false when a row for the same asset already existed
	Counts  Counts
}
