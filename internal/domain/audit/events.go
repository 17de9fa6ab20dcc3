package audit

import (
	"github.com/assetaudit/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Aggregate type constant for AuditSession
const AggregateTypeAuditSession = "AuditSession"

// AuditSession event type constants
const (
	EventTypeAuditSessionStarted   = "AuditSessionStarted"
	EventTypeAuditScanRecorded     = "AuditScanRecorded"
	EventTypeAuditSessionCompleted = "AuditSessionCompleted"
	EventTypeAuditSessionCancelled = "AuditSessionCancelled"
)

// AuditSessionStartedEvent is raised when an audit is created over its expected set
type AuditSessionStartedEvent struct {
	shared.BaseDomainEvent
	AuditSessionID     uuid.UUID   `json:"audit_session_id"`
	Name               string      `json:"name"`
	ContextType        ContextType `json:"context_type"`
	ContextName        string      `json:"context_name"`
	ExpectedAssetCount int         `json:"expected_asset_count"`
}

// NewAuditSessionStartedEvent creates a new AuditSessionStartedEvent
func NewAuditSessionStartedEvent(s *AuditSession) *AuditSessionStartedEvent {
	return &AuditSessionStartedEvent{
		BaseDomainEvent:    shared.NewBaseDomainEvent(EventTypeAuditSessionStarted, AggregateTypeAuditSession, s.ID, s.TenantID),
		AuditSessionID:     s.ID,
		Name:               s.Name,
		ContextType:        s.ContextType,
		ContextName:        s.ContextName,
		ExpectedAssetCount: s.ExpectedAssetCount,
	}
}

// AuditScanRecordedEvent is raised when a new durable scan row is committed.
// Duplicate submissions do not raise it.
type AuditScanRecordedEvent struct {
	shared.BaseDomainEvent
	AuditSessionID uuid.UUID `json:"audit_session_id"`
	ScanID         uuid.UUID `json:"scan_id"`
	AssetID        uuid.UUID `json:"asset_id"`
	QRID           string    `json:"qr_id"`
	IsExpected     bool      `json:"is_expected"`
	Counts         Counts    `json:"counts"`
}

// NewAuditScanRecordedEvent creates a new AuditScanRecordedEvent
func NewAuditScanRecordedEvent(scan *AuditScan, counts Counts) *AuditScanRecordedEvent {
	return &AuditScanRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeAuditScanRecorded, AggregateTypeAuditSession, scan.AuditSessionID, scan.TenantID),
		AuditSessionID:  scan.AuditSessionID,
		ScanID:          scan.ID,
		AssetID:         scan.AssetID,
		QRID:            scan.QRID,
		IsExpected:      scan.IsExpected,
		Counts:          counts,
	}
}

// AuditSessionCompletedEvent is raised when an audit reaches its terminal state
type AuditSessionCompletedEvent struct {
	shared.BaseDomainEvent
	AuditSessionID  uuid.UUID `json:"audit_session_id"`
	Counts          Counts    `json:"counts"`
	HasNote         bool      `json:"has_note"`
	AttachmentCount int       `json:"attachment_count"`
}

// NewAuditSessionCompletedEvent creates a new AuditSessionCompletedEvent
func NewAuditSessionCompletedEvent(s *AuditSession) *AuditSessionCompletedEvent {
	return &AuditSessionCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeAuditSessionCompleted, AggregateTypeAuditSession, s.ID, s.TenantID),
		AuditSessionID:  s.ID,
		Counts:          s.Counts(),
		HasNote:         s.CompletionNote != "",
		AttachmentCount: len(s.Attachments),
	}
}

// AuditSessionCancelledEvent is raised when an audit is abandoned
type AuditSessionCancelledEvent struct {
	shared.BaseDomainEvent
	AuditSessionID uuid.UUID `json:"audit_session_id"`
	Reason         string    `json:"reason"`
}

// NewAuditSessionCancelledEvent creates a new AuditSessionCancelledEvent
func NewAuditSessionCancelledEvent(s *AuditSession) *AuditSessionCancelledEvent {
	return &AuditSessionCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeAuditSessionCancelled, AggregateTypeAuditSession, s.ID, s.TenantID),
		AuditSessionID:  s.ID,
		Reason:          s.CancelReason,
	}
}
