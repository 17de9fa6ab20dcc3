package models

import (
	"time"

	"github.com/assetaudit/backend/internal/domain/audit"
	"github.com/assetaudit/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AuditSessionModel is the persistence model for the AuditSession aggregate
type AuditSessionModel struct {
	TenantAggregateModel
	Name                 string                    `gorm:"type:varchar(200);not null"`
	TargetID             *uuid.UUID                `gorm:"type:uuid;index"`
	TargetType           string                    `gorm:"type:varchar(50)"`
	ContextType          string                    `gorm:"type:varchar(20);not null"`
	ContextName          string                    `gorm:"type:varchar(200)"`
	ContextRefID         *uuid.UUID                `gorm:"type:uuid"`
	IncludeDescendants   bool                      `gorm:"not null;default:false"`
	Status               string                    `gorm:"type:varchar(20);not null;default:'ACTIVE';index"`
	ExpectedAssetCount   int                       `gorm:"not null;default:0"`
	FoundAssetCount      int                       `gorm:"not null;default:0"`
	MissingAssetCount    int                       `gorm:"not null;default:0"`
	UnexpectedAssetCount int                       `gorm:"not null;default:0"`
	CompletionNote       string                    `gorm:"type:text"`
	CompletedAt          *time.Time                `gorm:"index"`
	CompletedBy          *uuid.UUID                `gorm:"type:uuid"`
	CancelledAt          *time.Time                `gorm:"default:null"`
	CancelReason         string                    `gorm:"type:varchar(500)"`
	ExpectedAssets       []AuditExpectedAssetModel `gorm:"foreignKey:AuditSessionID;references:ID"`
	Attachments          []AuditAttachmentModel    `gorm:"foreignKey:AuditSessionID;references:ID"`
}

// TableName returns the table name for GORM
func (AuditSessionModel) TableName() string {
	return "audit_sessions"
}

// ToDomain converts the persistence model to a domain AuditSession
func (m *AuditSessionModel) ToDomain() *audit.AuditSession {
	s := &audit.AuditSession{
		TenantAggregateRoot: shared.TenantAggregateRoot{
			BaseEntity: m.BaseModel.ToDomain(),
			TenantID:   m.TenantID,
			CreatedBy:  m.CreatedBy,
			Version:    m.Version,
		},
		Name:                 m.Name,
		TargetID:             m.TargetID,
		TargetType:           m.TargetType,
		ContextType:          audit.ContextType(m.ContextType),
		ContextName:          m.ContextName,
		ContextRefID:         m.ContextRefID,
		IncludeDescendants:   m.IncludeDescendants,
		Status:               audit.SessionStatus(m.Status),
		ExpectedAssetCount:   m.ExpectedAssetCount,
		FoundAssetCount:      m.FoundAssetCount,
		MissingAssetCount:    m.MissingAssetCount,
		UnexpectedAssetCount: m.UnexpectedAssetCount,
		CompletionNote:       m.CompletionNote,
		CompletedAt:          m.CompletedAt,
		CompletedBy:          m.CompletedBy,
		CancelledAt:          m.CancelledAt,
		CancelReason:         m.CancelReason,
		ExpectedAssets:       make([]audit.ExpectedAsset, len(m.ExpectedAssets)),
		Attachments:          make([]audit.Attachment, len(m.Attachments)),
	}
	for i := range m.ExpectedAssets {
		s.ExpectedAssets[i] = m.ExpectedAssets[i].ToDomain()
	}
	for i := range m.Attachments {
		s.Attachments[i] = m.Attachments[i].ToDomain()
	}
	return s
}

// AuditSessionModelFromDomain creates a persistence model from a domain AuditSession.
// Expected assets and attachments are mapped too; the repository decides which to write.
func AuditSessionModelFromDomain(s *audit.AuditSession) *AuditSessionModel {
	m := &AuditSessionModel{
		Name:                 s.Name,
		TargetID:             s.TargetID,
		TargetType:           s.TargetType,
		ContextType:          string(s.ContextType),
		ContextName:          s.ContextName,
		ContextRefID:         s.ContextRefID,
		IncludeDescendants:   s.IncludeDescendants,
		Status:               string(s.Status),
		ExpectedAssetCount:   s.ExpectedAssetCount,
		FoundAssetCount:      s.FoundAssetCount,
		MissingAssetCount:    s.MissingAssetCount,
		UnexpectedAssetCount: s.UnexpectedAssetCount,
		CompletionNote:       s.CompletionNote,
		CompletedAt:          s.CompletedAt,
		CompletedBy:          s.CompletedBy,
		CancelledAt:          s.CancelledAt,
		CancelReason:         s.CancelReason,
		ExpectedAssets:       make([]AuditExpectedAssetModel, len(s.ExpectedAssets)),
		Attachments:          make([]AuditAttachmentModel, len(s.Attachments)),
	}
	m.FromDomainTenantAggregateRoot(s.TenantAggregateRoot)
	for i, e := range s.ExpectedAssets {
		m.ExpectedAssets[i] = AuditExpectedAssetModel{
			ID:             uuid.New(),
			AuditSessionID: s.ID,
			AssetID:        e.ID,
			Name:           e.Name,
			Valuation:      e.Valuation,
			Position:       i,
		}
	}
	for i, a := range s.Attachments {
		m.Attachments[i] = AuditAttachmentModelFromDomain(s.ID, a)
	}
	return m
}

// AuditExpectedAssetModel stores one member of an audit's expected set
type AuditExpectedAssetModel struct {
	ID             uuid.UUID       `gorm:"type:uuid;primary_key"`
	AuditSessionID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_audit_expected_session_asset,priority:1"`
	AssetID        uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_audit_expected_session_asset,priority:2"`
	Name           string          `gorm:"type:varchar(300)"`
	Valuation      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Position       int             `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (AuditExpectedAssetModel) TableName() string {
	return "audit_expected_assets"
}

// ToDomain converts the persistence model to a domain ExpectedAsset
func (m *AuditExpectedAssetModel) ToDomain() audit.ExpectedAsset {
	return audit.ExpectedAsset{ID: m.AssetID, Name: m.Name, Valuation: m.Valuation}
}

// AuditScanModel is the durable scan row, unique per (audit_session_id, asset_id)
type AuditScanModel struct {
	ID             uuid.UUID  `gorm:"type:uuid;primary_key"`
	TenantID       uuid.UUID  `gorm:"type:uuid;not null;index"`
	AuditSessionID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_audit_scans_session_asset,priority:1"`
	AssetID        uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_audit_scans_session_asset,priority:2"`
	QRID           string     `gorm:"column:qr_id;type:varchar(100);not null"`
	IsExpected     bool       `gorm:"not null;default:false"`
	ScannedBy      *uuid.UUID `gorm:"type:uuid"`
	ScannedAt      time.Time  `gorm:"not null"`
	CreatedAt      time.Time  `gorm:"not null"`
	UpdatedAt      time.Time  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (AuditScanModel) TableName() string {
	return "audit_scans"
}

// ToDomain converts the persistence model to a domain AuditScan
func (m *AuditScanModel) ToDomain() *audit.AuditScan {
	return &audit.AuditScan{
		ID:             m.ID,
		TenantID:       m.TenantID,
		AuditSessionID: m.AuditSessionID,
		QRID:           m.QRID,
		AssetID:        m.AssetID,
		IsExpected:     m.IsExpected,
		ScannedBy:      m.ScannedBy,
		ScannedAt:      m.ScannedAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

// AuditScanModelFromDomain creates a persistence model from a domain AuditScan
func AuditScanModelFromDomain(s *audit.AuditScan) *AuditScanModel {
	return &AuditScanModel{
		ID:             s.ID,
		TenantID:       s.TenantID,
		AuditSessionID: s.AuditSessionID,
		QRID:           s.QRID,
		AssetID:        s.AssetID,
		IsExpected:     s.IsExpected,
		ScannedBy:      s.ScannedBy,
		ScannedAt:      s.ScannedAt,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

// AuditAttachmentModel stores metadata of an image uploaded at completion
type AuditAttachmentModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key"`
	AuditSessionID uuid.UUID `gorm:"type:uuid;not null;index"`
	Filename       string    `gorm:"type:varchar(255);not null"`
	ContentType    string    `gorm:"type:varchar(100);not null"`
	StorageKey     string    `gorm:"type:varchar(500);not null"`
	Size           int64     `gorm:"not null;default:0"`
	CreatedAt      time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (AuditAttachmentModel) TableName() string {
	return "audit_attachments"
}

// ToDomain converts the persistence model to a domain Attachment
func (m *AuditAttachmentModel) ToDomain() audit.Attachment {
	return audit.Attachment{
		ID:             m.ID,
		AuditSessionID: m.AuditSessionID,
		Filename:       m.Filename,
		ContentType:    m.ContentType,
		StorageKey:     m.StorageKey,
		Size:           m.Size,
		CreatedAt:      m.CreatedAt,
	}
}

// AuditAttachmentModelFromDomain creates a persistence model from a domain Attachment
func AuditAttachmentModelFromDomain(sessionID uuid.UUID, a audit.Attachment) AuditAttachmentModel {
	return AuditAttachmentModel{
		ID:             a.ID,
		AuditSessionID: sessionID,
		Filename:       a.Filename,
		ContentType:    a.ContentType,
		StorageKey:     a.StorageKey,
		Size:           a.Size,
		CreatedAt:      a.CreatedAt,
	}
}

// All returns every model owned by this service, in dependency order
func All() []any {
	return []any{
		&LocationModel{},
		&KitModel{},
		&CustodianModel{},
		&AssetModel{},
		&CustodyModel{},
		&CodeModel{},
		&AuditSessionModel{},
		&AuditExpectedAssetModel{},
		&AuditScanModel{},
		&AuditAttachmentModel{},
	}
}
