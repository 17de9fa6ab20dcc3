package audit

import (
	"io"
	"time"

	"github.com/assetaudit/backend/internal/domain/asset"
	"github.com/assetaudit/backend/internal/domain/audit"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateAuditRequest starts an audit over a context
type CreateAuditRequest struct {
	Name               string      `json:"name" binding:"required,min=1,max=200"`
	ContextType        string      `json:"context_type" binding:"required,oneof=LOCATION KIT USER SELECTION"`
	ContextID          *uuid.UUID  `json:"context_id"`
	IncludeDescendants bool        `json:"include_descendants"`
	AssetIDs           []uuid.UUID `json:"asset_ids" binding:"omitempty,max=10000"`
	TargetType         string      `json:"target_type" binding:"max=50"`
	TargetID           *uuid.UUID  `json:"target_id"`
}

// Descriptor converts the request into a context descriptor
func (r CreateAuditRequest) Descriptor() audit.ContextDescriptor {
	d := audit.ContextDescriptor{
		Type:               audit.ContextType(r.ContextType),
		IncludeDescendants: r.IncludeDescendants,
		AssetIDs:           r.AssetIDs,
	}
	if r.ContextID != nil {
		d.ID = *r.ContextID
	}
	return d
}

// RecordScanRequest is the durable write of one resolved asset scan.
// IsExpected is advisory; the server recomputes it from the stored expected set.
type RecordScanRequest struct {
	QRID       string    `json:"qr_id" binding:"required,max=100"`
	AssetID    uuid.UUID `json:"asset_id" binding:"required"`
	IsExpected bool      `json:"is_expected"`
}

// RecordScanResponse reports the outcome of a durable write
type RecordScanResponse struct {
	Success    bool         `json:"success"`
	ScanID     uuid.UUID    `json:"scan_id"`
	Duplicate  bool         `json:"duplicate"`
	IsExpected bool         `json:"is_expected"`
	Counts     audit.Counts `json:"counts"`
}

// AttachmentUpload is one image submitted with completion
type AttachmentUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// CompleteAuditInput carries the completion note and photos
type CompleteAuditInput struct {
	Note        string
	Attachments []AttachmentUpload
}

// CancelAuditRequest abandons an audit
type CancelAuditRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// AuditListFilter represents filter options for listing audits
type AuditListFilter struct {
	Search      string `form:"search" binding:"max=100"`
	Status      string `form:"status" binding:"omitempty,oneof=ACTIVE COMPLETED CANCELLED"`
	ContextType string `form:"context_type" binding:"omitempty,oneof=LOCATION KIT USER SELECTION"`
	TargetID    string `form:"target_id" binding:"omitempty,uuid"`
	Page        int    `form:"page" binding:"omitempty,min=1"`
	PageSize    int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy     string `form:"order_by"`
	OrderDir    string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// AttachmentResponse describes a stored completion photo
type AttachmentResponse struct {
	ID           uuid.UUID  `json:"id"`
	Filename     string     `json:"filename"`
	ContentType  string     `json:"content_type"`
	Size         int64      `json:"size"`
	URL          string     `json:"url,omitempty"`
	URLExpiresAt *time.Time `json:"url_expires_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// AuditResponse represents an audit session
type AuditResponse struct {
	ID                   uuid.UUID            `json:"id"`
	Name                 string               `json:"name"`
	Status               string               `json:"status"`
	ContextType          string               `json:"context_type"`
	ContextName          string               `json:"context_name"`
	ContextRefID         *uuid.UUID           `json:"context_ref_id,omitempty"`
	IncludeDescendants   bool                 `json:"include_descendants"`
	TargetType           string               `json:"target_type,omitempty"`
	TargetID             *uuid.UUID           `json:"target_id,omitempty"`
	ExpectedAssetCount   int                  `json:"expected_asset_count"`
	FoundAssetCount      int                  `json:"found_asset_count"`
	MissingAssetCount    int                  `json:"missing_asset_count"`
	UnexpectedAssetCount int                  `json:"unexpected_asset_count"`
	Progress             float64              `json:"progress"`
	CompletionNote       string               `json:"completion_note,omitempty"`
	CompletedAt          *time.Time           `json:"completed_at,omitempty"`
	CompletedBy          *uuid.UUID           `json:"completed_by,omitempty"`
	CancelledAt          *time.Time           `json:"cancelled_at,omitempty"`
	CancelReason         string               `json:"cancel_reason,omitempty"`
	Attachments          []AttachmentResponse `json:"attachments,omitempty"`
	CreatedBy            *uuid.UUID           `json:"created_by,omitempty"`
	CreatedAt            time.Time            `json:"created_at"`
	UpdatedAt            time.Time            `json:"updated_at"`
}

// ToAuditResponse converts a domain audit to a response; attachment links are filled by the service
func ToAuditResponse(s *audit.AuditSession) AuditResponse {
	resp := AuditResponse{
		ID:                   s.ID,
		Name:                 s.Name,
		Status:               s.Status.String(),
		ContextType:          s.ContextType.String(),
		ContextName:          s.ContextName,
		ContextRefID:         s.ContextRefID,
		IncludeDescendants:   s.IncludeDescendants,
		TargetType:           s.TargetType,
		TargetID:             s.TargetID,
		ExpectedAssetCount:   s.ExpectedAssetCount,
		FoundAssetCount:      s.FoundAssetCount,
		MissingAssetCount:    s.MissingAssetCount,
		UnexpectedAssetCount: s.UnexpectedAssetCount,
		Progress:             s.Progress(),
		CompletionNote:       s.CompletionNote,
		CompletedAt:          s.CompletedAt,
		CompletedBy:          s.CompletedBy,
		CancelledAt:          s.CancelledAt,
		CancelReason:         s.CancelReason,
		CreatedBy:            s.CreatedBy,
		CreatedAt:            s.CreatedAt,
		UpdatedAt:            s.UpdatedAt,
	}
	for _, a := range s.Attachments {
		resp.Attachments = append(resp.Attachments, AttachmentResponse{
			ID:          a.ID,
			Filename:    a.Filename,
			ContentType: a.ContentType,
			Size:        a.Size,
			CreatedAt:   a.CreatedAt,
		})
	}
	return resp
}

// ExpectedAssetResponse is one row of the expected checklist
type ExpectedAssetResponse struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Valuation decimal.Decimal `json:"valuation"`
	Found     bool            `json:"found"`
}

// ScanResponse is a durable scan with the asset summary needed to resume a session
type ScanResponse struct {
	ID         uuid.UUID     `json:"id"`
	QRID       string        `json:"qr_id"`
	AssetID    uuid.UUID     `json:"asset_id"`
	IsExpected bool          `json:"is_expected"`
	ScannedBy  *uuid.UUID    `json:"scanned_by,omitempty"`
	ScannedAt  time.Time     `json:"scanned_at"`
	Asset      asset.Summary `json:"asset"`
}

// ReconciliationResponse partitions an audit's assets
type ReconciliationResponse struct {
	AuditSessionID uuid.UUID               `json:"audit_session_id"`
	Status         string                  `json:"status"`
	Counts         audit.Counts            `json:"counts"`
	Found          []ExpectedAssetResponse `json:"found"`
	Missing        []ExpectedAssetResponse `json:"missing"`
	Unexpected     []audit.ScannedAsset    `json:"unexpected"`
	MissingValue   decimal.Decimal         `json:"missing_value"`
}

// KitSummary is what a kit code resolves to
type KitSummary struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	AssetCount int       `json:"asset_count"`
}

// CodeResolution is the lookup result for a scanned code
type CodeResolution struct {
	Code  string           `json:"code"`
	Type  asset.CodeTarget `json:"type"`
	Asset *asset.Summary   `json:"asset,omitempty"`
	Kit   *KitSummary      `json:"kit,omitempty"`
}
