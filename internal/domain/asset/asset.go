package asset

import (
	"strings"
	"time"

	"github.com/assetaudit/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status represents the availability of an asset
type Status string

const (
	StatusAvailable  Status = "AVAILABLE"
	StatusInCustody  Status = "IN_CUSTODY"
	StatusCheckedOut Status = "CHECKED_OUT"
)

// IsValid checks if the status is a known value
func (s Status) IsValid() bool {
	switch s {
	case StatusAvailable, StatusInCustody, StatusCheckedOut:
		return true
	}
	return false
}

// Asset is a tracked physical item. Only the fields the audit engine reads are modeled;
// general asset management lives outside this service.
type Asset struct {
	shared.BaseEntity
	TenantID   uuid.UUID
	Title      string
	Status     Status
	LocationID *uuid.UUID
	KitID      *uuid.UUID
	Valuation  decimal.Decimal
	MainImage  string
}

// NewAsset creates a new asset
func NewAsset(tenantID uuid.UUID, title string) (*Asset, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, shared.NewDomainError("INVALID_TITLE", "Asset title cannot be empty")
	}
	return &Asset{
		BaseEntity: shared.NewBaseEntity(),
		TenantID:   tenantID,
		Title:      title,
		Status:     StatusAvailable,
		Valuation:  decimal.Zero,
	}, nil
}

// PlaceAt moves the asset to a location
func (a *Asset) PlaceAt(locationID uuid.UUID) {
	a.LocationID = &locationID
	a.Touch()
}

// AssignToKit puts the asset into a kit
func (a *Asset) AssignToKit(kitID uuid.UUID) {
	a.KitID = &kitID
	a.Touch()
}

// Summary is the read model attached to scans and expected lists
type Summary struct {
	ID           uuid.UUID       `json:"id"`
	Title        string          `json:"title"`
	Status       Status          `json:"status"`
	LocationID   *uuid.UUID      `json:"location_id,omitempty"`
	LocationName string          `json:"location_name,omitempty"`
	KitID        *uuid.UUID      `json:"kit_id,omitempty"`
	Valuation    decimal.Decimal `json:"valuation"`
	MainImage    string          `json:"main_image,omitempty"`
}

// Location is a node in the organization's location tree
type Location struct {
	shared.BaseEntity
	TenantID uuid.UUID
	Name     string
	ParentID *uuid.UUID
}

// NewLocation creates a root or child location
func NewLocation(tenantID uuid.UUID, name string, parentID *uuid.UUID) (*Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Location name cannot be empty")
	}
	return &Location{
		BaseEntity: shared.NewBaseEntity(),
		TenantID:   tenantID,
		Name:       name,
		ParentID:   parentID,
	}, nil
}

// IsRoot returns true for top-level locations
func (l *Location) IsRoot() bool {
	return l.ParentID == nil
}

// Kit groups assets that travel together
type Kit struct {
	shared.BaseEntity
	TenantID uuid.UUID
	Name     string
}

// Custodian is a team member who can hold assets in custody
type Custodian struct {
	shared.BaseEntity
	TenantID uuid.UUID
	Name     string
	UserID   *uuid.UUID
}

// Custody links an asset to its current custodian
type Custody struct {
	ID          uuid.UUID
	AssetID     uuid.UUID
	CustodianID uuid.UUID
	CreatedAt   time.Time
}

// CodeTarget tells what a QR or barcode is attached to
type CodeTarget string

const (
	CodeTargetAsset   CodeTarget = "asset"
	CodeTargetKit     CodeTarget = "kit"
	CodeTargetUnknown CodeTarget = "unknown"
)

// Code is a printed tag that points at an asset or a kit
type Code struct {
	ID        string
	TenantID  uuid.UUID
	AssetID   *uuid.UUID
	KitID     *uuid.UUID
	CreatedAt time.Time
}

// Target reports which kind of entity the code is linked to
func (c *Code) Target() CodeTarget {
	switch {
	case c.AssetID != nil:
		return CodeTargetAsset
	case c.KitID != nil:
		return CodeTargetKit
	default:
		return CodeTargetUnknown
	}
}
