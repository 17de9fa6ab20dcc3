package models

import (
	"time"

	"github.com/assetaudit/backend/internal/domain/asset"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LocationModel is the persistence model for a node of the location tree
type LocationModel struct {
	BaseModel
	TenantID uuid.UUID  `gorm:"type:uuid;not null;index"`
	Name     string     `gorm:"type:varchar(200);not null"`
	ParentID *uuid.UUID `gorm:"type:uuid;index"`
}

// TableName returns the table name for GORM
func (LocationModel) TableName() string {
	return "locations"
}

// ToDomain converts the persistence model to a domain Location
func (m *LocationModel) ToDomain() *asset.Location {
	return &asset.Location{
		BaseEntity: m.BaseModel.ToDomain(),
		TenantID:   m.TenantID,
		Name:       m.Name,
		ParentID:   m.ParentID,
	}
}

// LocationModelFromDomain creates a persistence model from a domain Location
func LocationModelFromDomain(l *asset.Location) *LocationModel {
	m := &LocationModel{
		TenantID: l.TenantID,
		Name:     l.Name,
		ParentID: l.ParentID,
	}
	m.FromDomainBaseEntity(l.BaseEntity)
	return m
}

// AssetModel is the persistence model for an asset
type AssetModel struct {
	BaseModel
	TenantID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	Title      string          `gorm:"type:varchar(300);not null"`
	Status     string          `gorm:"type:varchar(20);not null;default:'AVAILABLE'"`
	LocationID *uuid.UUID      `gorm:"type:uuid;index"`
	KitID      *uuid.UUID      `gorm:"type:uuid;index"`
	Valuation  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	MainImage  string          `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (AssetModel) TableName() string {
	return "assets"
}

// ToDomain converts the persistence model to a domain Asset
func (m *AssetModel) ToDomain() *asset.Asset {
	return &asset.Asset{
		BaseEntity: m.BaseModel.ToDomain(),
		TenantID:   m.TenantID,
		Title:      m.Title,
		Status:     asset.Status(m.Status),
		LocationID: m.LocationID,
		KitID:      m.KitID,
		Valuation:  m.Valuation,
		MainImage:  m.MainImage,
	}
}

// AssetModelFromDomain creates a persistence model from a domain Asset
func AssetModelFromDomain(a *asset.Asset) *AssetModel {
	m := &AssetModel{
		TenantID:   a.TenantID,
		Title:      a.Title,
		Status:     string(a.Status),
		LocationID: a.LocationID,
		KitID:      a.KitID,
		Valuation:  a.Valuation,
		MainImage:  a.MainImage,
	}
	m.FromDomainBaseEntity(a.BaseEntity)
	return m
}

// KitModel is the persistence model for a kit
type KitModel struct {
	BaseModel
	TenantID uuid.UUID `gorm:"type:uuid;not null;index"`
	Name     string    `gorm:"type:varchar(200);not null"`
}

// TableName returns the table name for GORM
func (KitModel) TableName() string {
	return "kits"
}

// ToDomain converts the persistence model to a domain Kit
func (m *KitModel) ToDomain() *asset.Kit {
	return &asset.Kit{BaseEntity: m.BaseModel.ToDomain(), TenantID: m.TenantID, Name: m.Name}
}

// KitModelFromDomain creates a persistence model from a domain Kit
func KitModelFromDomain(k *asset.Kit) *KitModel {
	m := &KitModel{TenantID: k.TenantID, Name: k.Name}
	m.FromDomainBaseEntity(k.BaseEntity)
	return m
}

// CustodianModel is the persistence model for a team member who can hold custody
type CustodianModel struct {
	BaseModel
	TenantID uuid.UUID  `gorm:"type:uuid;not null;index"`
	Name     string     `gorm:"type:varchar(200);not null"`
	UserID   *uuid.UUID `gorm:"type:uuid;index"`
}

// TableName returns the table name for GORM
func (CustodianModel) TableName() string {
	return "custodians"
}

// ToDomain converts the persistence model to a domain Custodian
func (m *CustodianModel) ToDomain() *asset.Custodian {
	return &asset.Custodian{BaseEntity: m.BaseModel.ToDomain(), TenantID: m.TenantID, Name: m.Name, UserID: m.UserID}
}

// CustodianModelFromDomain creates a persistence model from a domain Custodian
func CustodianModelFromDomain(c *asset.Custodian) *CustodianModel {
	m := &CustodianModel{TenantID: c.TenantID, Name: c.Name, UserID: c.UserID}
	m.FromDomainBaseEntity(c.BaseEntity)
	return m
}

// CustodyModel links an asset to its current custodian; an asset has at most one
type CustodyModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key"`
	AssetID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	CustodianID uuid.UUID `gorm:"type:uuid;not null;index"`
	CreatedAt   time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CustodyModel) TableName() string {
	return "custodies"
}

// CodeModel is a printed QR or barcode tag
type CodeModel struct {
	ID        string     `gorm:"type:varchar(100);primary_key"`
	TenantID  uuid.UUID  `gorm:"type:uuid;not null;index"`
	AssetID   *uuid.UUID `gorm:"type:uuid;index"`
	KitID     *uuid.UUID `gorm:"type:uuid;index"`
	CreatedAt time.Time  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CodeModel) TableName() string {
	return "qr_codes"
}

// ToDomain converts the persistence model to a domain Code
func (m *CodeModel) ToDomain() *asset.Code {
	return &asset.Code{ID: m.ID, TenantID: m.TenantID, AssetID: m.AssetID, KitID: m.KitID, CreatedAt: m.CreatedAt}
}
