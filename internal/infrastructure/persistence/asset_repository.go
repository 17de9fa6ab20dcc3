package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/assetaudit/backend/internal/domain/asset"
	"github.com/assetaudit/backend/internal/domain/shared"
	"github.com/assetaudit/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// maxInClause bounds the number of parameters bound into one IN (...) list
const maxInClause = 1000

// GormAssetRepository implements asset.AssetRepository using GORM
type GormAssetRepository struct {
	db *gorm.DB
}

// NewGormAssetRepository creates a new GormAssetRepository
func NewGormAssetRepository(db *gorm.DB) *GormAssetRepository {
	return &GormAssetRepository{db: db}
}

// FindByID finds an asset by ID within a tenant
func (r *GormAssetRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*asset.Asset, error) {
	var model models.AssetModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

type assetSummaryRow struct {
	ID           uuid.UUID
	Title        string
	Status       string
	LocationID   *uuid.UUID
	LocationName string
	KitID        *uuid.UUID
	Valuation    decimal.Decimal
	MainImage    string
}

func (row assetSummaryRow) toSummary() asset.Summary {
	return asset.Summary{
		ID:           row.ID,
		Title:        row.Title,
		Status:       asset.Status(row.Status),
		LocationID:   row.LocationID,
		LocationName: row.LocationName,
		KitID:        row.KitID,
		Valuation:    row.Valuation,
		MainImage:    row.MainImage,
	}
}

// FindSummaries returns summaries in the order of ids; ids outside the tenant are skipped
func (r *GormAssetRepository) FindSummaries(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]asset.Summary, error) {
	byID := make(map[uuid.UUID]asset.Summary, len(ids))
	for _, chunk := range chunkIDs(ids, maxInClause) {
		var rows []assetSummaryRow
		if err := r.db.WithContext(ctx).
			Table("assets").
			Select("assets.id, assets.title, assets.status, assets.location_id, COALESCE(locations.name, '') AS location_name, assets.kit_id, assets.valuation, COALESCE(assets.main_image, '') AS main_image").
			Joins("LEFT JOIN locations ON locations.id = assets.location_id").
			Where("assets.tenant_id = ? AND assets.id IN ?", tenantID, chunk).
			Scan(&rows).Error; err != nil {
			return nil, err
		}
		for _, row := range rows {
			byID[row.ID] = row.toSummary()
		}
	}

	out := make([]asset.Summary, 0, len(byID))
	for _, id := range ids {
		if s, ok := byID[id]; ok {
			out = append(out, s)
			delete(byID, id)
		}
	}
	return out, nil
}

// FindIDsByLocations returns ids of assets placed at any of the locations
func (r *GormAssetRepository) FindIDsByLocations(ctx context.Context, tenantID uuid.UUID, locationIDs []uuid.UUID) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0)
	for _, chunk := range chunkIDs(locationIDs, maxInClause) {
		var part []uuid.UUID
		if err := r.db.WithContext(ctx).Model(&models.AssetModel{}).
			Where("tenant_id = ? AND location_id IN ?", tenantID, chunk).
			Order("created_at").
			Pluck("id", &part).Error; err != nil {
			return nil, err
		}
		ids = append(ids, part...)
	}
	return ids, nil
}

// FindIDsByKit returns ids of assets assigned to the kit
func (r *GormAssetRepository) FindIDsByKit(ctx context.Context, tenantID, kitID uuid.UUID) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0)
	if err := r.db.WithContext(ctx).Model(&models.AssetModel{}).
		Where("tenant_id = ? AND kit_id = ?", tenantID, kitID).
		Order("created_at").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// FindIDsByCustodian returns ids of assets whose current custody names the custodian
func (r *GormAssetRepository) FindIDsByCustodian(ctx context.Context, tenantID, custodianID uuid.UUID) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0)
	if err := r.db.WithContext(ctx).Model(&models.AssetModel{}).
		Joins("JOIN custodies ON custodies.asset_id = assets.id").
		Where("assets.tenant_id = ? AND custodies.custodian_id = ?", tenantID, custodianID).
		Order("assets.created_at").
		Pluck("assets.id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// Save creates or updates an asset
func (r *GormAssetRepository) Save(ctx context.Context, a *asset.Asset) error {
	return r.db.WithContext(ctx).Save(models.AssetModelFromDomain(a)).Error
}

// GormLocationRepository implements asset.LocationRepository using GORM
type GormLocationRepository struct {
	db *gorm.DB
}

// NewGormLocationRepository creates a new GormLocationRepository
func NewGormLocationRepository(db *gorm.DB) *GormLocationRepository {
	return &GormLocationRepository{db: db}
}

// FindByID finds a location by ID within a tenant
func (r *GormLocationRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*asset.Location, error) {
	var model models.LocationModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindChildIDs returns the direct children of the given parents
func (r *GormLocationRepository) FindChildIDs(ctx context.Context, tenantID uuid.UUID, parentIDs []uuid.UUID) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0)
	for _, chunk := range chunkIDs(parentIDs, maxInClause) {
		var part []uuid.UUID
		if err := r.db.WithContext(ctx).Model(&models.LocationModel{}).
			Where("tenant_id = ? AND parent_id IN ?", tenantID, chunk).
			Pluck("id", &part).Error; err != nil {
			return nil, err
		}
		ids = append(ids, part...)
	}
	return ids, nil
}

// Save creates or updates a location
func (r *GormLocationRepository) Save(ctx context.Context, l *asset.Location) error {
	return r.db.WithContext(ctx).Save(models.LocationModelFromDomain(l)).Error
}

// GormKitRepository implements asset.KitRepository using GORM
type GormKitRepository struct {
	db *gorm.DB
}

// NewGormKitRepository creates a new GormKitRepository
func NewGormKitRepository(db *gorm.DB) *GormKitRepository {
	return &GormKitRepository{db: db}
}

// FindByID finds a kit by ID within a tenant
func (r *GormKitRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*asset.Kit, error) {
	var model models.KitModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save creates or updates a kit
func (r *GormKitRepository) Save(ctx context.Context, k *asset.Kit) error {
	return r.db.WithContext(ctx).Save(models.KitModelFromDomain(k)).Error
}

// GormCustodianRepository implements asset.CustodianRepository using GORM
type GormCustodianRepository struct {
	db *gorm.DB
}

// NewGormCustodianRepository creates a new GormCustodianRepository
func NewGormCustodianRepository(db *gorm.DB) *GormCustodianRepository {
	return &GormCustodianRepository{db: db}
}

// FindByID finds a custodian by ID within a tenant
func (r *GormCustodianRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*asset.Custodian, error) {
	var model models.CustodianModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save creates or updates a custodian
func (r *GormCustodianRepository) Save(ctx context.Context, c *asset.Custodian) error {
	return r.db.WithContext(ctx).Save(models.CustodianModelFromDomain(c)).Error
}

// AssignCustody replaces the asset's current custody record
func (r *GormCustodianRepository) AssignCustody(ctx context.Context, c *asset.Custody) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("asset_id = ?", c.AssetID).Delete(&models.CustodyModel{}).Error; err != nil {
			return err
		}
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = time.Now()
		}
		return tx.Create(&models.CustodyModel{
			ID:          c.ID,
			AssetID:     c.AssetID,
			CustodianID: c.CustodianID,
			CreatedAt:   c.CreatedAt,
		}).Error
	})
}

// GormCodeRepository implements asset.CodeRepository using GORM
type GormCodeRepository struct {
	db *gorm.DB
}

// NewGormCodeRepository creates a new GormCodeRepository
func NewGormCodeRepository(db *gorm.DB) *GormCodeRepository {
	return &GormCodeRepository{db: db}
}

// FindByID finds a printed code within a tenant
func (r *GormCodeRepository) FindByID(ctx context.Context, tenantID uuid.UUID, code string) (*asset.Code, error) {
	var model models.CodeModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, code).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save creates or updates a code
func (r *GormCodeRepository) Save(ctx context.Context, c *asset.Code) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	return r.db.WithContext(ctx).Save(&models.CodeModel{
		ID:        c.ID,
		TenantID:  c.TenantID,
		AssetID:   c.AssetID,
		KitID:     c.KitID,
		CreatedAt: c.CreatedAt,
	}).Error
}

func chunkIDs(ids []uuid.UUID, size int) [][]uuid.UUID {
	if len(ids) == 0 {
		return nil
	}
	chunks := make([][]uuid.UUID, 0, len(ids)/size+1)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}

// Ensure interfaces are implemented
var (
	_ asset.AssetRepository     = (*GormAssetRepository)(nil)
	_ asset.LocationRepository  = (*GormLocationRepository)(nil)
	_ asset.KitRepository       = (*GormKitRepository)(nil)
	_ asset.CustodianRepository = (*GormCustodianRepository)(nil)
	_ asset.CodeRepository      = (*GormCodeRepository)(nil)
)
