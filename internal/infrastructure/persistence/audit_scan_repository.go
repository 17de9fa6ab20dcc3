package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/assetaudit/backend/internal/domain/asset"
	"github.com/assetaudit/backend/internal/domain/audit"
	"github.com/assetaudit/backend/internal/domain/shared"
	"github.com/assetaudit/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormAuditScanRepository implements audit.AuditScanRepository using GORM
type GormAuditScanRepository struct {
	db *gorm.DB
}

// NewGormAuditScanRepository creates a new GormAuditScanRepository
func NewGormAuditScanRepository(db *gorm.DB) *GormAuditScanRepository {
	return &GormAuditScanRepository{db: db}
}

// Record inserts the scan with ON CONFLICT (audit_session_id, asset_id) DO NOTHING and
// recomputes the session counters. The unique index makes the check-and-insert atomic.
func (r *GormAuditScanRepository) Record(ctx context.Context, scan *audit.AuditScan) (*audit.RecordResult, error) {
	result := &audit.RecordResult{}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var session models.AuditSessionModel
		if err := tx.Select("id", "status", "expected_asset_count").
			Where("tenant_id = ? AND id = ?", scan.TenantID, scan.AuditSessionID).
			First(&session).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return shared.ErrNotFound
			}
			return err
		}
		if session.Status != string(audit.SessionStatusActive) {
			return shared.NewDomainError("INVALID_STATE", "Cannot record scans for an audit that is not active")
		}

		model := models.AuditScanModelFromDomain(scan)
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "audit_session_id"}, {Name: "asset_id"}},
			DoNothing: true,
		}).Create(model)
		if res.Error != nil {
			return res.Error
		}
		result.Created = res.RowsAffected > 0

		if result.Created {
			result.Scan = model.ToDomain()
		} else {
			var existing models.AuditScanModel
			if err := tx.Where("audit_session_id = ? AND asset_id = ?", scan.AuditSessionID, scan.AssetID).
				First(&existing).Error; err != nil {
				return err
			}
			result.Scan = existing.ToDomain()
		}

		counts, err := countScans(tx, scan.AuditSessionID, session.ExpectedAssetCount)
		if err != nil {
			return err
		}
		result.Counts = counts

		if !result.Created {
			return nil
		}
		return tx.Model(&models.AuditSessionModel{}).
			Where("id = ? AND status = ?", scan.AuditSessionID, audit.SessionStatusActive).
			Updates(map[string]any{
				"found_asset_count":      counts.Found,
				"missing_asset_count":    counts.Missing,
				"unexpected_asset_count": counts.Unexpected,
				"updated_at":             time.Now(),
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func countScans(tx *gorm.DB, sessionID uuid.UUID, expected int) (audit.Counts, error) {
	var found, unexpected int64
	if err := tx.Model(&models.AuditScanModel{}).
		Where("audit_session_id = ? AND is_expected = ?", sessionID, true).
		Count(&found).Error; err != nil {
		return audit.Counts{}, err
	}
	if err := tx.Model(&models.AuditScanModel{}).
		Where("audit_session_id = ? AND is_expected = ?", sessionID, false).
		Count(&unexpected).Error; err != nil {
		return audit.Counts{}, err
	}
	return audit.Counts{
		Expected:   expected,
		Found:      int(found),
		Missing:    expected - int(found),
		Unexpected: int(unexpected),
	}, nil
}

// FindBySessionAndAsset returns the single scan row for an asset in an audit
func (r *GormAuditScanRepository) FindBySessionAndAsset(ctx context.Context, tenantID, sessionID, assetID uuid.UUID) (*audit.AuditScan, error) {
	var model models.AuditScanModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND audit_session_id = ? AND asset_id = ?", tenantID, sessionID, assetID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

type scanWithAssetRow struct {
	models.AuditScanModel
	AssetTitle        string
	AssetStatus       string
	AssetLocationID   *uuid.UUID
	AssetLocationName string
	AssetKitID        *uuid.UUID
	AssetValuation    decimal.Decimal
	AssetMainImage    string
}

// FindBySession returns every scan of an audit joined with its asset summary
func (r *GormAuditScanRepository) FindBySession(ctx context.Context, tenantID, sessionID uuid.UUID) ([]audit.ScanWithAsset, error) {
	var rows []scanWithAssetRow
	if err := r.db.WithContext(ctx).
		Table("audit_scans").
		Select(`audit_scans.*,
			COALESCE(assets.title, '') AS asset_title,
			COALESCE(assets.status, '') AS asset_status,
			assets.location_id AS asset_location_id,
			COALESCE(locations.name, '') AS asset_location_name,
			assets.kit_id AS asset_kit_id,
			COALESCE(assets.valuation, 0) AS asset_valuation,
			COALESCE(assets.main_image, '') AS asset_main_image`).
		Joins("LEFT JOIN assets ON assets.id = audit_scans.asset_id").
		Joins("LEFT JOIN locations ON locations.id = assets.location_id").
		Where("audit_scans.tenant_id = ? AND audit_scans.audit_session_id = ?", tenantID, sessionID).
		Order("audit_scans.scanned_at ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]audit.ScanWithAsset, len(rows))
	for i, row := range rows {
		out[i] = audit.ScanWithAsset{
			AuditScan: *row.AuditScanModel.ToDomain(),
			Asset: asset.Summary{
				ID:           row.AssetID,
				Title:        row.AssetTitle,
				Status:       asset.Status(row.AssetStatus),
				LocationID:   row.AssetLocationID,
				LocationName: row.AssetLocationName,
				KitID:        row.AssetKitID,
				Valuation:    row.AssetValuation,
				MainImage:    row.AssetMainImage,
			},
		}
	}
	return out, nil
}

var _ audit.AuditScanRepository = (*GormAuditScanRepository)(nil)
