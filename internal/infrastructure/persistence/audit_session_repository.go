package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/assetaudit/backend/internal/domain/audit"
	"github.com/assetaudit/backend/internal/domain/shared"
	"github.com/assetaudit/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormAuditSessionRepository implements audit.AuditSessionRepository using GORM
type GormAuditSessionRepository struct {
	db *gorm.DB
}

// NewGormAuditSessionRepository creates a new GormAuditSessionRepository
func NewGormAuditSessionRepository(db *gorm.DB) *GormAuditSessionRepository {
	return &GormAuditSessionRepository{db: db}
}

// FindByIDForTenant loads an audit with its expected assets and attachments
func (r *GormAuditSessionRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*audit.AuditSession, error) {
	var model models.AuditSessionModel
	if err := r.db.WithContext(ctx).
		Preload("ExpectedAssets", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Preload("Attachments", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAllForTenant lists audits without their expected assets.
// Supported filters: status, context_type, target_id.
func (r *GormAuditSessionRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]audit.AuditSession, error) {
	var sessionModels []models.AuditSessionModel
	query := r.applyFilter(
		r.db.WithContext(ctx).Model(&models.AuditSessionModel{}).Where("tenant_id = ?", tenantID),
		filter,
	)
	query = r.applyPagination(query, filter)

	if err := query.Find(&sessionModels).Error; err != nil {
		return nil, err
	}
	sessions := make([]audit.AuditSession, len(sessionModels))
	for i := range sessionModels {
		sessions[i] = *sessionModels[i].ToDomain()
	}
	return sessions, nil
}

// CountForTenant counts audits matching the filter
func (r *GormAuditSessionRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applyFilter(
		r.db.WithContext(ctx).Model(&models.AuditSessionModel{}).Where("tenant_id = ?", tenantID),
		filter,
	)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Save creates the audit with its expected set, or updates its columns.
// Attachments are insert-only.
func (r *GormAuditSessionRepository) Save(ctx context.Context, s *audit.AuditSession) error {
	model := models.AuditSessionModelFromDomain(s)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.AuditSessionModel{}).Where("id = ?", s.ID).Count(&existing).Error; err != nil {
			return err
		}

		if existing == 0 {
			if err := tx.Omit(clause.Associations).Create(model).Error; err != nil {
				return err
			}
			if len(model.ExpectedAssets) > 0 {
				if err := tx.CreateInBatches(model.ExpectedAssets, 500).Error; err != nil {
					return err
				}
			}
		} else {
			if err := tx.Omit(clause.Associations).Save(model).Error; err != nil {
				return err
			}
		}

		if len(model.Attachments) > 0 {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&model.Attachments).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *GormAuditSessionRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(context_name) LIKE ?", pattern, pattern)
	}
	if status, ok := filter.Filters["status"]; ok && status != "" {
		query = query.Where("status = ?", status)
	}
	if contextType, ok := filter.Filters["context_type"]; ok && contextType != "" {
		query = query.Where("context_type = ?", contextType)
	}
	if targetID, ok := filter.Filters["target_id"]; ok && targetID != nil {
		query = query.Where("target_id = ?", targetID)
	}
	return query
}

func (r *GormAuditSessionRepository) applyPagination(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Page > 0 && filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}
	sortField := ValidateSortField(filter.OrderBy, AuditSessionSortFields, "created_at")
	return query.Order(sortField + " " + ValidateSortOrder(filter.OrderDir))
}

var _ audit.AuditSessionRepository = (*GormAuditSessionRepository)(nil)
