package asset

import (
	"context"

	"github.com/google/uuid"
)

// AssetRepository is the read side of the asset store used by audits
type AssetRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Asset, error)
	// FindSummaries returns summaries for the given ids in tenant scope; unknown ids are skipped
	FindSummaries(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]Summary, error)
	FindIDsByLocations(ctx context.Context, tenantID uuid.UUID, locationIDs []uuid.UUID) ([]uuid.UUID, error)
	FindIDsByKit(ctx context.Context, tenantID, kitID uuid.UUID) ([]uuid.UUID, error)
	FindIDsByCustodian(ctx context.Context, tenantID, custodianID uuid.UUID) ([]uuid.UUID, error)
	Save(ctx context.Context, asset *Asset) error
}

// LocationRepository reads the location tree
type LocationRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Location, error)
	// FindChildIDs returns the direct children of every given parent
	FindChildIDs(ctx context.Context, tenantID uuid.UUID, parentIDs []uuid.UUID) ([]uuid.UUID, error)
	Save(ctx context.Context, location *Location) error
}

// KitRepository reads kits
type KitRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Kit, error)
	Save(ctx context.Context, kit *Kit) error
}

// CustodianRepository reads custodians and custody links
type CustodianRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Custodian, error)
	Save(ctx context.Context, custodian *Custodian) error
	AssignCustody(ctx context.Context, custody *Custody) error
}

// CodeRepository looks up printed tags
type CodeRepository interface {
	FindByID(ctx context.Context, tenantID uuid.UUID, code string) (*Code, error)
	Save(ctx context.Context, code *Code) error
}
