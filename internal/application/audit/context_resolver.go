package audit

import (
	"context"
	"errors"
	"fmt"

	"github.com/assetaudit/backend/internal/domain/asset"
	"github.com/assetaudit/backend/internal/domain/audit"
	"github.com/assetaudit/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// SelectionContextName names audits over an explicit list of assets
const SelectionContextName = "Selection"

// ContextResolver turns a context descriptor into the concrete expected asset ids.
// It only reads from the asset store.
type ContextResolver struct {
	assets     asset.AssetRepository
	locations  asset.LocationRepository
	kits       asset.KitRepository
	custodians asset.CustodianRepository
}

// NewContextResolver creates a new ContextResolver
func NewContextResolver(
	assets asset.AssetRepository,
	locations asset.LocationRepository,
	kits asset.KitRepository,
	custodians asset.CustodianRepository,
) *ContextResolver {
	return &ContextResolver{
		assets:     assets,
		locations:  locations,
		kits:       kits,
		custodians: custodians,
	}
}

// Resolve computes the expected set for d within the tenant.
// Returns NOT_FOUND when the referenced location, kit or custodian is not visible
// to the tenant and EMPTY_CONTEXT when no asset matches.
func (r *ContextResolver) Resolve(ctx context.Context, tenantID uuid.UUID, d audit.ContextDescriptor) (*audit.ResolvedContext, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	resolved := &audit.ResolvedContext{Type: d.Type}
	var (
		ids []uuid.UUID
		err error
	)

	switch d.Type {
	case audit.ContextTypeLocation:
		loc, findErr := r.locations.FindByID(ctx, tenantID, d.ID)
		if findErr != nil {
			return nil, notFoundAs(findErr, "Location not found")
		}
		resolved.Name = loc.Name
		resolved.RefID = &loc.ID
		resolved.IncludeDescendants = d.IncludeDescendants

		scope := []uuid.UUID{loc.ID}
		if d.IncludeDescendants {
			if scope, err = r.locationClosure(ctx, tenantID, loc.ID); err != nil {
				return nil, err
			}
		}
		ids, err = r.assets.FindIDsByLocations(ctx, tenantID, scope)

	case audit.ContextTypeKit:
		kit, findErr := r.kits.FindByID(ctx, tenantID, d.ID)
		if findErr != nil {
			return nil, notFoundAs(findErr, "Kit not found")
		}
		resolved.Name = kit.Name
		resolved.RefID = &kit.ID
		ids, err = r.assets.FindIDsByKit(ctx, tenantID, kit.ID)

	case audit.ContextTypeUser:
		custodian, findErr := r.custodians.FindByID(ctx, tenantID, d.ID)
		if findErr != nil {
			return nil, notFoundAs(findErr, "Custodian not found")
		}
		resolved.Name = custodian.Name
		resolved.RefID = &custodian.ID
		ids, err = r.assets.FindIDsByCustodian(ctx, tenantID, custodian.ID)

	case audit.ContextTypeSelection:
		resolved.Name = SelectionContextName
		ids = d.AssetIDs
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s context: %w", d.Type, err)
	}

	resolved.AssetIDs = uniqueIDs(ids)
	if len(resolved.AssetIDs) == 0 {
		return nil, shared.ErrEmptyContext
	}
	return resolved, nil
}

// locationClosure returns root and every descendant, breadth first.
// Locations already visited are skipped, so a corrupted parent cycle terminates.
func (r *ContextResolver) locationClosure(ctx context.Context, tenantID, root uuid.UUID) ([]uuid.UUID, error) {
	visited := map[uuid.UUID]struct{}{root: {}}
	closure := []uuid.UUID{root}
	frontier := []uuid.UUID{root}

	for len(frontier) > 0 {
		children, err := r.locations.FindChildIDs(ctx, tenantID, frontier)
		if err != nil {
			return nil, fmt.Errorf("failed to load child locations: %w", err)
		}
		next := make([]uuid.UUID, 0, len(children))
		for _, id := range children {
			if _, seen := visited[id]; seen {
				continue
			}
			visited[id] = struct{}{}
			closure = append(closure, id)
			next = append(next, id)
		}
		frontier = next
	}
	return closure, nil
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func notFoundAs(err error, message string) error {
	if errors.Is(err, shared.ErrNotFound) {
		return shared.NewDomainError("NOT_FOUND", message)
	}
	return err
}
