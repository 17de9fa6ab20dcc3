package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/assetaudit/backend/internal/domain/asset"
	"github.com/assetaudit/backend/internal/domain/audit"
	"github.com/assetaudit/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type resolverMocks struct {
	assets     *MockAssetRepository
	locations  *MockLocationRepository
	kits       *MockKitRepository
	custodians *MockCustodianRepository
}

func newResolver() (*ContextResolver, *resolverMocks) {
	m := &resolverMocks{
		assets:     new(MockAssetRepository),
		locations:  new(MockLocationRepository),
		kits:       new(MockKitRepository),
		custodians: new(MockCustodianRepository),
	}
	return NewContextResolver(m.assets, m.locations, m.kits, m.custodians), m
}

func location(tenantID uuid.UUID, name string) *asset.Location {
	return &asset.Location{BaseEntity: shared.NewBaseEntity(), TenantID: tenantID, Name: name}
}

func TestContextResolver_Location(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	root := location(tenantID, "Warehouse")
	childA, childB, grandchild := uuid.New(), uuid.New(), uuid.New()
	a1, a2 := uuid.New(), uuid.New()

	t.Run("exact location only", func(t *testing.T) {
		r, m := newResolver()
		m.locations.On("FindByID", ctx, tenantID, root.ID).Return(root, nil)
		m.assets.On("FindIDsByLocations", ctx, tenantID, []uuid.UUID{root.ID}).Return([]uuid.UUID{a1}, nil)

		resolved, err := r.Resolve(ctx, tenantID, audit.ContextDescriptor{Type: audit.ContextTypeLocation, ID: root.ID})
		require.NoError(t, err)
		assert.Equal(t, audit.ContextTypeLocation, resolved.Type)
		assert.Equal(t, "Warehouse", resolved.Name)
		assert.Equal(t, root.ID, *resolved.RefID)
		assert.False(t, resolved.IncludeDescendants)
		assert.Equal(t, []uuid.UUID{a1}, resolved.AssetIDs)
		m.locations.AssertNotCalled(t, "FindChildIDs", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("descendants expand breadth first", func(t *testing.T) {
		r, m := newResolver()
		m.locations.On("FindByID", ctx, tenantID, root.ID).Return(root, nil)
		m.locations.On("FindChildIDs", ctx, tenantID, []uuid.UUID{root.ID}).Return([]uuid.UUID{childA, childB}, nil)
		m.locations.On("FindChildIDs", ctx, tenantID, []uuid.UUID{childA, childB}).Return([]uuid.UUID{grandchild}, nil)
		m.locations.On("FindChildIDs", ctx, tenantID, []uuid.UUID{grandchild}).Return([]uuid.UUID{}, nil)
		closure := []uuid.UUID{root.ID, childA, childB, grandchild}
		m.assets.On("FindIDsByLocations", ctx, tenantID, closure).Return([]uuid.UUID{a1, a2, a1}, nil)

		resolved, err := r.Resolve(ctx, tenantID, audit.ContextDescriptor{Type: audit.ContextTypeLocation, ID: root.ID, IncludeDescendants: true})
		require.NoError(t, err)
		assert.True(t, resolved.IncludeDescendants)
		assert.Equal(t, []uuid.UUID{a1, a2}, resolved.AssetIDs)
		m.locations.AssertExpectations(t)
	})

	t.Run("cyclic tree terminates", func(t *testing.T) {
		r, m := newResolver()
		m.locations.On("FindByID", ctx, tenantID, root.ID).Return(root, nil)
		m.locations.On("FindChildIDs", ctx, tenantID, []uuid.UUID{root.ID}).Return([]uuid.UUID{childA}, nil)
		m.locations.On("FindChildIDs", ctx, tenantID, []uuid.UUID{childA}).Return([]uuid.UUID{root.ID, childA}, nil)
		m.assets.On("FindIDsByLocations", ctx, tenantID, []uuid.UUID{root.ID, childA}).Return([]uuid.UUID{a1}, nil)

		resolved, err := r.Resolve(ctx, tenantID, audit.ContextDescriptor{Type: audit.ContextTypeLocation, ID: root.ID, IncludeDescendants: true})
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{a1}, resolved.AssetIDs)
	})

	t.Run("unknown location is not found", func(t *testing.T) {
		r, m := newResolver()
		id := uuid.New()
		m.locations.On("FindByID", ctx, tenantID, id).Return(nil, shared.ErrNotFound)

		_, err := r.Resolve(ctx, tenantID, audit.ContextDescriptor{Type: audit.ContextTypeLocation, ID: id})
		assert.ErrorIs(t, err, shared.ErrNotFound)
		assert.Contains(t, err.Error(), "Location")
	})

	t.Run("location without assets is an empty context", func(t *testing.T) {
		r, m := newResolver()
		m.locations.On("FindByID", ctx, tenantID, root.ID).Return(root, nil)
		m.assets.On("FindIDsByLocations", ctx, tenantID, []uuid.UUID{root.ID}).Return([]uuid.UUID{}, nil)

		_, err := r.Resolve(ctx, tenantID, audit.ContextDescriptor{Type: audit.ContextTypeLocation, ID: root.ID})
		assert.ErrorIs(t, err, shared.ErrEmptyContext)
	})

	t.Run("store failure is wrapped", func(t *testing.T) {
		r, m := newResolver()
		m.locations.On("FindByID", ctx, tenantID, root.ID).Return(root, nil)
		m.locations.On("FindChildIDs", ctx, tenantID, []uuid.UUID{root.ID}).Return(nil, errors.New("db down"))

		_, err := r.Resolve(ctx, tenantID, audit.ContextDescriptor{Type: audit.ContextTypeLocation, ID: root.ID, IncludeDescendants: true})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db down")
	})
}

func TestContextResolver_KitAndCustodian(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	a1 := uuid.New()

	t.Run("kit", func(t *testing.T) {
		r, m := newResolver()
		kit := &asset.Kit{BaseEntity: shared.NewBaseEntity(), TenantID: tenantID, Name: "Camera kit"}
		m.kits.On("FindByID", ctx, tenantID, kit.ID).Return(kit, nil)
		m.assets.On("FindIDsByKit", ctx, tenantID, kit.ID).Return([]uuid.UUID{a1}, nil)

		resolved, err := r.Resolve(ctx, tenantID, audit.ContextDescriptor{Type: audit.ContextTypeKit, ID: kit.ID})
		require.NoError(t, err)
		assert.Equal(t, "Camera kit", resolved.Name)
		assert.Equal(t, []uuid.UUID{a1}, resolved.AssetIDs)
	})

	t.Run("custodian", func(t *testing.T) {
		r, m := newResolver()
		c := &asset.Custodian{BaseEntity: shared.NewBaseEntity(), TenantID: tenantID, Name: "Dana"}
		m.custodians.On("FindByID", ctx, tenantID, c.ID).Return(c, nil)
		m.assets.On("FindIDsByCustodian", ctx, tenantID, c.ID).Return([]uuid.UUID{a1}, nil)

		resolved, err := r.Resolve(ctx, tenantID, audit.ContextDescriptor{Type: audit.ContextTypeUser, ID: c.ID})
		require.NoError(t, err)
		assert.Equal(t, audit.ContextTypeUser, resolved.Type)
		assert.Equal(t, "Dana", resolved.Name)
	})

	t.Run("kit from another tenant is not found", func(t *testing.T) {
		r, m := newResolver()
		id := uuid.New()
		m.kits.On("FindByID", ctx, tenantID, id).Return(nil, shared.ErrNotFound)

		_, err := r.Resolve(ctx, tenantID, audit.ContextDescriptor{Type: audit.ContextTypeKit, ID: id})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestContextResolver_Selection(t *testing.T) {
	ctx := context.Background()
	r, m := newResolver()
	a1, a2 := uuid.New(), uuid.New()

	resolved, err := r.Resolve(ctx, uuid.New(), audit.ContextDescriptor{
		Type:     audit.ContextTypeSelection,
		AssetIDs: []uuid.UUID{a2, a1, a2, uuid.Nil},
	})
	require.NoError(t, err)
	assert.Equal(t, SelectionContextName, resolved.Name)
	assert.Nil(t, resolved.RefID)
	assert.Equal(t, []uuid.UUID{a2, a1}, resolved.AssetIDs)
	m.assets.AssertNotCalled(t, "FindSummaries", mock.Anything, mock.Anything, mock.Anything)

	_, err = r.Resolve(ctx, uuid.New(), audit.ContextDescriptor{Type: audit.ContextTypeSelection})
	assert.ErrorIs(t, err, shared.ErrEmptyContext)

	_, err = r.Resolve(ctx, uuid.New(), audit.ContextDescriptor{Type: audit.ContextTypeSelection, AssetIDs: []uuid.UUID{uuid.Nil}})
	assert.ErrorIs(t, err, shared.ErrEmptyContext)
}

func TestContextResolver_InvalidDescriptor(t *testing.T) {
	r, _ := newResolver()
	_, err := r.Resolve(context.Background(), uuid.New(), audit.ContextDescriptor{Type: "ROOM", ID: uuid.New()})
	require.Error(t, err)
	de, ok := shared.AsDomainError(err)
	require.True(t, ok)
	assert.Equal(t, "INVALID_CONTEXT_TYPE", de.Code)

	_, err = r.Resolve(context.Background(), uuid.New(), audit.ContextDescriptor{Type: audit.ContextTypeKit})
	de, ok = shared.AsDomainError(err)
	require.True(t, ok)
	assert.Equal(t, "INVALID_CONTEXT_ID", de.Code)
}
