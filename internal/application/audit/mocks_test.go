package audit

import (
	"context"
	"io"
	"time"

	"github.com/assetaudit/backend/internal/domain/asset"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockAssetRepository is a mock implementation of asset.AssetRepository
type MockAssetRepository struct {
	mock.Mock
}

func (m *MockAssetRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*asset.Asset, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*asset.Asset), args.Error(1)
}

func (m *MockAssetRepository) FindSummaries(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]asset.Summary, error) {
	args := m.Called(ctx, tenantID, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]asset.Summary), args.Error(1)
}

func (m *MockAssetRepository) FindIDsByLocations(ctx context.Context, tenantID uuid.UUID, locationIDs []uuid.UUID) ([]uuid.UUID, error) {
	args := m.Called(ctx, tenantID, locationIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockAssetRepository) FindIDsByKit(ctx context.Context, tenantID, kitID uuid.UUID) ([]uuid.UUID, error) {
	args := m.Called(ctx, tenantID, kitID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockAssetRepository) FindIDsByCustodian(ctx context.Context, tenantID, custodianID uuid.UUID) ([]uuid.UUID, error) {
	args := m.Called(ctx, tenantID, custodianID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockAssetRepository) Save(ctx context.Context, a *asset.Asset) error {
	return m.Called(ctx, a).Error(0)
}

// MockLocationRepository is a mock implementation of asset.LocationRepository
type MockLocationRepository struct {
	mock.Mock
}

func (m *MockLocationRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*asset.Location, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*asset.Location), args.Error(1)
}

func (m *MockLocationRepository) FindChildIDs(ctx context.Context, tenantID uuid.UUID, parentIDs []uuid.UUID) ([]uuid.UUID, error) {
	args := m.Called(ctx, tenantID, parentIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockLocationRepository) Save(ctx context.Context, l *asset.Location) error {
	return m.Called(ctx, l).Error(0)
}

// MockKitRepository is a mock implementation of asset.KitRepository
type MockKitRepository struct {
	mock.Mock
}

func (m *MockKitRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*asset.Kit, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*asset.Kit), args.Error(1)
}

func (m *MockKitRepository) Save(ctx context.Context, k *asset.Kit) error {
	return m.Called(ctx, k).Error(0)
}

// MockCustodianRepository is a mock implementation of asset.CustodianRepository
type MockCustodianRepository struct {
	mock.Mock
}

func (m *MockCustodianRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*asset.Custodian, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*asset.Custodian), args.Error(1)
}

func (m *MockCustodianRepository) Save(ctx context.Context, c *asset.Custodian) error {
	return m.Called(ctx, c).Error(0)
}

func (m *MockCustodianRepository) AssignCustody(ctx context.Context, c *asset.Custody) error {
	return m.Called(ctx, c).Error(0)
}

// MockAttachmentStorage is a mock implementation of AttachmentStorage
type MockAttachmentStorage struct {
	mock.Mock
}

func (m *MockAttachmentStorage) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	return m.Called(ctx, key, body, size, contentType).Error(0)
}

func (m *MockAttachmentStorage) DownloadURL(ctx context.Context, key string) (string, time.Time, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Get(1).(time.Time), args.Error(2)
}

func (m *MockAttachmentStorage) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}
