// Package audittest wires the audit service over an in-memory SQLite store for tests.
package audittest

import (
	"context"
	"sync"
	"testing"
	"time"

	appaudit "github.com/assetaudit/backend/internal/application/audit"
	"github.com/assetaudit/backend/internal/domain/asset"
	"github.com/assetaudit/backend/internal/domain/shared"
	"github.com/assetaudit/backend/internal/infrastructure/cache"
	"github.com/assetaudit/backend/internal/infrastructure/config"
	"github.com/assetaudit/backend/internal/infrastructure/event"
	"github.com/assetaudit/backend/internal/infrastructure/persistence"
	"github.com/assetaudit/backend/internal/infrastructure/persistence/models"
	"github.com/assetaudit/backend/internal/infrastructure/storage"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Printed codes seeded by New
const (
	CodeForklift = "QR-FORKLIFT"
	CodeLadder   = "QR-LADDER"
	CodeCamera   = "QR-CAMERA"
	CodeDrill    = "QR-DRILL"
	CodeKit      = "QR-KIT"
	CodeOrphan   = "QR-ORPHAN" // linked to nothing
)

// Catalog is the seeded tenant:
//
//	Warehouse (Forklift)
//	└── Aisle 1 (Ladder, held by Dana)
//	    └── Shelf A (Camera, in Camera kit)
//	Office (Drill)
type Catalog struct {
	TenantID  uuid.UUID
	Warehouse *asset.Location
	Aisle     *asset.Location
	Shelf     *asset.Location
	Office    *asset.Location
	Kit       *asset.Kit
	Custodian *asset.Custodian
	Forklift  *asset.Asset
	Ladder    *asset.Asset
	Camera    *asset.Asset
	Drill     *asset.Asset
}

// Harness is a fully wired audit service
type Harness struct {
	DB      *persistence.Database
	Service *appaudit.Service
	Storage *storage.MemoryAttachmentStorage
	Events  *Recorder
	Catalog *Catalog
}

// New builds the harness and seeds the catalog
func New(t testing.TB) *Harness {
	t.Helper()
	ctx := context.Background()

	db, err := persistence.NewDatabase(&config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, db.DB.AutoMigrate(models.All()...))
	t.Cleanup(func() { _ = db.Close() })

	logger := zap.NewNop()
	idem := cache.NewInMemoryIdempotencyStore(time.Minute)
	t.Cleanup(func() { _ = idem.Close() })

	bus := event.NewInMemoryEventBus(logger)
	recorder := &Recorder{}
	bus.Subscribe(recorder)
	require.NoError(t, bus.Start(ctx))
	t.Cleanup(func() { _ = bus.Stop(context.Background()) })

	h := &Harness{
		DB:      db,
		Storage: storage.NewMemoryAttachmentStorage(),
		Events:  recorder,
	}
	h.Service = appaudit.NewService(appaudit.Dependencies{
		Sessions:    persistence.NewGormAuditSessionRepository(db.DB),
		Scans:       persistence.NewGormAuditScanRepository(db.DB),
		Assets:      persistence.NewGormAssetRepository(db.DB),
		Locations:   persistence.NewGormLocationRepository(db.DB),
		Kits:        persistence.NewGormKitRepository(db.DB),
		Custodians:  persistence.NewGormCustodianRepository(db.DB),
		Codes:       persistence.NewGormCodeRepository(db.DB),
		Storage:     h.Storage,
		Idempotency: idem,
		Locker:      cache.NewInMemorySessionLocker(5 * time.Second),
		Events:      bus,
		Logger:      logger,
	}, appaudit.DefaultServiceConfig())
	h.Catalog = seed(t, db)
	return h
}

func seed(t testing.TB, db *persistence.Database) *Catalog {
	ctx := context.Background()
	c := &Catalog{TenantID: uuid.New()}

	locations := persistence.NewGormLocationRepository(db.DB)
	assets := persistence.NewGormAssetRepository(db.DB)
	kits := persistence.NewGormKitRepository(db.DB)
	custodians := persistence.NewGormCustodianRepository(db.DB)
	codes := persistence.NewGormCodeRepository(db.DB)

	newLocation := func(name string, parent *asset.Location) *asset.Location {
		var parentID *uuid.UUID
		if parent != nil {
			parentID = &parent.ID
		}
		l, err := asset.NewLocation(c.TenantID, name, parentID)
		require.NoError(t, err)
		require.NoError(t, locations.Save(ctx, l))
		return l
	}
	c.Warehouse = newLocation("Warehouse", nil)
	c.Aisle = newLocation("Aisle 1", c.Warehouse)
	c.Shelf = newLocation("Shelf A", c.Aisle)
	c.Office = newLocation("Office", nil)

	c.Kit = &asset.Kit{BaseEntity: shared.NewBaseEntity(), TenantID: c.TenantID, Name: "Camera kit"}
	require.NoError(t, kits.Save(ctx, c.Kit))
	c.Custodian = &asset.Custodian{BaseEntity: shared.NewBaseEntity(), TenantID: c.TenantID, Name: "Dana"}
	require.NoError(t, custodians.Save(ctx, c.Custodian))

	newAsset := func(title string, at *asset.Location, value int64, code string) *asset.Asset {
		a, err := asset.NewAsset(c.TenantID, title)
		require.NoError(t, err)
		a.PlaceAt(at.ID)
		a.Valuation = decimal.NewFromInt(value)
		require.NoError(t, assets.Save(ctx, a))
		require.NoError(t, codes.Save(ctx, &asset.Code{ID: code, TenantID: c.TenantID, AssetID: &a.ID}))
		return a
	}
	c.Forklift = newAsset("Forklift", c.Warehouse, 12000, CodeForklift)
	c.Ladder = newAsset("Ladder", c.Aisle, 150, CodeLadder)
	c.Camera = newAsset("Camera", c.Shelf, 900, CodeCamera)
	c.Drill = newAsset("Drill", c.Office, 80, CodeDrill)

	c.Camera.AssignToKit(c.Kit.ID)
	require.NoError(t, assets.Save(ctx, c.Camera))
	require.NoError(t, custodians.AssignCustody(ctx, &asset.Custody{AssetID: c.Ladder.ID, CustodianID: c.Custodian.ID}))
	require.NoError(t, codes.Save(ctx, &asset.Code{ID: CodeKit, TenantID: c.TenantID, KitID: &c.Kit.ID}))
	require.NoError(t, codes.Save(ctx, &asset.Code{ID: CodeOrphan, TenantID: c.TenantID}))
	return c
}

// Recorder collects published event types
type Recorder struct {
	mu    sync.Mutex
	types []string
}

// Handle implements shared.EventHandler
func (r *Recorder) Handle(_ context.Context, ev shared.DomainEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, ev.EventType())
	return nil
}

// EventTypes implements shared.EventHandler; empty means every event
func (r *Recorder) EventTypes() []string { return nil }

// Types returns the recorded event types in publish order
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.types...)
}

// Count returns how many events of eventType were recorded
func (r *Recorder) Count(eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.types {
		if t == eventType {
			n++
		}
	}
	return n
}
