package persistence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/assetaudit/backend/internal/domain/audit"
	"github.com/assetaudit/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type auditFixture struct {
	*catalogFixture
	sessions *GormAuditSessionRepository
	scans    *GormAuditScanRepository
	session  *audit.AuditSession
}

// newAuditFixture starts an audit over the aisle subtree: Ladder and Camera are
// expected, the Forklift is not.
func newAuditFixture(t *testing.T) *auditFixture {
	t.Helper()
	db := newSQLiteDatabase(t)
	f := &auditFixture{
		catalogFixture: seedCatalog(t, db.DB),
		sessions:       NewGormAuditSessionRepository(db.DB),
		scans:          NewGormAuditScanRepository(db.DB),
	}
	expected := []audit.ExpectedAsset{
		{ID: f.atAisle.ID, Name: f.atAisle.Title, Valuation: f.atAisle.Valuation},
		{ID: f.atShelf.ID, Name: f.atShelf.Title, Valuation: f.atShelf.Valuation},
	}
	resolved := audit.ResolvedContext{
		Type:               audit.ContextTypeLocation,
		Name:               f.aisle.Name,
		RefID:              &f.aisle.ID,
		IncludeDescendants: true,
	}
	s, err := audit.NewAuditSession(f.tenantID, "Aisle 1 audit", resolved, expected, nil)
	require.NoError(t, err)
	require.NoError(t, f.sessions.Save(context.Background(), s))
	f.session = s
	return f
}

func (f *auditFixture) record(t *testing.T, assetID uuid.UUID, expected bool, at time.Time) *audit.RecordResult {
	t.Helper()
	scan, err := audit.NewAuditScan(f.tenantID, f.session.ID, "QR-"+assetID.String()[:8], assetID, expected)
	require.NoError(t, err)
	scan.ScannedAt = at
	res, err := f.scans.Record(context.Background(), scan)
	require.NoError(t, err)
	return res
}

func TestGormAuditSessionRepository_SaveAndFind(t *testing.T) {
	f := newAuditFixture(t)
	ctx := context.Background()

	loaded, err := f.sessions.FindByIDForTenant(ctx, f.tenantID, f.session.ID)
	require.NoError(t, err)
	assert.Equal(t, "Aisle 1 audit", loaded.Name)
	assert.Equal(t, audit.SessionStatusActive, loaded.Status)
	assert.Equal(t, audit.ContextTypeLocation, loaded.ContextType)
	assert.True(t, loaded.IncludeDescendants)
	require.Len(t, loaded.ExpectedAssets, 2)
	assert.Equal(t, f.atAisle.ID, loaded.ExpectedAssets[0].ID)
	assert.Equal(t, f.atShelf.ID, loaded.ExpectedAssets[1].ID)
	assert.True(t, decimal.NewFromInt(900).Equal(loaded.ExpectedAssets[1].Valuation))
	assert.Equal(t, audit.Counts{Expected: 2, Missing: 2}, loaded.Counts())

	_, err = f.sessions.FindByIDForTenant(ctx, uuid.New(), f.session.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormAuditSessionRepository_CompleteWithAttachments(t *testing.T) {
	f := newAuditFixture(t)
	ctx := context.Background()

	attachments := []audit.Attachment{{
		ID:          uuid.New(),
		Filename:    "shelf.jpg",
		ContentType: "image/jpeg",
		StorageKey:  "audits/x/shelf.jpg",
		Size:        1024,
		CreatedAt:   time.Now(),
	}}
	require.NoError(t, f.session.Complete(audit.Counts{Expected: 2, Found: 1, Missing: 1}, "one missing", attachments, nil))
	require.NoError(t, f.sessions.Save(ctx, f.session))
	// saving again must not duplicate attachments or expected assets
	require.NoError(t, f.sessions.Save(ctx, f.session))

	loaded, err := f.sessions.FindByIDForTenant(ctx, f.tenantID, f.session.ID)
	require.NoError(t, err)
	assert.Equal(t, audit.SessionStatusCompleted, loaded.Status)
	assert.Equal(t, "one missing", loaded.CompletionNote)
	assert.NotNil(t, loaded.CompletedAt)
	assert.Equal(t, 1, loaded.FoundAssetCount)
	require.Len(t, loaded.Attachments, 1)
	assert.Equal(t, "shelf.jpg", loaded.Attachments[0].Filename)
	assert.Len(t, loaded.ExpectedAssets, 2)
}

func TestGormAuditSessionRepository_FindAll(t *testing.T) {
	f := newAuditFixture(t)
	ctx := context.Background()

	second, err := audit.NewAuditSession(f.tenantID, "Kit check", audit.ResolvedContext{Type: audit.ContextTypeKit, Name: f.kit.Name},
		[]audit.ExpectedAsset{{ID: f.atShelf.ID}}, nil)
	require.NoError(t, err)
	second.SetTarget("booking", uuid.New())
	require.NoError(t, second.Cancel("wrong kit"))
	require.NoError(t, f.sessions.Save(ctx, second))

	filter := shared.DefaultFilter()
	all, err := f.sessions.FindAllForTenant(ctx, f.tenantID, filter)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	filter.Filters["status"] = string(audit.SessionStatusActive)
	active, err := f.sessions.FindAllForTenant(ctx, f.tenantID, filter)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, f.session.ID, active[0].ID)
	assert.Empty(t, active[0].ExpectedAssets)

	filter = shared.DefaultFilter()
	filter.Filters["target_id"] = *second.TargetID
	count, err := f.sessions.CountForTenant(ctx, f.tenantID, filter)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	filter = shared.DefaultFilter()
	filter.Search = "kit"
	count, err = f.sessions.CountForTenant(ctx, f.tenantID, filter)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestGormAuditScanRepository_Record(t *testing.T) {
	f := newAuditFixture(t)
	ctx := context.Background()
	t0 := time.Now().Add(-time.Minute)

	first := f.record(t, f.atAisle.ID, true, t0)
	assert.True(t, first.Created)
	assert.Equal(t, audit.Counts{Expected: 2, Found: 1, Missing: 1}, first.Counts)

	t.Run("same asset again is a no-op", func(t *testing.T) {
		again := f.record(t, f.atAisle.ID, true, t0.Add(time.Second))
		assert.False(t, again.Created)
		assert.Equal(t, first.Scan.ID, again.Scan.ID)
		assert.Equal(t, first.Counts, again.Counts)
	})

	t.Run("unexpected asset", func(t *testing.T) {
		res := f.record(t, f.atWarehouse.ID, false, t0.Add(2*time.Second))
		assert.True(t, res.Created)
		assert.Equal(t, audit.Counts{Expected: 2, Found: 1, Missing: 1, Unexpected: 1}, res.Counts)
	})

	t.Run("counters are stored on the session", func(t *testing.T) {
		loaded, err := f.sessions.FindByIDForTenant(ctx, f.tenantID, f.session.ID)
		require.NoError(t, err)
		assert.Equal(t, audit.Counts{Expected: 2, Found: 1, Missing: 1, Unexpected: 1}, loaded.Counts())

		scans, err := f.scans.FindBySession(ctx, f.tenantID, f.session.ID)
		require.NoError(t, err)
		assert.Len(t, scans, 2)
	})

	t.Run("FindBySessionAndAsset", func(t *testing.T) {
		scan, err := f.scans.FindBySessionAndAsset(ctx, f.tenantID, f.session.ID, f.atAisle.ID)
		require.NoError(t, err)
		assert.True(t, scan.IsExpected)

		_, err = f.scans.FindBySessionAndAsset(ctx, f.tenantID, f.session.ID, f.atShelf.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("FindBySession joins asset summaries in scan order", func(t *testing.T) {
		scans, err := f.scans.FindBySession(ctx, f.tenantID, f.session.ID)
		require.NoError(t, err)
		require.Len(t, scans, 2)
		assert.Equal(t, f.atAisle.ID, scans[0].AssetID)
		assert.Equal(t, "Ladder", scans[0].Asset.Title)
		assert.Equal(t, "Aisle 1", scans[0].Asset.LocationName)
		assert.Equal(t, "Forklift", scans[1].Asset.Title)
		assert.False(t, scans[1].IsExpected)
	})
}

func TestGormAuditScanRepository_RecordRejectsInactiveSession(t *testing.T) {
	f := newAuditFixture(t)
	ctx := context.Background()
	require.NoError(t, f.session.Cancel(""))
	require.NoError(t, f.sessions.Save(ctx, f.session))

	scan, err := audit.NewAuditScan(f.tenantID, f.session.ID, "QR-1", f.atAisle.ID, true)
	require.NoError(t, err)
	_, err = f.scans.Record(ctx, scan)
	assert.ErrorIs(t, err, shared.ErrInvalidState)

	scans, err := f.scans.FindBySession(ctx, f.tenantID, f.session.ID)
	require.NoError(t, err)
	assert.Empty(t, scans)

	scan.AuditSessionID = uuid.New()
	_, err = f.scans.Record(ctx, scan)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormAuditScanRepository_ConcurrentRecord(t *testing.T) {
	f := newAuditFixture(t)
	ctx := context.Background()

	const writers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			scan, err := audit.NewAuditScan(f.tenantID, f.session.ID, "QR-LADDER", f.atAisle.ID, true)
			if !assert.NoError(t, err) {
				return
			}
			res, err := f.scans.Record(ctx, scan)
			if !assert.NoError(t, err) {
				return
			}
			if res.Created {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	scans, err := f.scans.FindBySession(ctx, f.tenantID, f.session.ID)
	require.NoError(t, err)
	assert.Len(t, scans, 1)
}

func TestGormAuditScanRepository_FindBySessionAndAsset_Postgres(t *testing.T) {
	db, mock, _ := newMockDatabase(t)
	repo := NewGormAuditScanRepository(db.DB)

	mock.ExpectQuery(`SELECT \* FROM "audit_scans" WHERE .*tenant_id = \$1 AND audit_session_id = \$2 AND asset_id = \$3`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.FindBySessionAndAsset(context.Background(), uuid.New(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
