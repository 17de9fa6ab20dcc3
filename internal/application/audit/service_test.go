package audit_test

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	appaudit "github.com/assetaudit/backend/internal/application/audit"
	"github.com/assetaudit/backend/internal/application/audit/audittest"
	"github.com/assetaudit/backend/internal/domain/asset"
	"github.com/assetaudit/backend/internal/domain/audit"
	"github.com/assetaudit/backend/internal/domain/shared"
	"github.com/assetaudit/backend/internal/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createWarehouseAudit(t *testing.T, h *audittest.Harness) *appaudit.AuditResponse {
	t.Helper()
	resp, err := h.Service.CreateAudit(context.Background(), h.Catalog.TenantID, appaudit.CreateAuditRequest{
		Name:               "Warehouse count",
		ContextType:        string(audit.ContextTypeLocation),
		ContextID:          &h.Catalog.Warehouse.ID,
		IncludeDescendants: true,
	}, nil)
	require.NoError(t, err)
	return resp
}

func scan(t *testing.T, h *audittest.Harness, sessionID uuid.UUID, code string, a *asset.Asset) *appaudit.RecordScanResponse {
	t.Helper()
	resp, err := h.Service.RecordScan(context.Background(), h.Catalog.TenantID, sessionID, appaudit.RecordScanRequest{
		QRID:    code,
		AssetID: a.ID,
	}, nil)
	require.NoError(t, err)
	return resp
}

func domainCode(t *testing.T, err error) string {
	t.Helper()
	de, ok := shared.AsDomainError(err)
	require.True(t, ok, "expected a domain error, got %v", err)
	return de.Code
}

func TestService_CreateAudit(t *testing.T) {
	h := audittest.New(t)
	ctx := context.Background()
	c := h.Catalog

	t.Run("location subtree", func(t *testing.T) {
		resp := createWarehouseAudit(t, h)
		assert.Equal(t, "ACTIVE", resp.Status)
		assert.Equal(t, "LOCATION", resp.ContextType)
		assert.Equal(t, "Warehouse", resp.ContextName)
		assert.Equal(t, 3, resp.ExpectedAssetCount)
		assert.Equal(t, 3, resp.MissingAssetCount)

		expected, err := h.Service.ListExpectedAssets(ctx, c.TenantID, resp.ID)
		require.NoError(t, err)
		names := make([]string, len(expected))
		for i, e := range expected {
			names[i] = e.Name
			assert.False(t, e.Found)
		}
		assert.ElementsMatch(t, []string{"Forklift", "Ladder", "Camera"}, names)
	})

	t.Run("custodian with target", func(t *testing.T) {
		bookingID := uuid.New()
		resp, err := h.Service.CreateAudit(ctx, c.TenantID, appaudit.CreateAuditRequest{
			Name:        "Dana's gear",
			ContextType: string(audit.ContextTypeUser),
			ContextID:   &c.Custodian.ID,
			TargetType:  "booking",
			TargetID:    &bookingID,
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, resp.ExpectedAssetCount)
		assert.Equal(t, "Dana", resp.ContextName)
		assert.Equal(t, bookingID, *resp.TargetID)
	})

	t.Run("empty selection", func(t *testing.T) {
		_, err := h.Service.CreateAudit(ctx, c.TenantID, appaudit.CreateAuditRequest{
			Name:        "Nothing",
			ContextType: string(audit.ContextTypeSelection),
		}, nil)
		assert.ErrorIs(t, err, shared.ErrEmptyContext)
	})

	t.Run("location of another tenant", func(t *testing.T) {
		_, err := h.Service.CreateAudit(ctx, uuid.New(), appaudit.CreateAuditRequest{
			Name:        "Foreign",
			ContextType: string(audit.ContextTypeLocation),
			ContextID:   &c.Warehouse.ID,
		}, nil)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	assert.Equal(t, 2, h.Events.Count(audit.EventTypeAuditSessionStarted))
}

func TestService_ReconciliationScenario(t *testing.T) {
	h := audittest.New(t)
	ctx := context.Background()
	c := h.Catalog
	session := createWarehouseAudit(t, h)

	first := scan(t, h, session.ID, audittest.CodeLadder, c.Ladder)
	assert.True(t, first.Success)
	assert.False(t, first.Duplicate)
	assert.True(t, first.IsExpected)
	assert.Equal(t, audit.Counts{Expected: 3, Found: 1, Missing: 2}, first.Counts)

	unexpected := scan(t, h, session.ID, audittest.CodeDrill, c.Drill)
	assert.False(t, unexpected.IsExpected)
	assert.Equal(t, audit.Counts{Expected: 3, Found: 1, Missing: 2, Unexpected: 1}, unexpected.Counts)

	again := scan(t, h, session.ID, audittest.CodeLadder, c.Ladder)
	assert.True(t, again.Duplicate)
	assert.Equal(t, first.ScanID, again.ScanID)

	rec, err := h.Service.GetReconciliation(ctx, c.TenantID, session.ID)
	require.NoError(t, err)
	assert.Equal(t, audit.Counts{Expected: 3, Found: 1, Missing: 2, Unexpected: 1}, rec.Counts)
	require.Len(t, rec.Found, 1)
	assert.Equal(t, c.Ladder.ID, rec.Found[0].ID)
	require.Len(t, rec.Unexpected, 1)
	assert.Equal(t, "Drill", rec.Unexpected[0].Name)
	assert.True(t, rec.MissingValue.Equal(decimal.NewFromInt(12900)), rec.MissingValue.String())

	scans, err := h.Service.ListScans(ctx, c.TenantID, session.ID)
	require.NoError(t, err)
	require.Len(t, scans, 2)
	assert.Equal(t, "Ladder", scans[0].Asset.Title)
	assert.Equal(t, "Aisle 1", scans[0].Asset.LocationName)

	done, err := h.Service.CompleteAudit(ctx, c.TenantID, session.ID, appaudit.CompleteAuditInput{Note: "ok"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", done.Status)
	assert.Equal(t, "ok", done.CompletionNote)
	assert.Equal(t, 3, done.ExpectedAssetCount)
	assert.Equal(t, 1, done.FoundAssetCount)
	assert.Equal(t, 2, done.MissingAssetCount)
	assert.Equal(t, 1, done.UnexpectedAssetCount)
	assert.NotNil(t, done.CompletedAt)

	_, err = h.Service.RecordScan(ctx, c.TenantID, session.ID, appaudit.RecordScanRequest{QRID: audittest.CodeCamera, AssetID: c.Camera.ID}, nil)
	assert.ErrorIs(t, err, shared.ErrInvalidState)

	_, err = h.Service.CompleteAudit(ctx, c.TenantID, session.ID, appaudit.CompleteAuditInput{}, nil)
	assert.ErrorIs(t, err, shared.ErrInvalidState)

	assert.Equal(t, 2, h.Events.Count(audit.EventTypeAuditScanRecorded))
	assert.Equal(t, 1, h.Events.Count(audit.EventTypeAuditSessionCompleted))
}

func TestService_RecordScan_ServerDecidesExpectation(t *testing.T) {
	h := audittest.New(t)
	c := h.Catalog
	session := createWarehouseAudit(t, h)

	resp, err := h.Service.RecordScan(context.Background(), c.TenantID, session.ID, appaudit.RecordScanRequest{
		QRID:       "  " + audittest.CodeDrill + " ",
		AssetID:    c.Drill.ID,
		IsExpected: true,
	}, nil)
	require.NoError(t, err)
	assert.False(t, resp.IsExpected)
	assert.Equal(t, 1, resp.Counts.Unexpected)

	scans, err := h.Service.ListScans(context.Background(), c.TenantID, session.ID)
	require.NoError(t, err)
	require.Len(t, scans, 1)
	assert.Equal(t, audittest.CodeDrill, scans[0].QRID)
}

func TestService_RecordScan_RejectsUnknownAssets(t *testing.T) {
	h := audittest.New(t)
	c := h.Catalog
	ctx := context.Background()
	session := createWarehouseAudit(t, h)

	foreign, err := asset.NewAsset(uuid.New(), "Foreign forklift")
	require.NoError(t, err)
	require.NoError(t, persistence.NewGormAssetRepository(h.DB.DB).Save(ctx, foreign))

	for _, id := range []uuid.UUID{uuid.New(), foreign.ID} {
		_, err := h.Service.RecordScan(ctx, c.TenantID, session.ID, appaudit.RecordScanRequest{QRID: "QR-GHOST", AssetID: id}, nil)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	}

	scans, err := h.Service.ListScans(ctx, c.TenantID, session.ID)
	require.NoError(t, err)
	assert.Empty(t, scans)
	got, err := h.Service.GetAudit(ctx, c.TenantID, session.ID)
	require.NoError(t, err)
	assert.Zero(t, got.UnexpectedAssetCount)
}

func TestService_RecordScan_Concurrent(t *testing.T) {
	h := audittest.New(t)
	c := h.Catalog
	session := createWarehouseAudit(t, h)

	const writers = 10
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		created  int
		scanIDs  = make(map[uuid.UUID]struct{})
		failures []error
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := h.Service.RecordScan(context.Background(), c.TenantID, session.ID, appaudit.RecordScanRequest{
				QRID:    audittest.CodeCamera,
				AssetID: c.Camera.ID,
			}, nil)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, err)
				return
			}
			if !resp.Duplicate {
				created++
			}
			scanIDs[resp.ScanID] = struct{}{}
		}()
	}
	wg.Wait()

	require.Empty(t, failures)
	assert.Equal(t, 1, created)
	assert.Len(t, scanIDs, 1)

	detail, err := h.Service.GetAudit(context.Background(), c.TenantID, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, detail.FoundAssetCount)
	assert.Equal(t, 1, h.Events.Count(audit.EventTypeAuditScanRecorded))
}

func TestService_CompleteAudit_Attachments(t *testing.T) {
	ctx := context.Background()
	png := func(name string) appaudit.AttachmentUpload {
		data := []byte("\x89PNG fake " + name)
		return appaudit.AttachmentUpload{Filename: name, ContentType: "image/png", Size: int64(len(data)), Body: bytes.NewReader(data)}
	}

	t.Run("stores photos and signs links", func(t *testing.T) {
		h := audittest.New(t)
		session := createWarehouseAudit(t, h)

		done, err := h.Service.CompleteAudit(ctx, h.Catalog.TenantID, session.ID, appaudit.CompleteAuditInput{
			Note:        "two photos",
			Attachments: []appaudit.AttachmentUpload{png("front.png"), png("back.png")},
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, 2, h.Storage.Len())
		assert.Equal(t, 0, done.FoundAssetCount)
		assert.Equal(t, 3, done.MissingAssetCount)

		detail, err := h.Service.GetAudit(ctx, h.Catalog.TenantID, session.ID)
		require.NoError(t, err)
		require.Len(t, detail.Attachments, 2)
		prefix := "audits/" + h.Catalog.TenantID.String() + "/" + session.ID.String() + "/"
		for _, a := range detail.Attachments {
			assert.Contains(t, a.URL, prefix)
			assert.Contains(t, a.URL, ".png?")
			assert.NotNil(t, a.URLExpiresAt)
		}
	})

	t.Run("too many photos", func(t *testing.T) {
		h := audittest.New(t)
		session := createWarehouseAudit(t, h)
		uploads := make([]appaudit.AttachmentUpload, audit.MaxAttachments+1)
		for i := range uploads {
			uploads[i] = png("p.png")
		}
		_, err := h.Service.CompleteAudit(ctx, h.Catalog.TenantID, session.ID, appaudit.CompleteAuditInput{Attachments: uploads}, nil)
		assert.Equal(t, "TOO_MANY_ATTACHMENTS", domainCode(t, err))
		assert.Equal(t, 0, h.Storage.Len())
	})

	t.Run("non image rejected", func(t *testing.T) {
		h := audittest.New(t)
		session := createWarehouseAudit(t, h)
		doc := appaudit.AttachmentUpload{Filename: "notes.pdf", ContentType: "application/pdf", Size: 3, Body: strings.NewReader("pdf")}
		_, err := h.Service.CompleteAudit(ctx, h.Catalog.TenantID, session.ID, appaudit.CompleteAuditInput{Attachments: []appaudit.AttachmentUpload{doc}}, nil)
		assert.Equal(t, "INVALID_ATTACHMENT", domainCode(t, err))

		detail, err := h.Service.GetAudit(ctx, h.Catalog.TenantID, session.ID)
		require.NoError(t, err)
		assert.Equal(t, "ACTIVE", detail.Status)
	})
}

func TestService_CancelAudit(t *testing.T) {
	h := audittest.New(t)
	ctx := context.Background()
	c := h.Catalog
	session := createWarehouseAudit(t, h)
	scan(t, h, session.ID, audittest.CodeForklift, c.Forklift)

	cancelled, err := h.Service.CancelAudit(ctx, c.TenantID, session.ID, appaudit.CancelAuditRequest{Reason: "wrong shelf"})
	require.NoError(t, err)
	assert.Equal(t, "CANCELLED", cancelled.Status)
	assert.Equal(t, "wrong shelf", cancelled.CancelReason)
	assert.Equal(t, 1, cancelled.FoundAssetCount)

	_, err = h.Service.RecordScan(ctx, c.TenantID, session.ID, appaudit.RecordScanRequest{QRID: audittest.CodeLadder, AssetID: c.Ladder.ID}, nil)
	assert.ErrorIs(t, err, shared.ErrInvalidState)

	_, err = h.Service.CancelAudit(ctx, c.TenantID, session.ID, appaudit.CancelAuditRequest{})
	assert.ErrorIs(t, err, shared.ErrInvalidState)
	assert.Equal(t, 1, h.Events.Count(audit.EventTypeAuditSessionCancelled))
}

func TestService_ListAudits(t *testing.T) {
	h := audittest.New(t)
	ctx := context.Background()
	c := h.Catalog

	first := createWarehouseAudit(t, h)
	bookingID := uuid.New()
	second, err := h.Service.CreateAudit(ctx, c.TenantID, appaudit.CreateAuditRequest{
		Name:        "Kit check",
		ContextType: string(audit.ContextTypeKit),
		ContextID:   &c.Kit.ID,
		TargetType:  "booking",
		TargetID:    &bookingID,
	}, nil)
	require.NoError(t, err)
	_, err = h.Service.CompleteAudit(ctx, c.TenantID, first.ID, appaudit.CompleteAuditInput{}, nil)
	require.NoError(t, err)

	all, err := h.Service.ListAudits(ctx, c.TenantID, appaudit.AuditListFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, all.Total)

	active, err := h.Service.ListAudits(ctx, c.TenantID, appaudit.AuditListFilter{Status: "ACTIVE"})
	require.NoError(t, err)
	require.Len(t, active.Items, 1)
	assert.Equal(t, second.ID, active.Items[0].ID)

	byTarget, err := h.Service.ListAudits(ctx, c.TenantID, appaudit.AuditListFilter{TargetID: bookingID.String()})
	require.NoError(t, err)
	require.Len(t, byTarget.Items, 1)
	assert.Equal(t, "Kit check", byTarget.Items[0].Name)

	_, err = h.Service.ListAudits(ctx, c.TenantID, appaudit.AuditListFilter{TargetID: "nope"})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	other, err := h.Service.ListAudits(ctx, uuid.New(), appaudit.AuditListFilter{})
	require.NoError(t, err)
	assert.Empty(t, other.Items)
}

func TestService_ResolveCode(t *testing.T) {
	h := audittest.New(t)
	ctx := context.Background()
	c := h.Catalog

	res, err := h.Service.ResolveCode(ctx, c.TenantID, " "+audittest.CodeCamera+"\n")
	require.NoError(t, err)
	assert.Equal(t, asset.CodeTargetAsset, res.Type)
	require.NotNil(t, res.Asset)
	assert.Equal(t, c.Camera.ID, res.Asset.ID)
	assert.Equal(t, "Shelf A", res.Asset.LocationName)

	res, err = h.Service.ResolveCode(ctx, c.TenantID, audittest.CodeKit)
	require.NoError(t, err)
	assert.Equal(t, asset.CodeTargetKit, res.Type)
	require.NotNil(t, res.Kit)
	assert.Equal(t, 1, res.Kit.AssetCount)

	res, err = h.Service.ResolveCode(ctx, c.TenantID, audittest.CodeOrphan)
	require.NoError(t, err)
	assert.Equal(t, asset.CodeTargetUnknown, res.Type)

	_, err = h.Service.ResolveCode(ctx, c.TenantID, "QR-MISSING")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = h.Service.ResolveCode(ctx, uuid.New(), audittest.CodeCamera)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = h.Service.ResolveCode(ctx, c.TenantID, "   ")
	assert.Equal(t, "INVALID_CODE", domainCode(t, err))
}

func TestService_GetAudit_TenantScoped(t *testing.T) {
	h := audittest.New(t)
	session := createWarehouseAudit(t, h)

	_, err := h.Service.GetAudit(context.Background(), uuid.New(), session.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	_, err = h.Service.ListScans(context.Background(), uuid.New(), session.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
