package handler

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	appaudit "github.com/assetaudit/backend/internal/application/audit"
	"github.com/assetaudit/backend/internal/application/audit/audittest"
	"github.com/assetaudit/backend/internal/domain/audit"
	"github.com/assetaudit/backend/internal/interfaces/http/dto"
	"github.com/assetaudit/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type apiResponse[T any] struct {
	Success bool           `json:"success"`
	Data    T              `json:"data"`
	Error   *dto.ErrorInfo `json:"error"`
	Meta    *dto.Meta      `json:"meta"`
}

type testServer struct {
	engine *gin.Engine
	h      *audittest.Harness
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	h := audittest.New(t)
	middleware.SetupValidator()

	audits := NewAuditHandler(h.Service)
	codes := NewCodeHandler(h.Service)

	engine := gin.New()
	engine.Use(middleware.RequestID())
	api := engine.Group("/api/v1", middleware.HeaderIdentity())
	api.POST("/audits", audits.Create)
	api.GET("/audits", audits.List)
	api.GET("/audits/:id", audits.Get)
	api.GET("/audits/:id/expected", audits.ListExpectedAssets)
	api.GET("/audits/:id/scans", audits.ListScans)
	api.POST("/audits/:id/scans", audits.RecordScan)
	api.GET("/audits/:id/reconciliation", audits.GetReconciliation)
	api.POST("/audits/:id/complete", audits.Complete)
	api.POST("/audits/:id/cancel", audits.Cancel)
	api.GET("/codes/:code", codes.Resolve)
	return &testServer{engine: engine, h: h}
}

func (s *testServer) do(t *testing.T, method, path string, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, "/api/v1"+path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set(middleware.TenantHeader, s.h.Catalog.TenantID.String())
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func (s *testServer) json(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		require.NoError(t, err)
	}
	return s.do(t, method, path, raw, "application/json")
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) apiResponse[T] {
	t.Helper()
	var resp apiResponse[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func (s *testServer) createWarehouseAudit(t *testing.T) appaudit.AuditResponse {
	t.Helper()
	w := s.json(t, http.MethodPost, "/audits", map[string]any{
		"name":                "Warehouse count",
		"context_type":        "LOCATION",
		"context_id":          s.h.Catalog.Warehouse.ID,
		"include_descendants": true,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[appaudit.AuditResponse](t, w).Data
}

func (s *testServer) recordScan(t *testing.T, sessionID uuid.UUID, code string, assetID uuid.UUID) *httptest.ResponseRecorder {
	t.Helper()
	return s.json(t, http.MethodPost, "/audits/"+sessionID.String()+"/scans", map[string]any{
		"qr_id":    code,
		"asset_id": assetID,
	})
}

type upload struct {
	name        string
	contentType string
	data        []byte
}

func multipartBody(t *testing.T, note string, files ...upload) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("note", note))
	for _, f := range files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="attachments"; filename="`+f.name+`"`)
		header.Set("Content-Type", f.contentType)
		part, err := mw.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return buf.Bytes(), mw.FormDataContentType()
}

func TestAuditHandler_Create(t *testing.T) {
	s := newTestServer(t)

	t.Run("creates over a location subtree", func(t *testing.T) {
		session := s.createWarehouseAudit(t)
		assert.Equal(t, "ACTIVE", session.Status)
		assert.Equal(t, 3, session.ExpectedAssetCount)
		assert.Equal(t, "Warehouse", session.ContextName)
	})

	t.Run("validation error", func(t *testing.T) {
		w := s.json(t, http.MethodPost, "/audits", map[string]any{"name": "x", "context_type": "SHELF"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decode[any](t, w)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
		require.NotEmpty(t, resp.Error.Details)
		assert.Equal(t, "context_type", resp.Error.Details[0].Field)
	})

	t.Run("malformed json", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/audits", []byte("{"), "application/json")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("empty selection", func(t *testing.T) {
		w := s.json(t, http.MethodPost, "/audits", map[string]any{"name": "Nothing", "context_type": "SELECTION"})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, dto.ErrCodeEmptyContext, decode[any](t, w).Error.Code)
	})

	t.Run("missing tenant", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/audits", nil)
		w := httptest.NewRecorder()
		s.engine.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestAuditHandler_ScanAndReconcile(t *testing.T) {
	s := newTestServer(t)
	c := s.h.Catalog
	session := s.createWarehouseAudit(t)
	base := "/audits/" + session.ID.String()

	w := s.recordScan(t, session.ID, audittest.CodeLadder, c.Ladder.ID)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	first := decode[appaudit.RecordScanResponse](t, w).Data
	assert.True(t, first.IsExpected)
	assert.Equal(t, audit.Counts{Expected: 3, Found: 1, Missing: 2}, first.Counts)

	t.Run("repeated write is a duplicate", func(t *testing.T) {
		w := s.recordScan(t, session.ID, audittest.CodeLadder, c.Ladder.ID)
		require.Equal(t, http.StatusOK, w.Code)
		again := decode[appaudit.RecordScanResponse](t, w).Data
		assert.True(t, again.Duplicate)
		assert.Equal(t, first.ScanID, again.ScanID)
	})

	t.Run("unexpected asset", func(t *testing.T) {
		w := s.recordScan(t, session.ID, audittest.CodeDrill, c.Drill.ID)
		require.Equal(t, http.StatusCreated, w.Code)
		assert.False(t, decode[appaudit.RecordScanResponse](t, w).Data.IsExpected)
	})

	t.Run("unknown asset", func(t *testing.T) {
		w := s.recordScan(t, session.ID, "QR-GHOST", uuid.New())
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, dto.ErrCodeNotFound, decode[any](t, w).Error.Code)
	})

	t.Run("code longer than the stored column", func(t *testing.T) {
		w := s.recordScan(t, session.ID, strings.Repeat("Q", 101), c.Forklift.ID)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decode[any](t, w)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
		require.NotEmpty(t, resp.Error.Details)
		assert.Equal(t, "qr_id", resp.Error.Details[0].Field)
	})

	t.Run("reconciliation", func(t *testing.T) {
		w := s.do(t, http.MethodGet, base+"/reconciliation", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		rec := decode[appaudit.ReconciliationResponse](t, w).Data
		assert.Equal(t, audit.Counts{Expected: 3, Found: 1, Missing: 2, Unexpected: 1}, rec.Counts)
		require.Len(t, rec.Unexpected, 1)
		assert.Equal(t, "Drill", rec.Unexpected[0].Name)
	})

	t.Run("expected checklist", func(t *testing.T) {
		w := s.do(t, http.MethodGet, base+"/expected", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		items := decode[[]appaudit.ExpectedAssetResponse](t, w).Data
		require.Len(t, items, 3)
		found := 0
		for _, it := range items {
			if it.Found {
				found++
				assert.Equal(t, c.Ladder.ID, it.ID)
			}
		}
		assert.Equal(t, 1, found)
	})

	t.Run("scans", func(t *testing.T) {
		w := s.do(t, http.MethodGet, base+"/scans", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, decode[[]appaudit.ScanResponse](t, w).Data, 2)
	})

	t.Run("invalid audit id", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/audits/not-a-uuid", nil, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown audit", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/audits/"+uuid.NewString(), nil, "")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, dto.ErrCodeNotFound, decode[any](t, w).Error.Code)
	})
}

func TestAuditHandler_Complete(t *testing.T) {
	s := newTestServer(t)
	c := s.h.Catalog

	t.Run("multipart with photo", func(t *testing.T) {
		session := s.createWarehouseAudit(t)
		require.Equal(t, http.StatusCreated, s.recordScan(t, session.ID, audittest.CodeForklift, c.Forklift.ID).Code)

		body, contentType := multipartBody(t, "Shelf B was locked",
			upload{name: "shelf.png", contentType: "image/png", data: []byte("png-bytes")})
		w := s.do(t, http.MethodPost, "/audits/"+session.ID.String()+"/complete", body, contentType)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		done := decode[appaudit.AuditResponse](t, w).Data
		assert.Equal(t, "COMPLETED", done.Status)
		assert.Equal(t, "Shelf B was locked", done.CompletionNote)
		assert.Equal(t, 1, done.FoundAssetCount)
		assert.Equal(t, 2, done.MissingAssetCount)
		require.Len(t, done.Attachments, 1)
		assert.Equal(t, "shelf.png", done.Attachments[0].Filename)
		assert.Equal(t, 1, s.h.Storage.Len())

		w = s.recordScan(t, session.ID, audittest.CodeLadder, c.Ladder.ID)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidState, decode[any](t, w).Error.Code)
	})

	t.Run("json note only", func(t *testing.T) {
		session := s.createWarehouseAudit(t)
		w := s.json(t, http.MethodPost, "/audits/"+session.ID.String()+"/complete", map[string]string{"note": "quick"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "quick", decode[appaudit.AuditResponse](t, w).Data.CompletionNote)
	})

	t.Run("rejects non-image attachment", func(t *testing.T) {
		session := s.createWarehouseAudit(t)
		body, contentType := multipartBody(t, "", upload{name: "notes.txt", contentType: "text/plain", data: []byte("hi")})
		w := s.do(t, http.MethodPost, "/audits/"+session.ID.String()+"/complete", body, contentType)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidAttachment, decode[any](t, w).Error.Code)

		w = s.do(t, http.MethodGet, "/audits/"+session.ID.String(), nil, "")
		assert.Equal(t, "ACTIVE", decode[appaudit.AuditResponse](t, w).Data.Status)
	})

	t.Run("rejects more than five attachments", func(t *testing.T) {
		session := s.createWarehouseAudit(t)
		files := make([]upload, 6)
		for i := range files {
			files[i] = upload{name: "p.png", contentType: "image/png", data: []byte{1}}
		}
		body, contentType := multipartBody(t, "", files...)
		w := s.do(t, http.MethodPost, "/audits/"+session.ID.String()+"/complete", body, contentType)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeTooManyAttachments, decode[any](t, w).Error.Code)
	})
}

func TestAuditHandler_CancelAndList(t *testing.T) {
	s := newTestServer(t)
	kept := s.createWarehouseAudit(t)
	dropped := s.createWarehouseAudit(t)

	w := s.json(t, http.MethodPost, "/audits/"+dropped.ID.String()+"/cancel", map[string]string{"reason": "duplicate"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cancelled := decode[appaudit.AuditResponse](t, w).Data
	assert.Equal(t, "CANCELLED", cancelled.Status)
	assert.Equal(t, "duplicate", cancelled.CancelReason)

	w = s.do(t, http.MethodGet, "/audits?status=ACTIVE&page_size=10", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]appaudit.AuditResponse](t, w)
	require.Len(t, list.Data, 1)
	assert.Equal(t, kept.ID, list.Data[0].ID)
	require.NotNil(t, list.Meta)
	assert.Equal(t, int64(1), list.Meta.Total)

	w = s.do(t, http.MethodGet, "/audits?status=DONE", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCodeHandler_Resolve(t *testing.T) {
	s := newTestServer(t)

	t.Run("asset code", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/codes/"+audittest.CodeCamera, nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		res := decode[appaudit.CodeResolution](t, w).Data
		require.NotNil(t, res.Asset)
		assert.Equal(t, "Camera", res.Asset.Title)
	})

	t.Run("kit code", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/codes/"+audittest.CodeKit, nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		res := decode[appaudit.CodeResolution](t, w).Data
		require.NotNil(t, res.Kit)
		assert.Equal(t, "Camera kit", res.Kit.Name)
		assert.Equal(t, 1, res.Kit.AssetCount)
	})

	t.Run("unknown code", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/codes/NOPE", nil, "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
