package handler

import (
	"io"
	"mime/multipart"
	"strings"

	appaudit "github.com/assetaudit/backend/internal/application/audit"
	"github.com/assetaudit/backend/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// multipartMemory is how much of a completion upload gin keeps in memory before spilling to disk
const multipartMemory = 32 << 20

// AuditHandler handles audit-related API endpoints
type AuditHandler struct {
	BaseHandler
	auditService *appaudit.Service
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(auditService *appaudit.Service) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

// CompleteAuditJSONRequest is the body of a completion without attachments
type CompleteAuditJSONRequest struct {
	Note string `json:"note" binding:"max=2000"`
}

// Create godoc
//
//	POST /audits
//
// Resolves the context into an expected set and opens an active audit.
func (h *AuditHandler) Create(c *gin.Context) {
	tenantID, ok := h.requireTenant(c)
	if !ok {
		return
	}

	var req appaudit.CreateAuditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	resp, err := h.auditService.CreateAudit(c.Request.Context(), tenantID, req, getUserID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// List godoc
//
//	GET /audits
func (h *AuditHandler) List(c *gin.Context) {
	tenantID, ok := h.requireTenant(c)
	if !ok {
		return
	}

	var filter appaudit.AuditListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BindError(c, err)
		return
	}

	page, err := h.auditService.ListAudits(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// Get godoc
//
//	GET /audits/:id
func (h *AuditHandler) Get(c *gin.Context) {
	tenantID, sessionID, ok := h.auditScope(c)
	if !ok {
		return
	}

	resp, err := h.auditService.GetAudit(c.Request.Context(), tenantID, sessionID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// ListExpectedAssets godoc
//
//	GET /audits/:id/expected
//
// Returns the expected checklist with a found flag per asset.
func (h *AuditHandler) ListExpectedAssets(c *gin.Context) {
	tenantID, sessionID, ok := h.auditScope(c)
	if !ok {
		return
	}

	items, err := h.auditService.ListExpectedAssets(c.Request.Context(), tenantID, sessionID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, items)
}

// ListScans godoc
//
//	GET /audits/:id/scans
func (h *AuditHandler) ListScans(c *gin.Context) {
	tenantID, sessionID, ok := h.auditScope(c)
	if !ok {
		return
	}

	scans, err := h.auditService.ListScans(c.Request.Context(), tenantID, sessionID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, scans)
}

// RecordScan godoc
//
//	POST /audits/:id/scans
//
// Idempotent per (audit, asset); a repeated write returns the first scan with duplicate=true.
func (h *AuditHandler) RecordScan(c *gin.Context) {
	tenantID, sessionID, ok := h.auditScope(c)
	if !ok {
		return
	}

	var req appaudit.RecordScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	resp, err := h.auditService.RecordScan(c.Request.Context(), tenantID, sessionID, req, getUserID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if resp.Duplicate {
		h.Success(c, resp)
		return
	}
	h.Created(c, resp)
}

// GetReconciliation godoc
//
//	GET /audits/:id/reconciliation
func (h *AuditHandler) GetReconciliation(c *gin.Context) {
	tenantID, sessionID, ok := h.auditScope(c)
	if !ok {
		return
	}

	resp, err := h.auditService.GetReconciliation(c.Request.Context(), tenantID, sessionID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Complete godoc
//
//	POST /audits/:id/complete
//
// Accepts multipart/form-data with a "note" field and up to five "attachments"
// image files, or a JSON body with just the note.
func (h *AuditHandler) Complete(c *gin.Context) {
	tenantID, sessionID, ok := h.auditScope(c)
	if !ok {
		return
	}

	var in appaudit.CompleteAuditInput
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := c.Request.ParseMultipartForm(multipartMemory); err != nil {
			h.BadRequest(c, "Invalid multipart form")
			return
		}
		in.Note = c.Request.FormValue("note")

		var files []*multipart.FileHeader
		if c.Request.MultipartForm != nil {
			files = c.Request.MultipartForm.File["attachments"]
		}
		closers, err := openAttachments(files, &in)
		defer closeAll(closers)
		if err != nil {
			h.BadRequest(c, "Unable to read attachment")
			return
		}
	} else if c.Request.ContentLength != 0 {
		var req CompleteAuditJSONRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BindError(c, err)
			return
		}
		in.Note = req.Note
	}

	resp, err := h.auditService.CompleteAudit(c.Request.Context(), tenantID, sessionID, in, getUserID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Cancel godoc
//
//	POST /audits/:id/cancel
func (h *AuditHandler) Cancel(c *gin.Context) {
	tenantID, sessionID, ok := h.auditScope(c)
	if !ok {
		return
	}

	var req appaudit.CancelAuditRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BindError(c, err)
			return
		}
	}

	resp, err := h.auditService.CancelAudit(c.Request.Context(), tenantID, sessionID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// auditScope reads the tenant and the :id parameter and tags the request logger with the audit
func (h *AuditHandler) auditScope(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	tenantID, ok := h.requireTenant(c)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	sessionID, ok := h.pathID(c, "id")
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	c.Request = c.Request.WithContext(logger.WithAuditSessionID(c.Request.Context(), sessionID.String()))
	return tenantID, sessionID, true
}

func openAttachments(files []*multipart.FileHeader, in *appaudit.CompleteAuditInput) ([]io.Closer, error) {
	closers := make([]io.Closer, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return closers, err
		}
		closers = append(closers, f)
		in.Attachments = append(in.Attachments, appaudit.AttachmentUpload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Body:        f,
		})
	}
	return closers, nil
}

func closeAll(closers []io.Closer) {
	for _, c := range closers {
		_ = c.Close()
	}
}
