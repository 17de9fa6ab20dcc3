package handler

import (
	appaudit "github.com/assetaudit/backend/internal/application/audit"
	"github.com/gin-gonic/gin"
)

// CodeHandler resolves printed codes for scanning clients
type CodeHandler struct {
	BaseHandler
	auditService *appaudit.Service
}

// NewCodeHandler creates a new CodeHandler
func NewCodeHandler(auditService *appaudit.Service) *CodeHandler {
	return &CodeHandler{auditService: auditService}
}

// Resolve godoc
//
//	GET /codes/:code
//
// Returns the asset summary or kit a scanned code is linked to.
func (h *CodeHandler) Resolve(c *gin.Context) {
	tenantID, ok := h.requireTenant(c)
	if !ok {
		return
	}

	resp, err := h.auditService.ResolveCode(c.Request.Context(), tenantID, c.Param("code"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}
