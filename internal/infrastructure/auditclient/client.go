// Package auditclient talks to the audit HTTP API. It implements the engine's
// Backend so a scanning client can run against a remote server.
package auditclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	appaudit "github.com/assetaudit/backend/internal/application/audit"
	"github.com/assetaudit/backend/internal/application/auditsession"
	"github.com/assetaudit/backend/internal/domain/shared"
	"github.com/assetaudit/backend/internal/interfaces/http/dto"
	"github.com/google/uuid"
)

// Config describes how to reach the API
type Config struct {
	BaseURL string // e.g. http://localhost:8080
	// Token is sent as a bearer token when set; otherwise TenantID/UserID go in headers.
	Token    string
	TenantID string
	UserID   string
	Timeout  time.Duration
}

// Client is a typed client for /api/v1
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	headers    http.Header
}

var _ auditsession.Backend = (*Client)(nil)

// New creates a Client
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if cfg.Token == "" && cfg.TenantID == "" {
		return nil, fmt.Errorf("either a token or a tenant ID is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	headers := make(http.Header)
	headers.Set("Accept", "application/json")
	headers.Set("User-Agent", "asset-auditscan/1.0")
	if cfg.Token != "" {
		headers.Set("Authorization", "Bearer "+cfg.Token)
	} else {
		headers.Set("X-Tenant-ID", cfg.TenantID)
		if cfg.UserID != "" {
			headers.Set("X-User-ID", cfg.UserID)
		}
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    base,
		headers:    headers,
	}, nil
}

// CreateAudit opens an audit
func (c *Client) CreateAudit(ctx context.Context, req appaudit.CreateAuditRequest) (*appaudit.AuditResponse, error) {
	var out appaudit.AuditResponse
	if err := c.doJSON(ctx, http.MethodPost, "/audits", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetAudit implements auditsession.SessionSource
func (c *Client) GetAudit(ctx context.Context, sessionID uuid.UUID) (*appaudit.AuditResponse, error) {
	var out appaudit.AuditResponse
	if err := c.doJSON(ctx, http.MethodGet, auditPath(sessionID, ""), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListExpectedAssets implements auditsession.SessionSource
func (c *Client) ListExpectedAssets(ctx context.Context, sessionID uuid.UUID) ([]appaudit.ExpectedAssetResponse, error) {
	var out []appaudit.ExpectedAssetResponse
	if err := c.doJSON(ctx, http.MethodGet, auditPath(sessionID, "/expected"), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListScans implements auditsession.SessionSource
func (c *Client) ListScans(ctx context.Context, sessionID uuid.UUID) ([]appaudit.ScanResponse, error) {
	var out []appaudit.ScanResponse
	if err := c.doJSON(ctx, http.MethodGet, auditPath(sessionID, "/scans"), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ResolveCode implements auditsession.CodeResolver
func (c *Client) ResolveCode(ctx context.Context, code string) (*appaudit.CodeResolution, error) {
	var out appaudit.CodeResolution
	if err := c.doJSON(ctx, http.MethodGet, "/codes/"+url.PathEscape(code), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RecordScan implements auditsession.ScanWriter
func (c *Client) RecordScan(ctx context.Context, sessionID uuid.UUID, req appaudit.RecordScanRequest) (*appaudit.RecordScanResponse, error) {
	var out appaudit.RecordScanResponse
	if err := c.doJSON(ctx, http.MethodPost, auditPath(sessionID, "/scans"), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetReconciliation fetches the server-side report
func (c *Client) GetReconciliation(ctx context.Context, sessionID uuid.UUID) (*appaudit.ReconciliationResponse, error) {
	var out appaudit.ReconciliationResponse
	if err := c.doJSON(ctx, http.MethodGet, auditPath(sessionID, "/reconciliation"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CancelAudit abandons an audit
func (c *Client) CancelAudit(ctx context.Context, sessionID uuid.UUID, reason string) (*appaudit.AuditResponse, error) {
	var out appaudit.AuditResponse
	body := appaudit.CancelAuditRequest{Reason: reason}
	if err := c.doJSON(ctx, http.MethodPost, auditPath(sessionID, "/cancel"), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CompleteAudit implements auditsession.Completer; attachments are sent as multipart parts
func (c *Client) CompleteAudit(ctx context.Context, sessionID uuid.UUID, in appaudit.CompleteAuditInput) (*appaudit.AuditResponse, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("note", in.Note); err != nil {
		return nil, err
	}
	for _, att := range in.Attachments {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="attachments"; filename=%q`, att.Filename))
		header.Set("Content-Type", att.ContentType)
		part, err := mw.CreatePart(header)
		if err != nil {
			return nil, err
		}
		if att.Body == nil {
			continue
		}
		if _, err := io.Copy(part, att.Body); err != nil {
			return nil, fmt.Errorf("failed to read attachment %s: %w", att.Filename, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var out appaudit.AuditResponse
	if err := c.do(ctx, http.MethodPost, auditPath(sessionID, "/complete"), &buf, mw.FormDataContentType(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	contentType := ""
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
		contentType = "application/json"
	}
	return c.do(ctx, method, path, reader, contentType, out)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	u := c.baseURL.JoinPath("/api/v1", path)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	for k, v := range c.headers {
		req.Header[k] = v
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	envelope := struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   *dto.ErrorInfo  `json:"error"`
	}{}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("%s %s: unexpected response (status %d): %w", method, path, resp.StatusCode, err)
	}
	if resp.StatusCode >= http.StatusBadRequest || !envelope.Success {
		return toError(resp.StatusCode, envelope.Error)
	}
	if out == nil || len(envelope.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("failed to decode %s %s: %w", method, path, err)
	}
	return nil
}

// apiCodes maps API error codes back to the domain codes the engine branches on
var apiCodes = map[string]string{
	dto.ErrCodeNotFound:            "NOT_FOUND",
	dto.ErrCodeInvalidState:        "INVALID_STATE",
	dto.ErrCodeEmptyContext:        "EMPTY_CONTEXT",
	dto.ErrCodePersistenceWrite:    "PERSISTENCE_WRITE_FAILED",
	dto.ErrCodeDecode:              "DECODE_ERROR",
	dto.ErrCodeInvalidCode:         "INVALID_CODE",
	dto.ErrCodeInvalidContext:      "INVALID_CONTEXT_TYPE",
	dto.ErrCodeInvalidAttachment:   "INVALID_ATTACHMENT",
	dto.ErrCodeTooManyAttachments:  "TOO_MANY_ATTACHMENTS",
	dto.ErrCodeInvalidInput:        "INVALID_INPUT",
	dto.ErrCodeValidation:          "INVALID_INPUT",
	dto.ErrCodeUnauthorized:        "UNAUTHORIZED",
	dto.ErrCodeTokenExpired:        "UNAUTHORIZED",
	dto.ErrCodeTokenInvalid:        "UNAUTHORIZED",
	dto.ErrCodeForbidden:           "FORBIDDEN",
	dto.ErrCodeConcurrencyConflict: "CONCURRENCY_CONFLICT",
}

// StatusError is a failure the API did not describe with a domain code
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("audit api returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("audit api returned status %d: %s: %s", e.StatusCode, e.Code, e.Message)
}

func toError(status int, info *dto.ErrorInfo) error {
	if info == nil {
		return &StatusError{StatusCode: status}
	}
	if code, ok := apiCodes[info.Code]; ok {
		return shared.NewDomainError(code, info.Message)
	}
	return &StatusError{StatusCode: status, Code: info.Code, Message: info.Message}
}

func auditPath(id uuid.UUID, suffix string) string {
	return "/audits/" + id.String() + suffix
}
