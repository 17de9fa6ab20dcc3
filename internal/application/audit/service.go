package audit

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/assetaudit/backend/internal/domain/asset"
	"github.com/assetaudit/backend/internal/domain/audit"
	"github.com/assetaudit/backend/internal/domain/shared"
	"github.com/assetaudit/backend/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AllowedImageTypes lists the content types accepted as completion attachments
var AllowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/heic": true,
	"image/heif": true,
}

// ServiceConfig holds tuning for the audit service
type ServiceConfig struct {
	MaxAttachments     int
	MaxAttachmentBytes int64
	ScanCacheTTL       time.Duration
}

// DefaultServiceConfig returns the default configuration
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		MaxAttachments:     audit.MaxAttachments,
		MaxAttachmentBytes: 8 << 20,
		ScanCacheTTL:       24 * time.Hour,
	}
}

// Dependencies are the collaborators of the audit service
type Dependencies struct {
	Sessions    audit.AuditSessionRepository
	Scans       audit.AuditScanRepository
	Assets      asset.AssetRepository
	Locations   asset.LocationRepository
	Kits        asset.KitRepository
	Custodians  asset.CustodianRepository
	Codes       asset.CodeRepository
	Storage     AttachmentStorage
	Idempotency shared.IdempotencyStore
	Locker      shared.Locker
	Events      shared.EventPublisher
	Logger      *zap.Logger
}

// Service is the durable side of audits: creation, scan writes, completion and reports
type Service struct {
	sessions    audit.AuditSessionRepository
	scans       audit.AuditScanRepository
	assets      asset.AssetRepository
	kits        asset.KitRepository
	codes       asset.CodeRepository
	resolver    *ContextResolver
	storage     AttachmentStorage
	idempotency shared.IdempotencyStore
	locker      shared.Locker
	events      shared.EventPublisher
	logger      *zap.Logger
	config      ServiceConfig
}

// NewService creates a new audit Service
func NewService(deps Dependencies, cfg ServiceConfig) *Service {
	l := deps.Logger
	if l == nil {
		l = zap.NewNop()
	}
	if cfg.MaxAttachments <= 0 || cfg.MaxAttachments > audit.MaxAttachments {
		cfg.MaxAttachments = audit.MaxAttachments
	}
	if cfg.MaxAttachmentBytes <= 0 {
		cfg.MaxAttachmentBytes = DefaultServiceConfig().MaxAttachmentBytes
	}
	if cfg.ScanCacheTTL <= 0 {
		cfg.ScanCacheTTL = DefaultServiceConfig().ScanCacheTTL
	}
	return &Service{
		sessions:    deps.Sessions,
		scans:       deps.Scans,
		assets:      deps.Assets,
		kits:        deps.Kits,
		codes:       deps.Codes,
		resolver:    NewContextResolver(deps.Assets, deps.Locations, deps.Kits, deps.Custodians),
		storage:     deps.Storage,
		idempotency: deps.Idempotency,
		locker:      deps.Locker,
		events:      deps.Events,
		logger:      l.Named("audit_service"),
		config:      cfg,
	}
}

// CreateAudit resolves the context and opens an active audit over the resulting expected set
func (s *Service) CreateAudit(ctx context.Context, tenantID uuid.UUID, req CreateAuditRequest, createdBy *uuid.UUID) (*AuditResponse, error) {
	resolved, err := s.resolver.Resolve(ctx, tenantID, req.Descriptor())
	if err != nil {
		return nil, err
	}

	summaries, err := s.assets.FindSummaries(ctx, tenantID, resolved.AssetIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load expected assets: %w", err)
	}
	byID := make(map[uuid.UUID]asset.Summary, len(summaries))
	for _, sum := range summaries {
		byID[sum.ID] = sum
	}
	expected := make([]audit.ExpectedAsset, 0, len(resolved.AssetIDs))
	for _, id := range resolved.AssetIDs {
		sum := byID[id]
		expected = append(expected, audit.ExpectedAsset{ID: id, Name: sum.Title, Valuation: sum.Valuation})
	}

	session, err := audit.NewAuditSession(tenantID, req.Name, *resolved, expected, createdBy)
	if err != nil {
		return nil, err
	}
	if req.TargetID != nil {
		session.SetTarget(req.TargetType, *req.TargetID)
	}

	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save audit: %w", err)
	}
	s.publish(ctx, session)

	logger.Enrich(ctx, s.logger).Info("Audit created",
		zap.String("audit_session_id", session.ID.String()),
		zap.String("context_type", session.ContextType.String()),
		zap.Int("expected", session.ExpectedAssetCount),
	)
	resp := ToAuditResponse(session)
	return &resp, nil
}

// RecordScan durably stores one scanned asset. Submitting the same asset twice for
// an audit yields one row; the second call reports Duplicate with the original scan id.
func (s *Service) RecordScan(ctx context.Context, tenantID, sessionID uuid.UUID, req RecordScanRequest, scannedBy *uuid.UUID) (*RecordScanResponse, error) {
	session, err := s.sessions.FindByIDForTenant(ctx, tenantID, sessionID)
	if err != nil {
		return nil, err
	}
	if err := session.EnsureActive(); err != nil {
		return nil, err
	}

	isExpected := session.IsExpected(req.AssetID)
	if !isExpected {
		if err := s.ensureTenantAsset(ctx, tenantID, req.AssetID); err != nil {
			return nil, err
		}
	}
	l := logger.Enrich(ctx, s.logger).With(
		zap.String("audit_session_id", sessionID.String()),
		zap.String("asset_id", req.AssetID.String()),
	)
	if isExpected != req.IsExpected {
		l.Debug("Client expectation differs from expected set", zap.Bool("client_is_expected", req.IsExpected))
	}

	key := scanKey(sessionID, req.AssetID)
	if resp, ok := s.cachedScan(ctx, tenantID, session, req.AssetID, key); ok {
		return resp, nil
	}

	unlock, err := s.locker.Lock(ctx, lockKey(sessionID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	scan, err := audit.NewAuditScan(tenantID, sessionID, asset.NormalizeCode(req.QRID), req.AssetID, isExpected)
	if err != nil {
		return nil, err
	}
	scan.ScannedBy = scannedBy

	result, err := s.scans.Record(ctx, scan)
	if err != nil {
		if _, ok := shared.AsDomainError(err); ok {
			return nil, err
		}
		return nil, fmt.Errorf("failed to record scan: %w", err)
	}

	if _, err := s.idempotency.MarkProcessed(ctx, key, s.config.ScanCacheTTL); err != nil {
		l.Warn("Failed to cache recorded scan", zap.Error(err))
	}
	if result.Created {
		if err := s.events.Publish(ctx, audit.NewAuditScanRecordedEvent(result.Scan, result.Counts)); err != nil {
			l.Warn("Failed to publish scan event", zap.Error(err))
		}
	} else {
		l.Debug("Duplicate scan ignored")
	}

	return &RecordScanResponse{
		Success:    true,
		ScanID:     result.Scan.ID,
		Duplicate:  !result.Created,
		IsExpected: result.Scan.IsExpected,
		Counts:     result.Counts,
	}, nil
}

// ensureTenantAsset rejects asset ids that do not name an asset of the tenant.
// Expected assets were checked when the audit was created.
func (s *Service) ensureTenantAsset(ctx context.Context, tenantID, assetID uuid.UUID) error {
	summaries, err := s.assets.FindSummaries(ctx, tenantID, []uuid.UUID{assetID})
	if err != nil {
		return fmt.Errorf("failed to load asset: %w", err)
	}
	if len(summaries) == 0 {
		return shared.NewDomainError("NOT_FOUND", "Asset not found")
	}
	return nil
}

// cachedScan answers a retried write from the idempotency cache without taking the lock
func (s *Service) cachedScan(ctx context.Context, tenantID uuid.UUID, session *audit.AuditSession, assetID uuid.UUID, key string) (*RecordScanResponse, bool) {
	processed, err := s.idempotency.IsProcessed(ctx, key)
	if err != nil || !processed {
		return nil, false
	}
	existing, err := s.scans.FindBySessionAndAsset(ctx, tenantID, session.ID, assetID)
	if err != nil {
		return nil, false
	}
	return &RecordScanResponse{
		Success:    true,
		ScanID:     existing.ID,
		Duplicate:  true,
		IsExpected: existing.IsExpected,
		Counts:     session.Counts(),
	}, true
}

// CompleteAudit freezes the counters from the durable scans, stores the photos and
// closes the audit. Uploaded objects are removed again if the audit cannot be saved.
func (s *Service) CompleteAudit(ctx context.Context, tenantID, sessionID uuid.UUID, in CompleteAuditInput, completedBy *uuid.UUID) (*AuditResponse, error) {
	if len(in.Attachments) > s.config.MaxAttachments {
		return nil, shared.NewDomainError("TOO_MANY_ATTACHMENTS", fmt.Sprintf("At most %d attachments are allowed", s.config.MaxAttachments))
	}
	for _, att := range in.Attachments {
		if err := s.validateAttachment(att); err != nil {
			return nil, err
		}
	}

	unlock, err := s.locker.Lock(ctx, lockKey(sessionID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	session, err := s.sessions.FindByIDForTenant(ctx, tenantID, sessionID)
	if err != nil {
		return nil, err
	}
	if err := session.EnsureActive(); err != nil {
		return nil, err
	}

	rec, err := s.reconcile(ctx, session)
	if err != nil {
		return nil, err
	}

	attachments, err := s.uploadAttachments(ctx, session, in.Attachments)
	if err != nil {
		return nil, err
	}

	if err := session.Complete(rec.Counts, in.Note, attachments, completedBy); err != nil {
		s.discardAttachments(ctx, attachments)
		return nil, err
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		s.discardAttachments(ctx, attachments)
		return nil, fmt.Errorf("failed to save audit: %w", err)
	}
	s.publish(ctx, session)

	logger.Enrich(ctx, s.logger).Info("Audit completed",
		zap.String("audit_session_id", session.ID.String()),
		zap.Int("found", rec.Counts.Found),
		zap.Int("missing", rec.Counts.Missing),
		zap.Int("unexpected", rec.Counts.Unexpected),
	)
	resp := s.toDetail(ctx, session)
	return &resp, nil
}

// CancelAudit abandons an active audit; recorded scans stay as they are
func (s *Service) CancelAudit(ctx context.Context, tenantID, sessionID uuid.UUID, req CancelAuditRequest) (*AuditResponse, error) {
	unlock, err := s.locker.Lock(ctx, lockKey(sessionID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	session, err := s.sessions.FindByIDForTenant(ctx, tenantID, sessionID)
	if err != nil {
		return nil, err
	}
	if err := session.Cancel(req.Reason); err != nil {
		return nil, err
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save audit: %w", err)
	}
	s.publish(ctx, session)

	resp := ToAuditResponse(session)
	return &resp, nil
}

// GetAudit returns an audit with download links for its attachments
func (s *Service) GetAudit(ctx context.Context, tenantID, sessionID uuid.UUID) (*AuditResponse, error) {
	session, err := s.sessions.FindByIDForTenant(ctx, tenantID, sessionID)
	if err != nil {
		return nil, err
	}
	resp := s.toDetail(ctx, session)
	return &resp, nil
}

// ListAudits lists audits with filtering and pagination
func (s *Service) ListAudits(ctx context.Context, tenantID uuid.UUID, f AuditListFilter) (*shared.Paginated[AuditResponse], error) {
	filter := shared.DefaultFilter()
	filter.Search = f.Search
	if f.Page > 0 {
		filter.Page = f.Page
	}
	if f.PageSize > 0 {
		filter.PageSize = f.PageSize
	}
	if f.OrderBy != "" {
		filter.OrderBy = f.OrderBy
	}
	if f.OrderDir != "" {
		filter.OrderDir = f.OrderDir
	}
	if f.Status != "" {
		filter.Filters["status"] = f.Status
	}
	if f.ContextType != "" {
		filter.Filters["context_type"] = f.ContextType
	}
	if f.TargetID != "" {
		targetID, err := uuid.Parse(f.TargetID)
		if err != nil {
			return nil, shared.NewDomainError("INVALID_INPUT", "target_id must be a UUID")
		}
		filter.Filters["target_id"] = targetID
	}

	sessions, err := s.sessions.FindAllForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list audits: %w", err)
	}
	total, err := s.sessions.CountForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count audits: %w", err)
	}

	items := make([]AuditResponse, len(sessions))
	for i := range sessions {
		items[i] = ToAuditResponse(&sessions[i])
	}
	page := shared.NewPaginated(items, total, filter.Page, filter.PageSize)
	return &page, nil
}

// ListExpectedAssets returns the expected set in order with a found flag per asset
func (s *Service) ListExpectedAssets(ctx context.Context, tenantID, sessionID uuid.UUID) ([]ExpectedAssetResponse, error) {
	session, err := s.sessions.FindByIDForTenant(ctx, tenantID, sessionID)
	if err != nil {
		return nil, err
	}
	scanned, err := s.scans.FindBySession(ctx, tenantID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load scans: %w", err)
	}
	found := make(map[uuid.UUID]struct{}, len(scanned))
	for _, sc := range scanned {
		found[sc.AssetID] = struct{}{}
	}

	out := make([]ExpectedAssetResponse, len(session.ExpectedAssets))
	for i, e := range session.ExpectedAssets {
		_, ok := found[e.ID]
		out[i] = ExpectedAssetResponse{ID: e.ID, Name: e.Name, Valuation: e.Valuation, Found: ok}
	}
	return out, nil
}

// ListScans returns the durable scans of an audit in scan order; clients replay them on resume
func (s *Service) ListScans(ctx context.Context, tenantID, sessionID uuid.UUID) ([]ScanResponse, error) {
	if _, err := s.sessions.FindByIDForTenant(ctx, tenantID, sessionID); err != nil {
		return nil, err
	}
	scanned, err := s.scans.FindBySession(ctx, tenantID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load scans: %w", err)
	}
	out := make([]ScanResponse, len(scanned))
	for i, sc := range scanned {
		out[i] = ScanResponse{
			ID:         sc.ID,
			QRID:       sc.QRID,
			AssetID:    sc.AssetID,
			IsExpected: sc.IsExpected,
			ScannedBy:  sc.ScannedBy,
			ScannedAt:  sc.ScannedAt,
			Asset:      sc.Asset,
		}
	}
	return out, nil
}

// GetReconciliation classifies the durable scans against the expected set
func (s *Service) GetReconciliation(ctx context.Context, tenantID, sessionID uuid.UUID) (*ReconciliationResponse, error) {
	session, err := s.sessions.FindByIDForTenant(ctx, tenantID, sessionID)
	if err != nil {
		return nil, err
	}
	rec, err := s.reconcile(ctx, session)
	if err != nil {
		return nil, err
	}
	return &ReconciliationResponse{
		AuditSessionID: session.ID,
		Status:         session.Status.String(),
		Counts:         rec.Counts,
		Found:          expectedResponses(rec.Found, true),
		Missing:        expectedResponses(rec.Missing, false),
		Unexpected:     rec.Unexpected,
		MissingValue:   rec.MissingValue,
	}, nil
}

// ResolveCode looks up what a scanned code points at
func (s *Service) ResolveCode(ctx context.Context, tenantID uuid.UUID, raw string) (*CodeResolution, error) {
	code := asset.NormalizeCode(raw)
	if code == "" {
		return nil, shared.NewDomainError("INVALID_CODE", "Scanned code cannot be empty")
	}
	c, err := s.codes.FindByID(ctx, tenantID, code)
	if err != nil {
		return nil, notFoundAs(err, "Code not found")
	}

	res := &CodeResolution{Code: code, Type: c.Target()}
	switch res.Type {
	case asset.CodeTargetAsset:
		summaries, err := s.assets.FindSummaries(ctx, tenantID, []uuid.UUID{*c.AssetID})
		if err != nil {
			return nil, fmt.Errorf("failed to load asset: %w", err)
		}
		if len(summaries) == 0 {
			return nil, shared.NewDomainError("NOT_FOUND", "Asset not found")
		}
		res.Asset = &summaries[0]
	case asset.CodeTargetKit:
		kit, err := s.kits.FindByID(ctx, tenantID, *c.KitID)
		if err != nil {
			return nil, notFoundAs(err, "Kit not found")
		}
		ids, err := s.assets.FindIDsByKit(ctx, tenantID, kit.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load kit assets: %w", err)
		}
		res.Kit = &KitSummary{ID: kit.ID, Name: kit.Name, AssetCount: len(ids)}
	}
	return res, nil
}

func (s *Service) reconcile(ctx context.Context, session *audit.AuditSession) (audit.Reconciliation, error) {
	scanned, err := s.scans.FindBySession(ctx, session.TenantID, session.ID)
	if err != nil {
		return audit.Reconciliation{}, fmt.Errorf("failed to load scans: %w", err)
	}
	assets := make([]audit.ScannedAsset, len(scanned))
	for i, sc := range scanned {
		assets[i] = audit.ScannedAsset{ID: sc.AssetID, Name: sc.Asset.Title, Valuation: sc.Asset.Valuation}
	}
	return audit.Reconcile(session.ExpectedAssets, assets), nil
}

func (s *Service) validateAttachment(att AttachmentUpload) error {
	contentType := strings.ToLower(strings.TrimSpace(att.ContentType))
	if !AllowedImageTypes[contentType] {
		return shared.NewDomainError("INVALID_ATTACHMENT", fmt.Sprintf("Attachment %q is not a supported image type", att.Filename))
	}
	if att.Size <= 0 || att.Size > s.config.MaxAttachmentBytes {
		return shared.NewDomainError("INVALID_ATTACHMENT", fmt.Sprintf("Attachment %q must be between 1 and %d bytes", att.Filename, s.config.MaxAttachmentBytes))
	}
	if att.Body == nil {
		return shared.NewDomainError("INVALID_ATTACHMENT", fmt.Sprintf("Attachment %q has no content", att.Filename))
	}
	return nil
}

func (s *Service) uploadAttachments(ctx context.Context, session *audit.AuditSession, uploads []AttachmentUpload) ([]audit.Attachment, error) {
	stored := make([]audit.Attachment, 0, len(uploads))
	for _, up := range uploads {
		id := uuid.New()
		contentType := strings.ToLower(strings.TrimSpace(up.ContentType))
		key := attachmentKey(session.TenantID, session.ID, id, up.Filename, contentType)
		if err := s.storage.Put(ctx, key, up.Body, up.Size, contentType); err != nil {
			s.discardAttachments(ctx, stored)
			return nil, fmt.Errorf("failed to store attachment %q: %w", up.Filename, err)
		}
		stored = append(stored, audit.Attachment{
			ID:          id,
			Filename:    filepath.Base(up.Filename),
			ContentType: contentType,
			StorageKey:  key,
			Size:        up.Size,
			CreatedAt:   time.Now(),
		})
	}
	return stored, nil
}

func (s *Service) discardAttachments(ctx context.Context, attachments []audit.Attachment) {
	ctx = context.WithoutCancel(ctx)
	for _, a := range attachments {
		if err := s.storage.Delete(ctx, a.StorageKey); err != nil {
			logger.Enrich(ctx, s.logger).Warn("Failed to remove orphaned attachment",
				zap.String("storage_key", a.StorageKey),
				zap.Error(err),
			)
		}
	}
}

func (s *Service) toDetail(ctx context.Context, session *audit.AuditSession) AuditResponse {
	resp := ToAuditResponse(session)
	for i, a := range session.Attachments {
		link, expiresAt, err := s.storage.DownloadURL(ctx, a.StorageKey)
		if err != nil {
			logger.Enrich(ctx, s.logger).Warn("Failed to sign attachment URL",
				zap.String("storage_key", a.StorageKey),
				zap.Error(err),
			)
			continue
		}
		resp.Attachments[i].URL = link
		resp.Attachments[i].URLExpiresAt = &expiresAt
	}
	return resp
}

func (s *Service) publish(ctx context.Context, session *audit.AuditSession) {
	events := session.GetDomainEvents()
	session.ClearDomainEvents()
	if len(events) == 0 {
		return
	}
	if err := s.events.Publish(ctx, events...); err != nil {
		logger.Enrich(ctx, s.logger).Warn("Failed to publish audit events",
			zap.String("audit_session_id", session.ID.String()),
			zap.Error(err),
		)
	}
}

func expectedResponses(in []audit.ExpectedAsset, found bool) []ExpectedAssetResponse {
	out := make([]ExpectedAssetResponse, len(in))
	for i, e := range in {
		out[i] = ExpectedAssetResponse{ID: e.ID, Name: e.Name, Valuation: e.Valuation, Found: found}
	}
	return out
}

func scanKey(sessionID, assetID uuid.UUID) string {
	return "scan:" + sessionID.String() + ":" + assetID.String()
}

func lockKey(sessionID uuid.UUID) string {
	return "session:" + sessionID.String()
}

// attachmentKey builds audits/{tenant}/{audit}/{attachment}{ext}
func attachmentKey(tenantID, sessionID, attachmentID uuid.UUID, filename, contentType string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
			ext = exts[0]
		}
	}
	return fmt.Sprintf("audits/%s/%s/%s%s", tenantID, sessionID, attachmentID, ext)
}

