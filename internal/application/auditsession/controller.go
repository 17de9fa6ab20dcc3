package auditsession

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	appaudit "github.com/assetaudit/backend/internal/application/audit"
	"github.com/assetaudit/backend/internal/domain/audit"
	"github.com/assetaudit/backend/internal/domain/shared"
	"github.com/assetaudit/backend/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Completer closes an audit on the durable side
type Completer interface {
	CompleteAudit(ctx context.Context, sessionID uuid.UUID, in appaudit.CompleteAuditInput) (*appaudit.AuditResponse, error)
}

// SessionSource loads what is needed to resume an audit
type SessionSource interface {
	GetAudit(ctx context.Context, sessionID uuid.UUID) (*appaudit.AuditResponse, error)
	ListExpectedAssets(ctx context.Context, sessionID uuid.UUID) ([]appaudit.ExpectedAssetResponse, error)
	ListScans(ctx context.Context, sessionID uuid.UUID) ([]appaudit.ScanResponse, error)
}

// Backend is everything the engine needs from the durable side
type Backend interface {
	CodeResolver
	ScanWriter
	Completer
	SessionSource
}

// Config tunes the engine
type Config struct {
	MaxAttempts    int
	MaxAttachments int
	ResolveTimeout time.Duration
	WriteTimeout   time.Duration
}

// DefaultConfig returns the default engine configuration
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    5,
		MaxAttachments: audit.MaxAttachments,
		ResolveTimeout: 10 * time.Second,
		WriteTimeout:   15 * time.Second,
	}
}

// CompletionInput carries the operator's closing note and photos
type CompletionInput struct {
	Note        string
	Attachments []appaudit.AttachmentUpload
}

// Engine drives one audit session at a time:
// Uninitialized -> Active -> Completed, and back to Uninitialized on End.
type Engine struct {
	lifecycle sync.Mutex
	store     *Store
	tasks     *taskGroup
	ingestor  *Ingestor
	sync      *Synchronizer
	backend   Backend
	config    Config
	logger    *zap.Logger
}

// NewEngine creates an uninitialized engine
func NewEngine(backend Backend, cfg Config, l *zap.Logger) *Engine {
	if l == nil {
		l = zap.NewNop()
	}
	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.MaxAttachments <= 0 || cfg.MaxAttachments > audit.MaxAttachments {
		cfg.MaxAttachments = def.MaxAttachments
	}
	l = l.Named("audit_engine")

	store := NewStore()
	tasks := newTaskGroup()
	e := &Engine{
		store:    store,
		tasks:    tasks,
		ingestor: newIngestor(store, backend, tasks, cfg.ResolveTimeout, l),
		sync:     newSynchronizer(store, backend, tasks, cfg.MaxAttempts, cfg.WriteTimeout, l),
		backend:  backend,
		config:   cfg,
		logger:   l,
	}
	store.Subscribe(e.sync.onChange)
	return e
}

// Start begins work on a session. Any previous session is dropped from memory and
// its background work is cancelled. Prior durable scans are replayed as already
// persisted, in the same critical section that makes the session active.
func (e *Engine) Start(ctx context.Context, info SessionInfo, expected []audit.ExpectedAsset, prior []PriorScan) Token {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	e.tasks.restart(ctx)
	e.sync.reset()
	tok := e.store.reset(info, expected, prior)

	logger.Enrich(ctx, e.logger).Info("Audit session started",
		zap.String("audit_session_id", info.ID.String()),
		zap.Int("expected", len(expected)),
		zap.Int("replayed", len(prior)),
	)
	return tok
}

// Resume loads an active audit with its expected set and durable scans, then starts it
func (e *Engine) Resume(ctx context.Context, sessionID uuid.UUID) (Token, error) {
	detail, err := e.backend.GetAudit(ctx, sessionID)
	if err != nil {
		return Token{}, fmt.Errorf("failed to load audit: %w", err)
	}
	if detail.Status != string(audit.SessionStatusActive) {
		return Token{}, shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Audit is %s", strings.ToLower(detail.Status)))
	}
	expected, err := e.backend.ListExpectedAssets(ctx, sessionID)
	if err != nil {
		return Token{}, fmt.Errorf("failed to load expected assets: %w", err)
	}
	scans, err := e.backend.ListScans(ctx, sessionID)
	if err != nil {
		return Token{}, fmt.Errorf("failed to load scans: %w", err)
	}

	info := SessionInfo{
		ID:          detail.ID,
		Name:        detail.Name,
		ContextType: audit.ContextType(detail.ContextType),
		ContextName: detail.ContextName,
	}
	return e.Start(ctx, info, expectedFromResponses(expected), priorFromResponses(scans)), nil
}

// RefreshExpected replaces the expected membership; scanned items and id sets are kept
func (e *Engine) RefreshExpected(expected []audit.ExpectedAsset) error {
	return e.store.setExpected(expected)
}

// Ingest records a decoded scan
func (e *Engine) Ingest(ctx context.Context, ev ScanEvent) error {
	return e.ingestor.Ingest(ctx, ev)
}

// Flush waits for pending lookups and writes
func (e *Engine) Flush(ctx context.Context) error {
	return e.sync.Flush(ctx)
}

// Retry resubmits writes that were parked after repeated failures
func (e *Engine) Retry() int {
	return e.sync.Retry()
}

// Complete writes out everything scanned, freezes the counts and closes the audit.
// If some scans could not be persisted the session stays active so the operator can retry.
func (e *Engine) Complete(ctx context.Context, in CompletionInput) (*appaudit.AuditResponse, error) {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	snap := e.store.Snapshot()
	if snap.Status != StatusActive {
		return nil, shared.NewDomainError("INVALID_STATE", "Can only complete an active audit session")
	}
	if err := e.validateAttachments(in.Attachments); err != nil {
		return nil, err
	}

	if err := e.sync.Flush(ctx); err != nil {
		return nil, fmt.Errorf("failed to flush scans: %w", err)
	}
	if n := e.store.unpersisted(); n > 0 {
		return nil, shared.NewDomainError("PERSISTENCE_WRITE_FAILED", fmt.Sprintf("%d scanned assets are not saved yet", n))
	}

	tok := e.store.Token()
	counts := e.store.Reconciliation().Counts
	resp, err := e.backend.CompleteAudit(ctx, tok.SessionID, appaudit.CompleteAuditInput{
		Note:        in.Note,
		Attachments: in.Attachments,
	})
	if err != nil {
		return nil, err
	}
	if err := e.store.complete(tok, counts); err != nil {
		return nil, err
	}
	e.tasks.stop()

	l := logger.Enrich(ctx, e.logger).With(zap.String("audit_session_id", tok.SessionID.String()))
	if resp.FoundAssetCount != counts.Found || resp.UnexpectedAssetCount != counts.Unexpected {
		l.Warn("Durable counts differ from session counts",
			zap.Int("found", counts.Found),
			zap.Int("durable_found", resp.FoundAssetCount),
			zap.Int("unexpected", counts.Unexpected),
			zap.Int("durable_unexpected", resp.UnexpectedAssetCount),
		)
	}
	l.Info("Audit session completed",
		zap.Int("expected", counts.Expected),
		zap.Int("found", counts.Found),
		zap.Int("missing", counts.Missing),
		zap.Int("unexpected", counts.Unexpected),
	)
	return resp, nil
}

// End abandons the session in memory; nothing durable changes
func (e *Engine) End() {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()
	e.tasks.stop()
	e.sync.reset()
	e.store.clear()
}

// Snapshot returns the current session state
func (e *Engine) Snapshot() Snapshot {
	return e.store.Snapshot()
}

// Reconciliation returns the live found/missing/unexpected partition
func (e *Engine) Reconciliation() audit.Reconciliation {
	return e.store.Reconciliation()
}

// Subscribe registers a listener for state changes
func (e *Engine) Subscribe(l Listener) func() {
	return e.store.Subscribe(l)
}

func (e *Engine) validateAttachments(atts []appaudit.AttachmentUpload) error {
	if len(atts) > e.config.MaxAttachments {
		return shared.NewDomainError("TOO_MANY_ATTACHMENTS", fmt.Sprintf("At most %d attachments are allowed", e.config.MaxAttachments))
	}
	for _, a := range atts {
		if !appaudit.AllowedImageTypes[strings.ToLower(a.ContentType)] {
			return shared.NewDomainError("INVALID_ATTACHMENT", fmt.Sprintf("Attachment %q is not a supported image type", a.Filename))
		}
	}
	return nil
}

func expectedFromResponses(in []appaudit.ExpectedAssetResponse) []audit.ExpectedAsset {
	out := make([]audit.ExpectedAsset, len(in))
	for i, e := range in {
		out[i] = audit.ExpectedAsset{ID: e.ID, Name: e.Name, Valuation: e.Valuation}
	}
	return out
}

func priorFromResponses(in []appaudit.ScanResponse) []PriorScan {
	out := make([]PriorScan, len(in))
	for i, s := range in {
		out[i] = PriorScan{ScanID: s.ID, Code: s.QRID, Asset: s.Asset, ScannedAt: s.ScannedAt}
	}
	return out
}
